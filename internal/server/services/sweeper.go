package services

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/homedock/internal/logging"
	"github.com/dmitrijs2005/homedock/internal/server/metrics"
	"github.com/robfig/cron/v3"
)

// TokenSweeper periodically deletes expired refresh tokens. Expired tokens
// are already rejected on use; the sweep only reclaims storage.
type TokenSweeper struct {
	cron    *cron.Cron
	store   *RefreshTokenStore
	metrics *metrics.Metrics
	log     logging.Logger
}

// NewTokenSweeper schedules a sweep with a cron spec such as "@every 1h".
func NewTokenSweeper(store *RefreshTokenStore, schedule string, mtr *metrics.Metrics, log logging.Logger) (*TokenSweeper, error) {
	s := &TokenSweeper{
		cron:    cron.New(),
		store:   store,
		metrics: mtr,
		log:     log.With("module", "sweeper"),
	}

	if _, err := s.cron.AddFunc(schedule, func() {
		if _, err := s.Sweep(context.Background()); err != nil {
			s.log.Error(context.Background(), "refresh token sweep failed", "error", err)
		}
	}); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Sweep runs one purge.
func (s *TokenSweeper) Sweep(ctx context.Context) (int64, error) {
	n, err := s.store.PurgeExpired(ctx)
	if err != nil {
		return 0, err
	}
	s.metrics.TokensPurged(n)
	if n > 0 {
		s.log.Info(ctx, "expired refresh tokens purged", "count", n)
	}
	return n, nil
}

// Run starts the schedule and blocks until ctx is done, then waits for a
// running sweep to finish.
func (s *TokenSweeper) Run(ctx context.Context) error {
	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
	return nil
}
