package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/homedock/internal/common"
	"github.com/dmitrijs2005/homedock/internal/cryptox"
	"github.com/dmitrijs2005/homedock/internal/dbx"
	"github.com/dmitrijs2005/homedock/internal/logging"
	"github.com/dmitrijs2005/homedock/internal/server/auth"
	"github.com/dmitrijs2005/homedock/internal/server/models"
	"github.com/dmitrijs2005/homedock/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/homedock/internal/server/repositories/repomanager"
)

// RefreshTokenStore persists refresh tokens by digest and implements
// single-use rotation. Plaintext tokens never reach the repository.
type RefreshTokenStore struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	vault       *cryptox.Vault
	issuer      *auth.Issuer
	now         func() time.Time
	log         logging.Logger
}

func NewRefreshTokenStore(db *sql.DB, m repomanager.RepositoryManager, vault *cryptox.Vault, issuer *auth.Issuer, log logging.Logger) *RefreshTokenStore {
	return &RefreshTokenStore{
		db:          db,
		repomanager: m,
		vault:       vault,
		issuer:      issuer,
		now:         func() time.Time { return time.Now().UTC() },
		log:         log.With("module", "refresh_tokens"),
	}
}

// Save stores token for userID, valid for ttl from now.
func (s *RefreshTokenStore) Save(ctx context.Context, userID, token string, ttl time.Duration) error {
	return s.save(ctx, s.repomanager.RefreshTokens(s.db), userID, token, ttl)
}

func (s *RefreshTokenStore) save(ctx context.Context, repo refreshtokens.Repository, userID, token string, ttl time.Duration) error {
	now := s.now()
	t := &models.RefreshToken{
		TokenHash: s.vault.Hash(token),
		UserID:    userID,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	if err := repo.Create(ctx, t); err != nil {
		return fmt.Errorf("error saving refresh token: %w", err)
	}
	return nil
}

// Issue mints a new opaque token and saves it.
func (s *RefreshTokenStore) Issue(ctx context.Context, userID string, ttl time.Duration) (string, error) {
	token, err := s.issuer.IssueOpaqueRefresh()
	if err != nil {
		return "", err
	}
	if err := s.Save(ctx, userID, token, ttl); err != nil {
		return "", err
	}
	return token, nil
}

// Validate reports the owner of a live token. An expired token is deleted
// on the spot and reported as not valid.
func (s *RefreshTokenStore) Validate(ctx context.Context, token string) (string, bool, error) {
	repo := s.repomanager.RefreshTokens(s.db)
	digest := s.vault.Hash(token)

	t, err := repo.Find(ctx, digest)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("error searching refresh token: %w", err)
	}

	if t.Expired(s.now()) {
		if err := repo.Delete(ctx, digest); err != nil {
			return "", false, fmt.Errorf("error deleting expired refresh token: %w", err)
		}
		return "", false, nil
	}
	return t.UserID, true, nil
}

// Revoke deletes token. Unknown tokens are not an error.
func (s *RefreshTokenStore) Revoke(ctx context.Context, token string) error {
	if err := s.repomanager.RefreshTokens(s.db).Delete(ctx, s.vault.Hash(token)); err != nil {
		return fmt.Errorf("error deleting refresh token: %w", err)
	}
	return nil
}

// RevokeAll ends every session of userID.
func (s *RefreshTokenStore) RevokeAll(ctx context.Context, userID string) (int64, error) {
	n, err := s.repomanager.RefreshTokens(s.db).DeleteByUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("error deleting user refresh tokens: %w", err)
	}
	return n, nil
}

// Rotate consumes token and issues its replacement for the same user.
// Of two concurrent rotations of one token exactly one succeeds; the other
// gets common.ErrInvalidRefreshToken.
func (s *RefreshTokenStore) Rotate(ctx context.Context, token string, ttl time.Duration) (string, string, error) {
	var (
		userID   string
		newToken string
		expired  bool
	)

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.RefreshTokens(tx)

		t, err := repo.Consume(ctx, s.vault.Hash(token))
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrInvalidRefreshToken
			}
			return fmt.Errorf("error consuming refresh token: %w", err)
		}

		// the expired row stays deleted, so commit before reporting
		if t.Expired(s.now()) {
			expired = true
			return nil
		}

		newToken, err = s.issuer.IssueOpaqueRefresh()
		if err != nil {
			return err
		}
		if err := s.save(ctx, repo, t.UserID, newToken, ttl); err != nil {
			return err
		}
		userID = t.UserID
		return nil
	})
	if err != nil {
		return "", "", err
	}
	if expired {
		s.log.Debug(ctx, "expired refresh token purged on use")
		return "", "", common.ErrInvalidRefreshToken
	}
	return userID, newToken, nil
}

// PurgeExpired removes every token past its expiry.
func (s *RefreshTokenStore) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.repomanager.RefreshTokens(s.db).DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("error purging refresh tokens: %w", err)
	}
	return n, nil
}
