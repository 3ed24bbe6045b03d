package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/homedock/internal/server/models"
)

// Repository stores refresh token digests. Implementations must make
// Consume atomic: of two concurrent calls for the same digest at most one
// returns the row.
type Repository interface {
	Create(ctx context.Context, token *models.RefreshToken) error
	Find(ctx context.Context, tokenHash string) (*models.RefreshToken, error)
	Delete(ctx context.Context, tokenHash string) error
	Consume(ctx context.Context, tokenHash string) (*models.RefreshToken, error)
	DeleteByUser(ctx context.Context, userID string) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
