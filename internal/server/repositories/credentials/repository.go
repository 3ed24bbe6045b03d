package credentials

import (
	"context"

	"github.com/dmitrijs2005/homedock/internal/server/models"
)

// Repository stores credentials. Every method is scoped by owner: a row
// belonging to another user behaves exactly like a missing row.
type Repository interface {
	Create(ctx context.Context, c *models.Credential) (*models.Credential, error)
	List(ctx context.Context, userID string) ([]*models.Credential, error)
	Get(ctx context.Context, userID, id string) (*models.Credential, error)
	Update(ctx context.Context, c *models.Credential) error
	Delete(ctx context.Context, userID, id string) error
}
