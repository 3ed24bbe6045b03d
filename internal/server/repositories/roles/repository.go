package roles

import (
	"context"

	"github.com/dmitrijs2005/homedock/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, role *models.Role) error
	Get(ctx context.Context, name string) (*models.Role, error)
	List(ctx context.Context) ([]*models.Role, error)
	Update(ctx context.Context, role *models.Role) error
	Delete(ctx context.Context, name string) error
	EnsureSystem(ctx context.Context, role *models.Role) (bool, error)
}
