// Package roles stores the role catalog: seeded system roles and custom
// roles created by administrators.
package roles

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/homedock/internal/common"
	"github.com/dmitrijs2005/homedock/internal/dbx"
	"github.com/dmitrijs2005/homedock/internal/server/models"
)

type PostgresRepository struct {
	db  dbx.DBTX
	now func() time.Time
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

const selectColumns = `name, description, permissions, is_system, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRole(row scanner) (*models.Role, error) {
	r := &models.Role{}
	err := row.Scan(&r.Name, &r.Description, &r.Permissions, &r.IsSystem, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

// Create inserts a custom role; an existing name reports
// common.ErrDuplicateRole.
func (r *PostgresRepository) Create(ctx context.Context, role *models.Role) error {
	now := r.now()
	role.CreatedAt, role.UpdatedAt = now, now
	if role.Permissions == nil {
		role.Permissions = models.PermissionList{}
	}

	query :=
		`INSERT INTO roles (name, description, permissions, is_system, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.ExecContext(ctx, query, role.Name, role.Description, role.Permissions, role.IsSystem, role.CreatedAt, role.UpdatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrDuplicateRole
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// EnsureSystem inserts role unless a role with that name already exists and
// reports whether it inserted.
func (r *PostgresRepository) EnsureSystem(ctx context.Context, role *models.Role) (bool, error) {
	now := r.now()

	query :=
		`INSERT INTO roles (name, description, permissions, is_system, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (name) DO NOTHING`

	res, err := r.db.ExecContext(ctx, query, role.Name, role.Description, role.Permissions, true, now, now)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}

func (r *PostgresRepository) Get(ctx context.Context, name string) (*models.Role, error) {
	role, err := scanRole(r.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM roles WHERE name = $1`, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return role, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]*models.Role, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM roles ORDER BY is_system DESC, name`)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

// Update rewrites description and permissions of a custom role. System rows
// are never matched.
func (r *PostgresRepository) Update(ctx context.Context, role *models.Role) error {
	role.UpdatedAt = r.now()
	if role.Permissions == nil {
		role.Permissions = models.PermissionList{}
	}

	query :=
		`UPDATE roles SET description = $1, permissions = $2, updated_at = $3
		 WHERE name = $4 AND is_system = FALSE`

	res, err := r.db.ExecContext(ctx, query, role.Description, role.Permissions, role.UpdatedAt, role.Name)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOne(res)
}

// Delete removes a custom role. System rows are never matched.
func (r *PostgresRepository) Delete(ctx context.Context, name string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM roles WHERE name = $1 AND is_system = FALSE`, name)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOne(res)
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
