// Package credentials stores encrypted third-party secrets. The secret
// column only ever holds a cryptox.Envelope.
package credentials

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/homedock/internal/common"
	"github.com/dmitrijs2005/homedock/internal/dbx"
	"github.com/dmitrijs2005/homedock/internal/server/models"
	"github.com/google/uuid"
)

type PostgresRepository struct {
	db  dbx.DBTX
	now func() time.Time
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (r *PostgresRepository) Create(ctx context.Context, c *models.Credential) (*models.Credential, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := r.now()
	c.CreatedAt, c.UpdatedAt = now, now

	query :=
		`INSERT INTO credentials (id, user_id, name, service_type, secret, metadata, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.ExecContext(ctx, query, c.ID, c.UserID, c.Name, c.ServiceType, c.Secret, c.Metadata, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}

// List returns the owner's credentials without the secret column.
func (r *PostgresRepository) List(ctx context.Context, userID string) ([]*models.Credential, error) {
	query :=
		`SELECT id, user_id, name, service_type, metadata, created_at, updated_at
		 FROM credentials
		 WHERE user_id = $1
		 ORDER BY name, id`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Credential
	for rows.Next() {
		c := &models.Credential{}
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.ServiceType, &c.Metadata, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) Get(ctx context.Context, userID, id string) (*models.Credential, error) {
	query :=
		`SELECT id, user_id, name, service_type, secret, metadata, created_at, updated_at
		 FROM credentials
		 WHERE id = $1 AND user_id = $2`

	c := &models.Credential{}
	err := r.db.QueryRowContext(ctx, query, id, userID).
		Scan(&c.ID, &c.UserID, &c.Name, &c.ServiceType, &c.Secret, &c.Metadata, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}

func (r *PostgresRepository) Update(ctx context.Context, c *models.Credential) error {
	c.UpdatedAt = r.now()

	query :=
		`UPDATE credentials
		 SET name = $1, service_type = $2, secret = $3, metadata = $4, updated_at = $5
		 WHERE id = $6 AND user_id = $7`

	res, err := r.db.ExecContext(ctx, query, c.Name, c.ServiceType, c.Secret, c.Metadata, c.UpdatedAt, c.ID, c.UserID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOne(res)
}

func (r *PostgresRepository) Delete(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM credentials WHERE id = $1 AND user_id = $2`, id, userID)
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
