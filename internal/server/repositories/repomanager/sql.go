// Package repomanager provides the RepositoryManager used by services: it
// vends repositories bound to a DBTX and runs the embedded goose migrations.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/homedock/internal/dbx"
	"github.com/dmitrijs2005/homedock/internal/server/migrations"
	"github.com/dmitrijs2005/homedock/internal/server/repositories/credentials"
	"github.com/dmitrijs2005/homedock/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/homedock/internal/server/repositories/roles"
	"github.com/dmitrijs2005/homedock/internal/server/repositories/users"
	"github.com/pressly/goose/v3"
)

// SQLRepositoryManager vends SQL-backed repositories for either supported
// driver. Refresh tokens may be redirected to another backend (Redis) with
// WithRefreshTokens; that repository then ignores the DBTX it is handed.
type SQLRepositoryManager struct {
	dialect       string
	refreshTokens refreshtokens.Repository
}

type Option func(*SQLRepositoryManager)

func WithRefreshTokens(repo refreshtokens.Repository) Option {
	return func(m *SQLRepositoryManager) { m.refreshTokens = repo }
}

func NewSQLRepositoryManager(driver string, opts ...Option) *SQLRepositoryManager {
	m := &SQLRepositoryManager{dialect: dbx.GooseDialect(driver)}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *SQLRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewPostgresRepository(db)
}

func (m *SQLRepositoryManager) Roles(db dbx.DBTX) roles.Repository {
	return roles.NewPostgresRepository(db)
}

func (m *SQLRepositoryManager) RefreshTokens(db dbx.DBTX) refreshtokens.Repository {
	if m.refreshTokens != nil {
		return m.refreshTokens
	}
	return refreshtokens.NewPostgresRepository(db)
}

func (m *SQLRepositoryManager) Credentials(db dbx.DBTX) credentials.Repository {
	return credentials.NewPostgresRepository(db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations applies the embedded migrations using the manager's dialect.
func (m *SQLRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect(m.dialect); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, ".")
}
