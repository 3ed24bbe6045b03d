package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/homedock/internal/dbx"
	"github.com/dmitrijs2005/homedock/internal/server/repositories/credentials"
	"github.com/dmitrijs2005/homedock/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/homedock/internal/server/repositories/roles"
	"github.com/dmitrijs2005/homedock/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Roles(db dbx.DBTX) roles.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	Credentials(db dbx.DBTX) credentials.Repository
}
