package services

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/homedock/internal/cryptox"
	"github.com/dmitrijs2005/homedock/internal/dbx"
	"github.com/dmitrijs2005/homedock/internal/logging"
	"github.com/dmitrijs2005/homedock/internal/server/auth"
	"github.com/dmitrijs2005/homedock/internal/server/metrics"
	"github.com/dmitrijs2005/homedock/internal/server/repositories/repomanager"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

var fastParams = cryptox.PasswordParams{Time: 1, Memory: 1024, Threads: 1}

// testEnv wires every service over a migrated in-memory SQLite database.
type testEnv struct {
	db          *sql.DB
	m           *repomanager.SQLRepositoryManager
	vault       *cryptox.Vault
	issuer      *auth.Issuer
	metrics     *metrics.Metrics
	tokens      *RefreshTokenStore
	roles       *RoleService
	users       *UserService
	credentials *CredentialService
}

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := dbx.Open(dbx.DriverSQLite, fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", name))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTestVault(t *testing.T, fill byte) *cryptox.Vault {
	t.Helper()
	v, err := cryptox.NewVault(bytes.Repeat([]byte{fill}, cryptox.KeySize))
	require.NoError(t, err)
	return v
}

func newTestEnv(t *testing.T, opts ...repomanager.Option) *testEnv {
	t.Helper()
	ctx := context.Background()

	db := newTestDB(t)
	m := repomanager.NewSQLRepositoryManager(dbx.DriverSQLite, opts...)
	require.NoError(t, m.RunMigrations(ctx, db))

	vault := newTestVault(t, 7)
	issuer, err := auth.NewIssuer([]byte("test-secret"), time.Minute)
	require.NoError(t, err)

	log := logging.Discard()
	mtr := metrics.NewMetrics(prometheus.NewRegistry())

	e := &testEnv{db: db, m: m, vault: vault, issuer: issuer, metrics: mtr}
	e.tokens = NewRefreshTokenStore(db, m, vault, issuer, log)
	e.roles = NewRoleService(db, m, time.Minute, mtr, log)
	require.NoError(t, e.roles.EnsureSystemRoles(ctx))
	e.users = NewUserService(UserServiceDeps{
		DB:         db,
		Repos:      m,
		Issuer:     issuer,
		Tokens:     e.tokens,
		Roles:      e.roles,
		Hasher:     cryptox.NewPasswordHasher(fastParams),
		RefreshTTL: time.Hour,
		Metrics:    mtr,
		Logger:     log,
	})
	e.credentials = NewCredentialService(db, m, vault, mtr, log)
	return e
}

func (e *testEnv) register(t *testing.T, name string) *Session {
	t.Helper()
	s, err := e.users.Register(context.Background(), RegisterInput{UserName: name, Password: "password123"})
	require.NoError(t, err)
	return s
}
