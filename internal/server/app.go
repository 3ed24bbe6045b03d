// Package server wires the homedock server: configuration, master key,
// storage, services, the HTTP API, the gRPC health endpoint and the token
// sweeper, and runs them until a signal arrives.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/homedock/internal/cryptox"
	"github.com/dmitrijs2005/homedock/internal/dbx"
	"github.com/dmitrijs2005/homedock/internal/logging"
	"github.com/dmitrijs2005/homedock/internal/server/auth"
	"github.com/dmitrijs2005/homedock/internal/server/config"
	"github.com/dmitrijs2005/homedock/internal/server/httpapi"
	"github.com/dmitrijs2005/homedock/internal/server/keysource"
	"github.com/dmitrijs2005/homedock/internal/server/metrics"
	"github.com/dmitrijs2005/homedock/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/homedock/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/homedock/internal/server/services"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	gs "github.com/dmitrijs2005/homedock/internal/server/grpc"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	redis   *redis.Client
	http    *httpapi.HTTPServer
	grpc    *gs.GRPCServer
	sweeper *services.TokenSweeper
}

// NewLogger builds the process logger from the configured format and level.
func NewLogger(c *config.Config) (logging.Logger, error) {
	return logging.New(c.LogFormat, c.LogLevel, os.Stdout)
}

// OpenDatabase opens the configured database and applies migrations.
func OpenDatabase(ctx context.Context, c *config.Config, opts ...repomanager.Option) (*sql.DB, *repomanager.SQLRepositoryManager, error) {
	db, err := dbx.Open(c.DatabaseDriver, c.DatabaseDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("db init error: %w", err)
	}

	m := repomanager.NewSQLRepositoryManager(c.DatabaseDriver, opts...)
	if err := m.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("migration error: %w", err)
	}
	return db, m, nil
}

// NewApp validates c and builds every component. Configuration problems
// wrap common.ErrConfiguration.
func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	generated, err := c.EnsureSecret()
	if err != nil {
		return nil, err
	}
	if generated {
		logger.Warn(ctx, "no JWT secret configured, using a random one; sessions end on restart")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	src := keysource.FromConfig(c)
	key, err := keysource.Load(ctx, src)
	if err != nil {
		return nil, err
	}
	vault, err := cryptox.NewVault(key)
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "master key loaded", "source", src.Describe())

	issuer, err := auth.NewIssuer([]byte(c.SecretKey), c.AccessTokenValidityDuration)
	if err != nil {
		return nil, err
	}

	app := &App{config: c, logger: logger}

	var opts []repomanager.Option
	if c.RefreshStore == "redis" {
		ropts, err := redis.ParseURL(c.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		app.redis = redis.NewClient(ropts)
		if err := app.redis.Ping(ctx).Err(); err != nil {
			_ = app.redis.Close()
			return nil, fmt.Errorf("redis init error: %w", err)
		}
		opts = append(opts, repomanager.WithRefreshTokens(refreshtokens.NewRedisRepository(app.redis)))
	}

	db, m, err := OpenDatabase(ctx, c, opts...)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.db = db

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	mtr := metrics.NewMetrics(registry)

	tokens := services.NewRefreshTokenStore(db, m, vault, issuer, logger)
	roles := services.NewRoleService(db, m, c.RoleCacheTTL, mtr, logger)
	users := services.NewUserService(services.UserServiceDeps{
		DB:         db,
		Repos:      m,
		Issuer:     issuer,
		Tokens:     tokens,
		Roles:      roles,
		Hasher:     cryptox.NewPasswordHasher(cryptox.DefaultPasswordParams),
		RefreshTTL: c.RefreshTokenValidityDuration,
		Metrics:    mtr,
		Logger:     logger,
	})
	credentials := services.NewCredentialService(db, m, vault, mtr, logger)

	if err := roles.EnsureSystemRoles(ctx); err != nil {
		app.Close()
		return nil, err
	}
	if c.BootstrapUsersFile != "" {
		n, err := users.SeedFromFile(ctx, c.BootstrapUsersFile)
		if err != nil {
			app.Close()
			return nil, err
		}
		logger.Info(ctx, "bootstrap users applied", "created", n)
	}

	if c.SweepSchedule != "" {
		app.sweeper, err = services.NewTokenSweeper(tokens, c.SweepSchedule, mtr, logger)
		if err != nil {
			app.Close()
			return nil, err
		}
	}

	api := httpapi.New(httpapi.Deps{
		Users:       users,
		Roles:       roles,
		Credentials: credentials,
		Issuer:      issuer,
		Store:       db,
		Metrics:     mtr,
		Logger:      logger,
	})
	app.http = httpapi.NewHTTPServer(c.HTTPAddr, api.Router(), logger)
	app.grpc = gs.NewGRPCServer(c.GRPCAddr, logger, db, mtr)

	return app, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves until ctx is cancelled, a signal arrives or a server fails.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")
	app.initSignalHandler(cancelFunc)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return app.http.Run(ctx) })
	g.Go(func() error { return app.grpc.Run(ctx) })
	if app.sweeper != nil {
		g.Go(func() error { return app.sweeper.Run(ctx) })
	}

	err := g.Wait()
	app.logger.Info(context.Background(), "App stopped")
	return err
}

// Close releases the database and Redis connections.
func (app *App) Close() {
	if app.db != nil {
		_ = app.db.Close()
	}
	if app.redis != nil {
		_ = app.redis.Close()
	}
}
