// Package server wires the fastid components together and runs the HTTP and
// gRPC endpoints plus the expired-token sweeper until shutdown.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/fastid/fastid/internal/cryptox"
	"github.com/fastid/fastid/internal/dbx"
	"github.com/fastid/fastid/internal/logging"
	"github.com/fastid/fastid/internal/server/config"
	gs "github.com/fastid/fastid/internal/server/grpc"
	hs "github.com/fastid/fastid/internal/server/http"
	"github.com/fastid/fastid/internal/server/ratelimit"
	"github.com/fastid/fastid/internal/server/repositories/repomanager"
	"github.com/fastid/fastid/internal/server/services"
	"github.com/fastid/fastid/internal/telemetry"
)

type App struct {
	config *config.Config
	logger *logging.ZapLogger

	db          *sql.DB
	repomanager *repomanager.SQLRepositoryManager
	redis       *redis.Client
	tracing     func(context.Context) error

	tokenService *services.TokenService
	authService  *services.AuthService
	setupGuard   *services.SetupGuard
	userService  *services.UserService
	limiter      ratelimit.Limiter
}

// NewApp opens storage and builds the services. The caller must Close the app.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger, err := logging.New(c.LogEnv, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}

	app := &App{config: c, logger: logger}

	app.tracing, err = telemetry.Setup(ctx, c.OtelEndpoint, c.ServiceName, c.Environment)
	if err != nil {
		return nil, fmt.Errorf("telemetry init error: %w", err)
	}

	db, dialect, err := dbx.Open(c.DatabaseDriver, c.DatabaseDSN)
	if err != nil {
		app.Close(ctx)
		return nil, fmt.Errorf("db init error: %w", err)
	}
	app.db = db
	app.repomanager = repomanager.NewSQLRepositoryManager(dialect)

	hasher, err := cryptox.NewHasher(c.HasherProfile, c.HasherWorkers, c.HasherMemoryBudgetMB)
	if err != nil {
		app.Close(ctx)
		return nil, fmt.Errorf("hasher init error: %w", err)
	}

	app.tokenService = services.NewTokenService(db, app.repomanager, c, logger)
	app.authService = services.NewAuthService(db, app.repomanager, app.tokenService, hasher, logger)
	app.setupGuard = services.NewSetupGuard(db, app.repomanager, app.tokenService, hasher, logger)
	app.userService = services.NewUserService(db, app.repomanager, hasher, logger)

	switch {
	case c.SignInRateLimit <= 0:
		app.limiter = ratelimit.Disabled{}
	case c.RedisAddr != "":
		app.redis = redis.NewClient(&redis.Options{Addr: c.RedisAddr})
		app.limiter = ratelimit.NewRedisLimiter(app.redis, "fastid:signin:", c.SignInRateLimit, c.SignInRateWindow)
	default:
		app.limiter = ratelimit.NewMemoryLimiter(c.SignInRateLimit, c.SignInRateWindow)
	}

	logger.Info(ctx, "app initialized",
		"database_driver", c.DatabaseDriver,
		"hasher_profile", c.HasherProfile,
		"hasher_workers", hasher.Workers(),
	)

	return app, nil
}

func (app *App) Logger() logging.Logger { return app.logger }

func (app *App) Users() *services.UserService { return app.userService }

// Migrate applies pending schema migrations.
func (app *App) Migrate(ctx context.Context) error {
	if err := app.repomanager.RunMigrations(ctx, app.db); err != nil {
		return fmt.Errorf("migrations error: %w", err)
	}
	return nil
}

// Close releases storage, flushes traces and syncs the logger.
func (app *App) Close(ctx context.Context) {
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Warn(ctx, "redis close error", "error", err)
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Warn(ctx, "db close error", "error", err)
		}
	}
	if app.tracing != nil {
		if err := app.tracing(context.WithoutCancel(ctx)); err != nil {
			app.logger.Warn(ctx, "telemetry shutdown error", "error", err)
		}
	}
	_ = app.logger.Sync()
}

// Run migrates storage and serves until ctx is canceled, a termination
// signal arrives, or one of the components fails.
func (app *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	app.logger.Info(ctx, "Starting app...")

	if err := app.Migrate(ctx); err != nil {
		return err
	}

	metrics, err := hs.NewMetrics(nil)
	if err != nil {
		return fmt.Errorf("metrics init error: %w", err)
	}

	router := hs.NewRouter(hs.RouterConfig{
		Auth:           app.authService,
		Setup:          app.setupGuard,
		Limiter:        app.limiter,
		Metrics:        metrics,
		Logger:         app.logger,
		RequestTimeout: app.config.RequestTimeout,
	})
	httpServer := hs.NewHTTPServer(app.config.HTTPAddr, router, app.logger)

	grpcServer := gs.NewGRPCServer(app.config.GRPCAddr, app.logger)
	grpcServer.SetServing(true)

	sweeper := services.NewSweeper(app.tokenService, app.config.TokenSweepInterval, app.logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return httpServer.Run(ctx) })
	g.Go(func() error { return grpcServer.Run(ctx) })
	g.Go(func() error { return sweeper.Run(ctx) })

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		app.logger.Error(ctx, "app stopped with error", "error", err)
		return err
	}

	app.logger.Info(ctx, "App stopped")
	return nil
}
