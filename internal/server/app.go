// Package server initializes and runs the auth server: it opens the
// database pool, applies migrations, starts the HTTP and gRPC transports and
// the expired-session sweeper, and shuts everything down on SIGINT/SIGTERM.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	gs "github.com/dmitrijs2005/gophauth/internal/server/grpc"
	hs "github.com/dmitrijs2005/gophauth/internal/server/http"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"github.com/dmitrijs2005/gophauth/internal/server/sessions"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	repos  repomanager.RepositoryManager
	auth   *services.AuthService
	redis  *redis.Client
}

func NewApp(c *config.Config) (*App, error) {
	logger, err := logging.New(c.LogBackend, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}

	db, err := dbx.Open(repomanager.DriverName, c.DatabaseDSN, c.Pool())
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	repos := repomanager.NewPostgresRepositoryManager()
	auth, err := services.NewAuthServiceFromConfig(db, repos, c, logger)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("auth service init error: %w", err)
	}

	return &App{
		config: c,
		logger: logger,
		db:     db,
		repos:  repos,
		auth:   auth,
		redis:  newRedisClient(c),
	}, nil
}

// newRedisClient returns nil when no Redis address is configured.
func newRedisClient(c *config.Config) *redis.Client {
	if c.RedisAddr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     c.RedisAddr,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	})
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) newSweeper() *sessions.Sweeper {
	var locker sessions.Locker
	if app.redis != nil {
		locker = sessions.NewRedisLocker(app.redis)
	}
	store := sessions.NewStore(app.repos.RefreshTokens(app.db), nil)
	return sessions.NewSweeper(store, locker, app.config.SweepInterval, app.config.StoreTimeout, app.logger.With("module", "sweeper"))
}

// Run migrates the schema and serves until ctx is cancelled or a signal
// arrives. The first transport error stops the others.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.initSignalHandler(cancelFunc)
	defer app.close(ctx)

	app.logger.Info(ctx, "Starting app...")

	if err := app.repos.RunMigrations(ctx, app.db); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	router := hs.NewRouter(hs.NewHandler(app.auth, app.db), app.logger.With("module", "http_server"))
	httpServer := hs.NewServer(router)
	grpcServer := gs.NewGRPCServer(app.config.GRPCAddr, app.logger, app.auth)
	sweeper := app.newSweeper()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		app.logger.Info(ctx, "Starting HTTP server", "address", app.config.HTTPAddr)
		return httpServer.Run(ctx, app.config.HTTPAddr)
	})
	g.Go(func() error {
		return grpcServer.Run(ctx)
	})
	g.Go(func() error {
		sweeper.Run(ctx)
		return nil
	})

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		app.logger.Error(ctx, "server stopped with error", "error", err)
		return err
	}
	app.logger.Info(ctx, "Server stopped")
	return nil
}

func (app *App) close(ctx context.Context) {
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Warn(ctx, "redis close error", "error", err)
		}
	}
	if err := app.db.Close(); err != nil {
		app.logger.Warn(ctx, "db close error", "error", err)
	}
	// Sync on a stdout terminal fails with EINVAL after entries are written.
	_ = logging.Sync(app.logger)
}
