// Package server wires configuration, storage, the account service and the
// gRPC transport into a runnable application with graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/gophaccounts/internal/logging"
	"github.com/dmitrijs2005/gophaccounts/internal/server/config"
	"github.com/dmitrijs2005/gophaccounts/internal/server/migration"
	"github.com/dmitrijs2005/gophaccounts/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophaccounts/internal/server/services"
	"github.com/redis/go-redis/v9"

	gs "github.com/dmitrijs2005/gophaccounts/internal/server/grpc"
)

// Seams for tests.
var (
	openPostgres = func(ctx context.Context, dsn, collection string) (repomanager.RepositoryManager, error) {
		return repomanager.OpenPostgres(ctx, dsn, collection)
	}
	newRedisClient = func(addr string) redis.UniversalClient {
		return redis.NewClient(&redis.Options{Addr: addr})
	}
	newS3Archive = func(ctx context.Context, cfg migration.S3Config) (migration.Archive, error) {
		return migration.NewS3Archive(ctx, cfg)
	}
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	repos   repomanager.RepositoryManager
	redis   redis.UniversalClient
	service *services.AccountService
}

// NewApp opens storage (Postgres when a DSN is set, in-memory otherwise),
// applies schema migrations and builds the account service. Log records go
// to logOut.
func NewApp(ctx context.Context, c *config.Config, logOut io.Writer) (*App, error) {
	logger := logging.NewJSONLogger(logOut, c.LogLevel)
	app := &App{config: c, logger: logger}

	if c.DatabaseDSN == "" {
		logger.Warn(ctx, "no database DSN, using in-memory stores")
		app.repos = repomanager.NewInMemoryRepositoryManager(nil)
	} else {
		rm, err := openPostgres(ctx, c.DatabaseDSN, c.LegacyCollection)
		if err != nil {
			return nil, fmt.Errorf("db init error: %w", err)
		}
		app.repos = rm
	}

	if err := app.repos.RunMigrations(ctx); err != nil {
		_ = app.Close()
		return nil, err
	}

	var engineOpts []migration.Option

	if c.RedisAddr != "" {
		app.redis = newRedisClient(c.RedisAddr)
		engineOpts = append(engineOpts, migration.WithGuard(migration.NewRedisGuard(app.redis, "", c.MigrationLockTTL)))
	}

	archive, err := app.archive(ctx)
	if err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("backup archive: %w", err)
	}
	if archive != nil {
		engineOpts = append(engineOpts, migration.WithArchive(archive))
	}

	svc, err := services.NewAccountService(app.repos, c, logger, services.WithMigrationOptions(engineOpts...))
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	app.service = svc

	return app, nil
}

// archive prefers S3 when a bucket is configured, then the local directory.
func (app *App) archive(ctx context.Context) (migration.Archive, error) {
	c := app.config
	switch {
	case c.S3Bucket != "":
		return newS3Archive(ctx, migration.S3Config{
			Region:       c.S3Region,
			AccessKey:    c.S3RootUser,
			SecretKey:    c.S3RootPassword,
			Bucket:       c.S3Bucket,
			BaseEndpoint: c.S3BaseEndpoint,
		})
	case c.BackupDir != "":
		return migration.NewDirArchive(c.BackupDir)
	default:
		return nil, nil
	}
}

func (app *App) Service() *services.AccountService { return app.service }

func (app *App) Logger() logging.Logger { return app.logger }

// Close releases the store and Redis connections.
func (app *App) Close() error {
	var errs []error
	if app.repos != nil {
		errs = append(errs, app.repos.Close())
	}
	if app.redis != nil {
		errs = append(errs, app.redis.Close())
	}
	return errors.Join(errs...)
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.service,
		gs.WithOperators(app.config.Operators...))

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves gRPC until ctx is cancelled or a termination signal arrives.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.Close(); err != nil {
		app.logger.Error(ctx, "close", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
