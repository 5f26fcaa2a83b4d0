// Package server wires configuration, storage backends, collaborators and
// services together and runs the gRPC endpoint until a termination signal
// arrives.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/hpcdrive/internal/logging"
	"github.com/dmitrijs2005/hpcdrive/internal/server/auth"
	"github.com/dmitrijs2005/hpcdrive/internal/server/blobstore"
	"github.com/dmitrijs2005/hpcdrive/internal/server/config"
	"github.com/dmitrijs2005/hpcdrive/internal/server/directory"
	"github.com/dmitrijs2005/hpcdrive/internal/server/policy"
	"github.com/dmitrijs2005/hpcdrive/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/hpcdrive/internal/server/services"
	"github.com/redis/go-redis/v9"

	gs "github.com/dmitrijs2005/hpcdrive/internal/server/grpc"
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	redis    *redis.Client
	services gs.Services
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	logger, err := logging.New(c.LogBackend, c.LogFormat, os.Stdout)
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}

	db, err := repomanager.OpenDB(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	blobs, err := blobstore.New(ctx, c)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("blob store init error: %w", err)
	}

	app := &App{config: c, logger: logger, db: db}

	httpClient := &http.Client{}
	dir := directory.NewClient(c.DirectoryURL, c.DirectoryTimeout, httpClient)
	pol := policy.New(dir)

	app.services = gs.Services{
		Identity: services.NewIdentityService(db, rm, app.identityProvider(httpClient), logger),
		Drive:    services.NewDriveService(db, rm, blobs, pol, logger),
		Sharing:  services.NewSharingService(db, rm, logger),
		Storage:  services.NewStorageService(db, rm, blobs, pol, dir, c.SemesterCount, logger),
		Signing:  services.NewSigningService(db, rm, dir, logger),
		Admin:    services.NewAdminService(db, rm, blobs, logger),
	}

	return app, nil
}

// identityProvider builds the token validator for the configured mode and
// fronts it with the Redis cache when one is configured.
func (app *App) identityProvider(client *http.Client) auth.IdentityProvider {
	var p auth.IdentityProvider
	switch app.config.IdentityMode {
	case config.IdentityModeJWT:
		p = auth.NewJWTProvider(app.config.IdentitySecret)
	default:
		p = auth.NewRemoteProvider(app.config.IdentityURL, app.config.IdentityTimeout, client)
	}

	if app.config.RedisAddr == "" || app.config.IdentityCacheTTL <= 0 {
		return p
	}
	app.redis = redis.NewClient(&redis.Options{
		Addr:     app.config.RedisAddr,
		Password: app.config.RedisPassword,
		DB:       app.config.RedisDB,
	})
	return auth.NewCachedProvider(p, app.redis, app.config.IdentityCacheTTL, app.logger)
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

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.services)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) close(ctx context.Context) {
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Warn(ctx, "redis close failed", "error", err)
		}
	}
	if err := app.db.Close(); err != nil {
		app.logger.Warn(ctx, "db close failed", "error", err)
	}
}

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

	app.close(context.WithoutCancel(ctx))
	app.logger.Info(ctx, "App stopped")
}
