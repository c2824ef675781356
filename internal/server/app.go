// Package server initializes and runs the Memory Vault server: it loads
// configuration, waits for backing services, applies schema migrations, and
// wires the archival services together for an embedding transport layer.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/openheritage/memoryvault/internal/logging"
	"github.com/openheritage/memoryvault/internal/netx"
	"github.com/openheritage/memoryvault/internal/server/config"
	"github.com/openheritage/memoryvault/internal/server/contentstore"
	"github.com/openheritage/memoryvault/internal/server/identity"
	"github.com/openheritage/memoryvault/internal/server/repositories/repomanager"
	"github.com/openheritage/memoryvault/internal/server/services"
)

// App owns the wired-up services. Transports embed it and call into the
// exported services; the app itself opens no listening sockets.
type App struct {
	config *config.Config
	logger logging.Logger

	db *sql.DB

	Resolver         *identity.Resolver
	MemoryService    *services.MemoryService
	UserService      *services.UserService
	CommunityService *services.CommunityService
}

func NewApp(cfg *config.Config) *App {
	l := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	return &App{
		config: cfg,
		logger: logging.NewSlogLogger(l),
	}
}

// init waits for the database and the object store to accept connections,
// opens the database, runs migrations, and builds the services.
func (app *App) init(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, app.config.StartupWaitTimeout)
	defer cancel()

	for _, endpoint := range []string{app.config.DatabaseDSN, app.config.S3BaseEndpoint} {
		addr, err := netx.HostPortFromURL(endpoint)
		if err != nil {
			return err
		}
		app.logger.Info(ctx, "waiting for backing service", "addr", addr)
		if err := netx.WaitForTCP(waitCtx, addr, 0); err != nil {
			return err
		}
	}

	db, err := sql.Open("pgx", app.config.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("db init error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("db ping error: %w", err)
	}
	app.db = db

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("migrations error: %w", err)
	}

	store, err := contentstore.NewS3Store(ctx, contentstore.Options{
		Region:          app.config.S3Region,
		AccessKey:       app.config.S3AccessKey,
		SecretKey:       app.config.S3SecretKey,
		Bucket:          app.config.S3Bucket,
		BaseEndpoint:    app.config.S3BaseEndpoint,
		LocatorValidity: app.config.LocatorValidityDuration,
	})
	if err != nil {
		return fmt.Errorf("content store init error: %w", err)
	}

	app.Resolver = identity.NewResolver([]byte(app.config.SecretKey), rm.Communities(db))
	app.MemoryService = services.NewMemoryService(db, rm, store, app.logger, app.config)
	app.UserService = services.NewUserService(db, rm)
	app.CommunityService = services.NewCommunityService(db, rm)

	return nil
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

// Run initializes the app and blocks until the context is cancelled or a
// termination signal arrives.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	if err := app.init(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		return err
	}

	app.logger.Info(ctx, "App ready")

	<-ctx.Done()

	app.logger.Info(ctx, "Shutting down...")
	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, err.Error())
	}
	return nil
}
