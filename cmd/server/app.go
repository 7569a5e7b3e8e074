package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // postgres driver
	"github.com/redis/go-redis/v9"

	"github.com/relayq/relayq/internal/clock"
	"github.com/relayq/relayq/internal/config"
	"github.com/relayq/relayq/internal/notify"
	"github.com/relayq/relayq/internal/platform/logger"
	"github.com/relayq/relayq/internal/platform/postgres"
	"github.com/relayq/relayq/internal/queue"
	"github.com/relayq/relayq/internal/queue/memoryqueue"
	"github.com/relayq/relayq/internal/queue/redisqueue"
)

// application holds the front-door server's wired dependencies.
type application struct {
	config *config.Config
	logger *slog.Logger
	clk    clock.Clock

	queueClient queue.Client
	broker      *notify.Broker
	store       notify.Store

	db *sql.DB
}

// buildApplication loads configuration and wires every dependency
// explicitly. Nothing here is a global: clients are constructed once
// and passed down.
func buildApplication() (*application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.Setup(cfg.Server)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	appLogger.Info("Server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"queue_backend", cfg.Queue.Backend,
		"notification_store", cfg.Notification.Store)

	app := &application{
		config: cfg,
		logger: appLogger,
		clk:    clock.RealClock{},
	}

	if err := app.setupNotificationStore(); err != nil {
		return nil, err
	}
	if err := app.setupQueueClient(); err != nil {
		return nil, err
	}

	app.broker = notify.NewBroker(app.store, app.clk)
	return app, nil
}

// setupNotificationStore selects the notification store backend, runs
// migrations for the durable one, and verifies connectivity.
func (app *application) setupNotificationStore() error {
	if app.config.Notification.Store != "postgres" {
		app.store = notify.NewMemoryStore()
		return nil
	}

	db, err := sql.Open("pgx", app.config.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	if err := postgres.Migrate(db); err != nil {
		return err
	}

	app.db = db
	app.store = postgres.NewNotificationStore(db)
	app.logger.Info("Database connection established")
	return nil
}

// setupQueueClient selects the queue backend.
func (app *application) setupQueueClient() error {
	switch app.config.Queue.Backend {
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     app.config.Redis.Addr,
			Password: app.config.Redis.Password,
			DB:       app.config.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to ping redis: %w", err)
		}
		app.queueClient = redisqueue.New(rdb, app.clk, app.config.Queue.MaxDeliveryCount)
		app.logger.Info("Redis connection established", "addr", app.config.Redis.Addr)
	default:
		// The in-memory queue only works when dispatcher and server
		// share a process; it exists for development and tests.
		app.logger.Warn("using in-memory queue backend, messages do not survive restarts")
		app.queueClient = memoryqueue.New(app.clk, app.config.Queue.MaxDeliveryCount)
	}
	return nil
}

// run starts the HTTP server and the retention purge loop, then blocks
// until the context is cancelled and shutdown completes.
func (app *application) run(ctx context.Context) error {
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", app.config.Server.Port),
		Handler: app.setupRouter(),
	}

	go app.purgeLoop(ctx)

	errCh := make(chan error, 1)
	go func() {
		app.logger.Info("Starting server", "port", app.config.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		app.logger.Info("Shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	app.logger.Info("Server shutdown completed")
	return nil
}

// purgeLoop removes notification records older than the retention
// window, once an hour.
func (app *application) purgeLoop(ctx context.Context) {
	retention := time.Duration(app.config.Notification.RetentionHours) * time.Hour

	for {
		select {
		case <-ctx.Done():
			return
		case <-app.clk.After(time.Hour):
			cutoff := app.clk.Now().Add(-retention)
			removed, err := app.store.Purge(ctx, cutoff)
			if err != nil {
				app.logger.Error("notification purge failed", "error", err)
				continue
			}
			if removed > 0 {
				app.logger.Info("purged notification records",
					"removed", removed,
					"cutoff", cutoff)
			}
		}
	}
}

// cleanup releases held resources.
func (app *application) cleanup() {
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("failed to close database connection", "error", err)
		}
	}
}
