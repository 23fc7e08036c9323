// Package app initializes and orchestrates the main components of the import
// pipeline. It wires together the configuration, stores, queue, and server or
// worker depending on the process role.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/csvflow/csvflow/internal/auth"
	"github.com/csvflow/csvflow/internal/config"
	"github.com/csvflow/csvflow/internal/core"
	"github.com/csvflow/csvflow/internal/db"
	"github.com/csvflow/csvflow/internal/enrich"
	"github.com/csvflow/csvflow/internal/importsvc"
	"github.com/csvflow/csvflow/internal/queue"
	"github.com/csvflow/csvflow/internal/server"
	"github.com/csvflow/csvflow/internal/storage"
	"github.com/csvflow/csvflow/internal/webhook"
)

// App holds the intake-process components: the HTTP server plus the
// connections it publishes work through.
type App struct {
	cfg     *config.Config
	server  *server.Server
	logger  *slog.Logger
	redis   *redis.Client
	closeDB func()
}

// NewApp sets up the intake process with all its dependencies.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	logger.Info("initializing intake process",
		"server_port", cfg.Server.Port,
		"redis_addr", cfg.Redis.Addr)

	dbConn, closeDB, err := db.NewDatabase(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	redisClient, err := queue.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		closeDB()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	jobs := storage.NewJobStore(dbConn.DB)
	importers := storage.NewImporterStore(dbConn.DB)
	dispatcher := queue.NewDispatcher(redisClient, logger)
	notifier := webhook.NewNotifier(dispatcher, logger)
	svc := importsvc.NewService(jobs, importers, dispatcher, notifier, logger)

	suggester := enrich.NewLimited(enrich.Unconfigured{},
		cfg.Enrich.RequestsPerSecond, cfg.Enrich.Burst, cfg.Enrich.CacheTTL, logger)

	verifier := auth.StaticVerifier{Secret: cfg.Server.AuthToken}
	router := server.NewRouter(svc, suggester, verifier, logger)
	httpServer := server.NewServer(cfg.Server.Port, router, logger)

	logger.Info("intake process initialized")
	return &App{
		cfg:     cfg,
		server:  httpServer,
		logger:  logger,
		redis:   redisClient,
		closeDB: closeDB,
	}, nil
}

// Start runs the HTTP server and blocks until it exits.
func (a *App) Start() error {
	a.logger.Info("starting intake server", "port", a.cfg.Server.Port)
	return a.server.Start()
}

// Stop shuts the intake process down cleanly.
func (a *App) Stop() error {
	a.logger.Info("shutting down intake process")

	// Stop the HTTP server first to prevent new incoming requests.
	serverErr := a.server.Stop()
	if serverErr != nil {
		a.logger.Error("error during HTTP server shutdown", "error", serverErr)
	}

	if err := a.redis.Close(); err != nil {
		a.logger.Error("error closing redis connection", "error", err)
	}
	a.closeDB()

	if serverErr != nil {
		return serverErr
	}
	a.logger.Info("intake process stopped")
	return nil
}

// Worker holds the consumer-process components: the queue consumer plus the
// handlers it drives.
type Worker struct {
	cfg      *config.Config
	consumer *queue.Consumer
	logger   *slog.Logger
	redis    *redis.Client
	closeDB  func()
}

// NewWorker sets up the consumer process. It registers the processing and
// webhook-delivery handlers and leaves consumption to Start.
func NewWorker(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Worker, error) {
	logger.Info("initializing worker process",
		"workers", cfg.Worker.Count,
		"redis_addr", cfg.Redis.Addr)

	dbConn, closeDB, err := db.NewDatabase(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	redisClient, err := queue.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		closeDB()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	jobs := storage.NewJobStore(dbConn.DB)
	importers := storage.NewImporterStore(dbConn.DB)
	dispatcher := queue.NewDispatcher(redisClient, logger)
	notifier := webhook.NewNotifier(dispatcher, logger)

	processor := importsvc.NewProcessor(jobs, importers, notifier, logger)
	sender := webhook.NewSender(jobs, importers, cfg.Webhook.Secret, cfg.Webhook.Timeout, logger)

	registry := queue.NewRegistry()
	registry.Register(core.WorkImportProcess, processor.Run)
	registry.Register(core.WorkWebhookSend, sender.Run)

	consumer := queue.NewConsumer(redisClient, registry, cfg.Worker.Count, cfg.Worker.PollTimeout, logger)

	logger.Info("worker process initialized")
	return &Worker{
		cfg:      cfg,
		consumer: consumer,
		logger:   logger,
		redis:    redisClient,
		closeDB:  closeDB,
	}, nil
}

// Start launches the consumer workers. It returns immediately; cancel the
// context and call Stop to drain.
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("starting worker consumers", "count", w.cfg.Worker.Count)
	w.consumer.Start(ctx)
}

// Stop waits for in-flight work to finish, then releases connections.
func (w *Worker) Stop() {
	w.logger.Info("shutting down worker process")
	w.consumer.Wait()

	if err := w.redis.Close(); err != nil {
		w.logger.Error("error closing redis connection", "error", err)
	}
	w.closeDB()
	w.logger.Info("worker process stopped")
}

// Migrate applies pending schema migrations and exits. NewDatabase migrates
// on connect, so this is a bare connect-and-close round trip kept as an
// explicit deploy step.
func Migrate(cfg *config.Config, logger *slog.Logger) error {
	logger.Info("applying database migrations",
		"host", cfg.Database.Host, "database", cfg.Database.Database)

	_, closeDB, err := db.NewDatabase(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	closeDB()

	logger.Info("database schema up to date")
	return nil
}
