package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/planwise/planwise-api/internal/config"
	"github.com/planwise/planwise-api/internal/events"
	"github.com/planwise/planwise-api/internal/platform/postgres"
	"github.com/planwise/planwise-api/internal/queue"
	"github.com/planwise/planwise-api/internal/service"
	"github.com/planwise/planwise-api/internal/service/auth"
	"github.com/planwise/planwise-api/internal/store"
	"github.com/planwise/planwise-api/internal/worker"
)

// application holds all the shared application dependencies to simplify
// management and ensure proper cleanup on shutdown.
type application struct {
	// Configuration
	config *config.Config

	// Core services
	logger *slog.Logger
	db     *sql.DB

	// Stores (using interfaces for proper abstraction)
	jobStore        queue.JobStore
	deadLetterStore queue.DeadLetterStore
	taskStore       store.TaskStore

	// Service interfaces
	jwtService      auth.JWTService
	pipelineService service.PipelineService
	taskService     service.TaskService

	// Pipeline plumbing
	bridge *events.Bridge
	queue  *queue.Queue
	worker *worker.Worker
}

// newApplication creates a new application instance with all dependencies
// initialized. It accepts core dependencies like configuration, logger, and
// database connection that must be established before application
// initialization.
func newApplication(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	db *sql.DB,
) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	// Initialize JWT service
	var err error
	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}
	logger.Info("JWT authentication service initialized")

	// Initialize stores
	app.jobStore = postgres.NewPostgresJobStore(db)
	app.deadLetterStore = postgres.NewPostgresDeadLetterStore(db)
	app.taskStore = postgres.NewPostgresTaskStore(db)

	// Initialize event bridge; webhook delivery is disabled when no URL is
	// configured.
	var notifier events.Notifier = events.NoopNotifier{}
	if cfg.Webhook.URL != "" {
		notifier = events.NewWebhookNotifier(cfg.Webhook.URL, cfg.Webhook.Timeout(), logger)
		logger.Info("Webhook notifier initialized", "url", cfg.Webhook.URL)
	}
	app.bridge = events.NewBridge(notifier, events.DefaultMaxSubscribers, logger)

	// Initialize the work queue
	app.queue, err = queue.New(ctx, app.jobStore, app.deadLetterStore, app.bridge, queue.Config{
		MaxAttempts:        cfg.Queue.MaxAttempts,
		BackoffBase:        cfg.Queue.BackoffBase(),
		AttemptTimeout:     cfg.Queue.AttemptTimeout(),
		CompletedRetention: cfg.Queue.CompletedRetention(),
		JanitorInterval:    cfg.Queue.JanitorInterval(),
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create work queue: %w", err)
	}
	app.queue.StartJanitor()

	// Create required adapters
	taskRepoAdapter := service.NewTaskRepositoryAdapter(app.taskStore, app.db)

	// Initialize task service
	app.taskService, err = service.NewTaskService(taskRepoAdapter, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create task service: %w", err)
	}

	// Initialize pipeline service
	app.pipelineService, err = service.NewPipelineService(app.queue, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline service: %w", err)
	}

	// Initialize task creator and worker
	taskCreator, err := service.NewTaskCreatorService(taskRepoAdapter, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create task creator: %w", err)
	}

	app.worker = worker.New(app.queue, taskCreator, worker.Config{
		Concurrency:  cfg.Worker.Concurrency,
		PollInterval: cfg.Worker.PollInterval(),
		DrainTimeout: cfg.Worker.DrainTimeout(),
	}, logger)
	app.worker.Start()

	logger.Info("Application initialized successfully")
	return app, nil
}

// Run starts the application server, handling lifecycle and cleanup.
// It returns an error if the server fails to start or encounters problems.
func (app *application) Run(ctx context.Context) error {
	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// cleanup handles graceful shutdown of application resources. Order
// matters: the worker drains before the queue closes, and the database
// connection outlives both so in-flight resolutions can persist.
func (app *application) cleanup() {
	if app.worker != nil {
		app.worker.Stop()
	}

	if app.queue != nil {
		app.queue.Close()
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Error closing database connection", "error", err)
		}
	}

	app.logger.Info("Application shutdown completed")
}
