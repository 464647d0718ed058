// Package main implements qadmin, the operational CLI for the task
// pipeline's dead-letter queue.
package main

import (
	"context"
	"database/sql"
	"io"
	"log"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // Register pgx driver for database/sql
	"github.com/planwise/planwise-api/internal/config"
	"github.com/planwise/planwise-api/internal/events"
	"github.com/planwise/planwise-api/internal/platform/postgres"
	"github.com/planwise/planwise-api/internal/queue"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config: ", err)
	}

	db, err := sql.Open("pgx", cfg.Database.URL)
	if err != nil {
		log.Fatal("Failed to open database connection: ", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Print("Failed to close database connection: ", err)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		log.Fatal("Failed to ping database: ", err)
	}

	// CLI output goes to stdout; keep the queue's own logging quiet.
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	bridge := events.NewBridge(events.NoopNotifier{}, events.DefaultMaxSubscribers, quiet)

	q, err := queue.New(
		context.Background(),
		postgres.NewPostgresJobStore(db),
		postgres.NewPostgresDeadLetterStore(db),
		bridge,
		queue.Config{
			MaxAttempts:        cfg.Queue.MaxAttempts,
			BackoffBase:        cfg.Queue.BackoffBase(),
			AttemptTimeout:     cfg.Queue.AttemptTimeout(),
			CompletedRetention: cfg.Queue.CompletedRetention(),
			JanitorInterval:    cfg.Queue.JanitorInterval(),
		},
		quiet,
	)
	if err != nil {
		log.Fatal("Failed to open work queue: ", err)
	}

	Execute(q)
}
