package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/planwise/planwise-api/internal/platform/logger"
	"github.com/planwise/planwise-api/internal/queue"
	"github.com/planwise/planwise-api/internal/store"
)

// PostgresDeadLetterStore implements the queue.DeadLetterStore interface
// using a PostgreSQL database as the storage backend.
type PostgresDeadLetterStore struct {
	db store.DBTX
}

// NewPostgresDeadLetterStore creates a new PostgreSQL implementation of
// the queue.DeadLetterStore interface.
func NewPostgresDeadLetterStore(db store.DBTX) *PostgresDeadLetterStore {
	return &PostgresDeadLetterStore{
		db: db,
	}
}

// Ensure PostgresDeadLetterStore implements queue.DeadLetterStore interface
var _ queue.DeadLetterStore = (*PostgresDeadLetterStore)(nil)

// Add implements queue.DeadLetterStore.Add
func (s *PostgresDeadLetterStore) Add(ctx context.Context, job *queue.Job, reason string) error {
	log := logger.FromContext(ctx)

	payload, err := json.Marshal(job.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal dead letter payload: %w", err)
	}

	query := `
		INSERT INTO dead_letters (job_id, payload, failure_reason, attempts_made, dead_lettered_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err = s.db.ExecContext(ctx, query,
		job.ID,
		payload,
		reason,
		job.AttemptsMade,
		time.Now().UTC(),
	)
	if err != nil {
		log.Error("failed to insert dead letter",
			"job_id", job.ID,
			"error", err)
		return MapError(err)
	}

	return nil
}

// Get implements queue.DeadLetterStore.Get
func (s *PostgresDeadLetterStore) Get(ctx context.Context, jobID string) (*queue.DeadLetter, error) {
	query := `
		SELECT job_id, payload, failure_reason, attempts_made, dead_lettered_at, replayed_at
		FROM dead_letters
		WHERE job_id = $1
	`

	dl, err := scanDeadLetter(s.db.QueryRowContext(ctx, query, jobID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", store.ErrDeadLetterNotFound, jobID)
		}
		return nil, MapError(err)
	}

	return dl, nil
}

// List implements queue.DeadLetterStore.List
func (s *PostgresDeadLetterStore) List(ctx context.Context, limit, offset int) ([]*queue.DeadLetter, error) {
	log := logger.FromContext(ctx)

	query := `
		SELECT job_id, payload, failure_reason, attempts_made, dead_lettered_at, replayed_at
		FROM dead_letters
		ORDER BY dead_lettered_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		log.Error("failed to query dead letters", "error", err)
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var letters []*queue.DeadLetter
	for rows.Next() {
		dl, err := scanDeadLetter(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan dead letter row: %w", err)
		}
		letters = append(letters, dl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating dead letter rows: %w", err)
	}

	return letters, nil
}

// MarkReplayed implements queue.DeadLetterStore.MarkReplayed
func (s *PostgresDeadLetterStore) MarkReplayed(ctx context.Context, jobID string, at time.Time) error {
	query := `UPDATE dead_letters SET replayed_at = $2 WHERE job_id = $1`

	result, err := s.db.ExecContext(ctx, query, jobID, at)
	if err != nil {
		return MapError(err)
	}

	return CheckRowsAffected(result, fmt.Errorf("%w: %s", store.ErrDeadLetterNotFound, jobID))
}

// scanDeadLetter reads one dead letter row.
func scanDeadLetter(row rowScanner) (*queue.DeadLetter, error) {
	var (
		dl         queue.DeadLetter
		payload    []byte
		replayedAt sql.NullTime
	)

	err := row.Scan(
		&dl.JobID,
		&payload,
		&dl.FailureReason,
		&dl.AttemptsMade,
		&dl.DeadLetteredAt,
		&replayedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(payload, &dl.Payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal dead letter payload: %w", err)
	}
	if replayedAt.Valid {
		t := replayedAt.Time
		dl.ReplayedAt = &t
	}

	return &dl, nil
}
