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

// jobColumns is the column list shared by every job query.
const jobColumns = `id, payload, state, attempts_made, max_attempts, progress,
	result, failure_reason, enqueued_at, updated_at, next_run_at, locked_until`

// PostgresJobStore implements the queue.JobStore interface
// using a PostgreSQL database as the storage backend.
type PostgresJobStore struct {
	db store.DBTX
}

// NewPostgresJobStore creates a new PostgreSQL implementation of the
// queue.JobStore interface. It accepts a database connection that should
// be initialized and managed by the caller.
func NewPostgresJobStore(db store.DBTX) *PostgresJobStore {
	return &PostgresJobStore{
		db: db,
	}
}

// Ensure PostgresJobStore implements queue.JobStore interface
var _ queue.JobStore = (*PostgresJobStore)(nil)

// CreateJob implements queue.JobStore.CreateJob
func (s *PostgresJobStore) CreateJob(ctx context.Context, job *queue.Job) error {
	log := logger.FromContext(ctx)

	payload, err := json.Marshal(job.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal job payload: %w", err)
	}

	query := `
		INSERT INTO jobs (id, payload, state, attempts_made, max_attempts, progress,
			failure_reason, enqueued_at, updated_at, next_run_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err = s.db.ExecContext(ctx, query,
		job.ID,
		payload,
		job.State,
		job.AttemptsMade,
		job.MaxAttempts,
		job.Progress,
		job.FailureReason,
		job.EnqueuedAt,
		job.UpdatedAt,
		job.NextRunAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("%w: %s", store.ErrJobExists, job.ID)
		}
		log.Error("failed to insert job",
			"job_id", job.ID,
			"error", err)
		return MapError(err)
	}

	return nil
}

// GetJob implements queue.JobStore.GetJob
func (s *PostgresJobStore) GetJob(ctx context.Context, id string) (*queue.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`

	job, err := scanJob(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", store.ErrJobNotFound, id)
		}
		return nil, MapError(err)
	}

	return job, nil
}

// LeaseNextJob implements queue.JobStore.LeaseNextJob.
// The inner SELECT uses FOR UPDATE SKIP LOCKED so concurrent workers
// never block on or double-claim the same row.
func (s *PostgresJobStore) LeaseNextJob(
	ctx context.Context,
	now, leaseUntil time.Time,
) (*queue.Job, error) {
	query := `
		UPDATE jobs
		SET state = $1,
			attempts_made = attempts_made + 1,
			progress = 0,
			locked_until = $2,
			updated_at = $3
		WHERE id = (
			SELECT id FROM jobs
			WHERE state IN ($4, $5) AND next_run_at <= $3
			ORDER BY enqueued_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + jobColumns

	job, err := scanJob(s.db.QueryRowContext(ctx, query,
		queue.StateActive,
		leaseUntil,
		now,
		queue.StateWaiting,
		queue.StateDelayed,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, queue.ErrNoJobAvailable
		}
		return nil, MapError(err)
	}

	return job, nil
}

// RenewLease implements queue.JobStore.RenewLease
func (s *PostgresJobStore) RenewLease(ctx context.Context, id string, leaseUntil time.Time) error {
	query := `
		UPDATE jobs
		SET locked_until = $2, updated_at = $3
		WHERE id = $1 AND state = $4
	`

	result, err := s.db.ExecContext(ctx, query, id, leaseUntil, time.Now().UTC(), queue.StateActive)
	if err != nil {
		return MapError(err)
	}

	return CheckRowsAffected(result, fmt.Errorf("%w: %s", store.ErrJobNotFound, id))
}

// UpdateProgress implements queue.JobStore.UpdateProgress
func (s *PostgresJobStore) UpdateProgress(ctx context.Context, id string, progress int) error {
	query := `
		UPDATE jobs
		SET progress = $2, updated_at = $3
		WHERE id = $1 AND state = $4
	`

	result, err := s.db.ExecContext(ctx, query, id, progress, time.Now().UTC(), queue.StateActive)
	if err != nil {
		return MapError(err)
	}

	return CheckRowsAffected(result, fmt.Errorf("%w: %s", store.ErrJobNotFound, id))
}

// MarkCompleted implements queue.JobStore.MarkCompleted
func (s *PostgresJobStore) MarkCompleted(ctx context.Context, id string, result *queue.Result) error {
	encoded, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal job result: %w", err)
	}

	query := `
		UPDATE jobs
		SET state = $2, progress = 100, result = $3, locked_until = NULL, updated_at = $4
		WHERE id = $1
	`

	res, err := s.db.ExecContext(ctx, query, id, queue.StateCompleted, encoded, time.Now().UTC())
	if err != nil {
		return MapError(err)
	}

	return CheckRowsAffected(res, fmt.Errorf("%w: %s", store.ErrJobNotFound, id))
}

// MarkFailed implements queue.JobStore.MarkFailed
func (s *PostgresJobStore) MarkFailed(ctx context.Context, id string, reason string) error {
	query := `
		UPDATE jobs
		SET state = $2, failure_reason = $3, locked_until = NULL, updated_at = $4
		WHERE id = $1
	`

	res, err := s.db.ExecContext(ctx, query, id, queue.StateFailed, reason, time.Now().UTC())
	if err != nil {
		return MapError(err)
	}

	return CheckRowsAffected(res, fmt.Errorf("%w: %s", store.ErrJobNotFound, id))
}

// MarkDelayed implements queue.JobStore.MarkDelayed
func (s *PostgresJobStore) MarkDelayed(
	ctx context.Context,
	id string,
	nextRunAt time.Time,
	reason string,
) error {
	query := `
		UPDATE jobs
		SET state = $2, next_run_at = $3, failure_reason = $4, locked_until = NULL, updated_at = $5
		WHERE id = $1
	`

	res, err := s.db.ExecContext(
		ctx, query, id, queue.StateDelayed, nextRunAt, reason, time.Now().UTC())
	if err != nil {
		return MapError(err)
	}

	return CheckRowsAffected(res, fmt.Errorf("%w: %s", store.ErrJobNotFound, id))
}

// ListExpiredLeases implements queue.JobStore.ListExpiredLeases
func (s *PostgresJobStore) ListExpiredLeases(ctx context.Context, now time.Time) ([]*queue.Job, error) {
	log := logger.FromContext(ctx)

	query := `
		SELECT ` + jobColumns + `
		FROM jobs
		WHERE state = $1 AND locked_until < $2
		ORDER BY enqueued_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, queue.StateActive, now)
	if err != nil {
		log.Error("failed to query expired leases", "error", err)
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var jobs []*queue.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job row: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating job rows: %w", err)
	}

	return jobs, nil
}

// PurgeCompletedBefore implements queue.JobStore.PurgeCompletedBefore
func (s *PostgresJobStore) PurgeCompletedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM jobs WHERE state = $1 AND updated_at < $2`

	result, err := s.db.ExecContext(ctx, query, queue.StateCompleted, cutoff)
	if err != nil {
		return 0, MapError(err)
	}

	purged, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return purged, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scanning.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanJob reads one job row in jobColumns order.
func scanJob(row rowScanner) (*queue.Job, error) {
	var (
		job           queue.Job
		payload       []byte
		result        []byte
		failureReason sql.NullString
		lockedUntil   sql.NullTime
	)

	err := row.Scan(
		&job.ID,
		&payload,
		&job.State,
		&job.AttemptsMade,
		&job.MaxAttempts,
		&job.Progress,
		&result,
		&failureReason,
		&job.EnqueuedAt,
		&job.UpdatedAt,
		&job.NextRunAt,
		&lockedUntil,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(payload, &job.Payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job payload: %w", err)
	}
	if len(result) > 0 {
		job.Result = &queue.Result{}
		if err := json.Unmarshal(result, job.Result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal job result: %w", err)
		}
	}
	job.FailureReason = failureReason.String
	if lockedUntil.Valid {
		t := lockedUntil.Time
		job.LockedUntil = &t
	}

	return &job, nil
}
