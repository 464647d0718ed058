package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/planwise/planwise-api/internal/domain"
	"github.com/planwise/planwise-api/internal/platform/logger"
	"github.com/planwise/planwise-api/internal/store"
)

// taskColumns is the column list shared by every task query.
const taskColumns = `id, plan_id, opportunity_id, title, description, channel,
	priority, status, admin_approved, approved_by, approved_at, rejected_by,
	rejected_at, rejection_reason, assigned_to, started_at, completed_at,
	actual_hours, completion_notes, created_at, updated_at`

// PostgresTaskStore implements the store.TaskStore interface
// using a PostgreSQL database as the storage backend.
type PostgresTaskStore struct {
	db store.DBTX
}

// NewPostgresTaskStore creates a new PostgreSQL implementation of the
// store.TaskStore interface. It accepts a database connection or
// transaction that should be initialized and managed by the caller.
func NewPostgresTaskStore(db store.DBTX) *PostgresTaskStore {
	return &PostgresTaskStore{
		db: db,
	}
}

// Ensure PostgresTaskStore implements store.TaskStore interface
var _ store.TaskStore = (*PostgresTaskStore)(nil)

// WithTx implements store.TaskStore.WithTx
func (s *PostgresTaskStore) WithTx(tx *sql.Tx) store.TaskStore {
	return NewPostgresTaskStore(tx)
}

// CreateTask implements store.TaskStore.CreateTask
func (s *PostgresTaskStore) CreateTask(ctx context.Context, task *domain.Task) error {
	log := logger.FromContext(ctx)

	if err := task.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO tasks (id, plan_id, opportunity_id, title, description, channel,
			priority, status, admin_approved, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := s.db.ExecContext(ctx, query,
		task.ID,
		task.PlanID,
		task.OpportunityID,
		task.Title,
		task.Description,
		task.Channel,
		task.Priority,
		task.Status,
		task.AdminApproved,
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to insert task",
			"task_id", task.ID,
			"plan_id", task.PlanID,
			"error", err)
		return MapError(err)
	}

	return nil
}

// GetTask implements store.TaskStore.GetTask
func (s *PostgresTaskStore) GetTask(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`

	task, err := scanTask(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", store.ErrTaskNotFound, id)
		}
		return nil, MapError(err)
	}

	return task, nil
}

// UpdateTask implements store.TaskStore.UpdateTask
func (s *PostgresTaskStore) UpdateTask(ctx context.Context, task *domain.Task) error {
	log := logger.FromContext(ctx)

	if err := task.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		UPDATE tasks
		SET status = $2,
			admin_approved = $3,
			approved_by = $4,
			approved_at = $5,
			rejected_by = $6,
			rejected_at = $7,
			rejection_reason = $8,
			assigned_to = $9,
			started_at = $10,
			completed_at = $11,
			actual_hours = $12,
			completion_notes = $13,
			updated_at = $14
		WHERE id = $1
	`

	result, err := s.db.ExecContext(ctx, query,
		task.ID,
		task.Status,
		task.AdminApproved,
		nullString(task.ApprovedBy),
		task.ApprovedAt,
		nullString(task.RejectedBy),
		task.RejectedAt,
		nullString(task.RejectionReason),
		nullString(task.AssignedTo),
		task.StartedAt,
		task.CompletedAt,
		task.ActualHours,
		nullString(task.CompletionNotes),
		time.Now().UTC(),
	)
	if err != nil {
		log.Error("failed to update task",
			"task_id", task.ID,
			"error", err)
		return MapError(err)
	}

	return CheckRowsAffected(result, fmt.Errorf("%w: %s", store.ErrTaskNotFound, task.ID))
}

// ListTasksByPlan implements store.TaskStore.ListTasksByPlan
func (s *PostgresTaskStore) ListTasksByPlan(ctx context.Context, planID uuid.UUID) ([]*domain.Task, error) {
	log := logger.FromContext(ctx)

	query := `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE plan_id = $1
		ORDER BY created_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, planID)
	if err != nil {
		log.Error("failed to query tasks by plan",
			"plan_id", planID,
			"error", err)
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var tasks []*domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task row: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating task rows: %w", err)
	}

	return tasks, nil
}

// scanTask reads one task row in taskColumns order.
func scanTask(row rowScanner) (*domain.Task, error) {
	var (
		task            domain.Task
		approvedBy      sql.NullString
		approvedAt      sql.NullTime
		rejectedBy      sql.NullString
		rejectedAt      sql.NullTime
		rejectionReason sql.NullString
		assignedTo      sql.NullString
		startedAt       sql.NullTime
		completedAt     sql.NullTime
		actualHours     sql.NullFloat64
		completionNotes sql.NullString
	)

	err := row.Scan(
		&task.ID,
		&task.PlanID,
		&task.OpportunityID,
		&task.Title,
		&task.Description,
		&task.Channel,
		&task.Priority,
		&task.Status,
		&task.AdminApproved,
		&approvedBy,
		&approvedAt,
		&rejectedBy,
		&rejectedAt,
		&rejectionReason,
		&assignedTo,
		&startedAt,
		&completedAt,
		&actualHours,
		&completionNotes,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	task.ApprovedBy = approvedBy.String
	task.RejectedBy = rejectedBy.String
	task.RejectionReason = rejectionReason.String
	task.AssignedTo = assignedTo.String
	task.ActualHours = actualHours.Float64
	task.CompletionNotes = completionNotes.String
	if approvedAt.Valid {
		t := approvedAt.Time
		task.ApprovedAt = &t
	}
	if rejectedAt.Valid {
		t := rejectedAt.Time
		task.RejectedAt = &t
	}
	if startedAt.Valid {
		t := startedAt.Time
		task.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		task.CompletedAt = &t
	}

	return &task, nil
}

// nullString converts an empty string to a SQL NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
