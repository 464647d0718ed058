package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/planwise/planwise-api/internal/domain"
)

// TaskStore defines the interface for task data persistence.
// All task mutation goes through domain transition methods followed by
// UpdateTask; implementations never expose direct column writes, which
// keeps the approval invariant enforced at the data-mutation boundary.
type TaskStore interface {
	// CreateTask saves a new task to the store.
	// Returns ErrInvalidEntity if the task fails validation.
	CreateTask(ctx context.Context, task *domain.Task) error

	// GetTask retrieves a task by its unique ID.
	// Returns ErrTaskNotFound if the task does not exist.
	GetTask(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// UpdateTask persists the full current state of an existing task.
	// Returns ErrTaskNotFound if the task does not exist.
	UpdateTask(ctx context.Context, task *domain.Task) error

	// ListTasksByPlan retrieves all tasks created for the given plan,
	// ordered by creation time.
	ListTasksByPlan(ctx context.Context, planID uuid.UUID) ([]*domain.Task, error)

	// WithTx returns a new TaskStore instance that uses the provided transaction.
	// This allows multiple operations to be executed within a single transaction.
	// The transaction is created and managed by the caller (typically a service).
	WithTx(tx *sql.Tx) TaskStore
}
