package service

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/planwise/planwise-api/internal/domain"
	"github.com/planwise/planwise-api/internal/store"
)

// NewTaskRepositoryAdapter creates a new adapter that allows a store.TaskStore
// to be used where a TaskRepository is expected.
func NewTaskRepositoryAdapter(taskStore store.TaskStore, db *sql.DB) TaskRepository {
	return &taskRepositoryAdapter{
		taskStore: taskStore,
		db:        db,
	}
}

// taskRepositoryAdapter adapts a store.TaskStore to the TaskRepository interface
type taskRepositoryAdapter struct {
	taskStore store.TaskStore
	db        *sql.DB
}

// Create implements TaskRepository.Create
func (a *taskRepositoryAdapter) Create(ctx context.Context, task *domain.Task) error {
	return a.taskStore.CreateTask(ctx, task)
}

// GetByID implements TaskRepository.GetByID
func (a *taskRepositoryAdapter) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	return a.taskStore.GetTask(ctx, id)
}

// Update implements TaskRepository.Update
func (a *taskRepositoryAdapter) Update(ctx context.Context, task *domain.Task) error {
	return a.taskStore.UpdateTask(ctx, task)
}

// ListByPlan implements TaskRepository.ListByPlan
func (a *taskRepositoryAdapter) ListByPlan(ctx context.Context, planID uuid.UUID) ([]*domain.Task, error) {
	return a.taskStore.ListTasksByPlan(ctx, planID)
}

// WithTx implements TaskRepository.WithTx
func (a *taskRepositoryAdapter) WithTx(tx *sql.Tx) TaskRepository {
	return &taskRepositoryAdapter{
		taskStore: a.taskStore.WithTx(tx),
		db:        a.db,
	}
}

// DB implements TaskRepository.DB
func (a *taskRepositoryAdapter) DB() *sql.DB {
	return a.db
}
