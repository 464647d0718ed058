package service

import (
	"context"
	"database/sql"
	"sync"

	"github.com/google/uuid"
	"github.com/planwise/planwise-api/internal/domain"
	"github.com/planwise/planwise-api/internal/store"
)

// fakeTaskRepository is an in-memory TaskRepository for unit tests.
// WithTx is a no-op: the fake has no real transaction boundary.
type fakeTaskRepository struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*domain.Task

	failOnCreate error
	failOnUpdate error
	failOnList   error
	failOnGet    error
}

func newFakeTaskRepository() *fakeTaskRepository {
	return &fakeTaskRepository{tasks: make(map[uuid.UUID]*domain.Task)}
}

func (r *fakeTaskRepository) Create(ctx context.Context, task *domain.Task) error {
	if r.failOnCreate != nil {
		return r.failOnCreate
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tasks[task.ID]; exists {
		return store.ErrDuplicate
	}
	clone := *task
	r.tasks[task.ID] = &clone
	return nil
}

func (r *fakeTaskRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	if r.failOnGet != nil {
		return nil, r.failOnGet
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	clone := *task
	return &clone, nil
}

func (r *fakeTaskRepository) Update(ctx context.Context, task *domain.Task) error {
	if r.failOnUpdate != nil {
		return r.failOnUpdate
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[task.ID]; !ok {
		return store.ErrTaskNotFound
	}
	clone := *task
	r.tasks[task.ID] = &clone
	return nil
}

func (r *fakeTaskRepository) ListByPlan(ctx context.Context, planID uuid.UUID) ([]*domain.Task, error) {
	if r.failOnList != nil {
		return nil, r.failOnList
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var tasks []*domain.Task
	for _, task := range r.tasks {
		if task.PlanID == planID {
			clone := *task
			tasks = append(tasks, &clone)
		}
	}
	return tasks, nil
}

func (r *fakeTaskRepository) WithTx(tx *sql.Tx) TaskRepository {
	return r
}

func (r *fakeTaskRepository) DB() *sql.DB {
	return nil
}
