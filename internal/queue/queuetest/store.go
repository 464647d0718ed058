// Package queuetest provides in-memory implementations of the queue store
// interfaces for tests.
package queuetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/planwise/planwise-api/internal/queue"
	"github.com/planwise/planwise-api/internal/store"
)

// JobStore is an in-memory queue.JobStore safe for concurrent use.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*queue.Job

	// FailWith, when set, makes every operation return this error.
	// Used to simulate an unreachable backing store.
	FailWith error
}

// NewJobStore creates an empty in-memory job store.
func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]*queue.Job)}
}

func (s *JobStore) CreateJob(ctx context.Context, job *queue.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return s.FailWith
	}

	if _, ok := s.jobs[job.ID]; ok {
		return store.ErrJobExists
	}
	s.jobs[job.ID] = cloneJob(job)
	return nil
}

func (s *JobStore) GetJob(ctx context.Context, id string) (*queue.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return nil, s.FailWith
	}

	job, ok := s.jobs[id]
	if !ok {
		return nil, store.ErrJobNotFound
	}
	return cloneJob(job), nil
}

func (s *JobStore) LeaseNextJob(ctx context.Context, now, leaseUntil time.Time) (*queue.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return nil, s.FailWith
	}

	var due []*queue.Job
	for _, job := range s.jobs {
		if job.State == queue.StateWaiting ||
			(job.State == queue.StateDelayed && !job.NextRunAt.After(now)) {
			due = append(due, job)
		}
	}
	if len(due) == 0 {
		return nil, queue.ErrNoJobAvailable
	}

	sort.Slice(due, func(i, j int) bool {
		return due[i].EnqueuedAt.Before(due[j].EnqueuedAt)
	})

	job := due[0]
	job.State = queue.StateActive
	job.AttemptsMade++
	job.Progress = 0
	until := leaseUntil
	job.LockedUntil = &until
	job.UpdatedAt = now
	return cloneJob(job), nil
}

func (s *JobStore) RenewLease(ctx context.Context, id string, leaseUntil time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return s.FailWith
	}

	job, ok := s.jobs[id]
	if !ok || job.State != queue.StateActive {
		return store.ErrJobNotFound
	}
	until := leaseUntil
	job.LockedUntil = &until
	return nil
}

func (s *JobStore) UpdateProgress(ctx context.Context, id string, progress int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return s.FailWith
	}

	job, ok := s.jobs[id]
	if !ok {
		return store.ErrJobNotFound
	}
	job.Progress = progress
	job.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *JobStore) MarkCompleted(ctx context.Context, id string, result *queue.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return s.FailWith
	}

	job, ok := s.jobs[id]
	if !ok {
		return store.ErrJobNotFound
	}
	job.State = queue.StateCompleted
	job.Result = result
	job.Progress = 100
	job.LockedUntil = nil
	job.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *JobStore) MarkFailed(ctx context.Context, id string, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return s.FailWith
	}

	job, ok := s.jobs[id]
	if !ok {
		return store.ErrJobNotFound
	}
	job.State = queue.StateFailed
	job.FailureReason = reason
	job.LockedUntil = nil
	job.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *JobStore) MarkDelayed(ctx context.Context, id string, nextRunAt time.Time, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return s.FailWith
	}

	job, ok := s.jobs[id]
	if !ok {
		return store.ErrJobNotFound
	}
	job.State = queue.StateDelayed
	job.NextRunAt = nextRunAt
	job.FailureReason = reason
	job.LockedUntil = nil
	job.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *JobStore) ListExpiredLeases(ctx context.Context, now time.Time) ([]*queue.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return nil, s.FailWith
	}

	var expired []*queue.Job
	for _, job := range s.jobs {
		if job.State == queue.StateActive && job.LockedUntil != nil && job.LockedUntil.Before(now) {
			expired = append(expired, cloneJob(job))
		}
	}
	return expired, nil
}

func (s *JobStore) PurgeCompletedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return 0, s.FailWith
	}

	var purged int64
	for id, job := range s.jobs {
		if job.State == queue.StateCompleted && job.UpdatedAt.Before(cutoff) {
			delete(s.jobs, id)
			purged++
		}
	}
	return purged, nil
}

// Len returns the number of jobs currently held.
func (s *JobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// DeadLetterStore is an in-memory queue.DeadLetterStore safe for
// concurrent use.
type DeadLetterStore struct {
	mu      sync.Mutex
	entries map[string]*queue.DeadLetter

	// FailWith, when set, makes every operation return this error.
	FailWith error
}

// NewDeadLetterStore creates an empty in-memory dead-letter store.
func NewDeadLetterStore() *DeadLetterStore {
	return &DeadLetterStore{entries: make(map[string]*queue.DeadLetter)}
}

func (s *DeadLetterStore) Add(ctx context.Context, job *queue.Job, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return s.FailWith
	}

	s.entries[job.ID] = &queue.DeadLetter{
		JobID:          job.ID,
		Payload:        job.Payload,
		FailureReason:  reason,
		AttemptsMade:   job.AttemptsMade,
		DeadLetteredAt: time.Now().UTC(),
	}
	return nil
}

func (s *DeadLetterStore) Get(ctx context.Context, jobID string) (*queue.DeadLetter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return nil, s.FailWith
	}

	entry, ok := s.entries[jobID]
	if !ok {
		return nil, store.ErrDeadLetterNotFound
	}
	clone := *entry
	return &clone, nil
}

func (s *DeadLetterStore) List(ctx context.Context, limit, offset int) ([]*queue.DeadLetter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return nil, s.FailWith
	}

	all := make([]*queue.DeadLetter, 0, len(s.entries))
	for _, entry := range s.entries {
		clone := *entry
		all = append(all, &clone)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].DeadLetteredAt.After(all[j].DeadLetteredAt)
	})

	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (s *DeadLetterStore) MarkReplayed(ctx context.Context, jobID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return s.FailWith
	}

	entry, ok := s.entries[jobID]
	if !ok {
		return store.ErrDeadLetterNotFound
	}
	replayed := at
	entry.ReplayedAt = &replayed
	return nil
}

// Len returns the number of dead letters currently held.
func (s *DeadLetterStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// cloneJob copies a job so callers cannot mutate store state directly.
func cloneJob(job *queue.Job) *queue.Job {
	clone := *job
	if job.LockedUntil != nil {
		until := *job.LockedUntil
		clone.LockedUntil = &until
	}
	if job.Result != nil {
		result := *job.Result
		clone.Result = &result
	}
	return &clone
}
