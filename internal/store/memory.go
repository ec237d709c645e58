package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/photofuse/api/internal/model"
)

// MemoryStore is an in-process Store/AdminStore with the same scoping and
// first-writer-wins semantics as the Postgres implementation. Used by tests
// and local development without a database.
type MemoryStore struct {
	mu    sync.Mutex
	jobs  map[string]*model.Job
	order []string // creation order, oldest first
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*model.Job)}
}

func (s *MemoryStore) Create(ctx context.Context, ownerID string, input model.JobInput) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	job := &model.Job{
		ID:        uuid.New().String(),
		OwnerID:   ownerID,
		Status:    model.JobStatusPending,
		Input:     input,
		Attempts:  0,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.jobs[job.ID] = job
	s.order = append(s.order, job.ID)
	return copyJob(job), nil
}

func (s *MemoryStore) Get(ctx context.Context, jobID, ownerID string) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok || job.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	return copyJob(job), nil
}

func (s *MemoryStore) List(ctx context.Context, ownerID string, limit int) ([]model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobs := []model.Job{}
	for i := len(s.order) - 1; i >= 0; i-- {
		job := s.jobs[s.order[i]]
		if job.OwnerID == ownerID {
			jobs = append(jobs, *copyJob(job))
		}
	}
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

func (s *MemoryStore) MarkRunning(ctx context.Context, jobID, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok || job.OwnerID != ownerID || job.Status != model.JobStatusPending {
		return ErrNotFound
	}
	job.Status = model.JobStatusRunning
	job.Attempts++
	job.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) GetByID(ctx context.Context, jobID string) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, ErrNotFound
	}
	return copyJob(job), nil
}

func (s *MemoryStore) Complete(ctx context.Context, jobID string, output model.JobOutput) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return false, ErrNotFound
	}
	if job.Status.IsTerminal() {
		return false, nil
	}
	now := time.Now().UTC()
	out := output
	job.Status = model.JobStatusCompleted
	job.Output = &out
	job.CompletedAt = &now
	job.UpdatedAt = now
	return true, nil
}

func (s *MemoryStore) Fail(ctx context.Context, jobID string, jobErr model.JobError) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return false, ErrNotFound
	}
	if job.Status.IsTerminal() {
		return false, nil
	}
	now := time.Now().UTC()
	e := jobErr
	job.Status = model.JobStatusFailed
	job.Error = &e
	job.CompletedAt = &now
	job.UpdatedAt = now
	return true, nil
}

func copyJob(job *model.Job) *model.Job {
	c := *job
	if job.Output != nil {
		out := *job.Output
		c.Output = &out
	}
	if job.Error != nil {
		e := *job.Error
		c.Error = &e
	}
	return &c
}

var (
	_ Store      = (*MemoryStore)(nil)
	_ AdminStore = (*MemoryStore)(nil)
)
