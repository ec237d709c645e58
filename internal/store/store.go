package store

import (
	"context"
	"errors"

	"github.com/photofuse/api/internal/model"
)

// ErrNotFound is returned when a job does not exist or is not visible to the
// caller. An existing job owned by someone else is indistinguishable from a
// nonexistent one.
var ErrNotFound = errors.New("job not found")

// Store is the owner-scoped view of the job store. Every read and write is
// constrained to the given owner's rows; this is the only view the normal
// request path ever holds.
type Store interface {
	// Create allocates a new pending job for the owner.
	Create(ctx context.Context, ownerID string, input model.JobInput) (*model.Job, error)

	// Get returns the owner's job, or ErrNotFound.
	Get(ctx context.Context, jobID, ownerID string) (*model.Job, error)

	// List returns the owner's jobs newest-first, at most limit entries.
	List(ctx context.Context, ownerID string, limit int) ([]model.Job, error)

	// MarkRunning moves a pending job to running and counts the dispatch
	// attempt.
	MarkRunning(ctx context.Context, jobID, ownerID string) error
}

// AdminStore is the privileged view used only by the callback path, which
// acts on behalf of the external worker rather than an owner. It also hosts
// the terminal writers shared with the synchronous dispatch path.
type AdminStore interface {
	// GetByID loads a job without ownership scoping.
	GetByID(ctx context.Context, jobID string) (*model.Job, error)

	// Complete applies the completed terminal transition. The write only
	// lands if the job is not already terminal; the return value reports
	// whether this writer won.
	Complete(ctx context.Context, jobID string, output model.JobOutput) (bool, error)

	// Fail applies the failed terminal transition with the same
	// first-writer-wins contract as Complete.
	Fail(ctx context.Context, jobID string, jobErr model.JobError) (bool, error)
}
