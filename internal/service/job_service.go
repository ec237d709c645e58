package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/photofuse/api/internal/client"
	"github.com/photofuse/api/internal/model"
	"github.com/photofuse/api/internal/store"
)

var (
	// ErrMissingImages rejects a submission before any row is written.
	ErrMissingImages = errors.New("both images are required")

	// ErrInvalidCallback rejects a callback without job id or a usable
	// terminal status.
	ErrInvalidCallback = errors.New("callback missing required fields")
)

// Notifier pushes job transitions to live subscribers. Best effort; the
// store remains the source of truth.
type Notifier interface {
	NotifyStatus(jobID string, status model.JobStatus)
	NotifyComplete(jobID string, output *model.JobOutput)
	NotifyError(jobID string, code, message string)
}

// JobService drives a job through pending → running → {completed | failed}.
// The synchronous dispatch below and the asynchronous worker callback can
// race for the terminal transition, so every terminal write goes through
// the store's conditional update and the first writer wins.
type JobService struct {
	store    store.Store
	admin    store.AdminStore
	gateway  client.WorkerGateway
	storage  client.StorageClient
	notifier Notifier
}

func NewJobService(s store.Store, admin store.AdminStore, gateway client.WorkerGateway, storage client.StorageClient, notifier Notifier) *JobService {
	return &JobService{
		store:    s,
		admin:    admin,
		gateway:  gateway,
		storage:  storage,
		notifier: notifier,
	}
}

// Submit creates a job and synchronously dispatches it to the external
// worker. The call blocks for the full worker round trip; a gateway failure
// becomes a failed job, never an error to the submitter.
func (s *JobService) Submit(ctx context.Context, ownerID string, req *model.CreateJobRequest) (*model.CreateJobResponse, error) {
	if req.PersonImage == "" || req.ObjectImage == "" {
		return nil, ErrMissingImages
	}

	input := model.JobInput{
		PersonImage: model.TruncateInputRef(req.PersonImage),
		ObjectImage: model.TruncateInputRef(req.ObjectImage),
		Prompt:      req.Prompt,
	}

	job, err := s.store.Create(ctx, ownerID, input)
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	if err := s.store.MarkRunning(ctx, job.ID, ownerID); err != nil {
		return nil, fmt.Errorf("failed to mark job running: %w", err)
	}
	s.notifyStatus(job.ID, model.JobStatusRunning)

	result, err := s.gateway.Dispatch(ctx, &client.DispatchRequest{
		JobID:       job.ID,
		PersonImage: req.PersonImage,
		ObjectImage: req.ObjectImage,
		Prompt:      req.Prompt,
	})

	status := model.JobStatusCompleted
	if err != nil {
		status = model.JobStatusFailed
		s.failJob(ctx, job.ID, model.JobError{
			Code:      model.ErrorCodeWorker,
			Message:   err.Error(),
			Retryable: true,
		})
	} else {
		s.completeJob(ctx, job.ID, s.buildOutput(ctx, job.ID, result))
	}

	return &model.CreateJobResponse{
		ID:        job.ID,
		Status:    status,
		CreatedAt: job.CreatedAt,
	}, nil
}

// buildOutput turns a gateway result into the persisted output, offloading
// the image bytes to object storage when configured.
func (s *JobService) buildOutput(ctx context.Context, jobID string, result *client.DispatchResult) model.JobOutput {
	output := model.JobOutput{
		MimeType:    result.MimeType,
		GeneratedAt: time.Now().UTC(),
	}

	if s.storage != nil {
		key := fmt.Sprintf("jobs/%s.%s", jobID, extensionFor(result.MimeType))
		url, err := s.storage.Upload(ctx, key, bytes.NewReader(result.ImageBytes), result.MimeType)
		if err == nil {
			output.ImageURL = url
			return output
		}
		log.Printf("Storage offload failed for job %s, keeping image inline: %v", jobID, err)
	}

	output.ImageBase64 = base64.StdEncoding.EncodeToString(result.ImageBytes)
	return output
}

// HandleCallback applies an asynchronous terminal notification from the
// external worker. The caller has already authenticated the payload.
// Callbacks are safe to deliver more than once and safe to race against
// Submit: an already-terminal job is acknowledged without mutation.
func (s *JobService) HandleCallback(ctx context.Context, req *model.WorkerCallbackRequest) (*model.WorkerCallbackResponse, error) {
	if req.JobID == "" || req.Status == "" {
		return nil, ErrInvalidCallback
	}
	if !req.Status.IsTerminal() {
		return nil, ErrInvalidCallback
	}
	if req.Status == model.JobStatusCompleted && req.Output == nil {
		return nil, ErrInvalidCallback
	}

	job, err := s.admin.GetByID(ctx, req.JobID)
	if err != nil {
		return nil, err
	}

	// Idempotency guard: first writer won, silently.
	if job.Status.IsTerminal() {
		return &model.WorkerCallbackResponse{
			Success: true,
			Message: "Job already processed",
		}, nil
	}

	switch req.Status {
	case model.JobStatusCompleted:
		output := model.JobOutput{
			ImageBase64: req.Output.ImageBase64,
			MimeType:    req.Output.MimeType,
			GeneratedAt: callbackTime(req.Timestamp),
		}
		if output.MimeType == "" {
			output.MimeType = "image/png"
		}
		s.completeJob(ctx, req.JobID, output)

	case model.JobStatusFailed:
		jobErr := model.JobError{
			Code:      model.ErrorCodeUnknown,
			Message:   "Unknown error",
			Retryable: true,
		}
		if req.Error != nil {
			if req.Error.Code != "" {
				jobErr.Code = req.Error.Code
			}
			if req.Error.Message != "" {
				jobErr.Message = req.Error.Message
			}
			jobErr.Details = req.Error.Details
		}
		s.failJob(ctx, req.JobID, jobErr)
	}

	return &model.WorkerCallbackResponse{
		Success: true,
		Message: "Job updated",
	}, nil
}

// GetJob is the owner-scoped point read used for polling.
func (s *JobService) GetJob(ctx context.Context, jobID, ownerID string) (*model.Job, error) {
	return s.store.Get(ctx, jobID, ownerID)
}

// ListLimit bounds how many jobs a single listing returns.
const ListLimit = 50

// ListJobs returns the owner's jobs newest first.
func (s *JobService) ListJobs(ctx context.Context, ownerID string) ([]model.Job, error) {
	return s.store.List(ctx, ownerID, ListLimit)
}

func (s *JobService) completeJob(ctx context.Context, jobID string, output model.JobOutput) {
	applied, err := s.admin.Complete(ctx, jobID, output)
	if err != nil {
		// The external result is lost if this write fails; there is no
		// retry path for it.
		log.Printf("Failed to record completion for job %s: %v", jobID, err)
		return
	}
	if applied && s.notifier != nil {
		s.notifier.NotifyComplete(jobID, &output)
	}
}

func (s *JobService) failJob(ctx context.Context, jobID string, jobErr model.JobError) {
	applied, err := s.admin.Fail(ctx, jobID, jobErr)
	if err != nil {
		log.Printf("Failed to record failure for job %s: %v", jobID, err)
		return
	}
	if applied && s.notifier != nil {
		s.notifier.NotifyError(jobID, jobErr.Code, jobErr.Message)
	}
}

func (s *JobService) notifyStatus(jobID string, status model.JobStatus) {
	if s.notifier != nil {
		s.notifier.NotifyStatus(jobID, status)
	}
}

func extensionFor(mimeType string) string {
	if i := strings.Index(mimeType, "/"); i >= 0 && i+1 < len(mimeType) {
		return mimeType[i+1:]
	}
	return "png"
}

func callbackTime(timestamp string) time.Time {
	if timestamp != "" {
		if t, err := time.Parse(time.RFC3339, timestamp); err == nil {
			return t
		}
	}
	return time.Now().UTC()
}
