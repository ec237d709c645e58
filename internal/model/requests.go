package model

import "time"

// CreateJobRequest is the body of POST /api/jobs
type CreateJobRequest struct {
	PersonImage string `json:"personImage" validate:"required"`
	ObjectImage string `json:"objectImage" validate:"required"`
	Prompt      string `json:"prompt,omitempty" validate:"max=2000"`
}

// CreateJobResponse is returned for every schema-valid creation, whichever
// terminal state the synchronous dispatch reached.
type CreateJobResponse struct {
	ID        string    `json:"id"`
	Status    JobStatus `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// WorkerCallbackRequest is the body the external worker posts to
// /webhooks/worker when it resolves a job asynchronously.
type WorkerCallbackRequest struct {
	JobID     string                `json:"job_id"`
	Status    JobStatus             `json:"status"`
	Output    *WorkerCallbackOutput `json:"output,omitempty"`
	Error     *WorkerCallbackError  `json:"error,omitempty"`
	Timestamp string                `json:"timestamp,omitempty"`
}

type WorkerCallbackOutput struct {
	ImageBase64 string `json:"imageBase64"`
	MimeType    string `json:"mimeType,omitempty"`
}

type WorkerCallbackError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Details string `json:"details,omitempty"`
}

// WorkerCallbackResponse acknowledges a callback delivery.
type WorkerCallbackResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
