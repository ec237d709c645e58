package model

// Job status
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

var ValidStatuses = []JobStatus{
	JobStatusPending, JobStatusRunning, JobStatusCompleted, JobStatusFailed,
}

// IsTerminal reports whether no further transitions are permitted.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// IsValid reports whether s is a known job status.
func (s JobStatus) IsValid() bool {
	for _, v := range ValidStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Error codes attached to failed jobs
const (
	ErrorCodeWorker  = "WORKER_ERROR"
	ErrorCodeUnknown = "UNKNOWN_ERROR"
)
