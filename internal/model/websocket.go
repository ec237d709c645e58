package model

// WebSocket message types
const (
	WSMessageTypeStatus   = "status"
	WSMessageTypeComplete = "complete"
	WSMessageTypeError    = "error"
)

// WSStatusMessage is pushed whenever a job changes status.
type WSStatusMessage struct {
	Type   string    `json:"type"`
	JobID  string    `json:"jobId"`
	Status JobStatus `json:"status"`
}

// WSCompleteMessage is pushed once when a job reaches completed.
type WSCompleteMessage struct {
	Type   string     `json:"type"`
	JobID  string     `json:"jobId"`
	Output *JobOutput `json:"output,omitempty"`
}

// WSErrorMessage is pushed once when a job reaches failed.
type WSErrorMessage struct {
	Type    string `json:"type"`
	JobID   string `json:"jobId"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
