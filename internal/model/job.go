package model

import "time"

// Job represents one request/response cycle of the image-composition workflow
type Job struct {
	ID          string     `json:"id"`
	OwnerID     string     `json:"ownerId"`
	Status      JobStatus  `json:"status"`
	Input       JobInput   `json:"input"`
	Output      *JobOutput `json:"output,omitempty"`
	Error       *JobError  `json:"error,omitempty"`
	Attempts    int        `json:"attempts"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// JobInput is what the user provided. Image payloads are stored truncated;
// the full bytes only exist transiently for the dispatch call.
type JobInput struct {
	PersonImage string `json:"personImage"`
	ObjectImage string `json:"objectImage"`
	Prompt      string `json:"prompt,omitempty"`
}

// JobOutput is present only on completed jobs. The generated image is either
// inline base64 or a URL to offloaded storage, never both.
type JobOutput struct {
	ImageBase64 string    `json:"imageBase64,omitempty"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	MimeType    string    `json:"mimeType"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// JobError is present only on failed jobs
type JobError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   string `json:"details,omitempty"`
	Retryable bool   `json:"retryable"`
}

// InputRefMaxLen caps how much of each raw image payload is kept on the job
// record for traceability.
const InputRefMaxLen = 100

// TruncateInputRef shortens a raw image payload for persistence.
func TruncateInputRef(s string) string {
	if len(s) <= InputRefMaxLen {
		return s
	}
	return s[:InputRefMaxLen] + "..."
}
