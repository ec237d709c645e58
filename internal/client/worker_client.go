package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/photofuse/api/internal/config"
)

// WorkerGateway defines the interface to the external image-generation
// workflow.
type WorkerGateway interface {
	Dispatch(ctx context.Context, req *DispatchRequest) (*DispatchResult, error)
	IsConfigured() bool
}

// DispatchRequest carries one job's inputs to the external worker. Images
// are base64-encoded; a data-URL prefix is tolerated.
type DispatchRequest struct {
	JobID       string
	PersonImage string
	ObjectImage string
	Prompt      string
}

// DispatchResult is the synchronous outcome: the worker answers the webhook
// call with the generated image as the raw response body.
type DispatchResult struct {
	ImageBytes []byte
	MimeType   string
}

// GatewayError describes a failed dispatch. Both transport failures and
// non-success statuses are retryable from the job's point of view.
type GatewayError struct {
	StatusCode int
	Err        error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("worker request failed: %v", e.Err)
	}
	return fmt.Sprintf("worker returned status %d", e.StatusCode)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// WorkerClient implements WorkerGateway against a single configured webhook
// endpoint.
type WorkerClient struct {
	httpClient *http.Client
	webhookURL string
}

// NewWorkerClient creates a client for the external workflow engine.
func NewWorkerClient(cfg *config.WorkerConfig) *WorkerClient {
	return &WorkerClient{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		webhookURL: cfg.WebhookURL,
	}
}

// Dispatch sends both images plus metadata as one multipart request and
// blocks until the worker responds. The response body is the generated
// image.
func (c *WorkerClient) Dispatch(ctx context.Context, req *DispatchRequest) (*DispatchResult, error) {
	if c.webhookURL == "" {
		return nil, &GatewayError{Err: fmt.Errorf("worker webhook URL not configured")}
	}

	person, err := decodeImage(req.PersonImage)
	if err != nil {
		return nil, &GatewayError{Err: fmt.Errorf("invalid person image: %w", err)}
	}
	object, err := decodeImage(req.ObjectImage)
	if err != nil {
		return nil, &GatewayError{Err: fmt.Errorf("invalid object image: %w", err)}
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	personPart, err := writer.CreateFormFile("personImage", "person.png")
	if err != nil {
		return nil, &GatewayError{Err: err}
	}
	if _, err := personPart.Write(person); err != nil {
		return nil, &GatewayError{Err: err}
	}

	objectPart, err := writer.CreateFormFile("objectImage", "object.png")
	if err != nil {
		return nil, &GatewayError{Err: err}
	}
	if _, err := objectPart.Write(object); err != nil {
		return nil, &GatewayError{Err: err}
	}

	if err := writer.WriteField("job_id", req.JobID); err != nil {
		return nil, &GatewayError{Err: err}
	}
	if req.Prompt != "" {
		if err := writer.WriteField("prompt", req.Prompt); err != nil {
			return nil, &GatewayError{Err: err}
		}
	}
	if err := writer.Close(); err != nil {
		return nil, &GatewayError{Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, &body)
	if err != nil {
		return nil, &GatewayError{Err: err}
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	log.Printf("[Worker] → POST %s (job=%s)", c.webhookURL, req.JobID)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		log.Printf("[Worker] ✗ job=%s request failed: %v", req.JobID, err)
		return nil, &GatewayError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Printf("[Worker] ← %d job=%s", resp.StatusCode, req.JobID)
		return nil, &GatewayError{StatusCode: resp.StatusCode}
	}

	image, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &GatewayError{Err: fmt.Errorf("failed to read response: %w", err)}
	}

	mimeType := resp.Header.Get("Content-Type")
	// Strip any trailing parameters like "; charset=binary"
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	if mimeType == "" {
		mimeType = "image/png"
	}

	log.Printf("[Worker] ← %d job=%s, %d bytes, %s", resp.StatusCode, req.JobID, len(image), mimeType)

	return &DispatchResult{
		ImageBytes: image,
		MimeType:   mimeType,
	}, nil
}

// IsConfigured returns true if the client has a webhook endpoint
func (c *WorkerClient) IsConfigured() bool {
	return c.webhookURL != ""
}

// decodeImage decodes a base64 payload, tolerating a data-URL prefix
// ("data:image/png;base64,....").
func decodeImage(s string) ([]byte, error) {
	if i := strings.Index(s, ","); i >= 0 && strings.Contains(s[:i], "base64") {
		s = s[i+1:]
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image payload")
	}
	return data, nil
}

var _ WorkerGateway = (*WorkerClient)(nil)
