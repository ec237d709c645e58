// Package poller re-reads a job's status on a fixed interval until the job
// reaches a terminal state, the client-side half of the polling contract.
package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/photofuse/api/internal/model"
)

// DefaultInterval matches the reference client's 3-second poll loop.
const DefaultInterval = 3 * time.Second

// StatusFetcher returns a job's current status.
type StatusFetcher func(ctx context.Context) (model.JobStatus, error)

// Poller drives a StatusFetcher until a terminal status is observed.
// Transient fetch errors are tolerated by retrying on the next tick with no
// backoff and no retry cap; callers that need a bound should cancel the
// context.
type Poller struct {
	Fetch    StatusFetcher
	Interval time.Duration          // zero means DefaultInterval
	OnUpdate func(model.JobStatus)  // optional, called once per observation
}

// Run polls until a terminal status is observed and returns it. Polling
// stops permanently at the first terminal observation. The first read
// happens immediately, subsequent reads once per interval.
func (p *Poller) Run(ctx context.Context) (model.JobStatus, error) {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		status, err := p.Fetch(ctx)
		if err == nil {
			if p.OnUpdate != nil {
				p.OnUpdate(status)
			}
			if status.IsTerminal() {
				return status, nil
			}
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}

// NewHTTPFetcher builds a StatusFetcher that reads GET {baseURL}/api/jobs/{id}
// with a bearer token.
func NewHTTPFetcher(httpClient *http.Client, baseURL, jobID, token string) StatusFetcher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	url := fmt.Sprintf("%s/api/jobs/%s", baseURL, jobID)

	return func(ctx context.Context) (model.JobStatus, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return "", err
		}
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := httpClient.Do(req)
		if err != nil {
			return "", err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("status endpoint returned %d", resp.StatusCode)
		}

		var job struct {
			Status model.JobStatus `json:"status"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
			return "", fmt.Errorf("failed to decode job: %w", err)
		}
		return job.Status, nil
	}
}
