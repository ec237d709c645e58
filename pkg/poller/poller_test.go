package poller

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/photofuse/api/internal/model"
)

// scripted returns each entry once, failing the test if read past the end.
func scripted(t *testing.T, reads *int, sequence ...model.JobStatus) StatusFetcher {
	t.Helper()
	return func(ctx context.Context) (model.JobStatus, error) {
		if *reads >= len(sequence) {
			t.Fatalf("poller kept reading after the scripted sequence (%d reads)", *reads+1)
		}
		status := sequence[*reads]
		*reads++
		return status, nil
	}
}

func TestRun_StopsOnTerminal(t *testing.T) {
	reads := 0
	observed := []model.JobStatus{}

	p := &Poller{
		Fetch: scripted(t, &reads,
			model.JobStatusPending,
			model.JobStatusRunning,
			model.JobStatusRunning,
			model.JobStatusCompleted,
		),
		Interval: time.Millisecond,
		OnUpdate: func(s model.JobStatus) { observed = append(observed, s) },
	}

	status, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if status != model.JobStatusCompleted {
		t.Errorf("expected completed, got %s", status)
	}
	if reads != 4 {
		t.Errorf("expected exactly 4 reads, got %d", reads)
	}
	if len(observed) != 4 {
		t.Errorf("expected 4 observations, got %d", len(observed))
	}
}

func TestRun_StopsOnFailedToo(t *testing.T) {
	reads := 0
	p := &Poller{
		Fetch:    scripted(t, &reads, model.JobStatusRunning, model.JobStatusFailed),
		Interval: time.Millisecond,
	}

	status, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if status != model.JobStatusFailed {
		t.Errorf("expected failed, got %s", status)
	}
	if reads != 2 {
		t.Errorf("expected 2 reads, got %d", reads)
	}
}

func TestRun_RetriesAfterTransientError(t *testing.T) {
	reads := 0
	fetch := func(ctx context.Context) (model.JobStatus, error) {
		reads++
		if reads == 1 {
			return "", errors.New("connection reset")
		}
		return model.JobStatusCompleted, nil
	}

	p := &Poller{Fetch: fetch, Interval: time.Millisecond}
	status, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if status != model.JobStatusCompleted {
		t.Errorf("expected completed after retry, got %s", status)
	}
	if reads != 2 {
		t.Errorf("expected retry on next tick, got %d reads", reads)
	}
}

func TestRun_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	fetch := func(ctx context.Context) (model.JobStatus, error) {
		return model.JobStatusRunning, nil
	}

	p := &Poller{Fetch: fetch, Interval: 10 * time.Millisecond}

	done := make(chan error, 1)
	go func() {
		_, err := p.Run(ctx)
		done <- err
	}()

	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("poller did not stop after cancellation")
	}
}
