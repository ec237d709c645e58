package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/photofuse/api/internal/model"
)

// PostgresStore implements Store and AdminStore over a jobs table:
//
//	CREATE TABLE jobs (
//	    id           uuid PRIMARY KEY,
//	    owner_id     text NOT NULL,
//	    status       text NOT NULL,
//	    input        jsonb NOT NULL,
//	    output       jsonb,
//	    error        jsonb,
//	    attempts     int NOT NULL DEFAULT 0,
//	    created_at   timestamptz NOT NULL DEFAULT now(),
//	    updated_at   timestamptz NOT NULL DEFAULT now(),
//	    completed_at timestamptz
//	);
//
// The deployment keeps row-level security on owner_id, but scoping is also
// enforced here so the store does not depend on it.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a job store backed by the given pool. The normal
// request path and the callback path are expected to pass pools opened with
// different database roles.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const jobColumns = "id, owner_id, status, input, output, error, attempts, created_at, updated_at, completed_at"

func (s *PostgresStore) Create(ctx context.Context, ownerID string, input model.JobInput) (*model.Job, error) {
	inputJSON, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal input: %w", err)
	}

	query := `
INSERT INTO jobs (id, owner_id, status, input, attempts)
VALUES ($1, $2, $3, $4, 0)
RETURNING ` + jobColumns + `;
`
	row := s.pool.QueryRow(ctx, query, uuid.New().String(), ownerID, model.JobStatusPending, inputJSON)
	return scanJob(row)
}

func (s *PostgresStore) Get(ctx context.Context, jobID, ownerID string) (*model.Job, error) {
	query := `
SELECT ` + jobColumns + `
FROM jobs
WHERE id = $1 AND owner_id = $2;
`
	row := s.pool.QueryRow(ctx, query, jobID, ownerID)
	return scanJob(row)
}

func (s *PostgresStore) List(ctx context.Context, ownerID string, limit int) ([]model.Job, error) {
	query := `
SELECT ` + jobColumns + `
FROM jobs
WHERE owner_id = $1
ORDER BY created_at DESC
LIMIT $2;
`
	rows, err := s.pool.Query(ctx, query, ownerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := []model.Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

func (s *PostgresStore) MarkRunning(ctx context.Context, jobID, ownerID string) error {
	query := `
UPDATE jobs
SET status = $3, attempts = attempts + 1, updated_at = now()
WHERE id = $1 AND owner_id = $2 AND status = $4;
`
	tag, err := s.pool.Exec(ctx, query, jobID, ownerID, model.JobStatusRunning, model.JobStatusPending)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) GetByID(ctx context.Context, jobID string) (*model.Job, error) {
	query := `
SELECT ` + jobColumns + `
FROM jobs
WHERE id = $1;
`
	row := s.pool.QueryRow(ctx, query, jobID)
	return scanJob(row)
}

// Complete is a single conditional update so that a racing terminal writer
// cannot overwrite an already-terminal job.
func (s *PostgresStore) Complete(ctx context.Context, jobID string, output model.JobOutput) (bool, error) {
	outputJSON, err := json.Marshal(output)
	if err != nil {
		return false, fmt.Errorf("failed to marshal output: %w", err)
	}

	query := `
UPDATE jobs
SET status = $2, output = $3, completed_at = now(), updated_at = now()
WHERE id = $1 AND status NOT IN ($4, $5);
`
	tag, err := s.pool.Exec(ctx, query, jobID, model.JobStatusCompleted, outputJSON,
		model.JobStatusCompleted, model.JobStatusFailed)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) Fail(ctx context.Context, jobID string, jobErr model.JobError) (bool, error) {
	errJSON, err := json.Marshal(jobErr)
	if err != nil {
		return false, fmt.Errorf("failed to marshal error: %w", err)
	}

	query := `
UPDATE jobs
SET status = $2, error = $3, completed_at = now(), updated_at = now()
WHERE id = $1 AND status NOT IN ($4, $5);
`
	tag, err := s.pool.Exec(ctx, query, jobID, model.JobStatusFailed, errJSON,
		model.JobStatusCompleted, model.JobStatusFailed)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func scanJob(row pgx.Row) (*model.Job, error) {
	var (
		job        model.Job
		inputJSON  []byte
		outputJSON []byte
		errJSON    []byte
		completed  *time.Time
	)
	if err := row.Scan(
		&job.ID,
		&job.OwnerID,
		&job.Status,
		&inputJSON,
		&outputJSON,
		&errJSON,
		&job.Attempts,
		&job.CreatedAt,
		&job.UpdatedAt,
		&completed,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if err := json.Unmarshal(inputJSON, &job.Input); err != nil {
		return nil, fmt.Errorf("failed to unmarshal input: %w", err)
	}
	if len(outputJSON) > 0 {
		job.Output = &model.JobOutput{}
		if err := json.Unmarshal(outputJSON, job.Output); err != nil {
			return nil, fmt.Errorf("failed to unmarshal output: %w", err)
		}
	}
	if len(errJSON) > 0 {
		job.Error = &model.JobError{}
		if err := json.Unmarshal(errJSON, job.Error); err != nil {
			return nil, fmt.Errorf("failed to unmarshal error: %w", err)
		}
	}
	job.CompletedAt = completed
	return &job, nil
}

var (
	_ Store      = (*PostgresStore)(nil)
	_ AdminStore = (*PostgresStore)(nil)
)
