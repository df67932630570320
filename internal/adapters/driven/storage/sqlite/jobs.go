package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/sercha-filings/internal/core/domain"
	"github.com/custodia-labs/sercha-filings/internal/core/ports/driven"
)

// jobStore implements driven.JobStore.
// The full snapshot is kept as JSON; the other columns exist for lookups.
type jobStore struct {
	store *Store
}

var _ driven.JobStore = (*jobStore)(nil)

const jobOrder = " ORDER BY started_at DESC, id DESC"

// Save stores or replaces a job snapshot in a single statement.
func (s *jobStore) Save(ctx context.Context, job domain.ProcessingJob) error {
	if job.ID == "" {
		return fmt.Errorf("%w: job id is required", domain.ErrInvalidInput)
	}

	snapshot, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshalling job: %w", err)
	}

	var completedAt any
	if job.CompletedAt != nil {
		completedAt = job.CompletedAt.UnixNano()
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO jobs (id, ticker, time_range, phase, started_at, completed_at, snapshot)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			ticker = excluded.ticker,
			time_range = excluded.time_range,
			phase = excluded.phase,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at,
			snapshot = excluded.snapshot
	`, job.ID, job.Ticker, job.TimeRangeYears, string(job.Phase),
		unixNano(job.StartedAt), completedAt, string(snapshot))
	if err != nil {
		return fmt.Errorf("saving job: %w", err)
	}
	return nil
}

// Get returns a job by ID.
func (s *jobStore) Get(ctx context.Context, id string) (*domain.ProcessingJob, error) {
	row := s.store.db.QueryRowContext(ctx, "SELECT snapshot FROM jobs WHERE id = ?", id)
	return scanJob(row)
}

// Latest returns the most recently started job for an identity.
func (s *jobStore) Latest(ctx context.Context, key domain.JobKey) (*domain.ProcessingJob, error) {
	row := s.store.db.QueryRowContext(ctx,
		"SELECT snapshot FROM jobs WHERE ticker = ? AND time_range = ?"+jobOrder+" LIMIT 1",
		domain.NormaliseTicker(key.Ticker), key.TimeRangeYears)
	return scanJob(row)
}

// LatestByTicker returns the most recently started job for a ticker.
func (s *jobStore) LatestByTicker(ctx context.Context, ticker string) (*domain.ProcessingJob, error) {
	row := s.store.db.QueryRowContext(ctx,
		"SELECT snapshot FROM jobs WHERE ticker = ?"+jobOrder+" LIMIT 1",
		domain.NormaliseTicker(ticker))
	return scanJob(row)
}

// ListByTicker returns every job for a ticker, newest first.
func (s *jobStore) ListByTicker(ctx context.Context, ticker string) ([]domain.ProcessingJob, error) {
	return s.list(ctx, "SELECT snapshot FROM jobs WHERE ticker = ?"+jobOrder, domain.NormaliseTicker(ticker))
}

// List returns all jobs, newest first.
func (s *jobStore) List(ctx context.Context) ([]domain.ProcessingJob, error) {
	return s.list(ctx, "SELECT snapshot FROM jobs"+jobOrder)
}

// RequestCancel records a cancel request. Repeated requests are no-ops.
func (s *jobStore) RequestCancel(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: job id is required", domain.ErrInvalidInput)
	}
	_, err := s.store.db.ExecContext(ctx,
		"INSERT INTO job_cancellations (job_id, requested_at) VALUES (?, ?) ON CONFLICT(job_id) DO NOTHING",
		id, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("requesting cancel: %w", err)
	}
	return nil
}

func (s *jobStore) CancelRequested(ctx context.Context, id string) (bool, error) {
	var n int
	err := s.store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM job_cancellations WHERE job_id = ?", id).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("reading cancel flag: %w", err)
	}
	return n > 0, nil
}

// Prune removes terminal jobs that completed before the cutoff.
func (s *jobStore) Prune(ctx context.Context, before time.Time) (int, error) {
	res, err := s.store.db.ExecContext(ctx, `
		DELETE FROM jobs
		WHERE phase IN (?, ?) AND completed_at IS NOT NULL AND completed_at < ?
	`, string(domain.PhaseComplete), string(domain.PhaseError), before.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("pruning jobs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting pruned jobs: %w", err)
	}
	if _, err := s.store.db.ExecContext(ctx,
		"DELETE FROM job_cancellations WHERE job_id NOT IN (SELECT id FROM jobs)"); err != nil {
		return 0, fmt.Errorf("pruning cancel flags: %w", err)
	}
	return int(n), nil
}

func (s *jobStore) list(ctx context.Context, query string, args ...any) ([]domain.ProcessingJob, error) {
	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying jobs: %w", err)
	}
	defer rows.Close()

	jobs := []domain.ProcessingJob{}
	for rows.Next() {
		var snapshot string
		if err := rows.Scan(&snapshot); err != nil {
			return nil, fmt.Errorf("scanning job: %w", err)
		}
		var job domain.ProcessingJob
		if err := json.Unmarshal([]byte(snapshot), &job); err != nil {
			return nil, fmt.Errorf("unmarshalling job: %w", err)
		}
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating jobs: %w", err)
	}
	return jobs, nil
}

func scanJob(row *sql.Row) (*domain.ProcessingJob, error) {
	var snapshot string
	if err := row.Scan(&snapshot); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning job: %w", err)
	}

	var job domain.ProcessingJob
	if err := json.Unmarshal([]byte(snapshot), &job); err != nil {
		return nil, fmt.Errorf("unmarshalling job: %w", err)
	}
	return &job, nil
}
