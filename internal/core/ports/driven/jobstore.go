package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/sercha-filings/internal/core/domain"
)

// JobStore keeps processing job snapshots.
// Save replaces the whole snapshot atomically; readers see either the old
// or the new value. Each job has a single writer.
type JobStore interface {
	// Save stores or replaces a job snapshot.
	Save(ctx context.Context, job domain.ProcessingJob) error

	// Get returns a job by ID, or domain.ErrNotFound.
	Get(ctx context.Context, id string) (*domain.ProcessingJob, error)

	// Latest returns the most recently started job for an identity, or domain.ErrNotFound.
	Latest(ctx context.Context, key domain.JobKey) (*domain.ProcessingJob, error)

	// LatestByTicker returns the most recently started job for any range of a ticker.
	LatestByTicker(ctx context.Context, ticker string) (*domain.ProcessingJob, error)

	// ListByTicker returns every job for a ticker across time ranges, newest first.
	ListByTicker(ctx context.Context, ticker string) ([]domain.ProcessingJob, error)

	// List returns all jobs, newest first.
	List(ctx context.Context) ([]domain.ProcessingJob, error)

	// RequestCancel records that a job should stop. The flag lives beside the
	// snapshot, so the owner's later Saves do not clear it.
	RequestCancel(ctx context.Context, id string) error

	// CancelRequested reports whether RequestCancel was called for a job.
	CancelRequested(ctx context.Context, id string) (bool, error)

	// Prune removes terminal jobs that finished before the cutoff, with their
	// cancel flags, and returns the count.
	Prune(ctx context.Context, before time.Time) (int, error)
}
