package driving

import (
	"context"
	"time"

	"github.com/custodia-labs/sercha-filings/internal/core/domain"
)

// SubmitRequest asks for a ticker's filings to be ingested.
type SubmitRequest struct {
	// Ticker is the company ticker; case is ignored.
	Ticker string

	// TimeRangeYears is 1, 3 or 5.
	TimeRangeYears int

	// Force re-runs the pipeline even when a complete job exists.
	Force bool
}

// IngestionService runs and tracks ingestion jobs.
type IngestionService interface {
	// Submit starts a job, or returns the existing one for the same identity
	// when it is still running or already complete (unless Force is set).
	Submit(ctx context.Context, req SubmitRequest) (*domain.ProcessingJob, error)

	// Status returns the snapshot for a job ID.
	Status(ctx context.Context, jobID string) (*domain.ProcessingJob, error)

	// StatusByTicker returns the most recent job for a ticker.
	StatusByTicker(ctx context.Context, ticker string) (*domain.ProcessingJob, error)

	// Cancel requests cooperative cancellation of a job.
	Cancel(ctx context.Context, jobID string) error

	// CancelByTicker cancels the most recent running job for a ticker.
	CancelByTicker(ctx context.Context, ticker string) error

	// List returns all known jobs, newest first.
	List(ctx context.Context) ([]domain.ProcessingJob, error)

	// Wait blocks until the job is terminal or ctx is done.
	Wait(ctx context.Context, jobID string) (*domain.ProcessingJob, error)

	// Prune removes terminal jobs older than maxAge.
	Prune(ctx context.Context, maxAge time.Duration) (int, error)
}

// CompanyService resolves tickers for driving adapters.
type CompanyService interface {
	// Lookup resolves a ticker, returning domain.ErrIssuerNotFound when unknown.
	Lookup(ctx context.Context, ticker string) (*domain.Company, error)

	// Suggest returns tickers similar to the query.
	Suggest(ctx context.Context, query string, limit int) ([]domain.Company, error)
}
