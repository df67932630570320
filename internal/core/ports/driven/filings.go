package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/sercha-filings/internal/core/domain"
)

// IssuerResolver maps tickers to issuers.
type IssuerResolver interface {
	// Resolve returns the issuer for a ticker, or domain.ErrIssuerNotFound.
	Resolve(ctx context.Context, ticker string) (*domain.Company, error)

	// Suggest returns up to limit tickers similar to the query.
	Suggest(ctx context.Context, query string, limit int) ([]domain.Company, error)
}

// FetchRequest selects filings to retrieve.
type FetchRequest struct {
	// Company is the resolved issuer.
	Company domain.Company

	// Start and End bound the filing date window, inclusive.
	Start time.Time
	End   time.Time

	// FilingTypes restricts categories. Empty means domain.DefaultFilingTypes.
	FilingTypes []domain.FilingType
}

// FilingListing is an archive entry before download.
type FilingListing struct {
	AccessionNumber string
	FilingType      domain.FilingType
	FiledDate       time.Time
	PeriodOfReport  *time.Time
	PrimaryDocument string
	DocumentURL     string
}

// FilingRetriever fetches filings from the regulatory archive.
// Implementations share one rate limiter across all calls.
type FilingRetriever interface {
	// ListFilings returns deduplicated listings in the window.
	ListFilings(ctx context.Context, req FetchRequest) ([]FilingListing, error)

	// Download fetches one filing's primary document, retrying transient failures.
	Download(ctx context.Context, company domain.Company, listing FilingListing) (*domain.RawFiling, error)
}
