package driving

import (
	"context"

	"github.com/custodia-labs/sercha-filings/internal/core/domain"
)

// QueryService answers questions against a ticker's indexed filings.
type QueryService interface {
	// Answer returns a grounded answer, or domain.ErrNotReady when the
	// ticker has no complete job or is being ingested.
	Answer(ctx context.Context, req domain.QueryRequest) (*domain.QueryResult, error)
}
