package driven

import (
	"context"

	"github.com/custodia-labs/sercha-filings/internal/core/domain"
)

// VectorIndex is the shared vector store, partitioned by ticker metadata.
type VectorIndex interface {
	// Upsert writes entries, overwriting any existing entry with the same chunk ID.
	Upsert(ctx context.Context, entries []domain.IndexEntry) error

	// Search returns hits from the opts.Ticker partition only, best first,
	// at most opts.TopK, none below opts.MinScore.
	Search(ctx context.Context, query []float32, opts domain.SearchOptions) ([]domain.VectorHit, error)

	// DeleteByTicker removes a whole partition.
	DeleteByTicker(ctx context.Context, ticker string) error

	// Count returns the number of entries in a partition.
	Count(ctx context.Context, ticker string) (int, error)

	// Close releases resources.
	Close() error
}
