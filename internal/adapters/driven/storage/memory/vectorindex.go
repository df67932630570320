package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/sercha-filings/internal/core/domain"
	"github.com/custodia-labs/sercha-filings/internal/core/ports/driven"
)

// Ensure VectorIndex implements the interface.
var _ driven.VectorIndex = (*VectorIndex)(nil)

// VectorIndex is a brute-force in-memory vector index partitioned by ticker.
type VectorIndex struct {
	mu         sync.RWMutex
	partitions map[string]map[string]domain.IndexEntry
}

// NewVectorIndex creates an empty index.
func NewVectorIndex() *VectorIndex {
	return &VectorIndex{
		partitions: make(map[string]map[string]domain.IndexEntry),
	}
}

// Upsert writes entries into their ticker partitions.
func (v *VectorIndex) Upsert(_ context.Context, entries []domain.IndexEntry) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, e := range entries {
		ticker := domain.NormaliseTicker(e.Metadata.Ticker)
		e.Metadata.Ticker = ticker
		part, ok := v.partitions[ticker]
		if !ok {
			part = make(map[string]domain.IndexEntry)
			v.partitions[ticker] = part
		}
		vec := make([]float32, len(e.Vector))
		copy(vec, e.Vector)
		e.Vector = vec
		part[e.ChunkID] = e
	}
	return nil
}

// Search scores every entry in the requested partition.
func (v *VectorIndex) Search(
	_ context.Context,
	query []float32,
	opts domain.SearchOptions,
) ([]domain.VectorHit, error) {
	if opts.Ticker == "" {
		return nil, domain.ErrInvalidInput
	}
	v.mu.RLock()
	part := v.partitions[domain.NormaliseTicker(opts.Ticker)]
	hits := make([]domain.VectorHit, 0, len(part))
	for id, e := range part {
		score := domain.CosineSimilarity(query, e.Vector)
		if score < opts.MinScore {
			continue
		}
		hits = append(hits, domain.VectorHit{ChunkID: id, Score: score, Metadata: e.Metadata})
	}
	v.mu.RUnlock()

	sort.Slice(hits, func(i, k int) bool {
		if hits[i].Score == hits[k].Score {
			return hits[i].ChunkID < hits[k].ChunkID
		}
		return hits[i].Score > hits[k].Score
	})
	if opts.TopK > 0 && len(hits) > opts.TopK {
		hits = hits[:opts.TopK]
	}
	return hits, nil
}

// DeleteByTicker drops a partition.
func (v *VectorIndex) DeleteByTicker(_ context.Context, ticker string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.partitions, domain.NormaliseTicker(ticker))
	return nil
}

// Count returns the number of entries for a ticker.
func (v *VectorIndex) Count(_ context.Context, ticker string) (int, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.partitions[domain.NormaliseTicker(ticker)]), nil
}

// Close is a no-op.
func (v *VectorIndex) Close() error {
	return nil
}
