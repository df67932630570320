package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/sercha-filings/internal/core/domain"
	"github.com/custodia-labs/sercha-filings/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-filings/internal/logger"
)

// DefaultEmbedBatchSize bounds chunks per embedding call.
const DefaultEmbedBatchSize = 32

// IndexItem is a chunk together with the document it came from.
type IndexItem struct {
	Chunk    domain.Chunk
	Document *domain.ParsedDocument
}

// IndexReport summarises one Index call.
type IndexReport struct {
	// Entries are the index entries written.
	Entries []domain.IndexEntry

	// Failed lists chunk IDs that could not be embedded or written.
	Failed []string
}

// IndexHooks lets the caller observe progress and stop between batches.
type IndexHooks struct {
	// OnBatch is called after each batch with the counts it produced.
	OnBatch func(indexed, failed int)

	// Checkpoint is called before each batch; a non-nil error stops indexing.
	Checkpoint func() error
}

// Indexer embeds chunks and writes them into the ticker partition of the vector index.
type Indexer struct {
	embedder  driven.EmbeddingService
	index     driven.VectorIndex
	batchSize int
}

// NewIndexer creates an indexer. Non-positive batch sizes use DefaultEmbedBatchSize.
func NewIndexer(embedder driven.EmbeddingService, index driven.VectorIndex, batchSize int) *Indexer {
	if batchSize <= 0 {
		batchSize = DefaultEmbedBatchSize
	}
	return &Indexer{embedder: embedder, index: index, batchSize: batchSize}
}

// Index embeds items in batches and upserts them tagged with ticker.
// A failed batch is retried once, then each of its chunks is embedded alone;
// chunks that still fail are reported in IndexReport.Failed and skipped.
func (ix *Indexer) Index(ctx context.Context, ticker string, items []IndexItem, hooks IndexHooks) (IndexReport, error) {
	var report IndexReport
	if ix.embedder == nil {
		return report, domain.ErrEmbeddingUnavailable
	}
	ticker = domain.NormaliseTicker(ticker)

	for start := 0; start < len(items); start += ix.batchSize {
		if hooks.Checkpoint != nil {
			if err := hooks.Checkpoint(); err != nil {
				return report, err
			}
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}

		end := min(start+ix.batchSize, len(items))
		batch := items[start:end]

		entries, failed := ix.embedBatch(ctx, ticker, batch)
		if len(entries) > 0 {
			if err := ix.index.Upsert(ctx, entries); err != nil {
				logger.Warn("Upserting %d vectors for %s: %v", len(entries), ticker, err)
				for _, e := range entries {
					failed = append(failed, e.ChunkID)
				}
				entries = nil
			}
		}

		report.Entries = append(report.Entries, entries...)
		report.Failed = append(report.Failed, failed...)
		if hooks.OnBatch != nil {
			hooks.OnBatch(len(entries), len(failed))
		}
	}

	return report, nil
}

// embedBatch embeds one batch with the batch-then-item retry policy.
func (ix *Indexer) embedBatch(ctx context.Context, ticker string, batch []IndexItem) ([]domain.IndexEntry, []string) {
	texts := make([]string, len(batch))
	for i := range batch {
		texts[i] = batch[i].Chunk.Text
	}

	vectors, err := ix.tryBatch(ctx, texts)
	if err != nil {
		logger.Debug("Embedding batch of %d failed, retrying: %v", len(batch), err)
		vectors, err = ix.tryBatch(ctx, texts)
	}
	if err == nil {
		entries := make([]domain.IndexEntry, len(batch))
		for i := range batch {
			entries[i] = entryFor(ticker, batch[i], vectors[i])
		}
		return entries, nil
	}

	logger.Debug("Embedding batch failed twice, falling back to per-chunk: %v", err)
	var entries []domain.IndexEntry
	var failed []string
	for i := range batch {
		vec, err := ix.embedder.Embed(ctx, texts[i])
		if err == nil && len(vec) == 0 {
			err = errors.New("empty embedding")
		}
		if err != nil {
			logger.Warn("Embedding chunk %s: %v", batch[i].Chunk.ID, err)
			failed = append(failed, batch[i].Chunk.ID)
			continue
		}
		entries = append(entries, entryFor(ticker, batch[i], vec))
	}
	return entries, failed
}

// tryBatch calls EmbedBatch and validates the result shape.
func (ix *Indexer) tryBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := ix.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(vectors), len(texts))
	}
	for i, v := range vectors {
		if len(v) == 0 {
			return nil, fmt.Errorf("empty embedding at position %d", i)
		}
	}
	return vectors, nil
}

// entryFor builds the index entry for an embedded chunk.
func entryFor(ticker string, item IndexItem, vec []float32) domain.IndexEntry {
	meta := domain.IndexMetadata{
		Ticker:     ticker,
		Section:    item.Chunk.Section,
		DocumentID: item.Chunk.DocumentID,
	}
	if item.Document != nil {
		meta.FilingType = item.Document.FilingType
		meta.FiledDate = item.Document.FiledDate
	}
	return domain.IndexEntry{ChunkID: item.Chunk.ID, Vector: vec, Metadata: meta}
}
