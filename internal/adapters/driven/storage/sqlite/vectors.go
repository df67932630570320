package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/custodia-labs/sercha-filings/internal/core/domain"
	"github.com/custodia-labs/sercha-filings/internal/core/ports/driven"
)

// vectorIndex implements driven.VectorIndex over chunk_vectors.
// Search loads one ticker partition and scores it in Go.
type vectorIndex struct {
	store *Store
}

var _ driven.VectorIndex = (*vectorIndex)(nil)

// Upsert writes entries, overwriting rows with the same chunk ID.
func (v *vectorIndex) Upsert(ctx context.Context, entries []domain.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := v.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunk_vectors (chunk_id, ticker, document_id, filing_type, filed_date, section, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(chunk_id) DO UPDATE SET
			ticker = excluded.ticker,
			document_id = excluded.document_id,
			filing_type = excluded.filing_type,
			filed_date = excluded.filed_date,
			section = excluded.section,
			embedding = excluded.embedding
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if e.ChunkID == "" || e.Metadata.Ticker == "" {
			return fmt.Errorf("%w: vector entry needs a chunk id and ticker", domain.ErrInvalidInput)
		}
		if len(e.Vector) == 0 {
			return fmt.Errorf("%w: empty vector for %s", domain.ErrInvalidInput, e.ChunkID)
		}
		m := e.Metadata
		if _, err := stmt.ExecContext(ctx, e.ChunkID, domain.NormaliseTicker(m.Ticker), m.DocumentID,
			string(m.FilingType), unixNano(m.FiledDate), string(m.Section),
			encodeVector(e.Vector)); err != nil {
			return fmt.Errorf("saving vector %s: %w", e.ChunkID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Search scores every vector in the requested partition.
func (v *vectorIndex) Search(
	ctx context.Context,
	query []float32,
	opts domain.SearchOptions,
) ([]domain.VectorHit, error) {
	if opts.Ticker == "" {
		return nil, domain.ErrInvalidInput
	}

	rows, err := v.store.db.QueryContext(ctx, `
		SELECT chunk_id, ticker, document_id, filing_type, filed_date, section, embedding
		FROM chunk_vectors WHERE ticker = ?
	`, domain.NormaliseTicker(opts.Ticker))
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	hits := []domain.VectorHit{}
	for rows.Next() {
		var hit domain.VectorHit
		var filingType, section string
		var filed sql.NullInt64
		var blob []byte
		if err := rows.Scan(&hit.ChunkID, &hit.Metadata.Ticker, &hit.Metadata.DocumentID,
			&filingType, &filed, &section, &blob); err != nil {
			return nil, fmt.Errorf("scanning vector: %w", err)
		}
		hit.Score = domain.CosineSimilarity(query, decodeVector(blob))
		if hit.Score < opts.MinScore {
			continue
		}
		hit.Metadata.FilingType = domain.FilingType(filingType)
		hit.Metadata.Section = domain.SectionLabel(section)
		hit.Metadata.FiledDate = fromUnixNano(filed.Int64)
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating vectors: %w", err)
	}

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

// DeleteByTicker removes a partition.
func (v *vectorIndex) DeleteByTicker(ctx context.Context, ticker string) error {
	_, err := v.store.db.ExecContext(ctx, "DELETE FROM chunk_vectors WHERE ticker = ?", domain.NormaliseTicker(ticker))
	if err != nil {
		return fmt.Errorf("deleting vectors: %w", err)
	}
	return nil
}

// Count returns the number of vectors for a ticker.
func (v *vectorIndex) Count(ctx context.Context, ticker string) (int, error) {
	var n int
	err := v.store.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM chunk_vectors WHERE ticker = ?", domain.NormaliseTicker(ticker)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting vectors: %w", err)
	}
	return n, nil
}

// Close is a no-op; the owning Store closes the database.
func (v *vectorIndex) Close() error {
	return nil
}
