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

// MetadataStore implements driven.MetadataStore over the companies,
// documents, chunks and query_logs tables.
type MetadataStore struct {
	store *Store
}

var _ driven.MetadataStore = (*MetadataStore)(nil)

// SaveCompany stores or updates an issuer.
func (s *MetadataStore) SaveCompany(ctx context.Context, company domain.Company) error {
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO companies (ticker, name, cik, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(ticker) DO UPDATE SET
			name = excluded.name,
			cik = excluded.cik,
			updated_at = excluded.updated_at
	`, domain.NormaliseTicker(company.Ticker), company.Name, company.CIK, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("saving company: %w", err)
	}
	return nil
}

// GetCompany returns a stored issuer.
func (s *MetadataStore) GetCompany(ctx context.Context, ticker string) (*domain.Company, error) {
	var c domain.Company
	err := s.store.db.QueryRowContext(ctx,
		"SELECT ticker, name, cik FROM companies WHERE ticker = ?",
		domain.NormaliseTicker(ticker)).Scan(&c.Ticker, &c.Name, &c.CIK)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning company: %w", err)
	}
	return &c, nil
}

// SaveDocument stores or updates a document record. CreatedAt is kept from
// the first save.
func (s *MetadataStore) SaveDocument(ctx context.Context, doc domain.DocumentRecord) error {
	now := time.Now()
	created := doc.CreatedAt
	if created.IsZero() {
		created = now
	}
	updated := doc.UpdatedAt
	if updated.IsZero() {
		updated = now
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO documents (id, job_id, ticker, accession_number, filing_type, filed_date, url,
			title, format, content_hash, status, error, total_chunks, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			job_id = excluded.job_id,
			filing_type = excluded.filing_type,
			filed_date = excluded.filed_date,
			url = excluded.url,
			title = excluded.title,
			format = excluded.format,
			content_hash = excluded.content_hash,
			status = excluded.status,
			error = excluded.error,
			total_chunks = excluded.total_chunks,
			updated_at = excluded.updated_at
	`, doc.ID, doc.JobID, domain.NormaliseTicker(doc.Ticker), doc.AccessionNumber,
		string(doc.FilingType), unixNano(doc.FiledDate), doc.URL, doc.Title, string(doc.Format),
		doc.ContentHash, string(doc.Status), nullString(doc.Error), doc.TotalChunks,
		created.UnixNano(), updated.UnixNano())
	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}
	return nil
}

const documentColumns = `id, job_id, ticker, accession_number, filing_type, filed_date, url,
	title, format, content_hash, status, error, total_chunks, created_at, updated_at`

// GetDocument retrieves a document record by ID.
func (s *MetadataStore) GetDocument(ctx context.Context, id string) (*domain.DocumentRecord, error) {
	row := s.store.db.QueryRowContext(ctx, "SELECT "+documentColumns+" FROM documents WHERE id = ?", id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return doc, err
}

// ListDocuments returns document records for a ticker, newest filing first.
func (s *MetadataStore) ListDocuments(ctx context.Context, ticker string) ([]domain.DocumentRecord, error) {
	rows, err := s.store.db.QueryContext(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE ticker = ? ORDER BY filed_date DESC, id ASC",
		domain.NormaliseTicker(ticker))
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.DocumentRecord //nolint:prealloc // size unknown from query
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return docs, nil
}

// SaveChunks stores chunks, replacing any with the same IDs.
func (s *MetadataStore) SaveChunks(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, document_id, chunk_index, section, page_number, content, token_estimate, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			document_id = excluded.document_id,
			chunk_index = excluded.chunk_index,
			section = excluded.section,
			page_number = excluded.page_number,
			content = excluded.content,
			token_estimate = excluded.token_estimate,
			metadata = excluded.metadata
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		var metadataJSON any
		if len(chunk.Metadata) > 0 {
			b, err := json.Marshal(chunk.Metadata)
			if err != nil {
				return fmt.Errorf("marshalling chunk metadata: %w", err)
			}
			metadataJSON = string(b)
		}

		var page any
		if chunk.PageNumber != nil {
			page = *chunk.PageNumber
		}

		if _, err := stmt.ExecContext(ctx, chunk.ID, chunk.DocumentID, chunk.ChunkIndex,
			string(chunk.Section), page, chunk.Text, chunk.TokenEstimate, metadataJSON); err != nil {
			return fmt.Errorf("saving chunk %s: %w", chunk.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

const chunkColumns = "id, document_id, chunk_index, section, page_number, content, token_estimate, metadata"

// GetChunk retrieves a specific chunk by ID.
func (s *MetadataStore) GetChunk(ctx context.Context, id string) (*domain.Chunk, error) {
	row := s.store.db.QueryRowContext(ctx, "SELECT "+chunkColumns+" FROM chunks WHERE id = ?", id)
	chunk, err := scanChunk(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return chunk, err
}

// ListChunks returns a document's chunks in order.
func (s *MetadataStore) ListChunks(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	rows, err := s.store.db.QueryContext(ctx,
		"SELECT "+chunkColumns+" FROM chunks WHERE document_id = ? ORDER BY chunk_index", documentID)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk //nolint:prealloc // size unknown from query
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, *chunk)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	return chunks, nil
}

// LogQuery records a query.
func (s *MetadataStore) LogQuery(ctx context.Context, entry domain.QueryLog) error {
	if entry.ID == "" {
		return fmt.Errorf("%w: query log id is required", domain.ErrInvalidInput)
	}
	created := entry.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO query_logs (id, question, question_hash, session_id, ticker, answer, latency_ms,
			chunks_retrieved, top_score, status, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.Question, entry.QuestionHash, nullString(entry.SessionID),
		domain.NormaliseTicker(entry.Ticker), entry.Answer, entry.LatencyMs, entry.ChunksRetrieved,
		entry.TopScore, entry.Status, nullString(entry.Error), created.UnixNano())
	if err != nil {
		return fmt.Errorf("logging query: %w", err)
	}
	return nil
}

// RecentQueries returns the newest query logs for a ticker.
func (s *MetadataStore) RecentQueries(ctx context.Context, ticker string, limit int) ([]domain.QueryLog, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, question, question_hash, session_id, ticker, answer, latency_ms,
			chunks_retrieved, top_score, status, error, created_at
		FROM query_logs WHERE ticker = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, domain.NormaliseTicker(ticker), limit)
	if err != nil {
		return nil, fmt.Errorf("querying query logs: %w", err)
	}
	defer rows.Close()

	var logs []domain.QueryLog //nolint:prealloc // size unknown from query
	for rows.Next() {
		var q domain.QueryLog
		var session, errMsg sql.NullString
		var created int64
		if err := rows.Scan(&q.ID, &q.Question, &q.QuestionHash, &session, &q.Ticker, &q.Answer,
			&q.LatencyMs, &q.ChunksRetrieved, &q.TopScore, &q.Status, &errMsg, &created); err != nil {
			return nil, fmt.Errorf("scanning query log: %w", err)
		}
		q.SessionID = session.String
		q.Error = errMsg.String
		q.CreatedAt = fromUnixNano(created)
		logs = append(logs, q)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating query logs: %w", err)
	}
	return logs, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*domain.DocumentRecord, error) {
	var doc domain.DocumentRecord
	var filingType, format, status string
	var errMsg sql.NullString
	var filed, created, updated int64

	if err := row.Scan(&doc.ID, &doc.JobID, &doc.Ticker, &doc.AccessionNumber, &filingType, &filed,
		&doc.URL, &doc.Title, &format, &doc.ContentHash, &status, &errMsg, &doc.TotalChunks,
		&created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}

	doc.FilingType = domain.FilingType(filingType)
	doc.Format = domain.DocumentFormat(format)
	doc.Status = domain.DocumentStatus(status)
	doc.Error = errMsg.String
	doc.FiledDate = fromUnixNano(filed)
	doc.CreatedAt = fromUnixNano(created)
	doc.UpdatedAt = fromUnixNano(updated)
	return &doc, nil
}

func scanChunk(row scanner) (*domain.Chunk, error) {
	var chunk domain.Chunk
	var section string
	var page sql.NullInt64
	var metadataJSON sql.NullString

	if err := row.Scan(&chunk.ID, &chunk.DocumentID, &chunk.ChunkIndex, &section, &page,
		&chunk.Text, &chunk.TokenEstimate, &metadataJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning chunk: %w", err)
	}

	chunk.Section = domain.SectionLabel(section)
	if page.Valid {
		p := int(page.Int64)
		chunk.PageNumber = &p
	}
	if metadataJSON.Valid && metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &chunk.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshalling chunk metadata: %w", err)
		}
	}
	return &chunk, nil
}
