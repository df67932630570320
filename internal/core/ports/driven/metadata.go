package driven

import (
	"context"

	"github.com/custodia-labs/sercha-filings/internal/core/domain"
)

// MetadataStore persists relational metadata for companies, documents, chunks and queries.
type MetadataStore interface {
	// SaveCompany stores or updates an issuer.
	SaveCompany(ctx context.Context, company domain.Company) error

	// SaveDocument stores or updates a document record by ID.
	SaveDocument(ctx context.Context, doc domain.DocumentRecord) error

	// GetDocument retrieves a document record by ID.
	GetDocument(ctx context.Context, id string) (*domain.DocumentRecord, error)

	// ListDocuments returns document records for a ticker.
	ListDocuments(ctx context.Context, ticker string) ([]domain.DocumentRecord, error)

	// SaveChunks stores chunks for a document, replacing chunks with the same IDs.
	SaveChunks(ctx context.Context, chunks []domain.Chunk) error

	// GetChunk retrieves a specific chunk by ID.
	GetChunk(ctx context.Context, id string) (*domain.Chunk, error)

	// LogQuery records an answered or failed query.
	LogQuery(ctx context.Context, entry domain.QueryLog) error
}
