package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/sercha-filings/internal/core/domain"
	"github.com/custodia-labs/sercha-filings/internal/core/ports/driven"
)

// Ensure MetadataStore implements the interface.
var _ driven.MetadataStore = (*MetadataStore)(nil)

// MetadataStore is an in-memory implementation of driven.MetadataStore.
type MetadataStore struct {
	mu        sync.RWMutex
	companies map[string]domain.Company
	documents map[string]domain.DocumentRecord
	chunks    map[string]domain.Chunk
	queries   []domain.QueryLog
}

// NewMetadataStore creates a new in-memory metadata store.
func NewMetadataStore() *MetadataStore {
	return &MetadataStore{
		companies: make(map[string]domain.Company),
		documents: make(map[string]domain.DocumentRecord),
		chunks:    make(map[string]domain.Chunk),
	}
}

// SaveCompany stores or updates an issuer.
func (s *MetadataStore) SaveCompany(_ context.Context, company domain.Company) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.companies[domain.NormaliseTicker(company.Ticker)] = company
	return nil
}

// Company returns a stored issuer.
func (s *MetadataStore) Company(ticker string) (domain.Company, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.companies[domain.NormaliseTicker(ticker)]
	return c, ok
}

// SaveDocument stores or updates a document record.
func (s *MetadataStore) SaveDocument(_ context.Context, doc domain.DocumentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.documents[doc.ID]; ok && !existing.CreatedAt.IsZero() {
		doc.CreatedAt = existing.CreatedAt
	}
	s.documents[doc.ID] = doc
	return nil
}

// GetDocument retrieves a document record by ID.
func (s *MetadataStore) GetDocument(_ context.Context, id string) (*domain.DocumentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &doc, nil
}

// ListDocuments returns document records for a ticker, newest filing first.
func (s *MetadataStore) ListDocuments(_ context.Context, ticker string) ([]domain.DocumentRecord, error) {
	ticker = domain.NormaliseTicker(ticker)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var docs []domain.DocumentRecord
	for _, d := range s.documents {
		if d.Ticker == ticker {
			docs = append(docs, d)
		}
	}
	sort.Slice(docs, func(i, k int) bool {
		if docs[i].FiledDate.Equal(docs[k].FiledDate) {
			return docs[i].ID < docs[k].ID
		}
		return docs[i].FiledDate.After(docs[k].FiledDate)
	})
	return docs, nil
}

// SaveChunks stores chunks, replacing any with the same IDs.
func (s *MetadataStore) SaveChunks(_ context.Context, chunks []domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range chunks {
		s.chunks[c.ID] = c
	}
	return nil
}

// GetChunk retrieves a specific chunk by ID.
func (s *MetadataStore) GetChunk(_ context.Context, id string) (*domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chunks[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &c, nil
}

// LogQuery records a query.
func (s *MetadataStore) LogQuery(_ context.Context, entry domain.QueryLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, entry)
	return nil
}

// Queries returns the logged queries in insertion order.
func (s *MetadataStore) Queries() []domain.QueryLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.QueryLog, len(s.queries))
	copy(out, s.queries)
	return out
}
