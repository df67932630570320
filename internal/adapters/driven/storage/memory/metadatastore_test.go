package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-filings/internal/core/domain"
)

func TestMetadataStore_Documents(t *testing.T) {
	store := NewMetadataStore()
	ctx := context.Background()
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	older := domain.DocumentRecord{
		ID: "ACME-1", Ticker: "ACME", FiledDate: time.Date(2022, 2, 1, 0, 0, 0, 0, time.UTC),
		Status: domain.DocumentParsed, CreatedAt: created,
	}
	newer := domain.DocumentRecord{
		ID: "ACME-2", Ticker: "ACME", FiledDate: time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC),
		Status: domain.DocumentIndexed,
	}
	other := domain.DocumentRecord{ID: "BETA-1", Ticker: "BETA"}

	for _, d := range []domain.DocumentRecord{older, newer, other} {
		require.NoError(t, store.SaveDocument(ctx, d))
	}

	docs, err := store.ListDocuments(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "ACME-2", docs[0].ID)
	assert.Equal(t, "ACME-1", docs[1].ID)

	// status update keeps the original creation time
	older.Status = domain.DocumentIndexed
	older.CreatedAt = created.Add(time.Hour)
	require.NoError(t, store.SaveDocument(ctx, older))
	got, err := store.GetDocument(ctx, "ACME-1")
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentIndexed, got.Status)
	assert.Equal(t, created, got.CreatedAt)

	_, err = store.GetDocument(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMetadataStore_ChunksAndCompanies(t *testing.T) {
	store := NewMetadataStore()
	ctx := context.Background()

	require.NoError(t, store.SaveCompany(ctx, domain.Company{Ticker: "ACME", Name: "Acme Corp", CIK: "0000000001"}))
	c, ok := store.Company("acme")
	require.True(t, ok)
	assert.Equal(t, "Acme Corp", c.Name)

	chunks := []domain.Chunk{
		{ID: "ACME-1:0000", DocumentID: "ACME-1", Text: "first"},
		{ID: "ACME-1:0001", DocumentID: "ACME-1", Text: "second"},
	}
	require.NoError(t, store.SaveChunks(ctx, chunks))

	got, err := store.GetChunk(ctx, "ACME-1:0001")
	require.NoError(t, err)
	assert.Equal(t, "second", got.Text)

	_, err = store.GetChunk(ctx, "ACME-1:0009")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMetadataStore_LogQuery(t *testing.T) {
	store := NewMetadataStore()
	ctx := context.Background()

	require.NoError(t, store.LogQuery(ctx, domain.QueryLog{ID: "q1", Ticker: "ACME", Status: domain.QueryStatusAnswered}))
	require.NoError(t, store.LogQuery(ctx, domain.QueryLog{ID: "q2", Ticker: "ACME", Status: domain.QueryStatusInsufficient}))

	logs := store.Queries()
	require.Len(t, logs, 2)
	assert.Equal(t, "q1", logs[0].ID)
	assert.Equal(t, domain.QueryStatusInsufficient, logs[1].Status)
}
