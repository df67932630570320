package postprocessors

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-filings/internal/core/domain"
)

const testDocID = "ACME-0000000001-24-000001"

// stubStage returns fixed chunks, or passes its input through when chunks is nil.
type stubStage struct {
	name   string
	chunks []domain.Chunk
	err    error
	seen   []domain.Chunk
}

func (s *stubStage) Name() string { return s.name }

func (s *stubStage) Process(_ context.Context, _ *domain.ParsedDocument, in []domain.Chunk) ([]domain.Chunk, error) {
	s.seen = in
	if s.err != nil {
		return nil, s.err
	}
	if s.chunks != nil {
		return s.chunks, nil
	}
	return in, nil
}

func chunk(i int, text string) domain.Chunk {
	return domain.Chunk{ID: domain.ChunkID(testDocID, i), DocumentID: testDocID, ChunkIndex: i, Text: text}
}

func testDoc() *domain.ParsedDocument {
	return &domain.ParsedDocument{ID: testDocID, Ticker: "ACME", Text: "Revenue grew."}
}

func TestPipeline_NilDocument(t *testing.T) {
	_, err := NewPipeline().Process(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestPipeline_Empty(t *testing.T) {
	p := NewPipeline()

	chunks, err := p.Process(context.Background(), testDoc())

	require.NoError(t, err)
	assert.Nil(t, chunks)
	assert.Zero(t, p.Len())
}

func TestPipeline_StagesSeePreviousOutput(t *testing.T) {
	first := &stubStage{name: "split", chunks: []domain.Chunk{chunk(0, "a")}}
	second := &stubStage{name: "rewrite", chunks: []domain.Chunk{chunk(0, "a2"), chunk(1, "b")}}
	third := &stubStage{name: "tag"}
	p := NewPipeline(first, second, third)

	chunks, err := p.Process(context.Background(), testDoc())

	require.NoError(t, err)
	assert.Nil(t, first.seen)
	assert.Equal(t, first.chunks, second.seen)
	assert.Equal(t, second.chunks, chunks)
	assert.Equal(t, []string{"split", "rewrite", "tag"}, p.Names())
}

func TestPipeline_StageErrorNamesStage(t *testing.T) {
	boom := errors.New("boom")
	p := NewPipeline(&stubStage{name: "chunker", err: boom})

	_, err := p.Process(context.Background(), testDoc())

	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "chunker: boom")
}

func TestPipeline_RejectsForeignChunks(t *testing.T) {
	foreign := chunk(0, "x")
	foreign.DocumentID = "OTHER-1"
	p := NewPipeline(&stubStage{name: "bad", chunks: []domain.Chunk{foreign}})

	_, err := p.Process(context.Background(), testDoc())

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.ErrorContains(t, err, `belongs to "OTHER-1"`)
}

func TestPipeline_RejectsDuplicateIDs(t *testing.T) {
	p := NewPipeline(&stubStage{name: "dup", chunks: []domain.Chunk{chunk(0, "a"), chunk(0, "b")}})

	_, err := p.Process(context.Background(), testDoc())

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.ErrorContains(t, err, "duplicate chunk id")
}

func TestPipeline_StopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	stage := &stubStage{name: "never", chunks: []domain.Chunk{chunk(0, "a")}}

	_, err := NewPipeline(stage).Process(ctx, testDoc())

	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, stage.seen)
}

func TestNewDefaultPipeline(t *testing.T) {
	p := NewDefaultPipeline(domain.DefaultAppSettings().Chunker)
	require.Equal(t, []string{"chunker", "classifier"}, p.Names())

	doc := &domain.ParsedDocument{
		ID:     testDocID,
		Ticker: "ACME",
		Sections: []domain.Section{
			{Label: domain.SectionManagementDiscussion, Text: "Revenue grew 12% to $4.2 billion. Margins held steady."},
			{Label: domain.SectionFinancialStatements, Text: "Revenue | $4,200 | $3,750\nNet income | $610 | $540"},
		},
	}

	chunks, err := p.Process(context.Background(), doc)
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	for i, c := range chunks {
		assert.Equal(t, i, c.ChunkIndex)
		assert.Equal(t, true, c.Metadata["is_financial_data"], "chunk %d", i)
	}
	assert.Equal(t, false, chunks[0].Metadata["is_table"])
	assert.Equal(t, true, chunks[1].Metadata["is_table"])
}
