package chunker

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-filings/internal/core/domain"
)

func numbered(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("Sentence number %02d.", i+1)
	}
	return out
}

func docWith(sections ...domain.Section) *domain.ParsedDocument {
	return &domain.ParsedDocument{ID: "ACME-0000000001-24-000001", Ticker: "ACME", Sections: sections}
}

func TestNew(t *testing.T) {
	p := New()
	assert.Equal(t, DefaultTargetSize, p.targetSize)
	assert.Equal(t, DefaultMaxSize, p.maxSize)
	assert.Equal(t, DefaultOverlapSentences, p.overlap)
	assert.Equal(t, "chunker", p.Name())

	p = New(WithTargetSize(500), WithMaxSize(100), WithOverlapSentences(0))
	assert.Equal(t, 500, p.targetSize)
	assert.Equal(t, 500, p.maxSize, "max is raised to the target")
	assert.Zero(t, p.overlap)

	p = New(WithTargetSize(-1), WithOverlapSentences(-3))
	assert.Equal(t, DefaultTargetSize, p.targetSize)
	assert.Equal(t, DefaultOverlapSentences, p.overlap)

	p = New(FromSettings(domain.DefaultAppSettings().Chunker)...)
	assert.Equal(t, 1000, p.targetSize)
	assert.Equal(t, 4000, p.maxSize)
	assert.Equal(t, 2, p.overlap)
}

func TestChunk_Empty(t *testing.T) {
	chunks, err := New().Chunk(context.Background(), docWith())
	require.NoError(t, err)
	assert.Empty(t, chunks)

	_, err = New().Chunk(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestChunk_ShortSectionIsSingleChunk(t *testing.T) {
	doc := docWith(domain.Section{
		Label: domain.SectionRiskFactors,
		Title: "Item 1A. Risk Factors",
		Text:  "Competition is intense. Margins may fall.",
	})

	chunks, err := New().Chunk(context.Background(), doc)
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	c := chunks[0]
	assert.Equal(t, domain.ChunkID(doc.ID, 0), c.ID)
	assert.Equal(t, doc.ID, c.DocumentID)
	assert.Equal(t, domain.SectionRiskFactors, c.Section)
	assert.Equal(t, "Competition is intense. Margins may fall.", c.Text)
	assert.Equal(t, domain.EstimateTokens(c.Text), c.TokenEstimate)
	assert.Equal(t, 6, c.Metadata["word_count"])
	assert.Equal(t, 41, c.Metadata["character_count"])
	assert.Equal(t, "Item 1A. Risk Factors", c.Metadata["section_title"])
}

func TestChunk_SentenceOverlap(t *testing.T) {
	doc := docWith(domain.Section{Label: domain.SectionOther, Text: strings.Join(numbered(5), " ")})
	p := New(WithTargetSize(50), WithMaxSize(200), WithOverlapSentences(1))

	chunks, err := p.Chunk(context.Background(), doc)
	require.NoError(t, err)

	got := make([]string, len(chunks))
	for i, c := range chunks {
		got[i] = c.Text
		assert.Equal(t, i, c.ChunkIndex)
	}
	assert.Equal(t, []string{
		"Sentence number 01. Sentence number 02.",
		"Sentence number 02. Sentence number 03.",
		"Sentence number 03. Sentence number 04.",
		"Sentence number 04. Sentence number 05.",
	}, got)
}

func TestChunk_LongSentencesStillOverlap(t *testing.T) {
	clause := strings.Repeat("supply chain disruption could materially harm our results ", 10)
	sentences := make([]string, 6)
	for i := range sentences {
		sentences[i] = fmt.Sprintf("Risk %02d: %s.", i+1, strings.TrimSpace(clause))
		require.Greater(t, utf8.RuneCountInString(sentences[i]), DefaultTargetSize/2)
	}
	doc := docWith(domain.Section{Label: domain.SectionRiskFactors, Text: strings.Join(sentences, " ")})

	chunks, err := New().Chunk(context.Background(), doc)
	require.NoError(t, err)
	require.Len(t, chunks, 6)

	for i := 1; i < len(chunks); i++ {
		head := string([]rune(chunks[i].Text)[:60])
		assert.Contains(t, chunks[i-1].Text, head, "chunks %d/%d share no text", i-1, i)
		assert.Contains(t, chunks[i].Text, sentences[i], "chunk %d holds its own sentence", i)
		assert.LessOrEqual(t, utf8.RuneCountInString(chunks[i].Text), DefaultMaxSize)
	}
}

func TestFitTail(t *testing.T) {
	assert.Equal(t, []string{"Two.", "Three."}, fitTail([]string{"One.", "Two.", "Three."}, 11))
	assert.Equal(t, []string{"harm results."}, fitTail([]string{"Disruption could harm results."}, 14))
	assert.Nil(t, fitTail([]string{"Unbelievably."}, 5))
	assert.Nil(t, fitTail([]string{"Anything."}, 0))
	assert.Equal(t, "c d", tailWords("a b c d", 3))
	assert.Equal(t, "", tailWords("abcdef", 3))
}

func TestChunk_NoOverlap(t *testing.T) {
	doc := docWith(domain.Section{Label: domain.SectionOther, Text: strings.Join(numbered(4), " ")})
	p := New(WithTargetSize(50), WithOverlapSentences(0))

	chunks, err := p.Chunk(context.Background(), doc)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "Sentence number 03. Sentence number 04.", chunks[1].Text)
}

func TestChunk_NeverSplitsMidSentence(t *testing.T) {
	sentences := numbered(40)
	doc := docWith(domain.Section{Label: domain.SectionOther, Text: strings.Join(sentences, " ")})

	chunks, err := New(WithTargetSize(120), WithOverlapSentences(2)).Chunk(context.Background(), doc)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	for _, c := range chunks {
		assert.True(t, strings.HasPrefix(c.Text, "Sentence number "), c.Text)
		assert.True(t, strings.HasSuffix(c.Text, "."), c.Text)
		assert.LessOrEqual(t, utf8.RuneCountInString(c.Text), 120)
	}
	// every sentence survives
	joined := ""
	for _, c := range chunks {
		joined += " " + c.Text
	}
	for _, s := range sentences {
		assert.Contains(t, joined, s)
	}
}

func TestChunk_IndexRunsAcrossSections(t *testing.T) {
	doc := docWith(
		domain.Section{Label: domain.SectionRiskFactors, Text: strings.Join(numbered(4), " ")},
		domain.Section{Label: domain.SectionFinancialStatements, Text: "Revenue | $4,200\nNet income | $610"},
	)

	chunks, err := New(WithTargetSize(50), WithOverlapSentences(0)).Chunk(context.Background(), doc)
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	assert.Equal(t, domain.SectionRiskFactors, chunks[1].Section)
	assert.Equal(t, domain.SectionFinancialStatements, chunks[2].Section)
	assert.Equal(t, 2, chunks[2].ChunkIndex)
	assert.Equal(t, domain.ChunkID(doc.ID, 2), chunks[2].ID)
	assert.Equal(t, "Revenue | $4,200 Net income | $610", chunks[2].Text)
}

func TestChunk_OverlongSentenceIsHardSplit(t *testing.T) {
	words := make([]string, 30)
	for i := range words {
		words[i] = fmt.Sprintf("word%02d", i)
	}
	long := strings.Join(words, " ")
	doc := docWith(domain.Section{Label: domain.SectionOther, Text: long})

	chunks, err := New(WithTargetSize(20), WithMaxSize(30), WithOverlapSentences(0)).Chunk(context.Background(), doc)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	var rebuilt []string
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c.Text), 30)
		rebuilt = append(rebuilt, strings.Fields(c.Text)...)
	}
	assert.Equal(t, words, rebuilt)
}

func TestChunk_FallsBackToDocumentText(t *testing.T) {
	doc := &domain.ParsedDocument{ID: "ACME-1", Text: "Dividend declared."}
	chunks, err := New().Chunk(context.Background(), doc)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, domain.SectionOther, chunks[0].Section)
}

func TestChunk_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New().Chunk(ctx, docWith(domain.Section{Label: domain.SectionOther, Text: "x"}))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProcess_IgnoresInputChunks(t *testing.T) {
	doc := docWith(domain.Section{Label: domain.SectionOther, Text: "One. Two."})
	chunks, err := New().Process(context.Background(), doc, []domain.Chunk{{ID: "stale"}})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.NotEqual(t, "stale", chunks[0].ID)
}

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"Revenue rose 5%. Net income fell. U.S. sales grew.", []string{"Revenue rose 5%.", "Net income fell.", "U.S. sales grew."}},
		{`He said "Stop." Then left.`, []string{`He said "Stop."`, "Then left."}},
		{"Total was $4.2 billion. 2024 was strong!", []string{"Total was $4.2 billion.", "2024 was strong!"}},
		{"No terminal punctuation", []string{"No terminal punctuation"}},
		{"   ", nil},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, splitSentences(tt.in))
		})
	}
}

func TestHardSplit(t *testing.T) {
	assert.Equal(t, []string{"abcde", "fghij", "k lm"}, hardSplit("abcdefghijk lm", 5))
	assert.Equal(t, []string{"one two", "three"}, hardSplit("one two three", 7))
}
