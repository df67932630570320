package cli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-filings/internal/core/domain"
)

func setupQueryTest(t *testing.T, m *mockQueryService) {
	t.Helper()
	resetFlags()
	restore := installServices(&Services{Query: m})
	t.Cleanup(func() {
		restore()
		resetFlags()
	})
}

func TestQueryCmd_PrintsAnswerAndCitations(t *testing.T) {
	m := &mockQueryService{result: &domain.QueryResult{
		Answer: "Supply concentration in a single region [1].",
		Citations: []domain.Citation{{
			ChunkID:        "c1",
			FilingType:     domain.FilingType10K,
			FiledDate:      time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC),
			Section:        domain.SectionRiskFactors,
			Excerpt:        "We depend on a limited number of suppliers.",
			RelevanceScore: 0.91,
		}},
		RelatedQuestions: []string{"How are suppliers diversified?"},
	}}
	setupQueryTest(t, m)

	out, err := execute("query", "ACME", "What", "are", "the", "supply", "risks?", "--session", "s1")

	require.NoError(t, err)
	assert.Equal(t, "ACME", m.last.Ticker)
	assert.Equal(t, "What are the supply risks?", m.last.Question)
	assert.Equal(t, "s1", m.last.SessionID)
	assert.Contains(t, out, "Supply concentration")
	assert.Contains(t, out, "[1] 10-K 2025-11-01")
	assert.Contains(t, out, "(0.91)")
	assert.Contains(t, out, "limited number of suppliers")
	assert.Contains(t, out, "How are suppliers diversified?")
}

func TestQueryCmd_JSON(t *testing.T) {
	setupQueryTest(t, &mockQueryService{result: &domain.QueryResult{Answer: "Yes.", LatencyMs: 12}})

	out, err := execute("query", "ACME", "Is it profitable?", "--json")

	require.NoError(t, err)
	assert.Contains(t, out, `"answer": "Yes."`)
	assert.Contains(t, out, `"latency_ms": 12`)
}

func TestQueryCmd_NotReady(t *testing.T) {
	setupQueryTest(t, &mockQueryService{err: domain.ErrNotReady})

	_, err := execute("query", "ACME", "anything")

	assert.ErrorIs(t, err, domain.ErrNotReady)
}

func TestQueryCmd_RequiresQuestion(t *testing.T) {
	setupQueryTest(t, &mockQueryService{})

	_, err := execute("query", "ACME")

	assert.Error(t, err)
}

func TestQueryCmd_ServiceNotConfigured(t *testing.T) {
	resetFlags()
	restore := installServices(nil)
	defer restore()

	_, err := execute("query", "ACME", "question")

	assert.ErrorIs(t, err, errQueryUnavailable)
}
