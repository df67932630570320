package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-filings/internal/core/domain"
)

func setupStatusTest(t *testing.T, m *mockIngestionService) {
	t.Helper()
	resetFlags()
	restore := installServices(&Services{Ingestion: m})
	t.Cleanup(func() {
		restore()
		resetFlags()
	})
}

func TestStatusCmd_ByTicker(t *testing.T) {
	job := sampleJob(domain.PhaseParsing)
	job.Progress = 30
	job.DocumentsFound = 10
	job.DocumentsProcessed = 2
	m := &mockIngestionService{statuses: []*domain.ProcessingJob{job}}
	setupStatusTest(t, m)

	out, err := execute("status", "acme")

	require.NoError(t, err)
	assert.Equal(t, "acme", m.lastTicker)
	assert.Contains(t, out, "Phase:      parsing")
	assert.Contains(t, out, "Progress:   30%")
	assert.Contains(t, out, "10 found, 2 processed")
}

func TestStatusCmd_ByJobID(t *testing.T) {
	m := &mockIngestionService{statuses: []*domain.ProcessingJob{sampleJob(domain.PhaseComplete)}}
	setupStatusTest(t, m)

	out, err := execute("status", "--job", "job-1", "--json")

	require.NoError(t, err)
	assert.Equal(t, "job-1", m.lastJobID)
	assert.Contains(t, out, `"job_id": "job-1"`)
	assert.Contains(t, out, `"phase": "complete"`)
}

func TestStatusCmd_RequiresTickerOrJob(t *testing.T) {
	setupStatusTest(t, &mockIngestionService{})

	_, err := execute("status")

	assert.ErrorIs(t, err, errTickerOrJob)
}

func TestStatusCmd_NotFound(t *testing.T) {
	setupStatusTest(t, &mockIngestionService{})

	_, err := execute("status", "NONE")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no processing job found")
}

func TestStatusCmd_ShowsCancellation(t *testing.T) {
	job := sampleJob(domain.PhaseError)
	job.Cancelled = true
	job.FailedPhase = domain.PhaseVectorizing
	setupStatusTest(t, &mockIngestionService{statuses: []*domain.ProcessingJob{job}})

	out, err := execute("status", "ACME")

	require.NoError(t, err)
	assert.Contains(t, out, "Cancelled:  during vectorizing")
}

func TestCancelCmd_ByTicker(t *testing.T) {
	m := &mockIngestionService{}
	setupStatusTest(t, m)

	out, err := execute("cancel", "ACME")

	require.NoError(t, err)
	assert.True(t, m.cancelCalled)
	assert.Equal(t, "ACME", m.lastTicker)
	assert.Contains(t, out, "Cancellation requested.")
}

func TestCancelCmd_ByJobID(t *testing.T) {
	m := &mockIngestionService{}
	setupStatusTest(t, m)

	_, err := execute("cancel", "--job", "job-9")

	require.NoError(t, err)
	assert.Equal(t, "job-9", m.lastJobID)
}

func TestCancelCmd_Error(t *testing.T) {
	setupStatusTest(t, &mockIngestionService{err: domain.ErrNotFound})

	_, err := execute("cancel", "ACME")

	assert.ErrorIs(t, err, domain.ErrNotFound)
}
