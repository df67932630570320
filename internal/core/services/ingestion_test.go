package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-filings/internal/core/domain"
	"github.com/custodia-labs/sercha-filings/internal/core/ports/driving"
)

func assertNoRegression(t *testing.T, history []domain.ProcessingJob) {
	t.Helper()
	require.NotEmpty(t, history)
	lastIdx, lastProgress := -1, -1.0
	for i, j := range history {
		assert.True(t, j.CountersConsistent(), "snapshot %d has inconsistent counters: %+v", i, j)
		if j.Phase == domain.PhaseError {
			continue
		}
		assert.GreaterOrEqual(t, j.Phase.Index(), lastIdx, "phase regressed at snapshot %d", i)
		assert.GreaterOrEqual(t, j.Progress, lastProgress, "progress regressed at snapshot %d", i)
		lastIdx, lastProgress = j.Phase.Index(), j.Progress
	}
}

func TestIngestion_CompletesWithOneParseFailure(t *testing.T) {
	h := newTestHarness(12)
	h.parsers.failOn[accession(5)] = true
	ctx := context.Background()

	job, err := h.svc.Submit(ctx, driving.SubmitRequest{Ticker: "acme", TimeRangeYears: 3})
	require.NoError(t, err)
	assert.Equal(t, "ACME", job.Ticker)
	assert.Equal(t, domain.PhaseScraping, job.Phase)

	final, err := h.wait(ctx, job.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.PhaseComplete, final.Phase)
	assert.InDelta(t, 100.0, final.Progress, 1e-9)
	assert.Equal(t, 12, final.DocumentsFound)
	assert.Equal(t, 11, final.DocumentsProcessed)
	assert.Equal(t, 1, final.DocumentsFailed)
	assert.Equal(t, 22, final.ChunksCreated)
	assert.Equal(t, 22, final.ChunksVectorized)
	assert.Zero(t, final.ChunksFailed)
	assert.NotNil(t, final.CompletedAt)
	assert.Nil(t, final.EstimatedTimeRemaining)
	assert.Equal(t, final.DocumentsFound, final.DocumentsProcessed+final.DocumentsFailed)

	assertNoRegression(t, h.jobs.history(job.ID))

	n, err := h.index.Count(ctx, "ACME")
	require.NoError(t, err)
	assert.Equal(t, 22, n)

	docs, err := h.metadata.ListDocuments(ctx, "ACME")
	require.NoError(t, err)
	require.Len(t, docs, 12)
	statuses := map[domain.DocumentStatus]int{}
	for _, d := range docs {
		statuses[d.Status]++
	}
	assert.Equal(t, 11, statuses[domain.DocumentIndexed])
	assert.Equal(t, 1, statuses[domain.DocumentFailed])

	company, ok := h.metadata.Company("ACME")
	require.True(t, ok)
	assert.Equal(t, "Acme Corp", company.Name)
}

func TestIngestion_SubmitIsIdempotentWhileRunning(t *testing.T) {
	h := newTestHarness(3)
	started, release := h.retriever.holdListings()
	defer release()
	ctx := context.Background()

	first, err := h.svc.Submit(ctx, driving.SubmitRequest{Ticker: "ACME", TimeRangeYears: 1})
	require.NoError(t, err)
	<-started

	second, err := h.svc.Submit(ctx, driving.SubmitRequest{Ticker: " acme ", TimeRangeYears: 1})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	// a different range is a different identity
	other, err := h.svc.Submit(ctx, driving.SubmitRequest{Ticker: "ACME", TimeRangeYears: 5})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)

	release()
	final, err := h.wait(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseComplete, final.Phase)
	_, err = h.wait(ctx, other.ID)
	require.NoError(t, err)
}

func TestIngestion_CompleteJobReusedUnlessForced(t *testing.T) {
	h := newTestHarness(2)
	ctx := context.Background()

	first, err := h.svc.Submit(ctx, driving.SubmitRequest{Ticker: "ACME", TimeRangeYears: 3})
	require.NoError(t, err)
	_, err = h.wait(ctx, first.ID)
	require.NoError(t, err)

	again, err := h.svc.Submit(ctx, driving.SubmitRequest{Ticker: "ACME", TimeRangeYears: 3})
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, domain.PhaseComplete, again.Phase)

	forced, err := h.svc.Submit(ctx, driving.SubmitRequest{Ticker: "ACME", TimeRangeYears: 3, Force: true})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, forced.ID)
	final, err := h.wait(ctx, forced.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseComplete, final.Phase)

	// re-indexing overwrites by chunk ID
	n, err := h.index.Count(ctx, "ACME")
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestIngestion_CancelDuringChunking(t *testing.T) {
	h := newTestHarness(6, WithWorkers(1))
	started, release := h.pipeline.hold()
	ctx := context.Background()

	job, err := h.svc.Submit(ctx, driving.SubmitRequest{Ticker: "ACME", TimeRangeYears: 3})
	require.NoError(t, err)

	<-started
	require.NoError(t, h.svc.Cancel(ctx, job.ID))
	release()

	final, err := h.wait(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseError, final.Phase)
	assert.Equal(t, domain.PhaseChunking, final.FailedPhase)
	assert.True(t, final.Cancelled)
	assert.Equal(t, domain.CancelledReason, final.Error)
	assert.NotNil(t, final.CompletedAt)
	assert.Zero(t, final.ChunksVectorized)
	assertNoRegression(t, h.jobs.history(job.ID))

	n, err := h.index.Count(ctx, "ACME")
	require.NoError(t, err)
	assert.Zero(t, n)

	// cancelling a finished job is rejected
	err = h.svc.Cancel(ctx, job.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	// an errored job does not block a fresh run
	h.pipeline.mu.Lock()
	h.pipeline.gate = nil
	h.pipeline.mu.Unlock()
	next, err := h.svc.Submit(ctx, driving.SubmitRequest{Ticker: "ACME", TimeRangeYears: 3})
	require.NoError(t, err)
	assert.NotEqual(t, job.ID, next.ID)
	final, err = h.wait(ctx, next.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseComplete, final.Phase)
}

func TestIngestion_CancelByTicker(t *testing.T) {
	h := newTestHarness(4)
	started, release := h.retriever.holdListings()
	ctx := context.Background()

	job, err := h.svc.Submit(ctx, driving.SubmitRequest{Ticker: "ACME", TimeRangeYears: 1})
	require.NoError(t, err)
	<-started

	require.NoError(t, h.svc.CancelByTicker(ctx, "acme"))
	release()

	final, err := h.wait(ctx, job.ID)
	require.NoError(t, err)
	assert.True(t, final.Cancelled)
	assert.Equal(t, domain.PhaseScraping, final.FailedPhase)
}

func TestIngestion_CancelFromAnotherProcess(t *testing.T) {
	h := newTestHarness(4, WithCancelPollInterval(0))
	started, release := h.retriever.holdListings()
	ctx := context.Background()

	job, err := h.svc.Submit(ctx, driving.SubmitRequest{Ticker: "ACME", TimeRangeYears: 1})
	require.NoError(t, err)
	<-started

	// a second orchestrator sharing only the job store, as a separate CLI run would
	other := NewIngestionOrchestrator(h.resolver, h.retriever, h.parsers, h.pipeline,
		NewIndexer(h.embedder, h.index, 4), h.jobs, h.metadata)
	require.NoError(t, other.CancelByTicker(ctx, "ACME"))
	release()

	final, err := h.wait(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseError, final.Phase)
	assert.True(t, final.Cancelled)
	assert.Equal(t, domain.PhaseScraping, final.FailedPhase)
	assert.Equal(t, domain.CancelledReason, final.Error)

	seen, err := other.Status(ctx, job.ID)
	require.NoError(t, err)
	assert.True(t, seen.Cancelled)
	assert.ErrorIs(t, other.Cancel(ctx, job.ID), domain.ErrInvalidInput)
}

func TestJobTracker_CancelPollIsThrottled(t *testing.T) {
	ctx := context.Background()
	store := newRecordingJobStore()
	job := domain.ProcessingJob{ID: "j1", Ticker: "ACME", TimeRangeYears: 1, Phase: domain.PhaseScraping}

	slow := newJobTracker(job, store, time.Now, time.Hour)
	require.NoError(t, slow.checkpoint(ctx))
	require.NoError(t, store.RequestCancel(ctx, "j1"))
	assert.NoError(t, slow.checkpoint(ctx), "second read falls inside the poll interval")

	eager := newJobTracker(job, store, time.Now, 0)
	assert.ErrorIs(t, eager.checkpoint(ctx), domain.ErrCancelled)
	assert.ErrorIs(t, eager.checkpoint(ctx), domain.ErrCancelled)
}

func TestIngestion_Cancel_UnknownJob(t *testing.T) {
	h := newTestHarness(1)
	err := h.svc.Cancel(context.Background(), "does-not-exist")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestIngestion_NoFilingsFails(t *testing.T) {
	h := newTestHarness(0)
	ctx := context.Background()

	job, err := h.svc.Submit(ctx, driving.SubmitRequest{Ticker: "ACME", TimeRangeYears: 1})
	require.NoError(t, err)
	final, err := h.wait(ctx, job.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.PhaseError, final.Phase)
	assert.Equal(t, domain.PhaseScraping, final.FailedPhase)
	assert.Contains(t, final.Error, "no filings found")
	assert.False(t, final.Cancelled)
}

func TestIngestion_UnknownTickerFails(t *testing.T) {
	h := newTestHarness(3)
	ctx := context.Background()

	job, err := h.svc.Submit(ctx, driving.SubmitRequest{Ticker: "ZZZZ", TimeRangeYears: 1})
	require.NoError(t, err)
	final, err := h.wait(ctx, job.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.PhaseError, final.Phase)
	assert.Contains(t, final.Error, "issuer not found")
}

func TestIngestion_AllDownloadsFail(t *testing.T) {
	h := newTestHarness(2)
	h.retriever.failOn[accession(0)] = true
	h.retriever.failOn[accession(1)] = true
	ctx := context.Background()

	job, err := h.svc.Submit(ctx, driving.SubmitRequest{Ticker: "ACME", TimeRangeYears: 1})
	require.NoError(t, err)
	final, err := h.wait(ctx, job.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.PhaseError, final.Phase)
	assert.Equal(t, 2, final.DocumentsFailed)
	assert.Equal(t, 2, final.DocumentsFound)
}

func TestIngestion_ChunkFailureMovesDocumentToFailed(t *testing.T) {
	h := newTestHarness(4)
	h.pipeline.failOn[accession(2)] = true
	ctx := context.Background()

	job, err := h.svc.Submit(ctx, driving.SubmitRequest{Ticker: "ACME", TimeRangeYears: 3})
	require.NoError(t, err)
	final, err := h.wait(ctx, job.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.PhaseComplete, final.Phase)
	assert.Equal(t, 3, final.DocumentsProcessed)
	assert.Equal(t, 1, final.DocumentsFailed)
	assert.Equal(t, 6, final.ChunksCreated)

	rec, err := h.metadata.GetDocument(ctx, domain.DocumentID("ACME", accession(2)))
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentFailed, rec.Status)
	assert.Contains(t, rec.Error, "chunker exploded")
}

func TestIngestion_EmbeddingFailureIsPartial(t *testing.T) {
	h := newTestHarness(2)
	h.pipeline.perDoc = 1
	ctx := context.Background()

	// the first document's only chunk is rejected on every path
	h.embedder.failSubstr = accession(0) + " increased"

	job, err := h.svc.Submit(ctx, driving.SubmitRequest{Ticker: "ACME", TimeRangeYears: 1})
	require.NoError(t, err)
	final, err := h.wait(ctx, job.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.PhaseComplete, final.Phase)
	assert.Equal(t, 2, final.ChunksCreated)
	assert.Equal(t, 1, final.ChunksVectorized)
	assert.Equal(t, 1, final.ChunksFailed)
}

func TestIngestion_InvalidRequests(t *testing.T) {
	h := newTestHarness(1)
	ctx := context.Background()

	_, err := h.svc.Submit(ctx, driving.SubmitRequest{Ticker: "ACME", TimeRangeYears: 2})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = h.svc.Submit(ctx, driving.SubmitRequest{Ticker: "  ", TimeRangeYears: 1})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = h.svc.StatusByTicker(ctx, "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestIngestion_StaleJobFromAnotherProcessIsReplaced(t *testing.T) {
	now := time.Now()
	h := newTestHarness(1, WithStaleAfter(time.Minute))
	ctx := context.Background()

	stale := domain.ProcessingJob{
		ID: "stale", Ticker: "ACME", TimeRangeYears: 1, Phase: domain.PhaseParsing,
		StartedAt: now.Add(-time.Hour), UpdatedAt: now.Add(-time.Hour),
	}
	fresh := domain.ProcessingJob{
		ID: "fresh", Ticker: "BETA", TimeRangeYears: 1, Phase: domain.PhaseParsing,
		StartedAt: now, UpdatedAt: now,
	}
	require.NoError(t, h.jobs.Save(ctx, stale))
	require.NoError(t, h.jobs.Save(ctx, fresh))

	job, err := h.svc.Submit(ctx, driving.SubmitRequest{Ticker: "ACME", TimeRangeYears: 1})
	require.NoError(t, err)
	assert.NotEqual(t, "stale", job.ID)
	_, err = h.wait(ctx, job.ID)
	require.NoError(t, err)

	old, err := h.jobs.Get(ctx, "stale")
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseError, old.Phase)
	assert.Equal(t, domain.PhaseParsing, old.FailedPhase)

	// a job still updating elsewhere is returned as-is
	same, err := h.svc.Submit(ctx, driving.SubmitRequest{Ticker: "BETA", TimeRangeYears: 1})
	require.NoError(t, err)
	assert.Equal(t, "fresh", same.ID)
}

func TestIngestion_StatusAndList(t *testing.T) {
	h := newTestHarness(1)
	ctx := context.Background()

	job, err := h.svc.Submit(ctx, driving.SubmitRequest{Ticker: "ACME", TimeRangeYears: 1})
	require.NoError(t, err)
	_, err = h.wait(ctx, job.ID)
	require.NoError(t, err)

	got, err := h.svc.Status(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseComplete, got.Phase)

	byTicker, err := h.svc.StatusByTicker(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, job.ID, byTicker.ID)

	_, err = h.svc.Status(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	jobs, err := h.svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, jobs, 1)
}

func TestIngestion_Prune(t *testing.T) {
	h := newTestHarness(1)
	ctx := context.Background()

	done := time.Now().Add(-48 * time.Hour)
	require.NoError(t, h.jobs.Save(ctx, domain.ProcessingJob{
		ID: "old", Ticker: "ACME", TimeRangeYears: 1, Phase: domain.PhaseComplete,
		StartedAt: done, UpdatedAt: done, CompletedAt: &done,
	}))

	n, err := h.svc.Prune(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestIngestion_ShutdownCancelsRunningJobs(t *testing.T) {
	h := newTestHarness(2)
	started, release := h.retriever.holdListings()
	ctx := context.Background()

	job, err := h.svc.Submit(ctx, driving.SubmitRequest{Ticker: "ACME", TimeRangeYears: 1})
	require.NoError(t, err)
	<-started

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	go release()
	require.NoError(t, h.svc.Shutdown(shutdownCtx))

	final, err := h.jobs.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseError, final.Phase)
	assert.True(t, final.Cancelled)
}

func TestEstimateRemaining(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.Nil(t, estimateRemaining(start, start.Add(2*time.Second), 50))
	assert.Nil(t, estimateRemaining(start, start.Add(time.Minute), 0))
	assert.Nil(t, estimateRemaining(start, start.Add(time.Minute), 100))

	eta := estimateRemaining(start, start.Add(10*time.Second), 25)
	require.NotNil(t, eta)
	assert.Equal(t, 30*time.Second, *eta)
}
