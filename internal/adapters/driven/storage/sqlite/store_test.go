package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-filings/internal/core/domain"
)

// setupTestStore creates a SQLite store in a temporary directory.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, store.Close()) })
	return store
}

func testJob(id, ticker string, years int, started time.Time) domain.ProcessingJob {
	return domain.ProcessingJob{
		ID:             id,
		Ticker:         ticker,
		TimeRangeYears: years,
		Phase:          domain.PhaseScraping,
		StartedAt:      started,
		UpdatedAt:      started,
	}
}

// ==================== Store Tests ====================

func TestNewStore_CreatesDatabase(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")

	store, err := NewStore(dir)
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, filepath.Join(dir, DatabaseFile), store.Path())
	assert.FileExists(t, store.Path())

	version, err := store.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, version)
	assert.NoError(t, store.Ping(context.Background()))
}

func TestNewStore_ReopenKeepsData(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, first.JobStore().Save(ctx, testJob("job-1", "ACME", 1, time.Now())))
	require.NoError(t, first.Close())

	second, err := NewStore(dir)
	require.NoError(t, err)
	defer second.Close()

	version, err := second.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, version)

	job, err := second.JobStore().Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, "ACME", job.Ticker)
}

// ==================== JobStore Tests ====================

func TestJobStore_SaveAndGet(t *testing.T) {
	jobs := setupTestStore(t).JobStore()
	ctx := context.Background()

	started := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	eta := 90 * time.Second
	job := testJob("job-1", "ACME", 3, started)
	job.Phase = domain.PhaseChunking
	job.DocumentsFound = 12
	job.DocumentsProcessed = 7
	job.ChunksCreated = 340
	job.PhaseCompleted = 3
	job.PhaseTotal = 7
	job.Progress = job.ComputeProgress()
	job.EstimatedTimeRemaining = &eta
	require.NoError(t, jobs.Save(ctx, job))

	got, err := jobs.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseChunking, got.Phase)
	assert.Equal(t, 12, got.DocumentsFound)
	assert.Equal(t, 340, got.ChunksCreated)
	assert.InDelta(t, job.Progress, got.Progress, 1e-9)
	assert.True(t, started.Equal(got.StartedAt))
	require.NotNil(t, got.EstimatedTimeRemaining)
	assert.Equal(t, eta, *got.EstimatedTimeRemaining)

	// whole-snapshot replace
	job.Phase = domain.PhaseError
	job.FailedPhase = domain.PhaseChunking
	job.Error = "chunking failed"
	done := started.Add(time.Minute)
	job.CompletedAt = &done
	require.NoError(t, jobs.Save(ctx, job))

	got, err = jobs.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseError, got.Phase)
	assert.Equal(t, domain.PhaseChunking, got.FailedPhase)
	assert.Equal(t, "chunking failed", got.Error)
	require.NotNil(t, got.CompletedAt)
	assert.True(t, done.Equal(*got.CompletedAt))
}

func TestJobStore_Errors(t *testing.T) {
	jobs := setupTestStore(t).JobStore()
	ctx := context.Background()

	_, err := jobs.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = jobs.Latest(ctx, domain.JobKey{Ticker: "ACME", TimeRangeYears: 1})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = jobs.LatestByTicker(ctx, "ACME")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.ErrorIs(t, jobs.Save(ctx, domain.ProcessingJob{}), domain.ErrInvalidInput)
}

func TestJobStore_LatestAndLists(t *testing.T) {
	jobs := setupTestStore(t).JobStore()
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, jobs.Save(ctx, testJob("a", "ACME", 1, base)))
	require.NoError(t, jobs.Save(ctx, testJob("b", "ACME", 3, base.Add(time.Hour))))
	require.NoError(t, jobs.Save(ctx, testJob("c", "ACME", 1, base.Add(2*time.Hour))))
	require.NoError(t, jobs.Save(ctx, testJob("d", "GLOBX", 1, base.Add(3*time.Hour))))

	latest, err := jobs.Latest(ctx, domain.JobKey{Ticker: "ACME", TimeRangeYears: 1})
	require.NoError(t, err)
	assert.Equal(t, "c", latest.ID)

	latest, err = jobs.Latest(ctx, domain.JobKey{Ticker: "ACME", TimeRangeYears: 3})
	require.NoError(t, err)
	assert.Equal(t, "b", latest.ID)

	latest, err = jobs.LatestByTicker(ctx, " acme ")
	require.NoError(t, err)
	assert.Equal(t, "c", latest.ID)

	byTicker, err := jobs.ListByTicker(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b", "a"}, jobIDs(byTicker))

	all, err := jobs.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"d", "c", "b", "a"}, jobIDs(all))

	none, err := jobs.ListByTicker(ctx, "NONE")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestJobStore_Prune(t *testing.T) {
	jobs := setupTestStore(t).JobStore()
	ctx := context.Background()

	now := time.Now().UTC()
	old := now.Add(-48 * time.Hour)
	recent := now.Add(-time.Hour)

	finished := func(id string, phase domain.Phase, at time.Time) domain.ProcessingJob {
		j := testJob(id, "ACME", 1, at.Add(-time.Minute))
		j.Phase = phase
		j.CompletedAt = &at
		return j
	}
	require.NoError(t, jobs.Save(ctx, finished("old-complete", domain.PhaseComplete, old)))
	require.NoError(t, jobs.Save(ctx, finished("old-error", domain.PhaseError, old)))
	require.NoError(t, jobs.Save(ctx, finished("recent", domain.PhaseComplete, recent)))
	require.NoError(t, jobs.Save(ctx, testJob("running", "ACME", 3, old)))

	removed, err := jobs.Prune(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	remaining, err := jobs.List(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"recent", "running"}, jobIDs(remaining))
}

func TestJobStore_CancelRequest(t *testing.T) {
	jobs := setupTestStore(t).JobStore()
	ctx := context.Background()
	started := time.Now().UTC().Add(-48 * time.Hour)

	j := testJob("running", "ACME", 1, started)
	require.NoError(t, jobs.Save(ctx, j))

	requested, err := jobs.CancelRequested(ctx, "running")
	require.NoError(t, err)
	assert.False(t, requested)

	require.NoError(t, jobs.RequestCancel(ctx, "running"))
	require.NoError(t, jobs.RequestCancel(ctx, "running"))
	require.NoError(t, jobs.Save(ctx, j))

	requested, err = jobs.CancelRequested(ctx, "running")
	require.NoError(t, err)
	assert.True(t, requested)
	assert.ErrorIs(t, jobs.RequestCancel(ctx, ""), domain.ErrInvalidInput)

	done := started.Add(time.Minute)
	j.Phase, j.CompletedAt = domain.PhaseError, &done
	require.NoError(t, jobs.Save(ctx, j))
	removed, err := jobs.Prune(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	requested, err = jobs.CancelRequested(ctx, "running")
	require.NoError(t, err)
	assert.False(t, requested)
}

func TestJobStore_ConcurrentSaves(t *testing.T) {
	jobs := setupTestStore(t).JobStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			job := testJob(fmt.Sprintf("job-%d", n), "ACME", 1, time.Now())
			for step := 0; step < 5; step++ {
				job.PhaseCompleted = step
				job.PhaseTotal = 5
				assert.NoError(t, jobs.Save(ctx, job))
				_, err := jobs.Get(ctx, job.ID)
				assert.NoError(t, err)
			}
		}(i)
	}
	wg.Wait()

	all, err := jobs.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 8)
}

func jobIDs(jobs []domain.ProcessingJob) []string {
	ids := make([]string, len(jobs))
	for i, j := range jobs {
		ids[i] = j.ID
	}
	return ids
}

// ==================== MetadataStore Tests ====================

func TestMetadataStore_Company(t *testing.T) {
	meta := setupTestStore(t).MetadataStore()
	ctx := context.Background()

	require.NoError(t, meta.SaveCompany(ctx, domain.Company{Ticker: "acme", Name: "Acme Corp", CIK: "0000012345"}))
	require.NoError(t, meta.SaveCompany(ctx, domain.Company{Ticker: "ACME", Name: "Acme Corporation", CIK: "0000012345"}))

	c, err := meta.GetCompany(ctx, "Acme")
	require.NoError(t, err)
	assert.Equal(t, "ACME", c.Ticker)
	assert.Equal(t, "Acme Corporation", c.Name)

	_, err = meta.GetCompany(ctx, "NONE")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMetadataStore_Documents(t *testing.T) {
	meta := setupTestStore(t).MetadataStore()
	ctx := context.Background()

	older := domain.DocumentRecord{
		ID: domain.DocumentID("ACME", "0000012345-25-000010"), JobID: "job-1", Ticker: "ACME",
		AccessionNumber: "0000012345-25-000010", FilingType: domain.FilingType10Q,
		FiledDate: time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
		URL:       "https://www.sec.gov/Archives/edgar/data/12345/000001234525000010/q1.htm",
		Title:     "ACME 10-Q 2025-05-01", Format: domain.FormatHTML, Status: domain.DocumentParsed,
	}
	newer := older
	newer.ID = domain.DocumentID("ACME", "0000012345-26-000002")
	newer.AccessionNumber = "0000012345-26-000002"
	newer.FilingType = domain.FilingType10K
	newer.FiledDate = time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC)

	require.NoError(t, meta.SaveDocument(ctx, older))
	require.NoError(t, meta.SaveDocument(ctx, newer))

	got, err := meta.GetDocument(ctx, older.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.FilingType10Q, got.FilingType)
	assert.Equal(t, domain.FormatHTML, got.Format)
	assert.True(t, older.FiledDate.Equal(got.FiledDate))
	assert.False(t, got.CreatedAt.IsZero())
	created := got.CreatedAt

	// update keeps created_at
	older.Status = domain.DocumentIndexed
	older.TotalChunks = 42
	require.NoError(t, meta.SaveDocument(ctx, older))
	got, err = meta.GetDocument(ctx, older.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentIndexed, got.Status)
	assert.Equal(t, 42, got.TotalChunks)
	assert.True(t, created.Equal(got.CreatedAt))

	docs, err := meta.ListDocuments(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, newer.ID, docs[0].ID)

	_, err = meta.GetDocument(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMetadataStore_FailedDocumentKeepsError(t *testing.T) {
	meta := setupTestStore(t).MetadataStore()
	ctx := context.Background()

	rec := domain.DocumentRecord{
		ID: "ACME-1", Ticker: "ACME", AccessionNumber: "1", FilingType: domain.FilingType8K,
		Status: domain.DocumentFailed, Error: "parse: empty body",
	}
	require.NoError(t, meta.SaveDocument(ctx, rec))

	got, err := meta.GetDocument(ctx, "ACME-1")
	require.NoError(t, err)
	assert.Equal(t, "parse: empty body", got.Error)
	assert.True(t, got.FiledDate.IsZero())
}

func TestMetadataStore_Chunks(t *testing.T) {
	meta := setupTestStore(t).MetadataStore()
	ctx := context.Background()

	page := 4
	docID := "ACME-0000012345-26-000002"
	chunks := []domain.Chunk{
		{
			ID: domain.ChunkID(docID, 1), DocumentID: docID, ChunkIndex: 1,
			Section: domain.SectionFinancialStatements, Text: "Revenue | $4,200",
			TokenEstimate: 4, PageNumber: &page,
			Metadata: map[string]any{"is_table": true, "word_count": 3},
		},
		{
			ID: domain.ChunkID(docID, 0), DocumentID: docID, ChunkIndex: 0,
			Section: domain.SectionRiskFactors, Text: "Competition may reduce margins.", TokenEstimate: 8,
		},
	}
	require.NoError(t, meta.SaveChunks(ctx, chunks))
	require.NoError(t, meta.SaveChunks(ctx, nil))

	got, err := meta.GetChunk(ctx, domain.ChunkID(docID, 1))
	require.NoError(t, err)
	assert.Equal(t, domain.SectionFinancialStatements, got.Section)
	require.NotNil(t, got.PageNumber)
	assert.Equal(t, 4, *got.PageNumber)
	assert.Equal(t, true, got.Metadata["is_table"])
	assert.Equal(t, float64(3), got.Metadata["word_count"])

	plain, err := meta.GetChunk(ctx, domain.ChunkID(docID, 0))
	require.NoError(t, err)
	assert.Nil(t, plain.PageNumber)
	assert.Nil(t, plain.Metadata)

	ordered, err := meta.ListChunks(ctx, docID)
	require.NoError(t, err)
	require.Len(t, ordered, 2)
	assert.Equal(t, 0, ordered[0].ChunkIndex)

	_, err = meta.GetChunk(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMetadataStore_LogQuery(t *testing.T) {
	meta := setupTestStore(t).MetadataStore()
	ctx := context.Background()

	base := time.Now().UTC()
	require.NoError(t, meta.LogQuery(ctx, domain.QueryLog{
		ID: "q1", Question: "What was revenue?", QuestionHash: "abc", Ticker: "acme",
		Answer: "Revenue was $4.2B [1].", LatencyMs: 812, ChunksRetrieved: 5, TopScore: 0.83,
		Status: domain.QueryStatusAnswered, CreatedAt: base.Add(-time.Minute),
	}))
	require.NoError(t, meta.LogQuery(ctx, domain.QueryLog{
		ID: "q2", Question: "Who is the CFO?", Ticker: "ACME", SessionID: "s-1",
		Status: domain.QueryStatusFailed, Error: "llm unavailable", CreatedAt: base,
	}))

	logs, err := meta.RecentQueries(ctx, "ACME", 10)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "q2", logs[0].ID)
	assert.Equal(t, "s-1", logs[0].SessionID)
	assert.Equal(t, "llm unavailable", logs[0].Error)
	assert.Equal(t, int64(812), logs[1].LatencyMs)
	assert.InDelta(t, 0.83, logs[1].TopScore, 1e-9)
	assert.Equal(t, "", logs[1].SessionID)

	assert.ErrorIs(t, meta.LogQuery(ctx, domain.QueryLog{}), domain.ErrInvalidInput)
	assert.Error(t, meta.LogQuery(ctx, domain.QueryLog{ID: "q1", Status: domain.QueryStatusAnswered}))
}

// ==================== VectorIndex Tests ====================

func entry(id, ticker string, vec ...float32) domain.IndexEntry {
	return domain.IndexEntry{
		ChunkID: id,
		Vector:  vec,
		Metadata: domain.IndexMetadata{
			Ticker:     ticker,
			FilingType: domain.FilingType10K,
			FiledDate:  time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
			Section:    domain.SectionManagementDiscussion,
			DocumentID: ticker + "-doc",
		},
	}
}

func TestVectorIndex_SearchIsPartitioned(t *testing.T) {
	index := setupTestStore(t).VectorIndex()
	ctx := context.Background()

	require.NoError(t, index.Upsert(ctx, []domain.IndexEntry{
		entry("acme:1", "ACME", 1, 0),
		entry("acme:2", "ACME", 0.8, 0.6),
		entry("acme:3", "ACME", 0, 1),
		entry("globx:1", "globx", 1, 0),
	}))

	hits, err := index.Search(ctx, []float32{1, 0}, domain.SearchOptions{Ticker: "acme", TopK: 2})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "acme:1", hits[0].ChunkID)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
	assert.Equal(t, "acme:2", hits[1].ChunkID)
	assert.InDelta(t, 0.8, hits[1].Score, 1e-6)
	assert.Equal(t, "ACME", hits[0].Metadata.Ticker)
	assert.Equal(t, domain.SectionManagementDiscussion, hits[0].Metadata.Section)
	assert.Equal(t, "ACME-doc", hits[0].Metadata.DocumentID)
	assert.Equal(t, 2026, hits[0].Metadata.FiledDate.Year())

	for _, h := range hits {
		assert.NotEqual(t, "globx:1", h.ChunkID)
	}

	thresholded, err := index.Search(ctx, []float32{1, 0}, domain.SearchOptions{Ticker: "ACME", MinScore: 0.9})
	require.NoError(t, err)
	require.Len(t, thresholded, 1)

	_, err = index.Search(ctx, []float32{1, 0}, domain.SearchOptions{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestVectorIndex_UpsertOverwritesAndCounts(t *testing.T) {
	index := setupTestStore(t).VectorIndex()
	ctx := context.Background()

	require.NoError(t, index.Upsert(ctx, []domain.IndexEntry{entry("acme:1", "ACME", 1, 0)}))
	require.NoError(t, index.Upsert(ctx, []domain.IndexEntry{entry("acme:1", "ACME", 0, 1)}))
	require.NoError(t, index.Upsert(ctx, nil))

	n, err := index.Count(ctx, "ACME")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	hits, err := index.Search(ctx, []float32{0, 1}, domain.SearchOptions{Ticker: "ACME"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)

	require.NoError(t, index.DeleteByTicker(ctx, "acme"))
	n, err = index.Count(ctx, "ACME")
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, index.Close())
}

func TestVectorIndex_UpsertRejectsBadEntries(t *testing.T) {
	index := setupTestStore(t).VectorIndex()
	ctx := context.Background()

	assert.ErrorIs(t, index.Upsert(ctx, []domain.IndexEntry{entry("", "ACME", 1)}), domain.ErrInvalidInput)
	assert.ErrorIs(t, index.Upsert(ctx, []domain.IndexEntry{entry("x", "", 1)}), domain.ErrInvalidInput)
	assert.ErrorIs(t, index.Upsert(ctx, []domain.IndexEntry{entry("x", "ACME")}), domain.ErrInvalidInput)

	// a failed batch writes nothing
	err := index.Upsert(ctx, []domain.IndexEntry{entry("ok", "ACME", 1), entry("", "ACME", 1)})
	assert.Error(t, err)
	n, err := index.Count(ctx, "ACME")
	require.NoError(t, err)
	assert.Zero(t, n)
}
