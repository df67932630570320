package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/sercha-filings/internal/core/domain"
	"github.com/custodia-labs/sercha-filings/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-filings/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-filings/internal/logger"
)

// Ensure IngestionOrchestrator implements the interface.
var _ driving.IngestionService = (*IngestionOrchestrator)(nil)

const (
	// DefaultWorkers bounds per-job document concurrency.
	DefaultWorkers = 3

	// DefaultStaleAfter is how long a persisted running job may go without
	// an update before another process treats it as abandoned.
	DefaultStaleAfter = 10 * time.Minute

	// waitPollInterval is used when waiting on jobs owned by another process.
	waitPollInterval = 500 * time.Millisecond
)

// IngestionOrchestrator drives the scraping, parsing, chunking and vectorizing
// phases for each job and enforces one running job per (ticker, time range).
type IngestionOrchestrator struct {
	resolver  driven.IssuerResolver
	retriever driven.FilingRetriever
	parsers   driven.ParserRegistry
	pipeline  driven.PostProcessorPipeline
	indexer   *Indexer
	jobs      driven.JobStore
	metadata  driven.MetadataStore

	workers     int
	filingTypes []domain.FilingType
	staleAfter  time.Duration
	cancelPoll  time.Duration
	now         func() time.Time
	newID       func() string

	// lifetime context for background jobs
	ctx  context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup

	mu     sync.Mutex
	active map[domain.JobKey]*activeJob
	byID   map[string]*activeJob
}

// activeJob is a job running in this process.
type activeJob struct {
	tracker *jobTracker
	done    chan struct{}
}

// IngestionOption configures an IngestionOrchestrator.
type IngestionOption func(*IngestionOrchestrator)

// WithWorkers sets the per-job worker pool size.
func WithWorkers(n int) IngestionOption {
	return func(o *IngestionOrchestrator) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithFilingTypes restricts the filing categories fetched.
func WithFilingTypes(types ...domain.FilingType) IngestionOption {
	return func(o *IngestionOrchestrator) {
		o.filingTypes = types
	}
}

// WithStaleAfter sets when a persisted running job counts as abandoned.
func WithStaleAfter(d time.Duration) IngestionOption {
	return func(o *IngestionOrchestrator) {
		if d > 0 {
			o.staleAfter = d
		}
	}
}

// WithCancelPollInterval sets how often running jobs check the job store
// for a cancellation requested by another process. Zero checks at every
// boundary.
func WithCancelPollInterval(d time.Duration) IngestionOption {
	return func(o *IngestionOrchestrator) {
		if d >= 0 {
			o.cancelPoll = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) IngestionOption {
	return func(o *IngestionOrchestrator) {
		o.now = now
	}
}

// WithIDGenerator overrides job ID generation.
func WithIDGenerator(gen func() string) IngestionOption {
	return func(o *IngestionOrchestrator) {
		o.newID = gen
	}
}

// NewIngestionOrchestrator creates a new orchestrator.
// Jobs run in the background until they finish or Shutdown is called.
func NewIngestionOrchestrator(
	resolver driven.IssuerResolver,
	retriever driven.FilingRetriever,
	parsers driven.ParserRegistry,
	pipeline driven.PostProcessorPipeline,
	indexer *Indexer,
	jobs driven.JobStore,
	metadata driven.MetadataStore,
	opts ...IngestionOption,
) *IngestionOrchestrator {
	ctx, stop := context.WithCancel(context.Background())
	o := &IngestionOrchestrator{
		resolver:   resolver,
		retriever:  retriever,
		parsers:    parsers,
		pipeline:   pipeline,
		indexer:    indexer,
		jobs:       jobs,
		metadata:   metadata,
		workers:    DefaultWorkers,
		staleAfter: DefaultStaleAfter,
		cancelPoll: DefaultCancelPollInterval,
		now:        time.Now,
		newID:      uuid.NewString,
		ctx:        ctx,
		stop:       stop,
		active:     make(map[domain.JobKey]*activeJob),
		byID:       make(map[string]*activeJob),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Submit starts a job for the identity or returns the existing one.
// A running job is always reused; a complete job is reused unless Force is set;
// an errored job is replaced by a fresh run.
func (o *IngestionOrchestrator) Submit(ctx context.Context, req driving.SubmitRequest) (*domain.ProcessingJob, error) {
	key, err := domain.NewJobKey(req.Ticker, req.TimeRangeYears)
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if aj, ok := o.active[key]; ok {
		snap := aj.tracker.snapshot()
		logger.Debug("Job %s already running for %s", snap.ID, key)
		return &snap, nil
	}

	latest, err := o.jobs.Latest(ctx, key)
	switch {
	case errors.Is(err, domain.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("look up job: %w", err)
	case !latest.IsTerminal() && o.now().Sub(latest.UpdatedAt) < o.staleAfter:
		// Running in another process that shares the job store.
		return latest, nil
	case !latest.IsTerminal():
		o.abandon(ctx, *latest)
	case latest.Phase == domain.PhaseComplete && !req.Force:
		logger.Debug("Reusing complete job %s for %s", latest.ID, key)
		return latest, nil
	}

	now := o.now()
	job := domain.ProcessingJob{
		ID:             o.newID(),
		Ticker:         key.Ticker,
		TimeRangeYears: key.TimeRangeYears,
		Phase:          domain.PhaseScraping,
		StartedAt:      now,
		UpdatedAt:      now,
	}
	if err := o.jobs.Save(ctx, job); err != nil {
		return nil, fmt.Errorf("save job: %w", err)
	}

	aj := &activeJob{
		tracker: newJobTracker(job, o.jobs, o.now, o.cancelPoll),
		done:    make(chan struct{}),
	}
	o.active[key] = aj
	o.byID[job.ID] = aj

	o.wg.Add(1)
	go o.run(key, aj)

	logger.Info("Started job %s for %s (force=%t)", job.ID, key, req.Force)
	return &job, nil
}

// Status returns the snapshot for a job ID.
func (o *IngestionOrchestrator) Status(ctx context.Context, jobID string) (*domain.ProcessingJob, error) {
	o.mu.Lock()
	aj, ok := o.byID[jobID]
	o.mu.Unlock()
	if ok {
		snap := aj.tracker.snapshot()
		return &snap, nil
	}
	return o.jobs.Get(ctx, jobID)
}

// StatusByTicker returns the most recent job for a ticker.
func (o *IngestionOrchestrator) StatusByTicker(ctx context.Context, ticker string) (*domain.ProcessingJob, error) {
	ticker = domain.NormaliseTicker(ticker)
	if ticker == "" {
		return nil, fmt.Errorf("%w: ticker is required", domain.ErrInvalidInput)
	}
	return o.jobs.LatestByTicker(ctx, ticker)
}

// Cancel requests cooperative cancellation. The job stops at its next
// phase, document or batch boundary and ends in error with a cancelled reason.
// A job owned by another process sharing the job store is cancelled through a
// persisted request that its owner picks up within the cancel poll interval.
func (o *IngestionOrchestrator) Cancel(ctx context.Context, jobID string) error {
	o.mu.Lock()
	aj, ok := o.byID[jobID]
	o.mu.Unlock()
	if ok {
		aj.tracker.requestCancel()
		logger.Info("Cancellation requested for job %s", jobID)
		return nil
	}

	job, err := o.jobs.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if job.IsTerminal() {
		return fmt.Errorf("%w: job %s already finished (%s)", domain.ErrInvalidInput, jobID, job.Phase)
	}
	if err := o.jobs.RequestCancel(ctx, jobID); err != nil {
		return fmt.Errorf("request cancel: %w", err)
	}
	logger.Info("Cancellation requested for job %s owned by another process", jobID)
	return nil
}

// CancelByTicker cancels the most recently started running job for a ticker.
func (o *IngestionOrchestrator) CancelByTicker(ctx context.Context, ticker string) error {
	ticker = domain.NormaliseTicker(ticker)

	o.mu.Lock()
	var target *activeJob
	var targetStart time.Time
	for key, aj := range o.active {
		if key.Ticker != ticker {
			continue
		}
		snap := aj.tracker.snapshot()
		if target == nil || snap.StartedAt.After(targetStart) {
			target, targetStart = aj, snap.StartedAt
		}
	}
	o.mu.Unlock()

	if target != nil {
		return o.Cancel(ctx, target.tracker.snapshot().ID)
	}

	job, err := o.jobs.LatestByTicker(ctx, ticker)
	if err != nil {
		return err
	}
	return o.Cancel(ctx, job.ID)
}

// List returns all known jobs, newest first.
func (o *IngestionOrchestrator) List(ctx context.Context) ([]domain.ProcessingJob, error) {
	return o.jobs.List(ctx)
}

// Wait blocks until the job is terminal or ctx is done.
func (o *IngestionOrchestrator) Wait(ctx context.Context, jobID string) (*domain.ProcessingJob, error) {
	o.mu.Lock()
	aj, ok := o.byID[jobID]
	o.mu.Unlock()
	if ok {
		select {
		case <-aj.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return o.jobs.Get(ctx, jobID)
	}

	ticker := time.NewTicker(waitPollInterval)
	defer ticker.Stop()
	for {
		job, err := o.jobs.Get(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if job.IsTerminal() {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Prune removes terminal jobs that finished more than maxAge ago.
func (o *IngestionOrchestrator) Prune(ctx context.Context, maxAge time.Duration) (int, error) {
	n, err := o.jobs.Prune(ctx, o.now().Add(-maxAge))
	if err != nil {
		return 0, fmt.Errorf("prune jobs: %w", err)
	}
	if n > 0 {
		logger.Info("Pruned %d finished jobs older than %s", n, maxAge)
	}
	return n, nil
}

// Shutdown cancels running jobs and waits for them to stop.
func (o *IngestionOrchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	for _, aj := range o.active {
		aj.tracker.requestCancel()
	}
	o.mu.Unlock()
	o.stop()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// abandon marks a stale persisted job as failed so a fresh run can start.
func (o *IngestionOrchestrator) abandon(ctx context.Context, job domain.ProcessingJob) {
	logger.Warn("Job %s for %s stopped updating at %s; marking it failed", job.ID, job.Key(), job.UpdatedAt)
	job.FailedPhase = job.Phase
	job.Phase = domain.PhaseError
	job.Error = "job was interrupted"
	now := o.now()
	job.UpdatedAt = now
	job.CompletedAt = &now
	job.EstimatedTimeRemaining = nil
	if err := o.jobs.Save(ctx, job); err != nil {
		logger.Warn("Saving abandoned job %s: %v", job.ID, err)
	}
}

// run executes a job in the background and releases its identity when done.
func (o *IngestionOrchestrator) run(key domain.JobKey, aj *activeJob) {
	defer o.wg.Done()
	defer close(aj.done)
	defer func() {
		o.mu.Lock()
		delete(o.active, key)
		delete(o.byID, aj.tracker.snapshot().ID)
		o.mu.Unlock()
	}()

	err := o.execute(o.ctx, aj.tracker)

	// Final snapshots must persist even when the lifetime context was cancelled.
	finalCtx := context.WithoutCancel(o.ctx)
	if err != nil {
		if o.ctx.Err() != nil && !errors.Is(err, domain.ErrCancelled) {
			err = fmt.Errorf("%w: shutting down", domain.ErrCancelled)
		}
		aj.tracker.fail(finalCtx, err)
		snap := aj.tracker.snapshot()
		logger.Warn("Job %s for %s failed in %s: %s", snap.ID, key, snap.FailedPhase, snap.Error)
		return
	}
	aj.tracker.complete(finalCtx)
	snap := aj.tracker.snapshot()
	logger.Info("Job %s for %s complete: %d/%d documents, %d/%d chunks vectorized",
		snap.ID, key, snap.DocumentsProcessed, snap.DocumentsFound, snap.ChunksVectorized, snap.ChunksCreated)
}

// execute runs the four working phases in order.
func (o *IngestionOrchestrator) execute(ctx context.Context, t *jobTracker) error {
	job := t.snapshot()
	key := job.Key()

	// 1. SCRAPING
	logger.Section("Scraping " + key.String())
	if err := t.checkpoint(ctx); err != nil {
		return err
	}
	raws, err := o.scrape(ctx, t, key)
	if err != nil {
		return err
	}

	// 2. PARSING
	logger.Section("Parsing " + key.String())
	if err := t.advance(ctx, domain.PhaseParsing, len(raws)); err != nil {
		return err
	}
	if err := t.checkpoint(ctx); err != nil {
		return err
	}
	docs, err := o.parse(ctx, t, job.ID, raws)
	if err != nil {
		return err
	}

	// 3. CHUNKING
	logger.Section("Chunking " + key.String())
	if err := t.advance(ctx, domain.PhaseChunking, len(docs)); err != nil {
		return err
	}
	if err := t.checkpoint(ctx); err != nil {
		return err
	}
	items, chunked, err := o.chunk(ctx, t, job.ID, docs)
	if err != nil {
		return err
	}

	// 4. VECTORIZING
	logger.Section("Vectorizing " + key.String())
	if err := t.advance(ctx, domain.PhaseVectorizing, len(items)); err != nil {
		return err
	}
	if err := t.checkpoint(ctx); err != nil {
		return err
	}
	return o.vectorize(ctx, t, job.ID, key.Ticker, items, chunked)
}

// scrape resolves the issuer, lists filings in the window and downloads them.
func (o *IngestionOrchestrator) scrape(
	ctx context.Context,
	t *jobTracker,
	key domain.JobKey,
) ([]*domain.RawFiling, error) {
	company, err := o.resolver.Resolve(ctx, key.Ticker)
	if err != nil {
		return nil, fmt.Errorf("resolve issuer %s: %w", key.Ticker, err)
	}
	if o.metadata != nil {
		if err := o.metadata.SaveCompany(ctx, *company); err != nil {
			logger.Warn("Saving company %s: %v", company.Ticker, err)
		}
	}

	start, end := key.Window(o.now())
	listings, err := o.retriever.ListFilings(ctx, driven.FetchRequest{
		Company:     *company,
		Start:       start,
		End:         end,
		FilingTypes: o.filingTypes,
	})
	if err != nil {
		return nil, fmt.Errorf("list filings: %w", err)
	}
	if len(listings) == 0 {
		return nil, fmt.Errorf("%w for %s in the last %d years", domain.ErrNoFilings, key.Ticker, key.TimeRangeYears)
	}
	logger.Info("Found %d filings for %s", len(listings), key)

	t.update(ctx, func(j *domain.ProcessingJob) {
		j.DocumentsFound = len(listings)
		j.PhaseTotal = len(listings)
	})

	raws := make([]*domain.RawFiling, len(listings))
	err = o.forEach(ctx, t, len(listings), func(i int) {
		raw, err := o.retriever.Download(ctx, *company, listings[i])
		if err != nil {
			logger.Warn("Downloading %s %s: %v", listings[i].FilingType, listings[i].AccessionNumber, err)
			t.update(ctx, func(j *domain.ProcessingJob) {
				j.DocumentsFailed++
				j.PhaseCompleted++
			})
			return
		}
		raws[i] = raw
		t.update(ctx, func(j *domain.ProcessingJob) {
			j.PhaseCompleted++
		})
	})
	if err != nil {
		return nil, err
	}

	out := make([]*domain.RawFiling, 0, len(raws))
	for _, r := range raws {
		if r != nil {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: all %d downloads failed", domain.ErrNoFilings, len(listings))
	}
	return out, nil
}

// parse normalises each raw filing. Failures are recorded and skipped.
func (o *IngestionOrchestrator) parse(
	ctx context.Context,
	t *jobTracker,
	jobID string,
	raws []*domain.RawFiling,
) ([]*domain.ParsedDocument, error) {
	docs := make([]*domain.ParsedDocument, len(raws))
	err := o.forEach(ctx, t, len(raws), func(i int) {
		raw := raws[i]
		doc, err := o.parsers.Parse(ctx, raw)
		// raw bytes are not retained once parsed
		raws[i] = nil
		if err != nil {
			logger.Warn("Parsing %s %s: %v", raw.FilingType, raw.AccessionNumber, err)
			o.saveDocument(ctx, domain.FailedRecordFor(jobID, raw, err.Error()))
			t.update(ctx, func(j *domain.ProcessingJob) {
				j.DocumentsFailed++
				j.PhaseCompleted++
			})
			return
		}
		docs[i] = doc
		o.saveDocument(ctx, domain.RecordFor(jobID, doc, domain.DocumentParsed))
		t.update(ctx, func(j *domain.ProcessingJob) {
			j.DocumentsProcessed++
			j.PhaseCompleted++
		})
	})
	if err != nil {
		return nil, err
	}

	out := make([]*domain.ParsedDocument, 0, len(docs))
	for _, d := range docs {
		if d != nil {
			out = append(out, d)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: none of %d filings could be parsed", domain.ErrNoFilings, len(raws))
	}
	return out, nil
}

// chunk runs the post-processor pipeline for each document.
// It returns the index items in document order and the documents that produced chunks.
func (o *IngestionOrchestrator) chunk(
	ctx context.Context,
	t *jobTracker,
	jobID string,
	docs []*domain.ParsedDocument,
) ([]IndexItem, []*domain.ParsedDocument, error) {
	results := make([][]domain.Chunk, len(docs))
	err := o.forEach(ctx, t, len(docs), func(i int) {
		doc := docs[i]
		chunks, err := o.pipeline.Process(ctx, doc)
		if err == nil && len(chunks) == 0 {
			err = errors.New("document produced no chunks")
		}
		if err != nil {
			logger.Warn("Chunking %s: %v", doc.Title, err)
			rec := domain.RecordFor(jobID, doc, domain.DocumentFailed)
			rec.Error = err.Error()
			o.saveDocument(ctx, rec)
			t.update(ctx, func(j *domain.ProcessingJob) {
				j.DocumentsProcessed--
				j.DocumentsFailed++
				j.PhaseCompleted++
			})
			return
		}

		results[i] = chunks
		if o.metadata != nil {
			if err := o.metadata.SaveChunks(ctx, chunks); err != nil {
				logger.Warn("Saving chunks for %s: %v", doc.Title, err)
			}
		}
		rec := domain.RecordFor(jobID, doc, domain.DocumentChunked)
		rec.TotalChunks = len(chunks)
		o.saveDocument(ctx, rec)
		t.update(ctx, func(j *domain.ProcessingJob) {
			j.ChunksCreated += len(chunks)
			j.PhaseCompleted++
		})
	})
	if err != nil {
		return nil, nil, err
	}

	var items []IndexItem
	var chunked []*domain.ParsedDocument
	for i, chunks := range results {
		if chunks == nil {
			continue
		}
		chunked = append(chunked, docs[i])
		for _, c := range chunks {
			items = append(items, IndexItem{Chunk: c, Document: docs[i]})
		}
	}
	if len(items) == 0 {
		return nil, nil, fmt.Errorf("%w: no chunks were produced", domain.ErrNoFilings)
	}
	return items, chunked, nil
}

// vectorize embeds and indexes all chunks for the ticker.
func (o *IngestionOrchestrator) vectorize(
	ctx context.Context,
	t *jobTracker,
	jobID string,
	ticker string,
	items []IndexItem,
	docs []*domain.ParsedDocument,
) error {
	report, err := o.indexer.Index(ctx, ticker, items, IndexHooks{
		Checkpoint: t.checkpoint,
		OnBatch: func(indexed, failed int) {
			t.update(ctx, func(j *domain.ProcessingJob) {
				j.ChunksVectorized += indexed
				j.ChunksFailed += failed
				j.PhaseCompleted += indexed + failed
			})
		},
	})
	if err != nil {
		return fmt.Errorf("index chunks: %w", err)
	}
	if len(report.Entries) == 0 {
		return fmt.Errorf("%w: none of %d chunks could be embedded", domain.ErrEmbeddingUnavailable, len(items))
	}
	if len(report.Failed) > 0 {
		logger.Warn("%d of %d chunks for %s failed to embed", len(report.Failed), len(items), ticker)
	}

	perDoc := make(map[string]int, len(docs))
	for _, e := range report.Entries {
		perDoc[e.Metadata.DocumentID]++
	}
	for _, doc := range docs {
		rec := domain.RecordFor(jobID, doc, domain.DocumentIndexed)
		rec.TotalChunks = perDoc[doc.ID]
		o.saveDocument(ctx, rec)
	}
	return nil
}

// forEach runs fn for 0..n-1 on the bounded worker pool, checking for
// cancellation before each item. Items already started finish normally.
func (o *IngestionOrchestrator) forEach(ctx context.Context, t *jobTracker, n int, fn func(i int)) error {
	sem := make(chan struct{}, o.workers)
	var wg sync.WaitGroup
	var stopErr error

	for i := 0; i < n; i++ {
		if err := t.checkpoint(ctx); err != nil {
			stopErr = err
			break
		}
		if err := ctx.Err(); err != nil {
			stopErr = err
			break
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			fn(i)
		}(i)
	}
	wg.Wait()

	if stopErr != nil {
		return stopErr
	}
	return t.checkpoint(ctx)
}

// saveDocument persists a document record, logging failures.
func (o *IngestionOrchestrator) saveDocument(ctx context.Context, rec domain.DocumentRecord) {
	if o.metadata == nil {
		return
	}
	now := o.now()
	rec.UpdatedAt = now
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if err := o.metadata.SaveDocument(ctx, rec); err != nil {
		logger.Warn("Saving document %s: %v", rec.ID, err)
	}
}
