package services

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-filings/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sercha-filings/internal/core/domain"
	"github.com/custodia-labs/sercha-filings/internal/core/ports/driven"
)

// --- Test doubles shared by the service tests ---

// fakeResolver resolves tickers from a fixed table.
type fakeResolver struct {
	companies map[string]domain.Company
}

func newFakeResolver(companies ...domain.Company) *fakeResolver {
	r := &fakeResolver{companies: make(map[string]domain.Company)}
	for _, c := range companies {
		r.companies[c.Ticker] = c
	}
	return r
}

func (r *fakeResolver) Resolve(_ context.Context, ticker string) (*domain.Company, error) {
	c, ok := r.companies[domain.NormaliseTicker(ticker)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrIssuerNotFound, ticker)
	}
	return &c, nil
}

func (r *fakeResolver) Suggest(_ context.Context, query string, limit int) ([]domain.Company, error) {
	var out []domain.Company
	for _, c := range r.companies {
		if strings.HasPrefix(c.Ticker, domain.NormaliseTicker(query)) && len(out) < limit {
			out = append(out, c)
		}
	}
	return out, nil
}

// fakeRetriever serves a fixed number of filings per ticker.
type fakeRetriever struct {
	mu         sync.Mutex
	count      int
	failOn     map[string]bool
	listCalls  int
	gate       chan struct{}
	gateOpened chan struct{}
	gateOnce   sync.Once
}

func newFakeRetriever(count int) *fakeRetriever {
	return &fakeRetriever{count: count, failOn: make(map[string]bool)}
}

func accession(i int) string {
	return fmt.Sprintf("0000000001-24-%06d", i)
}

func (r *fakeRetriever) ListFilings(ctx context.Context, req driven.FetchRequest) ([]driven.FilingListing, error) {
	r.mu.Lock()
	r.listCalls++
	gate := r.gate
	r.mu.Unlock()

	if gate != nil {
		r.gateOnce.Do(func() { close(r.gateOpened) })
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	out := make([]driven.FilingListing, r.count)
	for i := range out {
		out[i] = driven.FilingListing{
			AccessionNumber: accession(i),
			FilingType:      domain.FilingType10Q,
			FiledDate:       req.End.AddDate(0, -i, 0),
			PrimaryDocument: fmt.Sprintf("doc%d.htm", i),
			DocumentURL:     fmt.Sprintf("https://www.sec.gov/Archives/%s/doc%d.htm", req.Company.CIK, i),
		}
	}
	return out, nil
}

func (r *fakeRetriever) Download(_ context.Context, c domain.Company, l driven.FilingListing) (*domain.RawFiling, error) {
	if r.failOn[l.AccessionNumber] {
		return nil, errors.New("download failed")
	}
	content := []byte("<html><body>filing " + l.AccessionNumber + "</body></html>")
	return &domain.RawFiling{
		Ticker:          c.Ticker,
		CIK:             c.CIK,
		CompanyName:     c.Name,
		AccessionNumber: l.AccessionNumber,
		FilingType:      l.FilingType,
		FiledDate:       l.FiledDate,
		PrimaryDocument: l.PrimaryDocument,
		DocumentURL:     l.DocumentURL,
		ContentType:     "text/html",
		Content:         content,
		ContentHash:     "hash-" + l.AccessionNumber,
	}, nil
}

// holdListings makes ListFilings block until release is called.
func (r *fakeRetriever) holdListings() (started <-chan struct{}, release func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gate = make(chan struct{})
	r.gateOpened = make(chan struct{})
	gate := r.gate
	var once sync.Once
	return r.gateOpened, func() { once.Do(func() { close(gate) }) }
}

// fakeParsers parses any content, failing for configured accessions.
type fakeParsers struct {
	failOn map[string]bool
}

func newFakeParsers() *fakeParsers {
	return &fakeParsers{failOn: make(map[string]bool)}
}

func (p *fakeParsers) Detect([]byte) domain.DocumentFormat { return domain.FormatHTML }
func (p *fakeParsers) Register(driven.Parser)              {}

func (p *fakeParsers) Parse(_ context.Context, raw *domain.RawFiling) (*domain.ParsedDocument, error) {
	if p.failOn[raw.AccessionNumber] {
		return nil, fmt.Errorf("%w: malformed markup", domain.ErrUnsupportedFormat)
	}
	text := "Revenue for " + raw.AccessionNumber + " increased. Risk factors include competition."
	return &domain.ParsedDocument{
		ID:              domain.DocumentID(raw.Ticker, raw.AccessionNumber),
		Ticker:          raw.Ticker,
		AccessionNumber: raw.AccessionNumber,
		FilingType:      raw.FilingType,
		FiledDate:       raw.FiledDate,
		URL:             raw.DocumentURL,
		ContentHash:     raw.ContentHash,
		Title:           raw.Title(),
		Format:          domain.FormatHTML,
		Text:            text,
		Sections:        []domain.Section{{Label: domain.SectionOther, Text: text}},
	}, nil
}

// fakePipeline emits a fixed number of chunks per document.
type fakePipeline struct {
	perDoc int
	failOn map[string]bool

	mu      sync.Mutex
	gate    chan struct{}
	started chan struct{}
	once    sync.Once
}

func newFakePipeline(perDoc int) *fakePipeline {
	return &fakePipeline{perDoc: perDoc, failOn: make(map[string]bool)}
}

// hold makes Process block until release is called.
func (p *fakePipeline) hold() (started <-chan struct{}, release func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gate = make(chan struct{})
	p.started = make(chan struct{})
	gate := p.gate
	var once sync.Once
	return p.started, func() { once.Do(func() { close(gate) }) }
}

func (p *fakePipeline) Process(ctx context.Context, doc *domain.ParsedDocument) ([]domain.Chunk, error) {
	p.mu.Lock()
	gate, started := p.gate, p.started
	p.mu.Unlock()
	if gate != nil {
		p.once.Do(func() { close(started) })
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.failOn[doc.AccessionNumber] {
		return nil, errors.New("chunker exploded")
	}
	chunks := make([]domain.Chunk, p.perDoc)
	for i := range chunks {
		text := fmt.Sprintf("%s part %d: %s", doc.Title, i, doc.Text)
		chunks[i] = domain.Chunk{
			ID:            domain.ChunkID(doc.ID, i),
			DocumentID:    doc.ID,
			ChunkIndex:    i,
			Section:       domain.SectionOther,
			Text:          text,
			TokenEstimate: domain.EstimateTokens(text),
		}
	}
	return chunks, nil
}

// fakeEmbedder hashes words into a small dense vector.
type fakeEmbedder struct {
	mu         sync.Mutex
	dims       int
	batchErr   error
	failSubstr string
	batchCalls int
	itemCalls  int
	vectors    map[string][]float32
}

func newFakeEmbedder() *fakeEmbedder {
	return &fakeEmbedder{dims: 16, vectors: make(map[string][]float32)}
}

func (e *fakeEmbedder) vector(text string) []float32 {
	if v, ok := e.vectors[text]; ok {
		return v
	}
	v := make([]float32, e.dims)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		v[h.Sum32()%uint32(e.dims)]++
	}
	return v
}

func (e *fakeEmbedder) rejects(text string) bool {
	return e.failSubstr != "" && strings.Contains(text, e.failSubstr)
}

func (e *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.itemCalls++
	if e.rejects(text) {
		return nil, errors.New("embedding rejected")
	}
	return e.vector(text), nil
}

func (e *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.batchCalls++
	if e.batchErr != nil {
		return nil, e.batchErr
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if e.rejects(t) {
			return nil, errors.New("batch contains a rejected text")
		}
		out[i] = e.vector(t)
	}
	return out, nil
}

func (e *fakeEmbedder) Dimensions() int            { return e.dims }
func (e *fakeEmbedder) ModelName() string          { return "fake-embed" }
func (e *fakeEmbedder) Ping(context.Context) error { return nil }
func (e *fakeEmbedder) Close() error               { return nil }

// recordingJobStore records every saved snapshot.
type recordingJobStore struct {
	*memory.JobStore

	mu    sync.Mutex
	saved []domain.ProcessingJob
}

func newRecordingJobStore() *recordingJobStore {
	return &recordingJobStore{JobStore: memory.NewJobStore()}
}

func (s *recordingJobStore) Save(ctx context.Context, job domain.ProcessingJob) error {
	s.mu.Lock()
	s.saved = append(s.saved, job)
	s.mu.Unlock()
	return s.JobStore.Save(ctx, job)
}

func (s *recordingJobStore) history(jobID string) []domain.ProcessingJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.ProcessingJob
	for _, j := range s.saved {
		if j.ID == jobID {
			out = append(out, j)
		}
	}
	return out
}

// fakeLLM returns canned text and records prompts.
type fakeLLM struct {
	mu         sync.Mutex
	answer     string
	related    string
	relatedErr error
	answerErr  error
	prompts    []string
	systems    []string
}

func (l *fakeLLM) Generate(_ context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prompts = append(l.prompts, prompt)
	l.systems = append(l.systems, opts.System)
	if strings.Contains(prompt, "follow-up") {
		return l.related, l.relatedErr
	}
	return l.answer, l.answerErr
}

func (l *fakeLLM) calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.prompts)
}

func (l *fakeLLM) ModelName() string          { return "fake-llm" }
func (l *fakeLLM) Ping(context.Context) error { return nil }
func (l *fakeLLM) Close() error               { return nil }

var acme = domain.Company{Ticker: "ACME", Name: "Acme Corp", CIK: "0000000001"}

// testHarness wires an orchestrator over in-memory stores and fakes.
type testHarness struct {
	resolver  *fakeResolver
	retriever *fakeRetriever
	parsers   *fakeParsers
	pipeline  *fakePipeline
	embedder  *fakeEmbedder
	index     *memory.VectorIndex
	jobs      *recordingJobStore
	metadata  *memory.MetadataStore
	svc       *IngestionOrchestrator
}

func newTestHarness(filings int, opts ...IngestionOption) *testHarness {
	h := &testHarness{
		resolver:  newFakeResolver(acme, domain.Company{Ticker: "BETA", Name: "Beta Inc", CIK: "0000000002"}),
		retriever: newFakeRetriever(filings),
		parsers:   newFakeParsers(),
		pipeline:  newFakePipeline(2),
		embedder:  newFakeEmbedder(),
		index:     memory.NewVectorIndex(),
		jobs:      newRecordingJobStore(),
		metadata:  memory.NewMetadataStore(),
	}
	h.svc = NewIngestionOrchestrator(
		h.resolver, h.retriever, h.parsers, h.pipeline,
		NewIndexer(h.embedder, h.index, 4),
		h.jobs, h.metadata,
		opts...,
	)
	return h
}

func (h *testHarness) wait(ctx context.Context, jobID string) (*domain.ProcessingJob, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return h.svc.Wait(ctx, jobID)
}
