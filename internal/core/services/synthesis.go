package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/custodia-labs/sercha-filings/internal/core/domain"
	"github.com/custodia-labs/sercha-filings/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-filings/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-filings/internal/logger"
)

// Ensure SynthesisEngine implements the interface.
var _ driving.QueryService = (*SynthesisEngine)(nil)

// Retrieval defaults.
const (
	DefaultTopK             = 8
	DefaultThreshold        = 0.7
	DefaultRelatedQuestions = 3
	DefaultExcerptLength    = 300

	// MinExcerptLength is the shortest excerpt_length the settings accept.
	MinExcerptLength = 20

	answerMaxTokens  = 1024
	relatedMaxTokens = 256
)

// SynthesisConfig tunes retrieval and generation.
type SynthesisConfig struct {
	// TopK is the maximum number of context chunks.
	TopK int

	// Threshold is the minimum cosine similarity for a chunk to be used.
	Threshold float64

	// RelatedQuestions is how many follow-ups to suggest. Zero disables them.
	RelatedQuestions int

	// ExcerptLength caps citation excerpts in characters.
	ExcerptLength int
}

// DefaultSynthesisConfig returns the default retrieval settings.
func DefaultSynthesisConfig() SynthesisConfig {
	return SynthesisConfig{
		TopK:             DefaultTopK,
		Threshold:        DefaultThreshold,
		RelatedQuestions: DefaultRelatedQuestions,
		ExcerptLength:    DefaultExcerptLength,
	}
}

// SynthesisConfigFrom converts persisted retrieval settings, keeping
// defaults for unset counts. The threshold is taken as is: zero is a
// valid setting that disables filtering.
func SynthesisConfigFrom(s domain.RetrievalSettings) SynthesisConfig {
	cfg := DefaultSynthesisConfig()
	if s.TopK > 0 {
		cfg.TopK = s.TopK
	}
	cfg.Threshold = s.Threshold
	cfg.RelatedQuestions = max(s.RelatedQuestions, 0)
	if s.ExcerptLength > 0 {
		cfg.ExcerptLength = s.ExcerptLength
	}
	return cfg
}

// contextChunk is a retrieved chunk with the document it belongs to.
type contextChunk struct {
	hit   domain.VectorHit
	chunk *domain.Chunk
	doc   *domain.DocumentRecord
}

// SynthesisEngine answers questions from one ticker's indexed filings.
type SynthesisEngine struct {
	jobs     driven.JobStore
	embedder driven.EmbeddingService
	index    driven.VectorIndex
	metadata driven.MetadataStore
	llm      driven.LLMService
	prompts  driven.PromptStore
	cfg      SynthesisConfig
	now      func() time.Time
}

// NewSynthesisEngine creates a new engine.
// The llm parameter is optional; without it only insufficient-information
// answers can be produced.
func NewSynthesisEngine(
	jobs driven.JobStore,
	embedder driven.EmbeddingService,
	index driven.VectorIndex,
	metadata driven.MetadataStore,
	llm driven.LLMService,
	cfg SynthesisConfig,
) *SynthesisEngine {
	return &SynthesisEngine{
		jobs:     jobs,
		embedder: embedder,
		index:    index,
		metadata: metadata,
		llm:      llm,
		cfg:      cfg,
		now:      time.Now,
	}
}

// SetPromptStore sets the source of prompt templates.
// Without one the built-in defaults are used.
func (s *SynthesisEngine) SetPromptStore(store driven.PromptStore) {
	s.prompts = store
}

// Answer retrieves context for the question and generates a grounded answer.
func (s *SynthesisEngine) Answer(ctx context.Context, req domain.QueryRequest) (*domain.QueryResult, error) {
	start := s.now()
	question := strings.TrimSpace(req.Question)
	ticker := domain.NormaliseTicker(req.Ticker)
	if question == "" {
		return nil, fmt.Errorf("%w: question is required", domain.ErrInvalidInput)
	}
	if ticker == "" {
		return nil, fmt.Errorf("%w: ticker is required", domain.ErrInvalidInput)
	}

	logger.Section("Query " + ticker)
	logger.Debug("Question: %q", question)

	if err := s.checkReady(ctx, ticker); err != nil {
		return nil, err
	}

	entry := domain.QueryLog{
		ID:           uuid.NewString(),
		Question:     question,
		QuestionHash: questionHash(question),
		SessionID:    req.SessionID,
		Ticker:       ticker,
		CreatedAt:    start,
	}

	result, chunks, err := s.answer(ctx, ticker, question)
	entry.LatencyMs = s.now().Sub(start).Milliseconds()
	entry.ChunksRetrieved = len(chunks)
	if len(chunks) > 0 {
		entry.TopScore = chunks[0].hit.Score
	}
	switch {
	case err != nil:
		entry.Status = domain.QueryStatusFailed
		entry.Error = err.Error()
	case len(chunks) == 0:
		entry.Status = domain.QueryStatusInsufficient
		entry.Answer = result.Answer
	default:
		entry.Status = domain.QueryStatusAnswered
		entry.Answer = result.Answer
	}
	s.logQuery(ctx, entry)

	if err != nil {
		return nil, err
	}
	result.LatencyMs = entry.LatencyMs
	logger.Info("Answered %s query with %d citations in %dms (%s)",
		ticker, len(result.Citations), result.LatencyMs, s.models())
	return result, nil
}

// models names the embedding and generation models for log lines.
func (s *SynthesisEngine) models() string {
	name := func(m interface{ ModelName() string }) string {
		if m == nil {
			return "none"
		}
		return m.ModelName()
	}
	return "embed=" + name(s.embedder) + " llm=" + name(s.llm)
}

// checkReady requires a complete job and no running job for the ticker.
func (s *SynthesisEngine) checkReady(ctx context.Context, ticker string) error {
	jobs, err := s.jobs.ListByTicker(ctx, ticker)
	if err != nil {
		return fmt.Errorf("load jobs for %s: %w", ticker, err)
	}
	complete := false
	for _, j := range jobs {
		if !j.IsTerminal() {
			return fmt.Errorf("%w: %s is still being processed (%s, %.0f%%)",
				domain.ErrNotReady, ticker, j.Phase, j.Progress)
		}
		if j.Phase == domain.PhaseComplete {
			complete = true
		}
	}
	if !complete {
		return fmt.Errorf("%w: %s has not been processed", domain.ErrNotReady, ticker)
	}
	return nil
}

func (s *SynthesisEngine) answer(
	ctx context.Context,
	ticker, question string,
) (*domain.QueryResult, []contextChunk, error) {
	if s.embedder == nil {
		return nil, nil, domain.ErrEmbeddingUnavailable
	}
	vec, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return nil, nil, fmt.Errorf("embed question: %w", err)
	}

	hits, err := s.index.Search(ctx, vec, domain.SearchOptions{
		Ticker:   ticker,
		TopK:     s.cfg.TopK,
		MinScore: s.cfg.Threshold,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("search index: %w", err)
	}

	chunks := s.hydrate(ctx, ticker, hits)
	logger.Debug("Retrieved %d hits, %d usable chunks", len(hits), len(chunks))
	if len(chunks) == 0 {
		return &domain.QueryResult{
			Answer:           domain.InsufficientInformationAnswer,
			Citations:        []domain.Citation{},
			RelatedQuestions: []string{},
		}, nil, nil
	}

	if s.llm == nil {
		return nil, chunks, domain.ErrLLMUnavailable
	}

	contextBlock := buildContext(chunks)
	system := s.prompt(driven.PromptAnswerSystem)
	prompt := fmt.Sprintf(s.prompt(driven.PromptAnswer), ticker, contextBlock, question)
	answer, err := s.llm.Generate(ctx, prompt, driven.GenerateOptions{
		System:      system,
		MaxTokens:   answerMaxTokens,
		Temperature: 0,
	})
	if err != nil {
		return nil, chunks, fmt.Errorf("generate answer: %w", err)
	}

	citations := make([]domain.Citation, len(chunks))
	for i, c := range chunks {
		citations[i] = s.citation(c)
	}

	return &domain.QueryResult{
		Answer:           strings.TrimSpace(answer),
		Citations:        citations,
		RelatedQuestions: s.related(ctx, contextBlock, question),
	}, chunks, nil
}

// hydrate loads chunk text and document metadata for each hit, dropping
// hits from other tickers, below the threshold, or no longer stored.
func (s *SynthesisEngine) hydrate(ctx context.Context, ticker string, hits []domain.VectorHit) []contextChunk {
	out := make([]contextChunk, 0, len(hits))
	for _, h := range hits {
		if h.Metadata.Ticker != ticker || h.Score < s.cfg.Threshold {
			continue
		}
		chunk, err := s.metadata.GetChunk(ctx, h.ChunkID)
		if err != nil {
			logger.Debug("Skipping hit %s: %v", h.ChunkID, err)
			continue
		}
		docID := h.Metadata.DocumentID
		if docID == "" {
			docID = chunk.DocumentID
		}
		doc, err := s.metadata.GetDocument(ctx, docID)
		if err != nil {
			logger.Debug("Skipping hit %s, document %s: %v", h.ChunkID, docID, err)
			continue
		}
		out = append(out, contextChunk{hit: h, chunk: chunk, doc: doc})
		if s.cfg.TopK > 0 && len(out) >= s.cfg.TopK {
			break
		}
	}
	return out
}

// related asks for follow-up questions. Failures leave the list empty.
func (s *SynthesisEngine) related(ctx context.Context, contextBlock, question string) []string {
	if s.cfg.RelatedQuestions <= 0 {
		return []string{}
	}
	prompt := fmt.Sprintf(s.prompt(driven.PromptRelatedQuestions), s.cfg.RelatedQuestions, contextBlock, question)
	text, err := s.llm.Generate(ctx, prompt, driven.GenerateOptions{
		MaxTokens:   relatedMaxTokens,
		Temperature: 0.3,
	})
	if err != nil {
		logger.Warn("Generating related questions: %v", err)
		return []string{}
	}
	return parseQuestions(text, s.cfg.RelatedQuestions)
}

func (s *SynthesisEngine) citation(c contextChunk) domain.Citation {
	return domain.Citation{
		ChunkID:        c.chunk.ID,
		DocumentTitle:  c.doc.Title,
		FilingType:     c.doc.FilingType,
		FiledDate:      c.doc.FiledDate,
		Section:        c.chunk.Section,
		PageNumber:     c.chunk.PageNumber,
		Excerpt:        excerpt(c.chunk.Text, s.cfg.ExcerptLength),
		RelevanceScore: c.hit.Score,
		URL:            c.doc.URL,
	}
}

// prompt loads a template, falling back to the built-in default.
func (s *SynthesisEngine) prompt(name string) string {
	if s.prompts != nil {
		p, err := s.prompts.Load(name)
		if err == nil && p != "" {
			return p
		}
		logger.Debug("Prompt %s unavailable, using default: %v", name, err)
	}
	return driven.DefaultPrompts()[name]
}

func (s *SynthesisEngine) logQuery(ctx context.Context, entry domain.QueryLog) {
	if s.metadata == nil {
		return
	}
	if err := s.metadata.LogQuery(ctx, entry); err != nil {
		logger.Warn("Logging query %s: %v", entry.ID, err)
	}
}

// buildContext numbers the chunks in relevance order.
func buildContext(chunks []contextChunk) string {
	var b strings.Builder
	for i, c := range chunks {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%d] %s, section %s\n%s", i+1, c.doc.Title, c.chunk.Section, c.chunk.Text)
	}
	return b.String()
}

// excerpt trims text to at most limit characters on a word boundary.
func excerpt(text string, limit int) string {
	text = strings.Join(strings.Fields(text), " ")
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	const ellipsis = "..."
	runes := []rune(text)
	if limit <= len(ellipsis) {
		return string(runes[:limit])
	}
	cut := string(runes[:limit-len(ellipsis)])
	if i := strings.LastIndexByte(cut, ' '); i > len(cut)/2 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,;:") + ellipsis
}

// parseQuestions extracts up to limit questions from one-per-line model output.
func parseQuestions(text string, limit int) []string {
	out := []string{}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*•0123456789.) ")
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, line)
		if len(out) == limit {
			break
		}
	}
	return out
}

func questionHash(question string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(question)))
	return hex.EncodeToString(sum[:])
}

