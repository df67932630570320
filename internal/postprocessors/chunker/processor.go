// Package chunker provides a sentence-aware, section-scoped chunking processor.
package chunker

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/custodia-labs/sercha-filings/internal/core/domain"
	"github.com/custodia-labs/sercha-filings/internal/core/ports/driven"
)

var _ driven.PostProcessor = (*Processor)(nil)

const (
	// DefaultTargetSize is the target number of characters per chunk.
	DefaultTargetSize = 1000

	// DefaultMaxSize is the hard limit per chunk, matching the embedding input limit.
	DefaultMaxSize = 4000

	// DefaultOverlapSentences is the number of trailing sentences carried forward.
	DefaultOverlapSentences = 2
)

// Processor splits each section of a document into chunks of whole sentences.
// It implements the PostProcessor interface.
type Processor struct {
	targetSize int
	maxSize    int
	overlap    int
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithTargetSize sets the target chunk size in characters.
func WithTargetSize(size int) Option {
	return func(p *Processor) {
		if size > 0 {
			p.targetSize = size
		}
	}
}

// WithMaxSize sets the hard chunk size limit in characters.
func WithMaxSize(size int) Option {
	return func(p *Processor) {
		if size > 0 {
			p.maxSize = size
		}
	}
}

// WithOverlapSentences sets how many sentences carry into the next chunk.
func WithOverlapSentences(n int) Option {
	return func(p *Processor) {
		if n >= 0 {
			p.overlap = n
		}
	}
}

// FromSettings converts chunker settings to options.
func FromSettings(s domain.ChunkerSettings) []Option {
	return []Option{
		WithTargetSize(s.TargetSize),
		WithMaxSize(s.MaxSize),
		WithOverlapSentences(s.OverlapSentences),
	}
}

// New creates a new chunker processor with the given options.
func New(opts ...Option) *Processor {
	p := &Processor{
		targetSize: DefaultTargetSize,
		maxSize:    DefaultMaxSize,
		overlap:    DefaultOverlapSentences,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.maxSize < p.targetSize {
		p.maxSize = p.targetSize
	}
	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// Process chunks the document. Input chunks are ignored.
func (p *Processor) Process(ctx context.Context, doc *domain.ParsedDocument, _ []domain.Chunk) ([]domain.Chunk, error) {
	return p.Chunk(ctx, doc)
}

// Chunk splits every section into sentence-aligned chunks. ChunkIndex runs
// across the whole document. With overlap enabled, each chunk after the
// first in a section opens with the closing text of the one before it.
func (p *Processor) Chunk(ctx context.Context, doc *domain.ParsedDocument) ([]domain.Chunk, error) {
	if doc == nil {
		return nil, domain.ErrInvalidInput
	}

	sections := doc.Sections
	if len(sections) == 0 && strings.TrimSpace(doc.Text) != "" {
		sections = []domain.Section{{Label: domain.SectionOther, Text: doc.Text}}
	}

	var chunks []domain.Chunk
	for _, section := range sections {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, text := range p.split(section.Text) {
			chunks = append(chunks, newChunk(doc.ID, len(chunks), section, text))
		}
	}
	return chunks, nil
}

// split groups sentences into chunk texts for one section.
func (p *Processor) split(text string) []string {
	sentences := p.sentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var (
		out     []string
		current []string
		size    int
		fresh   int
	)
	emit := func() {
		out = append(out, strings.Join(current, " "))
		current = p.carry(current)
		size = joinedLen(current)
		fresh = 0
	}

	for _, s := range sentences {
		n := runeLen(s)
		if fresh > 0 && size+1+n > p.targetSize {
			emit()
		}
		// only carried text can be here; shrink it so the chunk stays under max
		if len(current) > 0 && size+1+n > p.maxSize {
			current = fitTail(current, p.maxSize-1-n)
			size = joinedLen(current)
		}
		if len(current) > 0 {
			size++
		}
		current = append(current, s)
		size += n
		fresh++
	}
	if fresh > 0 {
		out = append(out, strings.Join(current, " "))
	}
	return out
}

// carry returns the overlap that opens the next chunk: the last overlap
// sentences of chunk, bounded to half the target size. A single sentence
// over that bound is cut to its trailing words instead of being dropped.
func (p *Processor) carry(chunk []string) []string {
	keep := min(p.overlap, len(chunk))
	if keep == 0 {
		return nil
	}
	tail := append([]string(nil), chunk[len(chunk)-keep:]...)
	return fitTail(tail, max(p.targetSize/2, 1))
}

// fitTail drops leading sentences until parts fit in limit runes, then
// trims the last one to its trailing words. It returns nil when not even
// the final word fits.
func fitTail(parts []string, limit int) []string {
	for len(parts) > 1 && joinedLen(parts) > limit {
		parts = parts[1:]
	}
	if len(parts) == 0 || joinedLen(parts) <= limit {
		return parts
	}
	w := tailWords(parts[0], limit)
	if w == "" {
		return nil
	}
	return []string{w}
}

// tailWords returns the longest run of trailing words of s within limit runes.
func tailWords(s string, limit int) string {
	words := strings.Fields(s)
	size, start := 0, len(words)
	for i := len(words) - 1; i >= 0; i-- {
		n := runeLen(words[i])
		if start < len(words) {
			n++
		}
		if size+n > limit {
			break
		}
		size += n
		start = i
	}
	return strings.Join(words[start:], " ")
}

// sentences splits text into sentences, hard-splitting any sentence longer
// than the maximum chunk size on word boundaries.
func (p *Processor) sentences(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		for _, s := range splitSentences(line) {
			if runeLen(s) > p.maxSize {
				out = append(out, hardSplit(s, p.maxSize)...)
				continue
			}
			out = append(out, s)
		}
	}
	return out
}

// splitSentences breaks a line after terminal punctuation that is followed
// by whitespace and an upper-case letter, digit or opening quote.
func splitSentences(line string) []string {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	runes := []rune(line)
	var out []string
	start := 0
	for i := 0; i < len(runes); i++ {
		if !isTerminal(runes[i]) {
			continue
		}
		end := i + 1
		for end < len(runes) && isCloser(runes[end]) {
			end++
		}
		if end >= len(runes) || !unicode.IsSpace(runes[end]) {
			continue
		}
		next := end
		for next < len(runes) && unicode.IsSpace(runes[next]) {
			next++
		}
		if next < len(runes) && startsSentence(runes[next]) {
			if s := strings.TrimSpace(string(runes[start:end])); s != "" {
				out = append(out, s)
			}
			start = next
			i = next - 1
		}
	}
	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		out = append(out, s)
	}
	return out
}

// hardSplit cuts s into pieces of at most limit runes, breaking between words.
// A single word longer than limit is cut mid-word.
func hardSplit(s string, limit int) []string {
	var (
		out  []string
		cur  strings.Builder
		size int
	)
	flush := func() {
		if cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
			size = 0
		}
	}
	for _, word := range strings.Fields(s) {
		for runeLen(word) > limit {
			flush()
			r := []rune(word)
			out = append(out, string(r[:limit]))
			word = string(r[limit:])
		}
		n := runeLen(word)
		if size > 0 && size+1+n > limit {
			flush()
		}
		if size > 0 {
			cur.WriteByte(' ')
			size++
		}
		cur.WriteString(word)
		size += n
	}
	flush()
	return out
}

func newChunk(docID string, index int, section domain.Section, text string) domain.Chunk {
	metadata := map[string]any{
		"word_count":      len(strings.Fields(text)),
		"character_count": runeLen(text),
	}
	if section.Title != "" {
		metadata["section_title"] = section.Title
	}
	return domain.Chunk{
		ID:            domain.ChunkID(docID, index),
		DocumentID:    docID,
		ChunkIndex:    index,
		Section:       section.Label,
		Text:          text,
		TokenEstimate: domain.EstimateTokens(text),
		Metadata:      metadata,
	}
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func isCloser(r rune) bool {
	return r == '"' || r == '\'' || r == ')' || r == '”' || r == '’'
}

func startsSentence(r rune) bool {
	return unicode.IsUpper(r) || unicode.IsDigit(r) || r == '"' || r == '“' || r == '(' || r == '$'
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

func joinedLen(parts []string) int {
	if len(parts) == 0 {
		return 0
	}
	n := len(parts) - 1
	for _, p := range parts {
		n += runeLen(p)
	}
	return n
}
