package normalisers

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/sercha-filings/internal/core/domain"
	"github.com/custodia-labs/sercha-filings/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-filings/internal/normalisers/html"
	"github.com/custodia-labs/sercha-filings/internal/normalisers/plaintext"
	"github.com/custodia-labs/sercha-filings/internal/normalisers/xbrl"
)

var _ driven.ParserRegistry = (*Registry)(nil)

// sniffLimit bounds how much content Detect inspects.
const sniffLimit = 64 << 10

// Registry selects a parser by content sniffing.
type Registry struct {
	mu      sync.RWMutex
	parsers map[domain.DocumentFormat]driven.Parser
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[domain.DocumentFormat]driven.Parser)}
}

// NewDefaultRegistry creates a registry with the html, xbrl and text parsers.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(html.New())
	r.Register(xbrl.New())
	r.Register(plaintext.New())
	return r
}

// Register adds or replaces the parser for its format.
func (r *Registry) Register(p driven.Parser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parsers[p.Format()] = p
}

// Detect returns the format the content looks like. Declared content
// types and file extensions are not consulted.
func Detect(content []byte) domain.DocumentFormat {
	head := content
	if len(head) > sniffLimit {
		head = head[:sniffLimit]
	}
	head = bytes.ToLower(head)

	switch {
	case bytes.Contains(head, []byte("xmlns:ix=")),
		bytes.Contains(head, []byte("<ix:header")),
		bytes.Contains(head, []byte("<xbrli:xbrl")),
		bytes.Contains(head, []byte("<xbrl ")),
		bytes.Contains(head, []byte("<xbrl>")):
		return domain.FormatXBRL
	case bytes.Contains(head, []byte("<html")),
		bytes.Contains(head, []byte("<!doctype html")),
		bytes.Contains(head, []byte("<body")),
		bytes.Contains(head, []byte("<div")),
		bytes.Contains(head, []byte("<p>")),
		bytes.Contains(head, []byte("<table")):
		return domain.FormatHTML
	default:
		return domain.FormatText
	}
}

// Detect returns the format the content looks like.
func (r *Registry) Detect(content []byte) domain.DocumentFormat {
	return Detect(content)
}

// Parse sniffs the content and dispatches to the matching parser.
func (r *Registry) Parse(ctx context.Context, raw *domain.RawFiling) (*domain.ParsedDocument, error) {
	if raw == nil || len(bytes.TrimSpace(raw.Content)) == 0 {
		return nil, fmt.Errorf("%w: empty filing", domain.ErrInvalidInput)
	}

	format := Detect(raw.Content)
	r.mu.RLock()
	p, ok := r.parsers[format]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: no parser for %s", domain.ErrUnsupportedFormat, format)
	}

	doc, err := p.Parse(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("parse %s as %s: %w", raw.AccessionNumber, format, err)
	}
	return doc, nil
}
