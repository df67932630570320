package driven

import (
	"context"

	"github.com/custodia-labs/sercha-filings/internal/core/domain"
)

// Parser converts one raw filing format into a ParsedDocument.
type Parser interface {
	// Format returns the variant this parser handles.
	Format() domain.DocumentFormat

	// Parse normalises the filing. Unknown structure yields a single "other" section.
	Parse(ctx context.Context, raw *domain.RawFiling) (*domain.ParsedDocument, error)
}

// ParserRegistry selects a parser by sniffing content.
type ParserRegistry interface {
	// Detect returns the format the content looks like.
	Detect(content []byte) domain.DocumentFormat

	// Parse sniffs the content and dispatches to the matching parser.
	Parse(ctx context.Context, raw *domain.RawFiling) (*domain.ParsedDocument, error)

	// Register adds or replaces the parser for its format.
	Register(p Parser)
}
