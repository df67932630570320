// Package plaintext parses plain text filings, including the SGML-wrapped
// .txt submissions the archive serves for older filings.
package plaintext

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/sercha-filings/internal/core/domain"
	"github.com/custodia-labs/sercha-filings/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-filings/internal/normalisers/sections"
)

// Ensure Parser implements the interface.
var _ driven.Parser = (*Parser)(nil)

// Parser handles plain text filings. It is the fallback variant.
type Parser struct{}

// New creates a new plain text parser.
func New() *Parser {
	return &Parser{}
}

// Format returns the variant this parser handles.
func (p *Parser) Format() domain.DocumentFormat {
	return domain.FormatText
}

var (
	secHeader   = regexp.MustCompile(`(?is)<SEC-HEADER>.*?</SEC-HEADER>`)
	sgmlLine    = regexp.MustCompile(`^</?(DOCUMENT|TYPE|SEQUENCE|FILENAME|DESCRIPTION|TEXT|PAGE|SEC-DOCUMENT|PDF)>.*$`)
	multiSpaces = regexp.MustCompile(`[ \t]+`)
)

// Parse converts a text filing to a ParsedDocument.
func (p *Parser) Parse(_ context.Context, raw *domain.RawFiling) (*domain.ParsedDocument, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}
	if !utf8.Valid(raw.Content) {
		return nil, fmt.Errorf("%w: %s is not valid UTF-8 text", domain.ErrUnsupportedFormat, raw.AccessionNumber)
	}

	text := Clean(string(raw.Content))
	if text == "" {
		return nil, fmt.Errorf("%w: no text in %s", domain.ErrInvalidInput, raw.AccessionNumber)
	}
	return sections.Document(raw, domain.FormatText, "", text), nil
}

// Clean normalises line endings and whitespace and drops submission markup.
func Clean(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")
	content = secHeader.ReplaceAllString(content, "")

	lines := strings.Split(content, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(multiSpaces.ReplaceAllString(line, " "))
		if line == "" || sgmlLine.MatchString(line) {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
