// Package xbrl parses inline XBRL filings and bare XBRL instance documents.
package xbrl

import (
	"context"
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/custodia-labs/sercha-filings/internal/core/domain"
	"github.com/custodia-labs/sercha-filings/internal/core/ports/driven"
	htmlparser "github.com/custodia-labs/sercha-filings/internal/normalisers/html"
	"github.com/custodia-labs/sercha-filings/internal/normalisers/sections"
)

var _ driven.Parser = (*Parser)(nil)

// Parser handles inline XBRL and XBRL instance documents.
type Parser struct{}

// New creates a new XBRL parser.
func New() *Parser {
	return &Parser{}
}

// Format returns the variant this parser handles.
func (p *Parser) Format() domain.DocumentFormat {
	return domain.FormatXBRL
}

var (
	// ix:header carries hidden contexts and units, not readable text.
	ixHeader = regexp.MustCompile(`(?is)<ix:header>.*?</ix:header>`)
	htmlTag  = regexp.MustCompile(`(?i)<(html|body)[\s>]`)
	fact     = regexp.MustCompile(`(?s)<([a-zA-Z][\w-]*):([A-Za-z][\w]*)\b([^>]*)>([^<]+)</[a-zA-Z][\w-]*:[A-Za-z][\w]*>`)
)

// skipPrefixes are instance namespaces that carry structure rather than facts.
var skipPrefixes = map[string]bool{
	"xbrli": true, "link": true, "xlink": true, "xbrldi": true, "iso4217": true,
}

// Parse converts an XBRL filing to a ParsedDocument.
func (p *Parser) Parse(_ context.Context, raw *domain.RawFiling) (*domain.ParsedDocument, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}
	content := ixHeader.ReplaceAllString(string(raw.Content), "")

	var text, title string
	if htmlTag.MatchString(content) {
		text = htmlparser.Text(content)
		title = htmlparser.Title(content)
	} else {
		text = Facts(content)
	}
	if text == "" {
		return nil, fmt.Errorf("%w: no text in %s", domain.ErrInvalidInput, raw.AccessionNumber)
	}

	return sections.Document(raw, domain.FormatXBRL, title, text), nil
}

// Facts renders the text facts of an XBRL instance one per line, as
// "Concept Name: value".
func Facts(content string) string {
	var lines []string
	for _, m := range fact.FindAllStringSubmatch(content, -1) {
		if skipPrefixes[strings.ToLower(m[1])] {
			continue
		}
		value := strings.TrimSpace(html.UnescapeString(m[4]))
		if value == "" {
			continue
		}
		lines = append(lines, conceptName(m[2])+": "+value)
	}
	return strings.Join(lines, "\n")
}

// conceptName splits a CamelCase concept into words.
func conceptName(concept string) string {
	var b strings.Builder
	for i, r := range concept {
		if i > 0 && r >= 'A' && r <= 'Z' {
			prev := concept[i-1]
			if prev >= 'a' && prev <= 'z' {
				b.WriteByte(' ')
			}
		}
		b.WriteRune(r)
	}
	return b.String()
}
