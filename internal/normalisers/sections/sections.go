// Package sections splits normalised filing text into labelled sections
// and builds ParsedDocuments for the format parsers.
package sections

import (
	"regexp"
	"strings"

	"github.com/custodia-labs/sercha-filings/internal/core/domain"
)

// maxHeadingLength bounds a line that may open a section.
const maxHeadingLength = 160

// itemHeading matches "Item 1A. Risk Factors", "ITEM 7 - Management's ..." and similar.
var itemHeading = regexp.MustCompile(`(?i)^item\s+(\d{1,2}[a-z]?)\s*[.:\-\x{2013}\x{2014}]?\s*(.*)$`)

// Label maps a heading to the section vocabulary.
func Label(heading string) domain.SectionLabel {
	h := strings.ToLower(heading)
	h = strings.ReplaceAll(h, "’", "'")
	switch {
	case strings.Contains(h, "risk factors"):
		return domain.SectionRiskFactors
	case strings.Contains(h, "management's discussion"),
		strings.Contains(h, "managements discussion"),
		strings.Contains(h, "management discussion"):
		return domain.SectionManagementDiscussion
	case strings.Contains(h, "financial statements"):
		return domain.SectionFinancialStatements
	default:
		return domain.SectionOther
	}
}

// Detect splits text on item headings. Text before the first heading, and
// text with no recognisable headings, lands in an "other" section. Empty
// sections are dropped and adjacent sections with the same label merge.
func Detect(text string) []domain.Section {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var (
		out     []domain.Section
		current = domain.Section{Label: domain.SectionOther}
		body    []string
	)
	flush := func() {
		current.Text = strings.TrimSpace(strings.Join(body, "\n"))
		body = body[:0]
		if current.Text == "" {
			return
		}
		if n := len(out); n > 0 && out[n-1].Label == current.Label {
			out[n-1].Text += "\n" + current.Text
			return
		}
		out = append(out, current)
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if len(trimmed) <= maxHeadingLength && itemHeading.MatchString(trimmed) {
			flush()
			current = domain.Section{Label: Label(trimmed), Title: trimmed}
			continue
		}
		body = append(body, line)
	}
	flush()

	if len(out) == 0 {
		return []domain.Section{{Label: domain.SectionOther, Text: text}}
	}
	return out
}

// Document builds a ParsedDocument from a raw filing and its normalised text.
func Document(raw *domain.RawFiling, format domain.DocumentFormat, title, text string) *domain.ParsedDocument {
	if title == "" {
		title = raw.Title()
	}
	return &domain.ParsedDocument{
		ID:              domain.DocumentID(raw.Ticker, raw.AccessionNumber),
		Ticker:          raw.Ticker,
		AccessionNumber: raw.AccessionNumber,
		FilingType:      raw.FilingType,
		FiledDate:       raw.FiledDate,
		URL:             raw.DocumentURL,
		ContentHash:     raw.ContentHash,
		Title:           title,
		Format:          format,
		Text:            text,
		Sections:        Detect(text),
	}
}
