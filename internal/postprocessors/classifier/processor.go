// Package classifier tags chunks that hold tables or financial figures.
package classifier

import (
	"context"
	"regexp"
	"strings"

	"github.com/custodia-labs/sercha-filings/internal/core/domain"
	"github.com/custodia-labs/sercha-filings/internal/core/ports/driven"
)

var _ driven.PostProcessor = (*Processor)(nil)

// Metadata keys written by the classifier.
const (
	KeyIsTable         = "is_table"
	KeyIsFinancialData = "is_financial_data"
)

// cellSeparator is how the markup parsers render table cells.
const cellSeparator = " | "

var (
	amountPattern = regexp.MustCompile(`\$\s?\d|\d[\d,]*\.?\d*\s?(?:%|million|billion|thousand)`)
	numberPattern = regexp.MustCompile(`\d[\d,]{2,}`)
)

// financialTerms are line items that mark a chunk as financial data when an amount appears.
var financialTerms = []string{
	"revenue",
	"net income",
	"net loss",
	"earnings per share",
	"total assets",
	"total liabilities",
	"cash flow",
	"operating income",
	"gross margin",
	"ebitda",
	"stockholders' equity",
}

// Processor annotates chunks in place. It never adds or removes chunks.
type Processor struct{}

// New creates a classifier processor.
func New() *Processor {
	return &Processor{}
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "classifier"
}

// Process sets is_table and is_financial_data on every chunk.
func (p *Processor) Process(ctx context.Context, _ *domain.ParsedDocument, chunks []domain.Chunk) ([]domain.Chunk, error) {
	out := make([]domain.Chunk, len(chunks))
	for i, c := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		metadata := make(map[string]any, len(c.Metadata)+2)
		for k, v := range c.Metadata {
			metadata[k] = v
		}
		table := IsTable(c.Text)
		metadata[KeyIsTable] = table
		metadata[KeyIsFinancialData] = IsFinancialData(c.Section, c.Text, table)
		c.Metadata = metadata
		out[i] = c
	}
	return out, nil
}

// IsTable reports whether most of the text is rendered table rows.
// Chunk text joins rows with spaces, so cells are counted against sentences.
func IsTable(text string) bool {
	cells := strings.Count(text, cellSeparator)
	if cells == 0 {
		return false
	}
	sentences := strings.Count(text, ". ") + 1
	return cells >= 2 && cells >= sentences
}

// IsFinancialData reports whether the chunk carries financial figures.
func IsFinancialData(section domain.SectionLabel, text string, table bool) bool {
	if section == domain.SectionFinancialStatements {
		return true
	}
	if table && numberPattern.MatchString(text) {
		return true
	}
	if !amountPattern.MatchString(text) {
		return false
	}
	lower := strings.ToLower(text)
	for _, term := range financialTerms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}
