package postprocessors

import (
	"github.com/custodia-labs/sercha-filings/internal/core/domain"
	"github.com/custodia-labs/sercha-filings/internal/postprocessors/chunker"
	"github.com/custodia-labs/sercha-filings/internal/postprocessors/classifier"
)

// NewDefaultPipeline chunks every section and then tags tables and
// financial data.
func NewDefaultPipeline(s domain.ChunkerSettings) *Pipeline {
	return NewPipeline(
		chunker.New(chunker.FromSettings(s)...),
		classifier.New(),
	)
}
