package driven

import (
	"context"

	"github.com/custodia-labs/sercha-filings/internal/core/domain"
)

// PostProcessor is one stage after parsing. The first stage receives nil
// chunks and creates them; later stages annotate or filter what they get.
type PostProcessor interface {
	Name() string
	Process(ctx context.Context, doc *domain.ParsedDocument, chunks []domain.Chunk) ([]domain.Chunk, error)
}

// PostProcessorPipeline turns a parsed filing into the chunks to index.
type PostProcessorPipeline interface {
	Process(ctx context.Context, doc *domain.ParsedDocument) ([]domain.Chunk, error)
}
