// Package postprocessors turns parsed filings into classified chunks.
package postprocessors

import (
	"context"
	"fmt"

	"github.com/custodia-labs/sercha-filings/internal/core/domain"
	"github.com/custodia-labs/sercha-filings/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-filings/internal/logger"
)

var _ driven.PostProcessorPipeline = (*Pipeline)(nil)

// Pipeline runs post-processors in order. The first stage receives no
// chunks and creates them; later stages annotate or replace them.
//
// After every stage each chunk must belong to the document being processed
// and chunk IDs must be unique, since the index upserts by ID.
type Pipeline struct {
	stages []driven.PostProcessor
}

// NewPipeline creates a pipeline of the given stages.
func NewPipeline(stages ...driven.PostProcessor) *Pipeline {
	return &Pipeline{stages: stages}
}

// Process runs doc through every stage.
func (p *Pipeline) Process(ctx context.Context, doc *domain.ParsedDocument) ([]domain.Chunk, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: document is nil", domain.ErrInvalidInput)
	}

	var chunks []domain.Chunk
	for _, stage := range p.stages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out, err := stage.Process(ctx, doc, chunks)
		if err == nil {
			err = checkChunks(doc.ID, out)
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", stage.Name(), err)
		}
		chunks = out
	}

	logger.Debug("Post-processed %s into %d chunks", doc.ID, len(chunks))
	return chunks, nil
}

func checkChunks(docID string, chunks []domain.Chunk) error {
	seen := make(map[string]struct{}, len(chunks))
	for i := range chunks {
		c := &chunks[i]
		if c.DocumentID != docID {
			return fmt.Errorf("%w: chunk %d belongs to %q, not %q", domain.ErrInvalidInput, i, c.DocumentID, docID)
		}
		if _, dup := seen[c.ID]; dup {
			return fmt.Errorf("%w: duplicate chunk id %q", domain.ErrInvalidInput, c.ID)
		}
		seen[c.ID] = struct{}{}
	}
	return nil
}

// Names returns the stage names in execution order.
func (p *Pipeline) Names() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name()
	}
	return names
}

// Len returns the number of stages.
func (p *Pipeline) Len() int {
	return len(p.stages)
}
