package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-filings/internal/core/domain"
)

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

// progressLine is a one-line summary used while following a job.
func progressLine(j *domain.ProcessingJob) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%3.0f%%] %-11s", j.Progress, j.Phase)
	switch j.Phase {
	case domain.PhaseScraping, domain.PhaseParsing:
		fmt.Fprintf(&b, " documents %d/%d", j.DocumentsProcessed, j.DocumentsFound)
	case domain.PhaseChunking:
		fmt.Fprintf(&b, " documents %d/%d, chunks %d", j.PhaseCompleted, j.PhaseTotal, j.ChunksCreated)
	case domain.PhaseVectorizing:
		fmt.Fprintf(&b, " chunks %d/%d", j.ChunksVectorized, j.ChunksCreated)
	case domain.PhaseComplete:
		fmt.Fprintf(&b, " %d documents, %d chunks", j.DocumentsProcessed, j.ChunksVectorized)
	case domain.PhaseError:
		fmt.Fprintf(&b, " %s", j.Error)
	}
	return b.String()
}

func printJob(cmd *cobra.Command, j *domain.ProcessingJob) {
	cmd.Printf("Job:        %s\n", j.ID)
	cmd.Printf("Ticker:     %s (%d years)\n", j.Ticker, j.TimeRangeYears)
	cmd.Printf("Phase:      %s\n", j.Phase)
	cmd.Printf("Progress:   %.0f%%\n", j.Progress)
	cmd.Printf("Documents:  %d found, %d processed, %d failed\n", j.DocumentsFound, j.DocumentsProcessed, j.DocumentsFailed)
	cmd.Printf("Chunks:     %d created, %d vectorized, %d failed\n", j.ChunksCreated, j.ChunksVectorized, j.ChunksFailed)
	cmd.Printf("Started:    %s\n", j.StartedAt.Local().Format(time.DateTime))
	if j.CompletedAt != nil {
		cmd.Printf("Finished:   %s (%s)\n", j.CompletedAt.Local().Format(time.DateTime),
			j.CompletedAt.Sub(j.StartedAt).Round(time.Second))
	} else if j.EstimatedTimeRemaining != nil {
		cmd.Printf("Remaining:  ~%s\n", j.EstimatedTimeRemaining.Round(time.Second))
	}
	if j.Phase == domain.PhaseError {
		if j.Cancelled {
			cmd.Printf("Cancelled:  during %s\n", j.FailedPhase)
		} else {
			cmd.Printf("Error:      %s (during %s)\n", j.Error, j.FailedPhase)
		}
	}
}
