package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-filings/internal/core/domain"
	"github.com/custodia-labs/sercha-filings/internal/core/ports/driving"
)

// progressInterval is how often a followed job is polled.
var progressInterval = time.Second

var (
	processYears int
	processForce bool
	processJSON  bool
)

var processCmd = &cobra.Command{
	Use:   "process [ticker]",
	Short: "Download and index a company's filings",
	Long: `Downloads the company's 10-K, 10-Q, 8-K and DEF 14A filings from EDGAR for
the chosen window, parses and chunks them, and builds the vector index used by
the query command.

The job runs in the foreground and prints progress until it completes.
Interrupting it cancels the job. A complete job for the same ticker and window
is reused unless --force is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runProcess,
}

func init() {
	processCmd.Flags().IntVarP(&processYears, "years", "y", domain.DefaultTimeRangeYears, "look-back window in years (1, 3 or 5)")
	processCmd.Flags().BoolVar(&processForce, "force", false, "re-process even if a complete job exists")
	processCmd.Flags().BoolVar(&processJSON, "json", false, "print the final job as JSON")
	rootCmd.AddCommand(processCmd)
}

func runProcess(cmd *cobra.Command, args []string) error {
	if ingestionService == nil {
		return errIngestionUnavailable
	}
	ctx := cmd.Context()

	job, err := ingestionService.Submit(ctx, driving.SubmitRequest{
		Ticker:         args[0],
		TimeRangeYears: processYears,
		Force:          processForce,
	})
	if err != nil {
		return fmt.Errorf("failed to start processing: %w", err)
	}

	if job.Phase == domain.PhaseComplete {
		if !processJSON {
			cmd.Printf("%s is already indexed (job %s). Use --force to re-process.\n", job.Ticker, job.ID)
		}
	} else {
		if !processJSON {
			cmd.Printf("Processing %s (%d years), job %s\n", job.Ticker, job.TimeRangeYears, job.ID)
		}
		job, err = followJob(ctx, cmd, job.ID, !processJSON)
		if err != nil {
			return err
		}
	}

	if processJSON {
		if err := printJSON(cmd, job); err != nil {
			return err
		}
	} else {
		cmd.Println()
		printJob(cmd, job)
	}

	if job.Phase == domain.PhaseError {
		if job.Cancelled {
			return fmt.Errorf("job %s was cancelled", job.ID)
		}
		return fmt.Errorf("job %s failed: %s", job.ID, job.Error)
	}
	return nil
}

// followJob polls a job until it reaches a terminal phase, printing a line
// whenever its progress changes.
func followJob(ctx context.Context, cmd *cobra.Command, jobID string, show bool) (*domain.ProcessingJob, error) {
	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()

	last := ""
	for {
		job, err := ingestionService.Status(ctx, jobID)
		if err != nil {
			return nil, fmt.Errorf("failed to read job status: %w", err)
		}
		if line := progressLine(job); show && line != last {
			cmd.Println(line)
			last = line
		}
		if job.IsTerminal() {
			return job, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
