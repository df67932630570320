package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-filings/internal/core/domain"
)

var (
	statusJobID string
	statusJSON  bool
	cancelJobID string
)

var statusCmd = &cobra.Command{
	Use:   "status [ticker]",
	Short: "Show the progress of a processing job",
	Long: `Shows the most recent job for a ticker, or a specific job with --job.
Jobs started by another process are visible when the status backend is
sqlite or redis.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

var cancelCmd = &cobra.Command{
	Use:   "cancel [ticker]",
	Short: "Cancel a running processing job",
	Long: `Requests cancellation of the running job for a ticker, or of a specific
job with --job. The job stops at its next checkpoint and ends in the error
phase.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCancel,
}

func init() {
	statusCmd.Flags().StringVar(&statusJobID, "job", "", "job ID instead of a ticker")
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output as JSON")
	cancelCmd.Flags().StringVar(&cancelJobID, "job", "", "job ID instead of a ticker")
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(cancelCmd)
}

var errTickerOrJob = errors.New("a ticker or --job is required")

func runStatus(cmd *cobra.Command, args []string) error {
	if ingestionService == nil {
		return errIngestionUnavailable
	}

	var (
		job *domain.ProcessingJob
		err error
	)
	switch {
	case statusJobID != "":
		job, err = ingestionService.Status(cmd.Context(), statusJobID)
	case len(args) == 1:
		job, err = ingestionService.StatusByTicker(cmd.Context(), args[0])
	default:
		return errTickerOrJob
	}
	if errors.Is(err, domain.ErrNotFound) {
		return errors.New("no processing job found")
	}
	if err != nil {
		return fmt.Errorf("failed to get status: %w", err)
	}

	if statusJSON {
		return printJSON(cmd, job)
	}
	printJob(cmd, job)
	return nil
}

func runCancel(cmd *cobra.Command, args []string) error {
	if ingestionService == nil {
		return errIngestionUnavailable
	}

	var err error
	switch {
	case cancelJobID != "":
		err = ingestionService.Cancel(cmd.Context(), cancelJobID)
	case len(args) == 1:
		err = ingestionService.CancelByTicker(cmd.Context(), args[0])
	default:
		return errTickerOrJob
	}
	if err != nil {
		return fmt.Errorf("failed to cancel: %w", err)
	}

	cmd.Println("Cancellation requested.")
	return nil
}
