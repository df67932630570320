package cli

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-filings/internal/adapters/driving/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the interactive terminal UI",
	Long: `Launch the interactive terminal interface.

Follow processing jobs as they run, start new ones and ask questions about
processed tickers with keyboard navigation.

Controls:
  ↑/k, ↓/j - Navigate
  Enter    - Select / Ask
  p        - Process a ticker (jobs view)
  c        - Cancel a job (jobs view)
  Esc      - Back
  q        - Quit (menu)`,
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, _ []string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Stack trace:\n%s\n", debug.Stack())
			err = fmt.Errorf("panic in TUI: %v", r)
		}
	}()

	if ingestionService == nil {
		return errIngestionUnavailable
	}
	if queryService == nil {
		return errQueryUnavailable
	}

	app, err := tui.NewApp(&tui.Ports{Ingestion: ingestionService, Query: queryService})
	if err != nil {
		return fmt.Errorf("failed to create TUI: %w", err)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// The TUI is long-running, so background maintenance runs alongside it.
	if schedulerService != nil {
		go func() {
			if err := schedulerService.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				fmt.Fprintf(cmd.ErrOrStderr(), "scheduler stopped: %v\n", err)
			}
		}()
		defer func() {
			if err := schedulerService.Stop(); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "scheduler stop error: %v\n", err)
			}
		}()
	}

	if err := app.WithContext(ctx).Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
