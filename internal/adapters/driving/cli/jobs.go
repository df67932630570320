package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var (
	jobsJSON      bool
	pruneOlderThan time.Duration
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List processing jobs",
	RunE:  runJobs,
}

var jobsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete finished jobs older than a cutoff",
	RunE:  runJobsPrune,
}

func init() {
	jobsCmd.Flags().BoolVar(&jobsJSON, "json", false, "output as JSON")
	jobsPruneCmd.Flags().DurationVar(&pruneOlderThan, "older-than", 24*time.Hour, "minimum age of removed jobs")
	jobsCmd.AddCommand(jobsPruneCmd)
	rootCmd.AddCommand(jobsCmd)
}

func runJobs(cmd *cobra.Command, _ []string) error {
	if ingestionService == nil {
		return errIngestionUnavailable
	}

	jobs, err := ingestionService.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list jobs: %w", err)
	}

	if jobsJSON {
		return printJSON(cmd, jobs)
	}
	if len(jobs) == 0 {
		cmd.Println("No jobs found.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "JOB\tTICKER\tYEARS\tPHASE\tPROGRESS\tDOCS\tCHUNKS\tSTARTED")
	for i := range jobs {
		j := &jobs[i]
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%.0f%%\t%d/%d\t%d\t%s\n",
			j.ID, j.Ticker, j.TimeRangeYears, j.Phase, j.Progress,
			j.DocumentsProcessed, j.DocumentsFound, j.ChunksVectorized,
			j.StartedAt.Local().Format(time.DateTime))
	}
	return w.Flush()
}

func runJobsPrune(cmd *cobra.Command, _ []string) error {
	if ingestionService == nil {
		return errIngestionUnavailable
	}

	n, err := ingestionService.Prune(cmd.Context(), pruneOlderThan)
	if err != nil {
		return fmt.Errorf("failed to prune jobs: %w", err)
	}
	cmd.Printf("Removed %d job(s).\n", n)
	return nil
}
