package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-filings/internal/core/domain"
)

var (
	querySession string
	queryJSON    bool
)

var queryCmd = &cobra.Command{
	Use:   "query [ticker] [question...]",
	Short: "Ask a question about a company's indexed filings",
	Long: `Answers a question using only the processed filings of one company.
The answer lists the filing excerpts it was drawn from.

Example:
  sercha-filings query AAPL "How did gross margin change last year?"`,
	Args: cobra.MinimumNArgs(2),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().StringVar(&querySession, "session", "", "session ID grouping related questions")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	if queryService == nil {
		return errQueryUnavailable
	}

	result, err := queryService.Answer(cmd.Context(), domain.QueryRequest{
		Ticker:    args[0],
		Question:  strings.Join(args[1:], " "),
		SessionID: querySession,
	})
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if queryJSON {
		return printJSON(cmd, result)
	}

	cmd.Println(result.Answer)
	if len(result.Citations) > 0 {
		cmd.Println()
		cmd.Println("Sources:")
		for i := range result.Citations {
			c := &result.Citations[i]
			cmd.Printf("  [%d] %s %s %s (%.2f)\n", i+1, c.FilingType, c.FiledDate.Format("2006-01-02"), c.Section, c.RelevanceScore)
			if c.Excerpt != "" {
				cmd.Printf("      %s\n", c.Excerpt)
			}
			if c.URL != "" {
				cmd.Printf("      %s\n", c.URL)
			}
		}
	}
	if len(result.RelatedQuestions) > 0 {
		cmd.Println()
		cmd.Println("Related questions:")
		for _, q := range result.RelatedQuestions {
			cmd.Printf("  - %s\n", q)
		}
	}
	return nil
}
