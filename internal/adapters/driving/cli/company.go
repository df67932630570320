package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var errCompanyUnavailable = errors.New("company service not configured")

var companyJSON bool

var companyCmd = &cobra.Command{
	Use:   "company [ticker]",
	Short: "Look up a ticker in the SEC registrant list",
	Args:  cobra.ExactArgs(1),
	RunE:  runCompany,
}

var companySearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Suggest tickers matching a query",
	Args:  cobra.ExactArgs(1),
	RunE:  runCompanySearch,
}

func init() {
	companyCmd.PersistentFlags().BoolVar(&companyJSON, "json", false, "output as JSON")
	companySearchCmd.Flags().Int("limit", 10, "maximum number of suggestions")
	companyCmd.AddCommand(companySearchCmd)
	rootCmd.AddCommand(companyCmd)
}

func runCompany(cmd *cobra.Command, args []string) error {
	if companyService == nil {
		return errCompanyUnavailable
	}

	company, err := companyService.Lookup(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("lookup failed: %w", err)
	}

	if companyJSON {
		return printJSON(cmd, company)
	}
	cmd.Printf("%s  %s  (CIK %s)\n", company.Ticker, company.Name, company.CIK)
	return nil
}

func runCompanySearch(cmd *cobra.Command, args []string) error {
	if companyService == nil {
		return errCompanyUnavailable
	}
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return fmt.Errorf("getting limit flag: %w", err)
	}

	companies, err := companyService.Suggest(cmd.Context(), args[0], limit)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if companyJSON {
		return printJSON(cmd, companies)
	}
	if len(companies) == 0 {
		cmd.Println("No matching companies.")
		return nil
	}
	for _, c := range companies {
		cmd.Printf("%-8s %s\n", c.Ticker, c.Name)
	}
	return nil
}
