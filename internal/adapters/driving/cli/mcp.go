package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-filings/internal/adapters/driving/mcp"
)

var mcpPort int

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Model Context Protocol integration",
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server so AI assistants can process
companies and query their filings.

By default, the server communicates over stdio using JSON-RPC.
Use --port to serve the streamable HTTP transport instead.

Tools:      start_processing, get_status, cancel_processing, query_filings
Resources:  filings://jobs, filings://jobs/{jobId}, filings://companies/{ticker}

Examples:
  sercha-filings mcp serve
  sercha-filings mcp serve --port 8090

Assistant configuration:
  {
    "mcpServers": {
      "filings": {
        "command": "/path/to/sercha-filings",
        "args": ["mcp", "serve"]
      }
    }
  }`,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntVarP(&mcpPort, "port", "p", 0, "serve streamable HTTP on this port instead of stdio")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func newMCPServer() (*mcp.Server, error) {
	return mcp.NewServer(&mcp.Ports{
		Ingestion: ingestionService,
		Query:     queryService,
		Company:   companyService,
	}, mcp.WithVersion(version))
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	if mcpPort < 0 || mcpPort > 65535 {
		return fmt.Errorf("invalid port %d", mcpPort)
	}
	server, err := newMCPServer()
	if err != nil {
		return err
	}
	startPromptWatcher(cmd.Context())
	if mcpPort == 0 {
		return server.Run(cmd.Context())
	}

	addr := fmt.Sprintf(":%d", mcpPort)
	// stdout stays clean; clients may be reading it
	cmd.PrintErrf("MCP server listening on http://localhost%s/\n", addr)
	return server.RunHTTP(cmd.Context(), addr)
}
