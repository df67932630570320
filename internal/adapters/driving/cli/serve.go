package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-filings/internal/adapters/driving/httpapi"
	"github.com/custodia-labs/sercha-filings/internal/logger"
)

// serveShutdownTimeout bounds the graceful HTTP shutdown.
const serveShutdownTimeout = 15 * time.Second

var (
	serveAddr string
	serveMCP  bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serves the REST API under /api/v1, health probes under /health and
Prometheus metrics at /metrics. The MCP streamable HTTP transport is mounted
at /mcp unless --mcp=false.

The job pruning scheduler runs while the server is up, and prompt templates
are reloaded when their files change.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from settings server.addr)")
	serveCmd.Flags().BoolVar(&serveMCP, "mcp", true, "mount the MCP endpoint at /mcp")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if ingestionService == nil {
		return errIngestionUnavailable
	}
	if queryService == nil {
		return errQueryUnavailable
	}

	addr := serveAddr
	if addr == "" && settingsService != nil {
		if s, err := settingsService.Get(); err == nil {
			addr = s.Server.Addr
		}
	}
	if addr == "" {
		addr = ":8080"
	}

	var opts []httpapi.Option
	for name, check := range readinessChecks {
		opts = append(opts, httpapi.WithReadinessCheck(name, check))
	}
	if serveMCP {
		m, err := newMCPServer()
		if err != nil {
			return err
		}
		opts = append(opts, httpapi.WithMCPHandler(m.Handler()))
	}

	server, err := httpapi.NewServer(httpapi.Ports{
		Ingestion: ingestionService,
		Query:     queryService,
		Company:   companyService,
	}, opts...)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if schedulerService != nil {
		go func() {
			if err := schedulerService.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("Scheduler stopped: %v", err)
			}
		}()
		defer func() {
			if err := schedulerService.Stop(); err != nil {
				logger.Warn("Stopping scheduler: %v", err)
			}
		}()
	}
	startPromptWatcher(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(addr)
	}()
	cmd.Printf("Listening on %s\n", addr)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), serveShutdownTimeout)
	defer stop()
	if err := server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return <-errCh
}

// startPromptWatcher reloads prompt templates in the background until ctx ends.
func startPromptWatcher(ctx context.Context) {
	if watchPrompts == nil {
		return
	}
	go func() {
		if err := watchPrompts(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("Prompt watcher stopped: %v", err)
		}
	}()
}
