// Package cli provides the sercha-filings command line interface.
package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-filings/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-filings/internal/logger"
)

// annotationSettingsOnly marks commands that only need the settings service.
// They must keep working when the stores are misconfigured.
const annotationSettingsOnly = "settings-only"

// annotationNoServices marks commands that need no services at all.
const annotationNoServices = "no-services"

var version = "dev"

// Services are the driving ports used by the commands.
type Services struct {
	Ingestion driving.IngestionService
	Query     driving.QueryService
	Company   driving.CompanyService
	Settings  driving.SettingsService
	Scheduler driving.Scheduler

	// ReadinessChecks are exposed on /health/readiness by serve.
	ReadinessChecks map[string]func(ctx context.Context) error

	// WatchPrompts reloads prompt templates when their files change.
	// It blocks until ctx ends. Optional.
	WatchPrompts func(ctx context.Context) error
}

// BootstrapOptions are passed to the bootstrap function before a command runs.
type BootstrapOptions struct {
	// DataDir is the --data-dir flag value. Empty means the default.
	DataDir string

	// SettingsOnly is set for commands that only read or write settings.
	SettingsOnly bool
}

// Bootstrap builds the services for a command. The returned cleanup
// function is called after the command finishes.
type Bootstrap func(ctx context.Context, opts BootstrapOptions) (*Services, func() error, error)

var (
	bootstrap Bootstrap
	cleanup   func() error

	dataDir string
	verbose bool
)

var (
	ingestionService driving.IngestionService
	queryService     driving.QueryService
	companyService   driving.CompanyService
	settingsService  driving.SettingsService
	schedulerService driving.Scheduler
	readinessChecks  map[string]func(ctx context.Context) error
	watchPrompts     func(ctx context.Context) error
)

var rootCmd = &cobra.Command{
	Use:   "sercha-filings",
	Short: "Ask questions about a company's SEC filings",
	Long: `sercha-filings downloads a company's annual, quarterly, current and proxy
reports from SEC EDGAR, indexes them locally and answers questions from them
with citations.

Typical flow:
  sercha-filings settings set edgar.user_agent "Your Name you@example.com"
  sercha-filings process AAPL --years 3
  sercha-filings query AAPL "What are the main supply chain risks?"`,
	SilenceUsage:       true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "application directory (default ~/.sercha-filings or $SERCHA_FILINGS_HOME)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// SetServices installs services directly, bypassing bootstrap.
func SetServices(s *Services) {
	if s == nil {
		s = &Services{}
	}
	ingestionService = s.Ingestion
	queryService = s.Query
	companyService = s.Company
	settingsService = s.Settings
	schedulerService = s.Scheduler
	readinessChecks = s.ReadinessChecks
	watchPrompts = s.WatchPrompts
}

// Execute runs the root command. b may be nil when services were installed
// with SetServices.
func Execute(ctx context.Context, b Bootstrap) error {
	bootstrap = b
	return rootCmd.ExecuteContext(ctx)
}

// Close releases whatever the bootstrap created. It is safe to call after
// Execute even when the command failed before its post-run hook.
func Close() error {
	return teardown(nil, nil)
}

func setup(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)
	if bootstrap == nil || cmd.Annotations[annotationNoServices] == "true" {
		return nil
	}

	opts := BootstrapOptions{
		DataDir:      dataDir,
		SettingsOnly: cmd.Annotations[annotationSettingsOnly] == "true",
	}
	svc, done, err := bootstrap(cmd.Context(), opts)
	if err != nil {
		return err
	}
	SetServices(svc)
	cleanup = done
	return nil
}

func teardown(_ *cobra.Command, _ []string) error {
	if cleanup == nil {
		return nil
	}
	err := cleanup()
	cleanup = nil
	return err
}

var (
	errIngestionUnavailable = errors.New("ingestion service not configured")
	errQueryUnavailable     = errors.New("query service not configured")
	errSettingsUnavailable  = errors.New("settings service not configured")
)
