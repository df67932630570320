// Package main is the sercha-filings entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/custodia-labs/sercha-filings/internal/adapters/driving/cli"
	"github.com/custodia-labs/sercha-filings/internal/app"
	"github.com/custodia-labs/sercha-filings/internal/logger"
)

var version = "dev"

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	cli.SetVersion(version)

	err := cli.Execute(ctx, bootstrap)
	if cerr := cli.Close(); cerr != nil {
		logger.Warn("Cleanup failed: %v", cerr)
	}
	logger.Sync()
	stop()

	if err != nil {
		os.Exit(1)
	}
}

func bootstrap(ctx context.Context, opts cli.BootstrapOptions) (*cli.Services, func() error, error) {
	if opts.SettingsOnly {
		settings, err := app.NewSettings(app.Options{DataDir: opts.DataDir})
		if err != nil {
			return nil, nil, err
		}
		return &cli.Services{Settings: settings}, nil, nil
	}

	a, err := app.New(ctx, app.Options{DataDir: opts.DataDir})
	if err != nil {
		return nil, nil, fmt.Errorf("starting sercha-filings: %w", err)
	}

	svc := &cli.Services{
		Ingestion:       a.Ingestion,
		Query:           a.Query,
		Company:         a.Company,
		Settings:        a.Settings,
		Scheduler:       a.Scheduler,
		ReadinessChecks: a.ReadinessChecks(),
		WatchPrompts: func(ctx context.Context) error {
			return a.Prompts.Watch(ctx, func(name string) {
				logger.Info("Reloaded prompt %s", name)
			})
		},
	}
	return svc, a.Close, nil
}
