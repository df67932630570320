// Package app wires the adapters and services into a runnable application.
package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/custodia-labs/sercha-filings/internal/adapters/driven/ai"
	"github.com/custodia-labs/sercha-filings/internal/adapters/driven/config/file"
	"github.com/custodia-labs/sercha-filings/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sercha-filings/internal/adapters/driven/storage/redis"
	"github.com/custodia-labs/sercha-filings/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/sercha-filings/internal/connectors/edgar"
	"github.com/custodia-labs/sercha-filings/internal/core/domain"
	"github.com/custodia-labs/sercha-filings/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-filings/internal/core/services"
	"github.com/custodia-labs/sercha-filings/internal/logger"
	"github.com/custodia-labs/sercha-filings/internal/normalisers"
	"github.com/custodia-labs/sercha-filings/internal/postprocessors"
)

// Directory layout under the data directory.
const (
	dataSubdir    = "data"
	promptsSubdir = "prompts"
)

// shutdownTimeout bounds how long Close waits for running jobs to record their state.
const shutdownTimeout = 10 * time.Second

// Options configures New.
type Options struct {
	// DataDir overrides the application directory. Empty means file.DefaultDir.
	DataDir string

	// Getenv overrides environment lookups. Nil means os.Getenv.
	Getenv func(string) string
}

// App holds every wired component. Close releases them.
type App struct {
	DataDir  string
	Settings *services.SettingsService
	Config   domain.AppSettings
	Prompts  *file.PromptStore
	Store    *sqlite.Store
	Jobs     driven.JobStore

	Ingestion *services.IngestionOrchestrator
	Query     *services.SynthesisEngine
	Company   *services.CompanyService
	Scheduler *services.Scheduler

	checks  map[string]func(ctx context.Context) error
	closers []func() error
}

// New builds the application from the settings stored in the data directory.
func New(ctx context.Context, opts Options) (*App, error) {
	dir, err := resolveDir(opts.DataDir)
	if err != nil {
		return nil, err
	}

	a := &App{DataDir: dir, checks: make(map[string]func(ctx context.Context) error)}
	ok := false
	defer func() {
		if !ok {
			_ = a.closeAll()
		}
	}()

	a.Settings, err = NewSettings(Options{DataDir: dir, Getenv: opts.Getenv})
	if err != nil {
		return nil, err
	}
	settings, err := a.Settings.Get()
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}
	a.Config = *settings

	a.Prompts, err = file.NewPromptStore(filepath.Join(dir, promptsSubdir))
	if err != nil {
		return nil, err
	}

	a.Store, err = sqlite.NewStore(filepath.Join(dir, dataSubdir))
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	a.closers = append(a.closers, a.Store.Close)
	a.checks["sqlite"] = a.Store.Ping

	a.Jobs, err = a.openJobStore(ctx, settings.Status)
	if err != nil {
		return nil, err
	}

	resolver, retriever := buildEDGAR(settings)
	a.Company = services.NewCompanyService(resolver)

	embedder, err := ai.CreateEmbeddingService(&settings.Embedding)
	if err != nil {
		logger.Warn("Embedding provider unavailable: %v", err)
		embedder = nil
	}
	if embedder != nil {
		a.checks["embedding"] = embedder.Ping
		a.closers = append(a.closers, embedder.Close)
	}
	llm, err := ai.CreateLLMService(&settings.LLM)
	if err != nil {
		logger.Warn("LLM provider unavailable: %v", err)
		llm = nil
	}
	if llm != nil {
		a.checks["llm"] = llm.Ping
		a.closers = append(a.closers, llm.Close)
	}

	metadata := a.Store.MetadataStore()
	index := a.Store.VectorIndex()

	a.Ingestion = services.NewIngestionOrchestrator(
		resolver,
		retriever,
		normalisers.NewDefaultRegistry(),
		postprocessors.NewDefaultPipeline(settings.Chunker),
		services.NewIndexer(embedder, index, settings.Ingest.EmbedBatchSize),
		a.Jobs,
		metadata,
		services.WithWorkers(settings.Ingest.Workers),
	)

	a.Query = services.NewSynthesisEngine(a.Jobs, embedder, index, metadata, llm,
		services.SynthesisConfigFrom(settings.Retrieval))
	a.Query.SetPromptStore(a.Prompts)

	schedulerConfig := domain.DefaultSchedulerConfig()
	if settings.Ingest.JobRetention > 0 {
		schedulerConfig.JobRetention = settings.Ingest.JobRetention
	}
	a.Scheduler = services.NewScheduler(schedulerConfig, a.Store.SchedulerStore(), a.Ingestion)

	ok = true
	return a, nil
}

// NewSettings builds only the settings service. Commands that edit settings
// use it so a broken store configuration can still be repaired.
func NewSettings(opts Options) (*services.SettingsService, error) {
	dir, err := resolveDir(opts.DataDir)
	if err != nil {
		return nil, err
	}
	configStore, err := file.NewConfigStore(dir)
	if err != nil {
		return nil, fmt.Errorf("opening config: %w", err)
	}
	s := services.NewSettingsService(configStore, ai.NewConfigValidator())
	if opts.Getenv != nil {
		s.SetEnvLookup(opts.Getenv)
	}
	return s, nil
}

func resolveDir(dir string) (string, error) {
	if dir != "" {
		return dir, nil
	}
	return file.DefaultDir()
}

// openJobStore selects the job snapshot backend.
func (a *App) openJobStore(ctx context.Context, s domain.StatusSettings) (driven.JobStore, error) {
	switch s.Backend {
	case domain.StatusBackendMemory:
		return memory.NewJobStore(), nil
	case domain.StatusBackendRedis:
		if s.RedisURL == "" {
			return nil, fmt.Errorf("%w: status.backend is redis but no redis url is set (status.redis_url or %s)",
				domain.ErrInvalidInput, services.EnvRedisURL)
		}
		store, err := redis.Open(ctx, s.RedisURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		a.checks["redis"] = store.Ping
		return store, nil
	default:
		return a.Store.JobStore(), nil
	}
}

// buildEDGAR creates the archive client. Without a User-Agent the archive
// refuses requests, so every call reports how to configure one instead.
func buildEDGAR(settings *domain.AppSettings) (driven.IssuerResolver, driven.FilingRetriever) {
	client, err := edgar.NewClient(edgar.ConfigFromSettings(settings.EDGAR))
	if err != nil {
		u := unconfiguredArchive{err: fmt.Errorf("%w: run 'sercha-filings settings set edgar.user_agent \"Name email@example.com\"' or set %s",
			err, services.EnvUserAgent)}
		return u, u
	}
	resolver := edgar.NewTickerResolver(client)
	retriever := edgar.NewRetriever(client)
	return resolver, retriever
}

// ReadinessChecks returns the probes for the backing stores.
func (a *App) ReadinessChecks() map[string]func(ctx context.Context) error {
	out := make(map[string]func(ctx context.Context) error, len(a.checks))
	for k, v := range a.checks {
		out[k] = v
	}
	return out
}

// Close stops running jobs and releases all resources.
func (a *App) Close() error {
	var errs []error
	if a.Ingestion != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := a.Ingestion.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutting down ingestion: %w", err))
		}
		cancel()
	}
	if err := a.closeAll(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (a *App) closeAll() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// unconfiguredArchive stands in for the EDGAR client when it cannot be built.
type unconfiguredArchive struct {
	err error
}

func (u unconfiguredArchive) Resolve(context.Context, string) (*domain.Company, error) {
	return nil, u.err
}

func (u unconfiguredArchive) Suggest(context.Context, string, int) ([]domain.Company, error) {
	return nil, u.err
}

func (u unconfiguredArchive) ListFilings(context.Context, driven.FetchRequest) ([]driven.FilingListing, error) {
	return nil, u.err
}

func (u unconfiguredArchive) Download(context.Context, domain.Company, driven.FilingListing) (*domain.RawFiling, error) {
	return nil, u.err
}
