package cli

import (
	"bytes"
	"context"
	"time"

	"github.com/custodia-labs/sercha-filings/internal/core/domain"
	"github.com/custodia-labs/sercha-filings/internal/core/ports/driving"
)

// mockIngestionService is a mock implementation of driving.IngestionService.
// Status returns the statuses in order, repeating the last one.
type mockIngestionService struct {
	submitted *domain.ProcessingJob
	statuses  []*domain.ProcessingJob
	jobs      []domain.ProcessingJob
	err       error
	pruned    int

	lastSubmit   driving.SubmitRequest
	lastJobID    string
	lastTicker   string
	lastPruneAge time.Duration
	statusCalls  int
	cancelCalled bool
}

func (m *mockIngestionService) Submit(_ context.Context, req driving.SubmitRequest) (*domain.ProcessingJob, error) {
	m.lastSubmit = req
	return m.submitted, m.err
}

func (m *mockIngestionService) Status(_ context.Context, jobID string) (*domain.ProcessingJob, error) {
	m.lastJobID = jobID
	return m.nextStatus()
}

func (m *mockIngestionService) StatusByTicker(_ context.Context, ticker string) (*domain.ProcessingJob, error) {
	m.lastTicker = ticker
	return m.nextStatus()
}

func (m *mockIngestionService) nextStatus() (*domain.ProcessingJob, error) {
	if m.err != nil {
		return nil, m.err
	}
	if len(m.statuses) == 0 {
		return nil, domain.ErrNotFound
	}
	i := m.statusCalls
	if i >= len(m.statuses) {
		i = len(m.statuses) - 1
	}
	m.statusCalls++
	return m.statuses[i], nil
}

func (m *mockIngestionService) Cancel(_ context.Context, jobID string) error {
	m.lastJobID = jobID
	m.cancelCalled = true
	return m.err
}

func (m *mockIngestionService) CancelByTicker(_ context.Context, ticker string) error {
	m.lastTicker = ticker
	m.cancelCalled = true
	return m.err
}

func (m *mockIngestionService) List(_ context.Context) ([]domain.ProcessingJob, error) {
	return m.jobs, m.err
}

func (m *mockIngestionService) Wait(ctx context.Context, jobID string) (*domain.ProcessingJob, error) {
	return m.Status(ctx, jobID)
}

func (m *mockIngestionService) Prune(_ context.Context, maxAge time.Duration) (int, error) {
	m.lastPruneAge = maxAge
	return m.pruned, m.err
}

// mockQueryService is a mock implementation of driving.QueryService.
type mockQueryService struct {
	result *domain.QueryResult
	err    error
	last   domain.QueryRequest
}

func (m *mockQueryService) Answer(_ context.Context, req domain.QueryRequest) (*domain.QueryResult, error) {
	m.last = req
	return m.result, m.err
}

// mockCompanyService is a mock implementation of driving.CompanyService.
type mockCompanyService struct {
	company   *domain.Company
	companies []domain.Company
	err       error
	lastLimit int
}

func (m *mockCompanyService) Lookup(_ context.Context, _ string) (*domain.Company, error) {
	return m.company, m.err
}

func (m *mockCompanyService) Suggest(_ context.Context, _ string, limit int) ([]domain.Company, error) {
	m.lastLimit = limit
	return m.companies, m.err
}

// mockSettingsService is a mock implementation of driving.SettingsService.
type mockSettingsService struct {
	settings    domain.AppSettings
	err         error
	validateErr error
	set         map[string]string
}

func newMockSettingsService() *mockSettingsService {
	return &mockSettingsService{settings: domain.DefaultAppSettings(), set: make(map[string]string)}
}

func (m *mockSettingsService) Get() (*domain.AppSettings, error) {
	if m.err != nil {
		return nil, m.err
	}
	s := m.settings
	return &s, nil
}

func (m *mockSettingsService) Save(s *domain.AppSettings) error {
	m.settings = *s
	return m.err
}

func (m *mockSettingsService) Set(key, value string) error {
	if m.err != nil {
		return m.err
	}
	m.set[key] = value
	return nil
}

func (m *mockSettingsService) SetEmbeddingProvider(p domain.AIProvider, model, apiKey string) error {
	m.settings.Embedding.Provider, m.settings.Embedding.Model, m.settings.Embedding.APIKey = p, model, apiKey
	return m.err
}

func (m *mockSettingsService) SetLLMProvider(p domain.AIProvider, model, apiKey string) error {
	m.settings.LLM.Provider, m.settings.LLM.Model, m.settings.LLM.APIKey = p, model, apiKey
	return m.err
}

func (m *mockSettingsService) Validate() error { return m.validateErr }

func (m *mockSettingsService) GetDefaults() domain.AppSettings { return domain.DefaultAppSettings() }

func (m *mockSettingsService) ValidateEmbeddingConfig() error { return nil }

func (m *mockSettingsService) ValidateLLMConfig() error { return nil }

// installServices swaps the package services for a test and returns a restore func.
func installServices(s *Services) func() {
	old := Services{
		Ingestion:       ingestionService,
		Query:           queryService,
		Company:         companyService,
		Settings:        settingsService,
		Scheduler:       schedulerService,
		ReadinessChecks: readinessChecks,
		WatchPrompts:    watchPrompts,
	}
	SetServices(s)
	return func() { SetServices(&old) }
}

// execute runs the root command with args and returns its combined output.
func execute(args ...string) (string, error) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return buf.String(), err
}

func sampleJob(phase domain.Phase) *domain.ProcessingJob {
	return &domain.ProcessingJob{
		ID:             "job-1",
		Ticker:         "ACME",
		TimeRangeYears: 3,
		Phase:          phase,
		StartedAt:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

// resetFlags restores command flag variables between tests.
func resetFlags() {
	processYears = domain.DefaultTimeRangeYears
	processForce = false
	processJSON = false
	statusJobID = ""
	statusJSON = false
	cancelJobID = ""
	jobsJSON = false
	pruneOlderThan = 24 * time.Hour
	querySession = ""
	queryJSON = false
	companyJSON = false
	mcpPort = 0
}
