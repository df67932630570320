package httpapi

import (
	"context"
	"time"

	"github.com/custodia-labs/sercha-filings/internal/core/domain"
	"github.com/custodia-labs/sercha-filings/internal/core/ports/driving"
)

// mockIngestionService is a mock implementation of driving.IngestionService.
type mockIngestionService struct {
	job  *domain.ProcessingJob
	jobs []domain.ProcessingJob
	err  error

	lastSubmit   driving.SubmitRequest
	lastJobID    string
	lastTicker   string
	cancelCalled bool
}

func (m *mockIngestionService) Submit(_ context.Context, req driving.SubmitRequest) (*domain.ProcessingJob, error) {
	m.lastSubmit = req
	return m.job, m.err
}

func (m *mockIngestionService) Status(_ context.Context, jobID string) (*domain.ProcessingJob, error) {
	m.lastJobID = jobID
	return m.job, m.err
}

func (m *mockIngestionService) StatusByTicker(_ context.Context, ticker string) (*domain.ProcessingJob, error) {
	m.lastTicker = ticker
	return m.job, m.err
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

func (m *mockIngestionService) Wait(_ context.Context, _ string) (*domain.ProcessingJob, error) {
	return m.job, m.err
}

func (m *mockIngestionService) Prune(_ context.Context, _ time.Duration) (int, error) {
	return 0, m.err
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
	company *domain.Company
	err     error
}

func (m *mockCompanyService) Lookup(_ context.Context, _ string) (*domain.Company, error) {
	return m.company, m.err
}

func (m *mockCompanyService) Suggest(_ context.Context, _ string, _ int) ([]domain.Company, error) {
	return nil, m.err
}
