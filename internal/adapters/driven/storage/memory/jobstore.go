package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-filings/internal/core/domain"
	"github.com/custodia-labs/sercha-filings/internal/core/ports/driven"
)

// Ensure JobStore implements the interface.
var _ driven.JobStore = (*JobStore)(nil)

// JobStore is an in-memory implementation of driven.JobStore.
// Snapshots are stored by value so callers never share state with the store.
type JobStore struct {
	mu      sync.RWMutex
	jobs    map[string]domain.ProcessingJob
	cancels map[string]bool
}

// NewJobStore creates a new in-memory job store.
func NewJobStore() *JobStore {
	return &JobStore{
		jobs:    make(map[string]domain.ProcessingJob),
		cancels: make(map[string]bool),
	}
}

// Save stores or replaces a job snapshot.
func (s *JobStore) Save(_ context.Context, job domain.ProcessingJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
	return nil
}

// Get returns a job by ID.
func (s *JobStore) Get(_ context.Context, id string) (*domain.ProcessingJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &job, nil
}

// Latest returns the most recently started job for an identity.
func (s *JobStore) Latest(_ context.Context, key domain.JobKey) (*domain.ProcessingJob, error) {
	return s.newest(func(j domain.ProcessingJob) bool {
		return j.Ticker == key.Ticker && j.TimeRangeYears == key.TimeRangeYears
	})
}

// LatestByTicker returns the most recently started job for a ticker.
func (s *JobStore) LatestByTicker(_ context.Context, ticker string) (*domain.ProcessingJob, error) {
	ticker = domain.NormaliseTicker(ticker)
	return s.newest(func(j domain.ProcessingJob) bool {
		return j.Ticker == ticker
	})
}

// ListByTicker returns every job for a ticker, newest first.
func (s *JobStore) ListByTicker(_ context.Context, ticker string) ([]domain.ProcessingJob, error) {
	ticker = domain.NormaliseTicker(ticker)
	return s.filter(func(j domain.ProcessingJob) bool {
		return j.Ticker == ticker
	}), nil
}

// List returns all jobs, newest first.
func (s *JobStore) List(_ context.Context) ([]domain.ProcessingJob, error) {
	return s.filter(func(domain.ProcessingJob) bool { return true }), nil
}

func (s *JobStore) RequestCancel(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancels[id] = true
	return nil
}

func (s *JobStore) CancelRequested(_ context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cancels[id], nil
}

// Prune removes terminal jobs that completed before the cutoff.
func (s *JobStore) Prune(_ context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, j := range s.jobs {
		if j.IsTerminal() && j.CompletedAt != nil && j.CompletedAt.Before(before) {
			delete(s.jobs, id)
			delete(s.cancels, id)
			removed++
		}
	}
	return removed, nil
}

func (s *JobStore) newest(match func(domain.ProcessingJob) bool) (*domain.ProcessingJob, error) {
	jobs := s.filter(match)
	if len(jobs) == 0 {
		return nil, domain.ErrNotFound
	}
	return &jobs[0], nil
}

func (s *JobStore) filter(match func(domain.ProcessingJob) bool) []domain.ProcessingJob {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.ProcessingJob, 0, len(s.jobs))
	for _, j := range s.jobs {
		if match(j) {
			result = append(result, j)
		}
	}
	SortJobsNewestFirst(result)
	return result
}

// SortJobsNewestFirst orders jobs by start time, newest first, with ID as tie-break.
func SortJobsNewestFirst(jobs []domain.ProcessingJob) {
	sort.Slice(jobs, func(i, k int) bool {
		if jobs[i].StartedAt.Equal(jobs[k].StartedAt) {
			return jobs[i].ID > jobs[k].ID
		}
		return jobs[i].StartedAt.After(jobs[k].StartedAt)
	})
}
