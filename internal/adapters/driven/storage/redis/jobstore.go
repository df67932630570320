// Package redis keeps processing job snapshots in Redis so that status can be
// polled from any process sharing the server.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/custodia-labs/sercha-filings/internal/core/domain"
	"github.com/custodia-labs/sercha-filings/internal/core/ports/driven"
)

// DefaultPrefix namespaces every key written by the store.
const DefaultPrefix = "sercha-filings"

// Ensure JobStore implements the interface.
var _ driven.JobStore = (*JobStore)(nil)

// JobStore implements driven.JobStore.
//
// Layout:
//
//	{prefix}:job:{id}                   JSON snapshot
//	{prefix}:job:{id}:cancel            set when cancellation was requested
//	{prefix}:jobs                       sorted set of all job IDs by start time
//	{prefix}:jobs:ticker:{T}            sorted set per ticker
//	{prefix}:jobs:key:{T}:{years}       sorted set per job identity
//
// Save writes the snapshot and the index entries in one MULTI block.
type JobStore struct {
	client goredis.UniversalClient
	prefix string
}

// NewJobStore wraps an existing client.
func NewJobStore(client goredis.UniversalClient, prefix string) *JobStore {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &JobStore{client: client, prefix: prefix}
}

// Open parses a redis:// URL, connects and pings the server.
func Open(ctx context.Context, url string) (*JobStore, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("%w: redis url: %v", domain.ErrInvalidInput, err)
	}
	client := goredis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return NewJobStore(client, ""), nil
}

// Ping checks that the server is reachable.
func (s *JobStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (s *JobStore) Close() error {
	return s.client.Close()
}

func (s *JobStore) jobKey(id string) string    { return s.prefix + ":job:" + id }
func (s *JobStore) cancelKey(id string) string { return s.jobKey(id) + ":cancel" }
func (s *JobStore) allKey() string             { return s.prefix + ":jobs" }
func (s *JobStore) tickerKey(ticker string) string {
	return s.prefix + ":jobs:ticker:" + domain.NormaliseTicker(ticker)
}
func (s *JobStore) identityKey(k domain.JobKey) string {
	return s.prefix + ":jobs:key:" + domain.NormaliseTicker(k.Ticker) + ":" + strconv.Itoa(k.TimeRangeYears)
}

// Save stores or replaces a job snapshot.
func (s *JobStore) Save(ctx context.Context, job domain.ProcessingJob) error {
	if job.ID == "" {
		return fmt.Errorf("%w: job id is required", domain.ErrInvalidInput)
	}
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshalling job: %w", err)
	}

	member := goredis.Z{Score: score(job.StartedAt), Member: job.ID}
	_, err = s.client.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.Set(ctx, s.jobKey(job.ID), data, 0)
		p.ZAdd(ctx, s.allKey(), member)
		p.ZAdd(ctx, s.tickerKey(job.Ticker), member)
		p.ZAdd(ctx, s.identityKey(job.Key()), member)
		return nil
	})
	if err != nil {
		return fmt.Errorf("saving job: %w", err)
	}
	return nil
}

// Get returns a job by ID.
func (s *JobStore) Get(ctx context.Context, id string) (*domain.ProcessingJob, error) {
	data, err := s.client.Get(ctx, s.jobKey(id)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading job: %w", err)
	}
	var job domain.ProcessingJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("unmarshalling job: %w", err)
	}
	return &job, nil
}

// Latest returns the most recently started job for an identity.
func (s *JobStore) Latest(ctx context.Context, key domain.JobKey) (*domain.ProcessingJob, error) {
	return s.newest(ctx, s.identityKey(key))
}

// LatestByTicker returns the most recently started job for a ticker.
func (s *JobStore) LatestByTicker(ctx context.Context, ticker string) (*domain.ProcessingJob, error) {
	return s.newest(ctx, s.tickerKey(ticker))
}

// ListByTicker returns every job for a ticker, newest first.
func (s *JobStore) ListByTicker(ctx context.Context, ticker string) ([]domain.ProcessingJob, error) {
	return s.list(ctx, s.tickerKey(ticker))
}

// List returns all jobs, newest first.
func (s *JobStore) List(ctx context.Context) ([]domain.ProcessingJob, error) {
	return s.list(ctx, s.allKey())
}

// RequestCancel sets the job's cancel key.
func (s *JobStore) RequestCancel(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: job id is required", domain.ErrInvalidInput)
	}
	if err := s.client.Set(ctx, s.cancelKey(id), "1", 0).Err(); err != nil {
		return fmt.Errorf("requesting cancel: %w", err)
	}
	return nil
}

func (s *JobStore) CancelRequested(ctx context.Context, id string) (bool, error) {
	n, err := s.client.Exists(ctx, s.cancelKey(id)).Result()
	if err != nil {
		return false, fmt.Errorf("reading cancel flag: %w", err)
	}
	return n > 0, nil
}

// Prune removes terminal jobs that completed before the cutoff.
func (s *JobStore) Prune(ctx context.Context, before time.Time) (int, error) {
	jobs, err := s.List(ctx)
	if err != nil {
		return 0, err
	}

	var stale []domain.ProcessingJob
	for _, j := range jobs {
		if j.IsTerminal() && j.CompletedAt != nil && j.CompletedAt.Before(before) {
			stale = append(stale, j)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}

	_, err = s.client.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		for _, j := range stale {
			p.Del(ctx, s.jobKey(j.ID), s.cancelKey(j.ID))
			p.ZRem(ctx, s.allKey(), j.ID)
			p.ZRem(ctx, s.tickerKey(j.Ticker), j.ID)
			p.ZRem(ctx, s.identityKey(j.Key()), j.ID)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("pruning jobs: %w", err)
	}
	return len(stale), nil
}

func (s *JobStore) newest(ctx context.Context, index string) (*domain.ProcessingJob, error) {
	ids, err := s.client.ZRevRange(ctx, index, 0, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("reading job index: %w", err)
	}
	if len(ids) == 0 {
		return nil, domain.ErrNotFound
	}
	return s.Get(ctx, ids[0])
}

// list resolves an index in one MGET. IDs whose snapshot vanished are skipped.
func (s *JobStore) list(ctx context.Context, index string) ([]domain.ProcessingJob, error) {
	ids, err := s.client.ZRevRange(ctx, index, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("reading job index: %w", err)
	}
	jobs := make([]domain.ProcessingJob, 0, len(ids))
	if len(ids) == 0 {
		return jobs, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.jobKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("reading jobs: %w", err)
	}

	for _, v := range values {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var job domain.ProcessingJob
		if err := json.Unmarshal([]byte(str), &job); err != nil {
			return nil, fmt.Errorf("unmarshalling job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// score maps start times onto sorted set scores. Millisecond precision keeps
// the value exact in a float64; ties fall back to member order.
func score(t time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	return float64(t.UnixMilli())
}
