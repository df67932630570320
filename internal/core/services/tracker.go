package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/custodia-labs/sercha-filings/internal/core/domain"
	"github.com/custodia-labs/sercha-filings/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-filings/internal/logger"
)

// minETAElapsed is how long a job must run before an ETA is reported.
const minETAElapsed = 5 * time.Second

// DefaultCancelPollInterval bounds how often a running job asks the job
// store whether another process requested its cancellation.
const DefaultCancelPollInterval = time.Second

// jobTracker is the single writer for one job's snapshot.
// Workers inside the job mutate through update, which serialises changes
// and replaces the stored snapshot as a whole.
type jobTracker struct {
	mu    sync.Mutex
	job   domain.ProcessingJob
	store driven.JobStore
	now   func() time.Time

	cancelled atomic.Bool

	pollMu    sync.Mutex
	pollEvery time.Duration
	lastPoll  time.Time
}

func newJobTracker(job domain.ProcessingJob, store driven.JobStore, now func() time.Time, pollEvery time.Duration) *jobTracker {
	return &jobTracker{job: job, store: store, now: now, pollEvery: pollEvery}
}

// snapshot returns a copy of the current job state.
func (t *jobTracker) snapshot() domain.ProcessingJob {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.job
}

// update applies fn, recomputes derived fields and persists the snapshot.
// Saves happen under the lock so the store never goes back to an older snapshot.
func (t *jobTracker) update(ctx context.Context, fn func(j *domain.ProcessingJob)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(&t.job)
	t.refresh()

	if err := t.store.Save(ctx, t.job); err != nil {
		logger.Warn("Saving job %s snapshot: %v", t.job.ID, err)
	}
}

// advance moves the job to the next phase and resets the phase counters.
func (t *jobTracker) advance(ctx context.Context, next domain.Phase, total int) error {
	var err error
	t.update(ctx, func(j *domain.ProcessingJob) {
		if !j.Phase.CanTransition(next) {
			err = fmt.Errorf("illegal phase transition %s -> %s", j.Phase, next)
			return
		}
		j.Phase = next
		j.PhaseCompleted = 0
		j.PhaseTotal = total
	})
	return err
}

// complete marks the job finished.
func (t *jobTracker) complete(ctx context.Context) {
	t.update(ctx, func(j *domain.ProcessingJob) {
		j.Phase = domain.PhaseComplete
		j.PhaseCompleted = j.PhaseTotal
		done := t.now()
		j.CompletedAt = &done
	})
}

// fail moves the job to error, recording the phase and reason.
func (t *jobTracker) fail(ctx context.Context, cause error) {
	t.update(ctx, func(j *domain.ProcessingJob) {
		if j.Phase.IsTerminal() {
			return
		}
		j.FailedPhase = j.Phase
		j.Progress = j.ComputeProgress()
		j.Phase = domain.PhaseError
		if errors.Is(cause, domain.ErrCancelled) {
			j.Cancelled = true
			j.Error = domain.CancelledReason
		} else {
			j.Error = cause.Error()
		}
		done := t.now()
		j.CompletedAt = &done
	})
}

// requestCancel raises the cooperative cancellation flag.
func (t *jobTracker) requestCancel() {
	t.cancelled.Store(true)
}

// checkpoint returns domain.ErrCancelled once cancellation was requested,
// either in this process or through the job store.
func (t *jobTracker) checkpoint(ctx context.Context) error {
	if t.cancelled.Load() {
		return domain.ErrCancelled
	}
	if t.cancelRequested(ctx) {
		t.cancelled.Store(true)
		return domain.ErrCancelled
	}
	return nil
}

// cancelRequested reads the persisted cancel flag at most once per pollEvery.
// Wall time drives the throttle so an injected clock cannot stall it.
func (t *jobTracker) cancelRequested(ctx context.Context) bool {
	t.pollMu.Lock()
	defer t.pollMu.Unlock()
	if !t.lastPoll.IsZero() && time.Since(t.lastPoll) < t.pollEvery {
		return false
	}
	t.lastPoll = time.Now()

	id := t.snapshot().ID
	requested, err := t.store.CancelRequested(ctx, id)
	if err != nil {
		logger.Warn("Reading cancel flag for job %s: %v", id, err)
		return false
	}
	if requested {
		logger.Info("Job %s was cancelled from another process", id)
	}
	return requested
}

// refresh recomputes progress and ETA. Caller holds mu.
func (t *jobTracker) refresh() {
	now := t.now()
	t.job.UpdatedAt = now
	if t.job.Phase == domain.PhaseError {
		t.job.EstimatedTimeRemaining = nil
		return
	}
	t.job.Progress = t.job.ComputeProgress()
	t.job.EstimatedTimeRemaining = estimateRemaining(t.job.StartedAt, now, t.job.Progress)
}

// estimateRemaining projects time left from observed throughput.
// It returns nil until minETAElapsed has passed or progress is unknown.
func estimateRemaining(started, now time.Time, progress float64) *time.Duration {
	elapsed := now.Sub(started)
	if elapsed < minETAElapsed || progress <= 0 || progress >= 100 {
		return nil
	}
	rate := progress / elapsed.Seconds()
	remaining := time.Duration((100 - progress) / rate * float64(time.Second)).Round(time.Second)
	return &remaining
}
