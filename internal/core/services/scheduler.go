package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-filings/internal/core/domain"
	"github.com/custodia-labs/sercha-filings/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-filings/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-filings/internal/logger"
)

var _ driving.Scheduler = (*Scheduler)(nil)

const (
	defaultSchedulerTick = time.Minute
	historyKeep          = 100
)

// JobPruner removes finished jobs older than a cutoff.
type JobPruner interface {
	Prune(ctx context.Context, maxAge time.Duration) (int, error)
}

// Scheduler runs maintenance tasks on an interval while the server is up.
type Scheduler struct {
	config domain.SchedulerConfig
	store  driven.SchedulerStore
	pruner JobPruner
	tick   time.Duration
	now    func() time.Time

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler with configuration.
func NewScheduler(config domain.SchedulerConfig, store driven.SchedulerStore, pruner JobPruner) *Scheduler {
	return &Scheduler{
		config: config,
		store:  store,
		pruner: pruner,
		tick:   defaultSchedulerTick,
		now:    time.Now,
	}
}

// SetTick overrides how often due tasks are checked.
func (s *Scheduler) SetTick(d time.Duration) {
	if d > 0 {
		s.tick = d
	}
}

// Start begins the scheduler loop. It blocks until Stop is called or ctx ends.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	if !s.config.Enabled {
		s.mu.Unlock()
		logger.Debug("scheduler: disabled")
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	stopCh := s.stopCh
	s.mu.Unlock()

	if err := s.initialiseTasks(ctx); err != nil {
		logger.Warn("scheduler: failed to initialise tasks: %v", err)
	}

	return s.run(ctx, stopCh)
}

// Stop shuts the loop down and waits for running tasks.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

func (s *Scheduler) initialiseTasks(ctx context.Context) error {
	if cfg := s.config.Task(domain.TaskIDJobPrune); cfg.Enabled {
		return s.ensureTask(ctx, domain.TaskIDJobPrune, "Job Prune", cfg)
	}
	return nil
}

// ensureTask creates the task or updates its interval.
func (s *Scheduler) ensureTask(ctx context.Context, id, name string, cfg domain.TaskConfig) error {
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return err
	}

	if task == nil {
		// first run happens on startup
		task = &domain.ScheduledTask{
			ID:       id,
			Name:     name,
			Interval: cfg.Interval,
			Enabled:  cfg.Enabled,
		}
	} else {
		if task.Interval != cfg.Interval {
			task.Interval = cfg.Interval
			task.NextRun = s.now().Add(cfg.Interval)
		}
		task.Enabled = cfg.Enabled
	}

	return s.store.SaveTask(ctx, task)
}

func (s *Scheduler) run(ctx context.Context, stopCh chan struct{}) error {
	s.runDueTasks(ctx)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stopCh:
			return nil
		case <-ticker.C:
			s.runDueTasks(ctx)
		}
	}
}

// runDueTasks runs every due task synchronously, one at a time.
func (s *Scheduler) runDueTasks(ctx context.Context) {
	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		logger.Warn("scheduler: failed to list tasks: %v", err)
		return
	}

	now := s.now()
	for i := range tasks {
		if tasks[i].IsDue(now) {
			s.wg.Add(1)
			s.runTask(ctx, &tasks[i])
			s.wg.Done()
		}
	}
}

func (s *Scheduler) runTask(ctx context.Context, task *domain.ScheduledTask) {
	result := &domain.TaskResult{
		TaskID:    task.ID,
		StartedAt: s.now(),
	}

	var err error
	switch task.ID {
	case domain.TaskIDJobPrune:
		result.ItemsProcessed, err = s.pruneJobs(ctx)
	default:
		err = fmt.Errorf("unknown task %q", task.ID)
	}

	result.EndedAt = s.now()
	if err != nil {
		result.Error = err.Error()
		logger.Warn("scheduler: task %s failed: %v", task.ID, err)
	} else {
		result.Success = true
		logger.Debug("scheduler: task %s processed %d items in %s", task.ID, result.ItemsProcessed, result.Duration())
	}
	task.Record(*result)

	if err := s.store.SaveTask(ctx, task); err != nil {
		logger.Warn("scheduler: failed to save task %s: %v", task.ID, err)
	}
	if err := s.store.RecordResult(ctx, result); err != nil {
		logger.Warn("scheduler: failed to record result for %s: %v", task.ID, err)
	}
	if err := s.store.PruneHistory(ctx, historyKeep); err != nil {
		logger.Warn("scheduler: failed to prune history: %v", err)
	}
}

func (s *Scheduler) pruneJobs(ctx context.Context) (int, error) {
	if s.pruner == nil {
		return 0, nil
	}
	retention := s.config.JobRetention
	if retention <= 0 {
		retention = domain.DefaultSchedulerConfig().JobRetention
	}
	return s.pruner.Prune(ctx, retention)
}
