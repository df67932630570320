package domain

import "time"

// TaskIDJobPrune deletes terminal processing jobs older than the retention.
const TaskIDJobPrune = "job-prune"

// ScheduledTask is the persisted state of one maintenance task.
type ScheduledTask struct {
	ID       string
	Name     string
	Interval time.Duration
	Enabled  bool

	LastRun     time.Time
	LastSuccess time.Time
	LastError   string

	// NextRun is zero until the first run, which makes a new task due at once.
	NextRun time.Time
}

// IsDue reports whether an enabled task has reached NextRun.
func (t *ScheduledTask) IsDue(now time.Time) bool {
	return t.Enabled && (t.NextRun.IsZero() || !now.Before(t.NextRun))
}

// Record applies a finished run to the task and schedules the next one
// an Interval after the run ended.
func (t *ScheduledTask) Record(r TaskResult) {
	t.LastRun = r.StartedAt
	t.NextRun = r.EndedAt.Add(t.Interval)
	if !r.Success {
		t.LastError = r.Error
		return
	}
	t.LastError = ""
	t.LastSuccess = r.EndedAt
}

// TaskResult is one row of a task's run history.
type TaskResult struct {
	TaskID         string
	StartedAt      time.Time
	EndedAt        time.Time
	Success        bool
	Error          string
	ItemsProcessed int
}

// Duration is how long the run took.
func (r TaskResult) Duration() time.Duration {
	return r.EndedAt.Sub(r.StartedAt)
}

// TaskConfig enables a task and sets how often it runs.
type TaskConfig struct {
	Enabled  bool
	Interval time.Duration
}

// SchedulerConfig configures the maintenance scheduler.
type SchedulerConfig struct {
	Enabled bool
	Tasks   map[string]TaskConfig

	// JobRetention is the age past which the prune task removes jobs.
	JobRetention time.Duration
}

// Task returns the configuration for id, or a disabled TaskConfig.
func (c *SchedulerConfig) Task(id string) TaskConfig {
	return c.Tasks[id]
}

// DefaultSchedulerConfig prunes day-old jobs once an hour.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Enabled: true,
		Tasks: map[string]TaskConfig{
			TaskIDJobPrune: {Enabled: true, Interval: time.Hour},
		},
		JobRetention: 24 * time.Hour,
	}
}
