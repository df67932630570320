package driven

import (
	"context"

	"github.com/custodia-labs/sercha-filings/internal/core/domain"
)

// SchedulerStore persists maintenance task state so NextRun survives a
// restart of serve.
type SchedulerStore interface {
	// GetTask returns nil and no error for an unknown id.
	GetTask(ctx context.Context, id string) (*domain.ScheduledTask, error)
	ListTasks(ctx context.Context) ([]domain.ScheduledTask, error)
	SaveTask(ctx context.Context, task *domain.ScheduledTask) error

	RecordResult(ctx context.Context, result *domain.TaskResult) error

	// GetTaskHistory returns up to limit runs, newest first.
	GetTaskHistory(ctx context.Context, id string, limit int) ([]domain.TaskResult, error)

	// PruneHistory drops all but the keep newest runs of each task.
	PruneHistory(ctx context.Context, keep int) error
}
