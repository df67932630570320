package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/sercha-filings/internal/core/domain"
	"github.com/custodia-labs/sercha-filings/internal/core/ports/driven"
)

var _ driven.SchedulerStore = (*schedulerStore)(nil)

// schedulerStore keeps maintenance task state in scheduled_tasks and one
// row per run in task_results. Times are unix nanoseconds, NULL when zero.
type schedulerStore struct {
	store *Store
}

const (
	selectTasks = `SELECT id, name, interval_seconds, enabled, last_run, next_run, last_success, last_error
		FROM scheduled_tasks`

	upsertTask = `INSERT INTO scheduled_tasks
		(id, name, interval_seconds, enabled, last_run, next_run, last_success, last_error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			interval_seconds = excluded.interval_seconds,
			enabled = excluded.enabled,
			last_run = excluded.last_run,
			next_run = excluded.next_run,
			last_success = excluded.last_success,
			last_error = excluded.last_error`

	// keeps the newest rows per task; id breaks ties between equal start times
	pruneResults = `DELETE FROM task_results WHERE id IN (
		SELECT id FROM (
			SELECT id, ROW_NUMBER() OVER (
				PARTITION BY task_id ORDER BY started_at DESC, id DESC
			) AS pos FROM task_results
		) WHERE pos > ?
	)`
)

// GetTask returns nil without an error when id is unknown.
func (s *schedulerStore) GetTask(ctx context.Context, id string) (*domain.ScheduledTask, error) {
	task, err := readTask(s.store.db.QueryRowContext(ctx, selectTasks+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return task, err
}

func (s *schedulerStore) ListTasks(ctx context.Context) ([]domain.ScheduledTask, error) {
	rows, err := s.store.db.QueryContext(ctx, selectTasks+" ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	defer rows.Close()

	var out []domain.ScheduledTask
	for rows.Next() {
		task, err := readTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *task)
	}
	return out, rows.Err()
}

func (s *schedulerStore) SaveTask(ctx context.Context, t *domain.ScheduledTask) error {
	if t == nil || t.ID == "" {
		return fmt.Errorf("%w: task needs an id", domain.ErrInvalidInput)
	}
	_, err := s.store.db.ExecContext(ctx, upsertTask,
		t.ID, t.Name, int64(t.Interval/time.Second), boolToInt(t.Enabled),
		nullableTime(t.LastRun), nullableTime(t.NextRun), nullableTime(t.LastSuccess),
		nullString(t.LastError))
	if err != nil {
		return fmt.Errorf("saving task %s: %w", t.ID, err)
	}
	return nil
}

func (s *schedulerStore) RecordResult(ctx context.Context, r *domain.TaskResult) error {
	if r == nil || r.TaskID == "" {
		return fmt.Errorf("%w: result needs a task id", domain.ErrInvalidInput)
	}
	_, err := s.store.db.ExecContext(ctx,
		`INSERT INTO task_results (task_id, started_at, ended_at, success, error, items_processed)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.TaskID, unixNano(r.StartedAt), unixNano(r.EndedAt), boolToInt(r.Success),
		nullString(r.Error), r.ItemsProcessed)
	if err != nil {
		return fmt.Errorf("recording %s run: %w", r.TaskID, err)
	}
	return nil
}

// GetTaskHistory returns up to limit runs of a task, newest first.
func (s *schedulerStore) GetTaskHistory(ctx context.Context, id string, limit int) ([]domain.TaskResult, error) {
	rows, err := s.store.db.QueryContext(ctx,
		`SELECT started_at, ended_at, success, error, items_processed
		FROM task_results WHERE task_id = ?
		ORDER BY started_at DESC, id DESC LIMIT ?`, id, limit)
	if err != nil {
		return nil, fmt.Errorf("reading %s history: %w", id, err)
	}
	defer rows.Close()

	var out []domain.TaskResult
	for rows.Next() {
		var (
			started, ended int64
			success        int
			msg            sql.NullString
		)
		r := domain.TaskResult{TaskID: id}
		if err := rows.Scan(&started, &ended, &success, &msg, &r.ItemsProcessed); err != nil {
			return nil, fmt.Errorf("scanning %s history: %w", id, err)
		}
		r.StartedAt, r.EndedAt = fromUnixNano(started), fromUnixNano(ended)
		r.Success, r.Error = success == 1, msg.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// PruneHistory deletes all but the keep newest runs of every task.
func (s *schedulerStore) PruneHistory(ctx context.Context, keep int) error {
	if _, err := s.store.db.ExecContext(ctx, pruneResults, max(keep, 0)); err != nil {
		return fmt.Errorf("pruning task history: %w", err)
	}
	return nil
}

func readTask(row scanner) (*domain.ScheduledTask, error) {
	var (
		t                             domain.ScheduledTask
		seconds                       int64
		enabled                       int
		lastRun, nextRun, lastSuccess sql.NullInt64
		lastError                     sql.NullString
	)
	err := row.Scan(&t.ID, &t.Name, &seconds, &enabled, &lastRun, &nextRun, &lastSuccess, &lastError)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scanning task: %w", err)
	}
	t.Interval = time.Duration(seconds) * time.Second
	t.Enabled = enabled == 1
	t.LastRun = fromUnixNano(lastRun.Int64)
	t.NextRun = fromUnixNano(nextRun.Int64)
	t.LastSuccess = fromUnixNano(lastSuccess.Int64)
	t.LastError = lastError.String
	return &t, nil
}

// nullableTime stores zero times as NULL.
func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UnixNano()
}
