package store

import (
	"context"
	"fmt"
	"time"

	"github.com/focalapp/focal/internal/model"
)

// TouchRecentTask records a use of a task label, inserting it or bumping
// its last-used time, then evicts the oldest labels beyond the cap.
// Recent tasks never enter the sync queue.
func (s *Store) TouchRecentTask(text string, usedAt time.Time) error {
	return s.TouchRecentTaskContext(context.Background(), text, usedAt)
}

// TouchRecentTaskContext records a task-label use with context support.
func (s *Store) TouchRecentTaskContext(ctx context.Context, text string, usedAt time.Time) error {
	if text == "" {
		return fmt.Errorf("task text is required")
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	upsert := `
	INSERT INTO recent_tasks (text, last_used_at) VALUES (?, ?)
	ON CONFLICT(text) DO UPDATE SET last_used_at = excluded.last_used_at
	`
	if _, err := tx.ExecContext(ctx, upsert, text, formatTime(usedAt)); err != nil {
		return fmt.Errorf("failed to upsert recent task: %w", err)
	}

	// Oldest-by-last-use eviction beyond the cap.
	evict := `
	DELETE FROM recent_tasks WHERE text NOT IN (
		SELECT text FROM recent_tasks ORDER BY last_used_at DESC LIMIT ?
	)
	`
	if _, err := tx.ExecContext(ctx, evict, model.MaxRecentTasks); err != nil {
		return fmt.Errorf("failed to evict recent tasks: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// ListRecentTasks returns recent task labels, most recently used first.
func (s *Store) ListRecentTasks() ([]*model.RecentTask, error) {
	return s.ListRecentTasksContext(context.Background())
}

// ListRecentTasksContext returns recent task labels with context support.
func (s *Store) ListRecentTasksContext(ctx context.Context) ([]*model.RecentTask, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT text, last_used_at FROM recent_tasks ORDER BY last_used_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*model.RecentTask
	for rows.Next() {
		var task model.RecentTask
		var lastUsed string
		if err := rows.Scan(&task.Text, &lastUsed); err != nil {
			return nil, fmt.Errorf("failed to scan recent task: %w", err)
		}
		task.LastUsedAt = parseTime(lastUsed)
		tasks = append(tasks, &task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating recent tasks: %w", err)
	}

	return tasks, nil
}
