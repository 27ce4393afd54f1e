// Package queue implements the durable offline mutation queue.
//
// Every push that cannot reach the remote service lands here as a
// snapshot of the mutation. Entries replay in creation order with
// exponential backoff; an entry that exhausts its retries is moved to the
// dead_letters table so the lost mutation stays visible to an operator
// instead of vanishing.
//
// The queue does not deduplicate on enqueue. Superseding is explicit: a
// later successful push for the same entity calls RemoveForEntity to purge
// stale payloads so they are never replayed over fresher state.
package queue

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Operation is the kind of queued mutation.
type Operation string

const (
	// OpUpsert replays a create-or-update of the payload snapshot.
	OpUpsert Operation = "upsert"
	// OpDelete replays a deletion of the entity.
	OpDelete Operation = "delete"
)

// EntityType names the record family a change belongs to.
type EntityType string

const (
	EntitySessions EntityType = "sessions"
	EntityProjects EntityType = "projects"
)

// Change is one queued mutation.
type Change struct {
	ID         int64
	EntityType EntityType
	EntityID   string
	Op         Operation
	Payload    []byte
	CreatedAt  time.Time
	RetryCount int
	NextRetryAt *time.Time
	LastError  string
}

// DeadLetter is a change dropped after exhausting its retries.
type DeadLetter struct {
	ID         int64
	EntityType EntityType
	EntityID   string
	Op         Operation
	Payload    []byte
	CreatedAt  time.Time
	DroppedAt  time.Time
	RetryCount int
	LastError  string
}

// Policy controls retry behavior.
type Policy struct {
	// MaxRetries is the retry count at which an entry is dead-lettered.
	MaxRetries int
	// BaseDelay seeds the exponential backoff: base * 2^retryCount.
	BaseDelay time.Duration
}

// DefaultPolicy returns the retry policy used by the sync service.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries: 5,
		BaseDelay:  2 * time.Second,
	}
}

// Queue provides access to the sync_queue and dead_letters tables.
// It shares the local store's database file.
type Queue struct {
	conn *sql.DB
	now  func() time.Time
}

// New creates a Queue over an opened database connection.
// The schema must already be initialized.
func New(conn *sql.DB) *Queue {
	return &Queue{
		conn: conn,
		now:  time.Now,
	}
}

// Enqueue appends a new change. No proactive deduplication: superseding
// is handled by RemoveForEntity when a fresher push succeeds.
func (q *Queue) Enqueue(ctx context.Context, entityType EntityType, entityID string, op Operation, payload []byte) (int64, error) {
	query := `
	INSERT INTO sync_queue (entity_type, entity_id, op, payload, created_at)
	VALUES (?, ?, ?, ?, ?)
	`
	res, err := q.conn.ExecContext(ctx, query,
		string(entityType), entityID, string(op), string(payload),
		formatTime(q.now()))
	if err != nil {
		return 0, fmt.Errorf("failed to enqueue %s/%s change: %w", entityType, entityID, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read queue entry id: %w", err)
	}
	return id, nil
}

// NextBatch returns up to n entries ordered by creation time, skipping
// entries whose backoff has not yet elapsed.
func (q *Queue) NextBatch(ctx context.Context, n int) ([]*Change, error) {
	query := `
	SELECT id, entity_type, entity_id, op, payload, created_at,
	       retry_count, next_retry_at, last_error
	FROM sync_queue
	WHERE next_retry_at IS NULL OR next_retry_at <= ?
	ORDER BY created_at ASC, id ASC
	LIMIT ?
	`

	rows, err := q.conn.QueryContext(ctx, query, formatTime(q.now()), n)
	if err != nil {
		return nil, fmt.Errorf("failed to query queue batch: %w", err)
	}
	defer rows.Close()

	var changes []*Change
	for rows.Next() {
		var c Change
		var entityType, op, payload, createdAt string
		var nextRetryAt sql.NullString

		err := rows.Scan(&c.ID, &entityType, &c.EntityID, &op, &payload,
			&createdAt, &c.RetryCount, &nextRetryAt, &c.LastError)
		if err != nil {
			return nil, fmt.Errorf("failed to scan queue entry: %w", err)
		}

		c.EntityType = EntityType(entityType)
		c.Op = Operation(op)
		c.Payload = []byte(payload)
		c.CreatedAt = parseTime(createdAt)
		if nextRetryAt.Valid {
			t := parseTime(nextRetryAt.String)
			c.NextRetryAt = &t
		}
		changes = append(changes, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating queue entries: %w", err)
	}

	return changes, nil
}

// MarkProcessed deletes a successfully replayed entry.
func (q *Queue) MarkProcessed(ctx context.Context, id int64) error {
	if _, err := q.conn.ExecContext(ctx, `DELETE FROM sync_queue WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to mark queue entry %d processed: %w", id, err)
	}
	return nil
}

// MarkFailed records a replay failure. The entry's retry count is
// incremented and its next attempt scheduled at base*2^retryCount; once
// the count reaches policy.MaxRetries the entry is moved to dead_letters.
//
// Returns true when the entry was dead-lettered.
func (q *Queue) MarkFailed(ctx context.Context, id int64, cause error, policy Policy) (bool, error) {
	tx, err := q.conn.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var retryCount int
	err = tx.QueryRowContext(ctx,
		`SELECT retry_count FROM sync_queue WHERE id = ?`, id).Scan(&retryCount)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read queue entry %d: %w", id, err)
	}

	retryCount++
	errText := ""
	if cause != nil {
		errText = cause.Error()
	}

	if retryCount >= policy.MaxRetries {
		archive := `
		INSERT INTO dead_letters (entity_type, entity_id, op, payload, created_at, dropped_at, retry_count, last_error)
		SELECT entity_type, entity_id, op, payload, created_at, ?, ?, ?
		FROM sync_queue WHERE id = ?
		`
		if _, err := tx.ExecContext(ctx, archive,
			formatTime(q.now()), retryCount, errText, id); err != nil {
			return false, fmt.Errorf("failed to dead-letter queue entry %d: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM sync_queue WHERE id = ?`, id); err != nil {
			return false, fmt.Errorf("failed to remove exhausted queue entry %d: %w", id, err)
		}
		if err := tx.Commit(); err != nil {
			return false, fmt.Errorf("failed to commit transaction: %w", err)
		}
		return true, nil
	}

	nextRetry := q.now().Add(policy.BaseDelay * (1 << retryCount))
	update := `
	UPDATE sync_queue
	SET retry_count = ?, next_retry_at = ?, last_error = ?
	WHERE id = ?
	`
	if _, err := tx.ExecContext(ctx, update,
		retryCount, formatTime(nextRetry), errText, id); err != nil {
		return false, fmt.Errorf("failed to mark queue entry %d failed: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return false, nil
}

// RemoveForEntity purges all queued entries for an entity. Called when a
// fresher push for the entity succeeds and the snapshots are obsolete.
func (q *Queue) RemoveForEntity(ctx context.Context, entityType EntityType, entityID string) error {
	query := `DELETE FROM sync_queue WHERE entity_type = ? AND entity_id = ?`
	if _, err := q.conn.ExecContext(ctx, query, string(entityType), entityID); err != nil {
		return fmt.Errorf("failed to remove queue entries for %s/%s: %w", entityType, entityID, err)
	}
	return nil
}

// HasEntity reports whether any queued entry exists for an entity.
func (q *Queue) HasEntity(ctx context.Context, entityType EntityType, entityID string) (bool, error) {
	var count int
	err := q.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sync_queue WHERE entity_type = ? AND entity_id = ?`,
		string(entityType), entityID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check queue for %s/%s: %w", entityType, entityID, err)
	}
	return count > 0, nil
}

// Depth returns the number of pending entries.
func (q *Queue) Depth(ctx context.Context) (int, error) {
	var count int
	if err := q.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM sync_queue`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to get queue depth: %w", err)
	}
	return count, nil
}

// DeadLetters returns dropped changes, newest first.
func (q *Queue) DeadLetters(ctx context.Context) ([]*DeadLetter, error) {
	query := `
	SELECT id, entity_type, entity_id, op, payload, created_at, dropped_at, retry_count, last_error
	FROM dead_letters
	ORDER BY dropped_at DESC, id DESC
	`

	rows, err := q.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query dead letters: %w", err)
	}
	defer rows.Close()

	var letters []*DeadLetter
	for rows.Next() {
		var d DeadLetter
		var entityType, op, payload, createdAt, droppedAt string
		err := rows.Scan(&d.ID, &entityType, &d.EntityID, &op, &payload,
			&createdAt, &droppedAt, &d.RetryCount, &d.LastError)
		if err != nil {
			return nil, fmt.Errorf("failed to scan dead letter: %w", err)
		}
		d.EntityType = EntityType(entityType)
		d.Op = Operation(op)
		d.Payload = []byte(payload)
		d.CreatedAt = parseTime(createdAt)
		d.DroppedAt = parseTime(droppedAt)
		letters = append(letters, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating dead letters: %w", err)
	}

	return letters, nil
}

// timeLayout is fixed-width so created_at and next_retry_at order
// correctly under SQL string comparison; RFC3339Nano's trimmed
// fractional zeros do not.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	t, _ := time.Parse(time.RFC3339, s)
	return t
}
