package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/focalapp/focal/internal/model"
)

const sessionColumns = `id, type, duration_seconds, completed_at, task, project_id,
	overflow_seconds, estimated_seconds,
	sync_status, local_updated_at, synced_at, server_id, deleted`

// UpsertSession inserts or updates a session by local id.
func (s *Store) UpsertSession(session *model.Session) error {
	return s.UpsertSessionContext(context.Background(), session)
}

// UpsertSessionContext inserts or updates a session with context support.
func (s *Store) UpsertSessionContext(ctx context.Context, session *model.Session) error {
	if err := session.Validate(); err != nil {
		return fmt.Errorf("invalid session: %w", err)
	}

	query := `
	INSERT INTO sessions (
		id, type, duration_seconds, completed_at, task, project_id,
		overflow_seconds, estimated_seconds,
		sync_status, local_updated_at, synced_at, server_id, deleted
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		type = excluded.type,
		duration_seconds = excluded.duration_seconds,
		completed_at = excluded.completed_at,
		task = excluded.task,
		project_id = excluded.project_id,
		overflow_seconds = excluded.overflow_seconds,
		estimated_seconds = excluded.estimated_seconds,
		sync_status = excluded.sync_status,
		local_updated_at = excluded.local_updated_at,
		synced_at = excluded.synced_at,
		server_id = excluded.server_id,
		deleted = excluded.deleted
	`

	_, err := s.conn.ExecContext(ctx, query,
		session.ID,
		string(session.Type),
		session.DurationSeconds,
		formatTime(session.CompletedAt),
		session.Task,
		stringToNull(session.ProjectID),
		intToNull(session.OverflowSeconds),
		intToNull(session.EstimatedSeconds),
		string(session.SyncStatus),
		formatTime(session.LocalUpdatedAt),
		timeToNullString(session.SyncedAt),
		stringToNull(session.ServerID),
		boolToInt(session.Deleted),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert session %s: %w", session.ID, err)
	}

	return nil
}

// GetSession retrieves a session by local id.
// Returns sql.ErrNoRows if not found.
func (s *Store) GetSession(id string) (*model.Session, error) {
	return s.GetSessionContext(context.Background(), id)
}

// GetSessionContext retrieves a session with context support.
func (s *Store) GetSessionContext(ctx context.Context, id string) (*model.Session, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	return scanSessionRow(row)
}

// GetSessionByServerID retrieves a session by its remote identifier.
// Returns sql.ErrNoRows if not found.
func (s *Store) GetSessionByServerID(ctx context.Context, serverID string) (*model.Session, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE server_id = ?`, serverID)
	return scanSessionRow(row)
}

// DeleteSession hard-deletes a session row.
// Returns nil if the session doesn't exist (idempotent).
func (s *Store) DeleteSession(id string) error {
	return s.DeleteSessionContext(context.Background(), id)
}

// DeleteSessionContext hard-deletes a session with context support.
func (s *Store) DeleteSessionContext(ctx context.Context, id string) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	return nil
}

// SessionFilter configures ListSessions.
type SessionFilter struct {
	// CompletedFrom/CompletedTo bound the completion-date range scan.
	CompletedFrom *time.Time
	CompletedTo   *time.Time
	// ProjectID filters by local project id (empty = all).
	ProjectID string
	// IncludeDeleted includes tombstoned rows.
	IncludeDeleted bool
	// Limit restricts the number of results (0 = no limit).
	Limit int
}

// ListSessions retrieves sessions matching the filter, newest first.
func (s *Store) ListSessions(filter SessionFilter) ([]*model.Session, error) {
	return s.ListSessionsContext(context.Background(), filter)
}

// ListSessionsContext retrieves sessions with context support.
func (s *Store) ListSessionsContext(ctx context.Context, filter SessionFilter) ([]*model.Session, error) {
	var conditions []string
	var args []interface{}

	if filter.CompletedFrom != nil {
		conditions = append(conditions, "completed_at >= ?")
		args = append(args, formatTime(*filter.CompletedFrom))
	}
	if filter.CompletedTo != nil {
		conditions = append(conditions, "completed_at < ?")
		args = append(args, formatTime(*filter.CompletedTo))
	}
	if filter.ProjectID != "" {
		conditions = append(conditions, "project_id = ?")
		args = append(args, filter.ProjectID)
	}
	if !filter.IncludeDeleted {
		conditions = append(conditions, "deleted = 0")
	}

	query := `SELECT ` + sessionColumns + ` FROM sessions`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY completed_at DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	return scanSessions(rows)
}

// ListSessionsNeedingSync returns sessions that are not yet synced,
// including tombstones awaiting propagation. Ordered by local update time
// so older mutations push first.
func (s *Store) ListSessionsNeedingSync(ctx context.Context) ([]*model.Session, error) {
	query := `
	SELECT ` + sessionColumns + `
	FROM sessions
	WHERE sync_status != ?
	ORDER BY local_updated_at ASC
	`

	rows, err := s.conn.QueryContext(ctx, query, string(model.StatusSynced))
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions needing sync: %w", err)
	}
	defer rows.Close()

	return scanSessions(rows)
}

// SessionCount returns the number of live (non-tombstoned) sessions.
func (s *Store) SessionCount() (int, error) {
	return s.SessionCountContext(context.Background())
}

// SessionCountContext returns the session count with context support.
func (s *Store) SessionCountContext(ctx context.Context) (int, error) {
	var count int
	err := s.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM sessions WHERE deleted = 0").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get session count: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanSessionInto scans one session from a row or rows cursor.
func scanSessionInto(scanner rowScanner) (*model.Session, error) {
	var session model.Session
	var typ, completedAt, syncStatus, localUpdatedAt string
	var projectID, syncedAt, serverID sql.NullString
	var overflow, estimated sql.NullInt64
	var deleted int

	err := scanner.Scan(
		&session.ID,
		&typ,
		&session.DurationSeconds,
		&completedAt,
		&session.Task,
		&projectID,
		&overflow,
		&estimated,
		&syncStatus,
		&localUpdatedAt,
		&syncedAt,
		&serverID,
		&deleted,
	)
	if err != nil {
		return nil, err
	}

	session.Type = model.SessionType(typ)
	session.CompletedAt = parseTime(completedAt)
	session.ProjectID = nullToString(projectID)
	session.OverflowSeconds = nullToInt(overflow)
	session.EstimatedSeconds = nullToInt(estimated)
	session.SyncStatus = model.SyncStatus(syncStatus)
	session.LocalUpdatedAt = parseTime(localUpdatedAt)
	session.SyncedAt = nullStringToTime(syncedAt)
	session.ServerID = nullToString(serverID)
	session.Deleted = deleted != 0

	return &session, nil
}

func scanSessionRow(row *sql.Row) (*model.Session, error) {
	session, err := scanSessionInto(row)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}
	return session, nil
}

func scanSessions(rows *sql.Rows) ([]*model.Session, error) {
	var sessions []*model.Session
	for rows.Next() {
		session, err := scanSessionInto(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}
	return sessions, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
