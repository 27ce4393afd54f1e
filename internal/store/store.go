// Package store provides the SQLite-backed local store for Focal.
//
// This is the client-resident half of the sync engine: all entity writes
// land here first and never block on the network. The database runs in
// embedded mode with WAL for concurrent reads.
//
// Record families:
//   - sessions: completed timer intervals, with sync metadata
//   - projects: named work buckets, with sync metadata
//   - recent_tasks: recently-used task labels (local only, capped)
//   - settings: a single opaque key-value document per user
//   - sync_queue / dead_letters: durable offline mutation queue
//   - meta: engine bookkeeping (migration flags, last-pull timestamps)
//
// Schema changes are additive only (new tables/indexes behind IF NOT
// EXISTS), so a version bump never invalidates existing local data.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// Store wraps the SQLite connection with Focal-specific accessors.
type Store struct {
	conn *sql.DB
	path string
}

// Open creates a database connection at the specified path.
//
// The database is opened in embedded mode with WAL for concurrent reads.
// If the database doesn't exist it is created; call InitSchema before use.
// The caller MUST call Close when done.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{conn: conn, path: path}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := s.conn.Exec(pragma); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("failed to exec %q: %w", pragma, err)
		}
	}

	return s, nil
}

// RawDB returns the underlying sql.DB connection.
// Useful for components that manage their own tables in the same file,
// such as the offline queue.
func (s *Store) RawDB() *sql.DB {
	return s.conn
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database connection after checkpointing the WAL.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}

	if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	s.conn = nil
	return nil
}

// InitSchema creates the database schema if it doesn't exist.
// Idempotent - safe to call multiple times.
func (s *Store) InitSchema() error {
	return s.InitSchemaContext(context.Background())
}

// InitSchemaContext creates the database schema with context support.
func (s *Store) InitSchemaContext(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		duration_seconds INTEGER NOT NULL,
		completed_at TEXT NOT NULL,
		task TEXT NOT NULL DEFAULT '',
		project_id TEXT,
		overflow_seconds INTEGER,
		estimated_seconds INTEGER,

		sync_status TEXT NOT NULL DEFAULT 'local',
		local_updated_at TEXT NOT NULL,
		synced_at TEXT,
		server_id TEXT,
		deleted INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		intensity REAL NOT NULL DEFAULT 1.0,
		archived INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,

		sync_status TEXT NOT NULL DEFAULT 'local',
		local_updated_at TEXT NOT NULL,
		synced_at TEXT,
		server_id TEXT,
		deleted INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS recent_tasks (
		text TEXT PRIMARY KEY,
		last_used_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS settings (
		user_id TEXT PRIMARY KEY,
		doc TEXT NOT NULL,  -- JSON object, opaque to the engine
		local_updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sync_queue (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		entity_type TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		op TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at TEXT NOT NULL,
		retry_count INTEGER NOT NULL DEFAULT 0,
		next_retry_at TEXT,
		last_error TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS dead_letters (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		entity_type TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		op TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at TEXT NOT NULL,
		dropped_at TEXT NOT NULL,
		retry_count INTEGER NOT NULL,
		last_error TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	-- Indexes for range scans and needs-sync queries
	CREATE INDEX IF NOT EXISTS idx_sessions_completed ON sessions(completed_at);
	CREATE INDEX IF NOT EXISTS idx_sessions_sync_status ON sessions(sync_status);
	CREATE INDEX IF NOT EXISTS idx_sessions_server_id ON sessions(server_id);
	CREATE INDEX IF NOT EXISTS idx_sessions_project ON sessions(project_id);
	CREATE INDEX IF NOT EXISTS idx_projects_sync_status ON projects(sync_status);
	CREATE INDEX IF NOT EXISTS idx_projects_server_id ON projects(server_id);
	CREATE INDEX IF NOT EXISTS idx_queue_created ON sync_queue(created_at);
	CREATE INDEX IF NOT EXISTS idx_queue_entity ON sync_queue(entity_type, entity_id);
	CREATE INDEX IF NOT EXISTS idx_queue_retry ON sync_queue(next_retry_at);
	CREATE INDEX IF NOT EXISTS idx_recent_last_used ON recent_tasks(last_used_at);
	`

	if _, err := s.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	return nil
}

// GetMeta returns the meta value for key, or "" if unset.
func (s *Store) GetMeta(key string) (string, error) {
	return s.GetMetaContext(context.Background(), key)
}

// GetMetaContext returns a meta value with context support.
func (s *Store) GetMetaContext(ctx context.Context, key string) (string, error) {
	var value string
	err := s.conn.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get meta %q: %w", key, err)
	}
	return value, nil
}

// SetMeta stores a meta value.
func (s *Store) SetMeta(key, value string) error {
	return s.SetMetaContext(context.Background(), key, value)
}

// SetMetaContext stores a meta value with context support.
func (s *Store) SetMetaContext(ctx context.Context, key, value string) error {
	query := `
	INSERT INTO meta (key, value) VALUES (?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`
	if _, err := s.conn.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to set meta %q: %w", key, err)
	}
	return nil
}

// GetMetaTime parses a meta value as RFC3339. Returns the zero time if unset.
func (s *Store) GetMetaTime(ctx context.Context, key string) (time.Time, error) {
	value, err := s.GetMetaContext(ctx, key)
	if err != nil || value == "" {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse meta %q: %w", key, err)
	}
	return t, nil
}

// SetMetaTime stores a timestamp meta value in RFC3339 form.
func (s *Store) SetMetaTime(ctx context.Context, key string, t time.Time) error {
	return s.SetMetaContext(ctx, key, formatTime(t))
}

// timeToNullString converts a time pointer to a nullable string for SQL.
func timeToNullString(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

// nullStringToTime converts a nullable SQL string to a time pointer.
func nullStringToTime(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, ns.String)
	if err != nil {
		return nil
	}
	return &t
}

// stringToNull converts a string pointer to a nullable SQL string.
func stringToNull(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// nullToString converts a nullable SQL string to a string pointer.
func nullToString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

// intToNull converts an int pointer to a nullable SQL int64.
func intToNull(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

// nullToInt converts a nullable SQL int64 to an int pointer.
func nullToInt(ni sql.NullInt64) *int {
	if !ni.Valid {
		return nil
	}
	v := int(ni.Int64)
	return &v
}

// timeLayout is fixed-width so stored timestamps order correctly under
// SQL string comparison. RFC3339Nano trims trailing fractional zeros,
// which breaks lexicographic order when precisions mix ("...04Z" sorts
// after "...04.001Z").
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// formatTime renders a timestamp for storage.
func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime parses a stored timestamp, tolerating second precision.
func parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	t, _ := time.Parse(time.RFC3339, s)
	return t
}
