package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/focalapp/focal/internal/model"
)

const projectColumns = `id, name, intensity, archived, created_at, updated_at,
	sync_status, local_updated_at, synced_at, server_id, deleted`

// UpsertProject inserts or updates a project by local id.
func (s *Store) UpsertProject(project *model.Project) error {
	return s.UpsertProjectContext(context.Background(), project)
}

// UpsertProjectContext inserts or updates a project with context support.
func (s *Store) UpsertProjectContext(ctx context.Context, project *model.Project) error {
	if err := project.Validate(); err != nil {
		return fmt.Errorf("invalid project: %w", err)
	}

	query := `
	INSERT INTO projects (
		id, name, intensity, archived, created_at, updated_at,
		sync_status, local_updated_at, synced_at, server_id, deleted
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		name = excluded.name,
		intensity = excluded.intensity,
		archived = excluded.archived,
		updated_at = excluded.updated_at,
		sync_status = excluded.sync_status,
		local_updated_at = excluded.local_updated_at,
		synced_at = excluded.synced_at,
		server_id = excluded.server_id,
		deleted = excluded.deleted
	`

	_, err := s.conn.ExecContext(ctx, query,
		project.ID,
		project.Name,
		project.Intensity,
		boolToInt(project.Archived),
		formatTime(project.CreatedAt),
		formatTime(project.UpdatedAt),
		string(project.SyncStatus),
		formatTime(project.LocalUpdatedAt),
		timeToNullString(project.SyncedAt),
		stringToNull(project.ServerID),
		boolToInt(project.Deleted),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert project %s: %w", project.ID, err)
	}

	return nil
}

// GetProject retrieves a project by local id.
// Returns sql.ErrNoRows if not found.
func (s *Store) GetProject(id string) (*model.Project, error) {
	return s.GetProjectContext(context.Background(), id)
}

// GetProjectContext retrieves a project with context support.
func (s *Store) GetProjectContext(ctx context.Context, id string) (*model.Project, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id = ?`, id)
	return scanProjectRow(row)
}

// GetProjectByServerID retrieves a project by its remote identifier.
// Returns sql.ErrNoRows if not found.
func (s *Store) GetProjectByServerID(ctx context.Context, serverID string) (*model.Project, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE server_id = ?`, serverID)
	return scanProjectRow(row)
}

// DeleteProject hard-deletes a project row.
// Returns nil if the project doesn't exist (idempotent).
func (s *Store) DeleteProject(id string) error {
	return s.DeleteProjectContext(context.Background(), id)
}

// DeleteProjectContext hard-deletes a project with context support.
func (s *Store) DeleteProjectContext(ctx context.Context, id string) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete project %s: %w", id, err)
	}
	return nil
}

// ListProjects returns non-deleted projects, optionally including archived
// ones. Ordered by name.
func (s *Store) ListProjects(includeArchived bool) ([]*model.Project, error) {
	return s.ListProjectsContext(context.Background(), includeArchived)
}

// ListProjectsContext returns projects with context support.
func (s *Store) ListProjectsContext(ctx context.Context, includeArchived bool) ([]*model.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE deleted = 0`
	if !includeArchived {
		query += " AND archived = 0"
	}
	query += " ORDER BY name ASC"

	rows, err := s.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	return scanProjects(rows)
}

// ListProjectsNeedingSync returns projects that are not yet synced,
// including tombstones awaiting propagation.
func (s *Store) ListProjectsNeedingSync(ctx context.Context) ([]*model.Project, error) {
	query := `
	SELECT ` + projectColumns + `
	FROM projects
	WHERE sync_status != ?
	ORDER BY local_updated_at ASC
	`

	rows, err := s.conn.QueryContext(ctx, query, string(model.StatusSynced))
	if err != nil {
		return nil, fmt.Errorf("failed to query projects needing sync: %w", err)
	}
	defer rows.Close()

	return scanProjects(rows)
}

// ListSyncedProjects returns projects that carry a server id, used to
// rebuild the local-to-remote id map.
func (s *Store) ListSyncedProjects(ctx context.Context) ([]*model.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE server_id IS NOT NULL`

	rows, err := s.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query synced projects: %w", err)
	}
	defer rows.Close()

	return scanProjects(rows)
}

// ProjectCount returns the number of live (non-tombstoned) projects.
func (s *Store) ProjectCount() (int, error) {
	return s.ProjectCountContext(context.Background())
}

// ProjectCountContext returns the project count with context support.
func (s *Store) ProjectCountContext(ctx context.Context) (int, error) {
	var count int
	err := s.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM projects WHERE deleted = 0").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get project count: %w", err)
	}
	return count, nil
}

func scanProjectInto(scanner rowScanner) (*model.Project, error) {
	var project model.Project
	var createdAt, updatedAt, syncStatus, localUpdatedAt string
	var syncedAt, serverID sql.NullString
	var archived, deleted int

	err := scanner.Scan(
		&project.ID,
		&project.Name,
		&project.Intensity,
		&archived,
		&createdAt,
		&updatedAt,
		&syncStatus,
		&localUpdatedAt,
		&syncedAt,
		&serverID,
		&deleted,
	)
	if err != nil {
		return nil, err
	}

	project.Archived = archived != 0
	project.CreatedAt = parseTime(createdAt)
	project.UpdatedAt = parseTime(updatedAt)
	project.SyncStatus = model.SyncStatus(syncStatus)
	project.LocalUpdatedAt = parseTime(localUpdatedAt)
	project.SyncedAt = nullStringToTime(syncedAt)
	project.ServerID = nullToString(serverID)
	project.Deleted = deleted != 0

	return &project, nil
}

func scanProjectRow(row *sql.Row) (*model.Project, error) {
	project, err := scanProjectInto(row)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan project: %w", err)
	}
	return project, nil
}

func scanProjects(rows *sql.Rows) ([]*model.Project, error) {
	var projects []*model.Project
	for rows.Next() {
		project, err := scanProjectInto(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, project)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating projects: %w", err)
	}
	return projects, nil
}
