package legacy

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/focalapp/focal/internal/model"
	"github.com/focalapp/focal/internal/store"
)

// Completion flags in the meta table, one per record family.
const (
	flagSessions    = "migration:sessions"
	flagProjects    = "migration:projects"
	flagSettings    = "migration:settings"
	flagRecentTasks = "migration:recent_tasks"

	flagDone = "done"
)

// Result reports the outcome of one family's migration.
type Result struct {
	// Skipped is true when the completion flag was already set and
	// nothing was read.
	Skipped bool

	// Migrated counts records inserted into the local store.
	Migrated int

	// DuplicatesSkipped counts legacy records whose primary key already
	// existed locally.
	DuplicatesSkipped int

	// Errors holds per-record failures. The batch never aborts on one
	// bad record and the family is still marked complete.
	Errors []error
}

// Migrator converts legacy records into local-store rows.
//
// Each family runs at most once: a completion flag is set after the
// first pass regardless of per-record errors, trading partial data loss
// for never re-attempting a poisoned record on every start.
type Migrator struct {
	store   *store.Store
	storage *Storage
	logger  *log.Logger
	now     func() time.Time
}

// NewMigrator creates a Migrator. If logger is nil, a default logger
// writing to stderr is used.
func NewMigrator(st *store.Store, storage *Storage, logger *log.Logger) *Migrator {
	if logger == nil {
		logger = log.New(os.Stderr, "[migrate] ", log.LstdFlags)
	}
	return &Migrator{
		store:   st,
		storage: storage,
		logger:  logger,
		now:     time.Now,
	}
}

// MigrateAll runs every family. Families are independent: one family's
// failure never prevents the others from running. Projects run before
// sessions so session project references land on existing rows.
func (m *Migrator) MigrateAll(ctx context.Context) map[string]*Result {
	results := make(map[string]*Result, 4)

	run := func(name string, fn func(context.Context) (*Result, error)) {
		res, err := fn(ctx)
		if err != nil {
			m.logger.Printf("Migration of %s failed: %v", name, err)
			res = &Result{Errors: []error{err}}
		}
		results[name] = res
	}

	run("projects", m.MigrateProjects)
	run("sessions", m.MigrateSessions)
	run("settings", m.MigrateSettings)
	run("recent_tasks", m.MigrateRecentTasks)

	return results
}

// MigrateProjects converts legacy projects.
//
// Ids are carried over verbatim: sessions reference projects by id, and
// any remapping here would silently break that relationship.
func (m *Migrator) MigrateProjects(ctx context.Context) (*Result, error) {
	done, err := m.isDone(ctx, flagProjects)
	if err != nil {
		return nil, err
	}
	if done {
		return &Result{Skipped: true}, nil
	}

	res := &Result{}
	for _, rec := range m.readProjects() {
		if rec.ID == "" {
			res.Errors = append(res.Errors, fmt.Errorf("project with empty id"))
			continue
		}

		_, err := m.store.GetProjectContext(ctx, rec.ID)
		if err == nil {
			res.DuplicatesSkipped++
			continue
		}
		if err != sql.ErrNoRows {
			res.Errors = append(res.Errors, fmt.Errorf("project %s: %w", rec.ID, err))
			continue
		}

		project, err := m.convertProject(rec)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Errorf("project %s: %w", rec.ID, err))
			continue
		}
		if err := m.store.UpsertProjectContext(ctx, project); err != nil {
			res.Errors = append(res.Errors, fmt.Errorf("project %s: %w", rec.ID, err))
			continue
		}
		res.Migrated++
	}

	if err := m.markDone(ctx, flagProjects); err != nil {
		return res, err
	}
	m.logResult("projects", res)
	return res, nil
}

// MigrateSessions converts legacy sessions.
func (m *Migrator) MigrateSessions(ctx context.Context) (*Result, error) {
	done, err := m.isDone(ctx, flagSessions)
	if err != nil {
		return nil, err
	}
	if done {
		return &Result{Skipped: true}, nil
	}

	res := &Result{}
	for _, rec := range m.readSessions() {
		if rec.ID == "" {
			res.Errors = append(res.Errors, fmt.Errorf("session with empty id"))
			continue
		}

		_, err := m.store.GetSessionContext(ctx, rec.ID)
		if err == nil {
			res.DuplicatesSkipped++
			continue
		}
		if err != sql.ErrNoRows {
			res.Errors = append(res.Errors, fmt.Errorf("session %s: %w", rec.ID, err))
			continue
		}

		session, err := m.convertSession(rec)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Errorf("session %s: %w", rec.ID, err))
			continue
		}
		if err := m.store.UpsertSessionContext(ctx, session); err != nil {
			res.Errors = append(res.Errors, fmt.Errorf("session %s: %w", rec.ID, err))
			continue
		}
		res.Migrated++
	}

	if err := m.markDone(ctx, flagSessions); err != nil {
		return res, err
	}
	m.logResult("sessions", res)
	return res, nil
}

// MigrateSettings converts the legacy settings map. An existing local
// document is never overwritten; it counts as the one duplicate.
func (m *Migrator) MigrateSettings(ctx context.Context) (*Result, error) {
	done, err := m.isDone(ctx, flagSettings)
	if err != nil {
		return nil, err
	}
	if done {
		return &Result{Skipped: true}, nil
	}

	res := &Result{}
	values := m.readSettings()
	if len(values) > 0 {
		existing, err := m.store.GetSettingsContext(ctx, model.DefaultUserID)
		if err != nil {
			return res, fmt.Errorf("failed to load settings: %w", err)
		}
		if len(existing.Values) > 0 {
			res.DuplicatesSkipped++
		} else {
			doc := &model.Settings{
				UserID:         model.DefaultUserID,
				Values:         values,
				LocalUpdatedAt: m.now(),
			}
			if err := m.store.PutSettingsContext(ctx, doc); err != nil {
				return res, fmt.Errorf("failed to write settings: %w", err)
			}
			res.Migrated++
		}
	}

	if err := m.markDone(ctx, flagSettings); err != nil {
		return res, err
	}
	m.logResult("settings", res)
	return res, nil
}

// MigrateRecentTasks converts the legacy recent-task list. The store
// enforces the recency cap, so migrating more labels than the cap keeps
// only the most recently used ones.
func (m *Migrator) MigrateRecentTasks(ctx context.Context) (*Result, error) {
	done, err := m.isDone(ctx, flagRecentTasks)
	if err != nil {
		return nil, err
	}
	if done {
		return &Result{Skipped: true}, nil
	}

	existing := make(map[string]bool)
	if tasks, err := m.store.ListRecentTasksContext(ctx); err == nil {
		for _, t := range tasks {
			existing[t.Text] = true
		}
	}

	res := &Result{}
	for _, rec := range m.readRecentTasks() {
		if rec.Text == "" {
			continue
		}
		if existing[rec.Text] {
			res.DuplicatesSkipped++
			continue
		}

		usedAt, err := ParseTimestamp(rec.LastUsedAt)
		if err != nil {
			usedAt = m.now()
		}
		if err := m.store.TouchRecentTaskContext(ctx, rec.Text, usedAt); err != nil {
			res.Errors = append(res.Errors, fmt.Errorf("recent task %q: %w", rec.Text, err))
			continue
		}
		res.Migrated++
	}

	if err := m.markDone(ctx, flagRecentTasks); err != nil {
		return res, err
	}
	m.logResult("recent_tasks", res)
	return res, nil
}

// ---- conversion ----

func (m *Migrator) convertSession(rec SessionRecord) (*model.Session, error) {
	completedAt, err := ParseTimestamp(rec.CompletedAt)
	if err != nil {
		return nil, fmt.Errorf("bad completedAt: %w", err)
	}

	// Historical ordering is preserved by stamping the record with its
	// own legacy timestamp, never "now".
	localUpdatedAt := completedAt
	if t, err := ParseTimestamp(rec.UpdatedAt); err == nil {
		localUpdatedAt = t
	}

	var projectID *string
	if rec.ProjectID != "" {
		id := rec.ProjectID
		projectID = &id
	}

	session := &model.Session{
		ID:               rec.ID,
		Type:             sessionTypeFromLegacy(rec.Type),
		DurationSeconds:  rec.DurationSeconds,
		CompletedAt:      completedAt,
		Task:             rec.Task,
		ProjectID:        projectID,
		OverflowSeconds:  rec.OverflowSeconds,
		EstimatedSeconds: rec.EstimatedSeconds,
		SyncMeta: model.SyncMeta{
			SyncStatus:     model.StatusLocal,
			LocalUpdatedAt: localUpdatedAt,
		},
	}
	if err := session.Validate(); err != nil {
		return nil, err
	}
	return session, nil
}

func (m *Migrator) convertProject(rec ProjectRecord) (*model.Project, error) {
	createdAt, err := ParseTimestamp(rec.CreatedAt)
	if err != nil {
		createdAt = m.now()
	}
	updatedAt, err := ParseTimestamp(rec.UpdatedAt)
	if err != nil {
		updatedAt = createdAt
	}

	project := &model.Project{
		ID:        rec.ID,
		Name:      rec.Name,
		Intensity: model.ClampIntensity(rec.Intensity),
		Archived:  rec.Archived,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
		SyncMeta: model.SyncMeta{
			SyncStatus:     model.StatusLocal,
			LocalUpdatedAt: updatedAt,
		},
	}
	if err := project.Validate(); err != nil {
		return nil, err
	}
	return project, nil
}

func sessionTypeFromLegacy(s string) model.SessionType {
	switch s {
	case "shortBreak":
		return model.SessionShortBreak
	case "longBreak":
		return model.SessionLongBreak
	default:
		return model.SessionWork
	}
}

// ---- legacy reads ----

// readSessions decodes the legacy session array. A parse failure is
// treated as an empty array rather than failing the run.
func (m *Migrator) readSessions() []SessionRecord {
	raw, ok := m.storage.Get(KeySessions)
	if !ok {
		return nil
	}
	var recs []SessionRecord
	if err := json.Unmarshal(raw, &recs); err != nil {
		m.logger.Printf("Warning: legacy sessions unreadable, treating as empty: %v", err)
		return nil
	}
	return recs
}

func (m *Migrator) readProjects() []ProjectRecord {
	raw, ok := m.storage.Get(KeyProjects)
	if !ok {
		return nil
	}
	var recs []ProjectRecord
	if err := json.Unmarshal(raw, &recs); err != nil {
		m.logger.Printf("Warning: legacy projects unreadable, treating as empty: %v", err)
		return nil
	}
	return recs
}

// readSettings decodes the legacy settings object. Values the old app
// stored as non-strings are carried over as their compact JSON text.
func (m *Migrator) readSettings() map[string]string {
	raw, ok := m.storage.Get(KeySettings)
	if !ok {
		return nil
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		m.logger.Printf("Warning: legacy settings unreadable, treating as empty: %v", err)
		return nil
	}

	values := make(map[string]string, len(doc))
	for k, v := range doc {
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			values[k] = s
		} else {
			values[k] = string(v)
		}
	}
	return values
}

func (m *Migrator) readRecentTasks() []RecentTaskRecord {
	raw, ok := m.storage.Get(KeyRecentTasks)
	if !ok {
		return nil
	}

	var recs []RecentTaskRecord
	if err := json.Unmarshal(raw, &recs); err == nil {
		return recs
	}

	// The oldest app versions stored a bare string array.
	var texts []string
	if err := json.Unmarshal(raw, &texts); err != nil {
		m.logger.Printf("Warning: legacy recent tasks unreadable, treating as empty")
		return nil
	}
	recs = make([]RecentTaskRecord, 0, len(texts))
	for _, t := range texts {
		recs = append(recs, RecentTaskRecord{Text: t})
	}
	return recs
}

// ---- flags ----

func (m *Migrator) isDone(ctx context.Context, flag string) (bool, error) {
	v, err := m.store.GetMetaContext(ctx, flag)
	if err != nil {
		return false, fmt.Errorf("failed to read migration flag %s: %w", flag, err)
	}
	return v == flagDone, nil
}

// markDone sets the completion flag unconditionally, errors included.
func (m *Migrator) markDone(ctx context.Context, flag string) error {
	if err := m.store.SetMetaContext(ctx, flag, flagDone); err != nil {
		return fmt.Errorf("failed to set migration flag %s: %w", flag, err)
	}
	return nil
}

func (m *Migrator) logResult(family string, res *Result) {
	m.logger.Printf("Migrated %s: %d inserted, %d duplicates skipped, %d errors",
		family, res.Migrated, res.DuplicatesSkipped, len(res.Errors))
}
