package legacy

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/focalapp/focal/internal/model"
	"github.com/focalapp/focal/internal/store"
)

// setupTest creates a store and a legacy file with the given contents.
func setupTest(t *testing.T, legacyDoc map[string]interface{}) (*store.Store, *Migrator) {
	t.Helper()

	dir := t.TempDir()

	st, err := store.Open(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	if err := st.InitSchema(); err != nil {
		t.Fatalf("failed to initialize schema: %v", err)
	}

	legacyPath := filepath.Join(dir, "legacy.json")
	if legacyDoc != nil {
		data, err := json.Marshal(legacyDoc)
		if err != nil {
			t.Fatalf("failed to marshal legacy doc: %v", err)
		}
		if err := os.WriteFile(legacyPath, data, 0o644); err != nil {
			t.Fatalf("failed to write legacy file: %v", err)
		}
	}

	return st, NewMigrator(st, OpenStorage(legacyPath), nil)
}

func TestMigrationIdempotency(t *testing.T) {
	st, m := setupTest(t, map[string]interface{}{
		KeySessions: []map[string]interface{}{
			{"id": "s1", "type": "work", "duration": 1500, "completedAt": "2025-11-02T09:00:00Z"},
			{"id": "s2", "type": "shortBreak", "duration": 300, "completedAt": "2025-11-02T09:30:00Z"},
		},
	})
	ctx := context.Background()

	first, err := m.MigrateSessions(ctx)
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	if first.Skipped || first.Migrated != 2 || first.DuplicatesSkipped != 0 {
		t.Errorf("unexpected first result: %+v", first)
	}

	// The completion flag short-circuits the second run entirely.
	second, err := m.MigrateSessions(ctx)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if !second.Skipped {
		t.Errorf("expected second run skipped, got %+v", second)
	}

	count, _ := st.SessionCount()
	if count != 2 {
		t.Errorf("expected exactly 2 sessions, got %d", count)
	}
}

func TestMigrationDuplicateSkip(t *testing.T) {
	st, m := setupTest(t, map[string]interface{}{
		KeySessions: []map[string]interface{}{
			{"id": "s1", "type": "work", "duration": 1500, "completedAt": "2025-11-02T09:00:00Z"},
		},
	})
	ctx := context.Background()

	// The record already exists locally; migration must not overwrite it.
	existing := model.NewSession(model.SessionLongBreak, 900, time.Now().UTC())
	existing.ID = "s1"
	if err := st.UpsertSession(existing); err != nil {
		t.Fatalf("failed to pre-insert: %v", err)
	}

	res, err := m.MigrateSessions(ctx)
	if err != nil {
		t.Fatalf("migration failed: %v", err)
	}
	if res.Migrated != 0 || res.DuplicatesSkipped != 1 {
		t.Errorf("expected 0 migrated, 1 duplicate, got %+v", res)
	}

	got, _ := st.GetSession("s1")
	if got.Type != model.SessionLongBreak {
		t.Errorf("expected existing record untouched, got type %s", got.Type)
	}
}

func TestMigrationPreservesForeignKeys(t *testing.T) {
	st, m := setupTest(t, map[string]interface{}{
		KeyProjects: []map[string]interface{}{
			{"id": "P", "name": "Thesis", "intensity": 0.8, "createdAt": "2025-10-01T08:00:00Z", "updatedAt": "2025-10-15T08:00:00Z"},
		},
		KeySessions: []map[string]interface{}{
			{"id": "s1", "type": "work", "duration": 1500, "completedAt": "2025-10-20T09:00:00Z", "projectId": "P"},
		},
	})
	ctx := context.Background()

	results := m.MigrateAll(ctx)
	if results["projects"].Migrated != 1 || results["sessions"].Migrated != 1 {
		t.Fatalf("unexpected results: %+v", results)
	}

	session, err := st.GetSession("s1")
	if err != nil {
		t.Fatalf("failed to get session: %v", err)
	}
	// Ids are carried over verbatim, so the reference still resolves.
	if session.ProjectID == nil || *session.ProjectID != "P" {
		t.Fatalf("expected project reference P, got %v", session.ProjectID)
	}
	if _, err := st.GetProject(*session.ProjectID); err != nil {
		t.Errorf("migrated reference does not resolve: %v", err)
	}
}

func TestMigrationTagsRecordsWithLegacyTimestamps(t *testing.T) {
	st, m := setupTest(t, map[string]interface{}{
		KeySessions: []map[string]interface{}{
			{"id": "s1", "type": "work", "duration": 1500, "completedAt": "2025-11-02T09:00:00Z", "updatedAt": "2025-11-03T10:00:00Z"},
		},
	})
	ctx := context.Background()

	if _, err := m.MigrateSessions(ctx); err != nil {
		t.Fatalf("migration failed: %v", err)
	}

	got, _ := st.GetSession("s1")
	if got.SyncStatus != model.StatusLocal {
		t.Errorf("expected status local, got %s", got.SyncStatus)
	}
	want := time.Date(2025, 11, 3, 10, 0, 0, 0, time.UTC)
	if !got.LocalUpdatedAt.Equal(want) {
		t.Errorf("expected localUpdatedAt from legacy record, got %v", got.LocalUpdatedAt)
	}
}

func TestMigrationCollectsErrorsWithoutAborting(t *testing.T) {
	st, m := setupTest(t, map[string]interface{}{
		KeySessions: []map[string]interface{}{
			{"id": "bad", "type": "work", "duration": 1500, "completedAt": "not a time"},
			{"id": "good", "type": "work", "duration": 1500, "completedAt": "2025-11-02T09:00:00Z"},
		},
	})
	ctx := context.Background()

	res, err := m.MigrateSessions(ctx)
	if err != nil {
		t.Fatalf("migration failed: %v", err)
	}
	if res.Migrated != 1 {
		t.Errorf("expected the good record migrated, got %d", res.Migrated)
	}
	if len(res.Errors) != 1 {
		t.Errorf("expected 1 record error, got %d", len(res.Errors))
	}

	// Errors do not block the completion flag; the family is done.
	again, _ := m.MigrateSessions(ctx)
	if !again.Skipped {
		t.Error("expected family marked complete despite errors")
	}
	count, _ := st.SessionCount()
	if count != 1 {
		t.Errorf("expected 1 session, got %d", count)
	}
}

func TestMigrationParseFailureTreatedAsEmpty(t *testing.T) {
	dir := t.TempDir()

	st, err := store.Open(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	if err := st.InitSchema(); err != nil {
		t.Fatalf("failed to initialize schema: %v", err)
	}

	legacyPath := filepath.Join(dir, "legacy.json")
	doc := `{"focal.sessions": "definitely not an array"}`
	if err := os.WriteFile(legacyPath, []byte(doc), 0o644); err != nil {
		t.Fatalf("failed to write legacy file: %v", err)
	}

	m := NewMigrator(st, OpenStorage(legacyPath), nil)
	res, err := m.MigrateSessions(context.Background())
	if err != nil {
		t.Fatalf("expected parse failure treated as empty, got %v", err)
	}
	if res.Migrated != 0 || res.Skipped {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestMigrationFamiliesIndependent(t *testing.T) {
	st, m := setupTest(t, map[string]interface{}{
		KeyProjects:    "corrupt",
		KeySettings:    map[string]interface{}{"theme": "dark", "workMinutes": 25},
		KeyRecentTasks: []string{"write report", "review PR"},
	})
	ctx := context.Background()

	results := m.MigrateAll(ctx)

	// The corrupt family contributes nothing but does not stop the rest.
	if results["projects"].Migrated != 0 {
		t.Errorf("expected no projects, got %+v", results["projects"])
	}
	if results["settings"].Migrated != 1 {
		t.Errorf("expected settings migrated, got %+v", results["settings"])
	}
	if results["recent_tasks"].Migrated != 2 {
		t.Errorf("expected 2 recent tasks, got %+v", results["recent_tasks"])
	}

	settings, _ := st.GetSettings(model.DefaultUserID)
	if settings.Values["theme"] != "dark" {
		t.Errorf("expected theme carried over, got %v", settings.Values)
	}
	// Non-string legacy values carry over as JSON text.
	if settings.Values["workMinutes"] != "25" {
		t.Errorf("expected numeric value stringified, got %q", settings.Values["workMinutes"])
	}

	tasks, _ := st.ListRecentTasks()
	if len(tasks) != 2 {
		t.Errorf("expected 2 recent tasks, got %d", len(tasks))
	}
}

func TestMissingLegacyFile(t *testing.T) {
	storage := OpenStorage(filepath.Join(t.TempDir(), "does-not-exist.json"))
	if !storage.Empty() {
		t.Error("expected empty storage for missing file")
	}
}

func TestParseTimestampFormats(t *testing.T) {
	rfc, err := ParseTimestamp("2025-11-02T09:00:00Z")
	if err != nil {
		t.Fatalf("RFC3339 parse failed: %v", err)
	}
	if rfc.Hour() != 9 {
		t.Errorf("unexpected time %v", rfc)
	}

	ms, err := ParseTimestamp("1762074000000")
	if err != nil {
		t.Fatalf("epoch millis parse failed: %v", err)
	}
	if ms.Year() < 2025 {
		t.Errorf("unexpected epoch time %v", ms)
	}

	if _, err := ParseTimestamp("garbage"); err == nil {
		t.Error("expected error for garbage input")
	}
}
