package model

import (
	"testing"
	"time"
)

func TestSyncLifecycle(t *testing.T) {
	now := time.Now().UTC()
	s := NewSession(SessionWork, 1500, now)

	if s.SyncStatus != StatusLocal {
		t.Errorf("new entities start local, got %s", s.SyncStatus)
	}

	// Mutating an unsynced entity keeps it local.
	s.MarkDirty(now.Add(time.Second))
	if s.SyncStatus != StatusLocal {
		t.Errorf("unsynced mutation should stay local, got %s", s.SyncStatus)
	}

	syncedAt := now.Add(time.Minute)
	s.MarkSynced("srv-1", syncedAt)
	if s.SyncStatus != StatusSynced {
		t.Errorf("expected synced, got %s", s.SyncStatus)
	}
	if s.ServerID == nil || *s.ServerID != "srv-1" {
		t.Errorf("expected server id recorded, got %v", s.ServerID)
	}
	if s.SyncedAt == nil || !s.SyncedAt.Equal(syncedAt) {
		t.Errorf("expected syncedAt recorded, got %v", s.SyncedAt)
	}

	// Mutating after a sync moves to pending.
	s.MarkDirty(syncedAt.Add(time.Second))
	if s.SyncStatus != StatusPending {
		t.Errorf("expected pending after post-sync mutation, got %s", s.SyncStatus)
	}
	if !s.LocalUpdatedAt.Equal(syncedAt.Add(time.Second)) {
		t.Errorf("expected localUpdatedAt advanced, got %v", s.LocalUpdatedAt)
	}
}

func TestClampIntensity(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{0.5, 0.5},
		{0.0, MinIntensity},
		{-1, MinIntensity},
		{1.0, MaxIntensity},
		{3.7, MaxIntensity},
	}
	for _, tt := range tests {
		if got := ClampIntensity(tt.in); got != tt.want {
			t.Errorf("ClampIntensity(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSessionValidate(t *testing.T) {
	now := time.Now().UTC()

	good := NewSession(SessionLongBreak, 900, now)
	if err := good.Validate(); err != nil {
		t.Errorf("expected valid session, got %v", err)
	}

	bad := NewSession(SessionType("nap"), 900, now)
	if err := bad.Validate(); err == nil {
		t.Error("expected invalid type rejected")
	}

	negative := NewSession(SessionWork, -1, now)
	if err := negative.Validate(); err == nil {
		t.Error("expected negative duration rejected")
	}
}

func TestProjectValidate(t *testing.T) {
	now := time.Now().UTC()

	good := NewProject("Deep Work", 0.7, now)
	if err := good.Validate(); err != nil {
		t.Errorf("expected valid project, got %v", err)
	}

	unnamed := NewProject("", 0.7, now)
	if err := unnamed.Validate(); err == nil {
		t.Error("expected empty name rejected")
	}
}

func TestSettingsEqual(t *testing.T) {
	a := &Settings{
		UserID:         DefaultUserID,
		Values:         map[string]string{"theme": "dark"},
		LocalUpdatedAt: time.Now(),
	}
	b := a.Clone()
	// Timestamps are ignored by Equal; only content matters.
	b.LocalUpdatedAt = b.LocalUpdatedAt.Add(time.Hour)

	if !a.Equal(b) {
		t.Error("expected clones equal regardless of timestamp")
	}

	b.Values["theme"] = "light"
	if a.Equal(b) {
		t.Error("expected different values unequal")
	}
	if a.Values["theme"] != "dark" {
		t.Error("expected Clone to deep-copy values")
	}
}

func TestNewIDUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewID()
		if id == "" || seen[id] {
			t.Fatalf("expected unique non-empty ids, got %q", id)
		}
		seen[id] = true
	}
}
