package remote

import (
	"testing"
	"time"

	"github.com/focalapp/focal/internal/model"
)

func TestSessionTypeMapping(t *testing.T) {
	tests := []struct {
		internal model.SessionType
		wire     string
	}{
		{model.SessionWork, "FOCUS"},
		{model.SessionShortBreak, "SHORT_BREAK"},
		{model.SessionLongBreak, "LONG_BREAK"},
	}
	for _, tt := range tests {
		if got := SessionTypeToWire(tt.internal); got != tt.wire {
			t.Errorf("SessionTypeToWire(%s) = %s, want %s", tt.internal, got, tt.wire)
		}
		if got := SessionTypeFromWire(tt.wire); got != tt.internal {
			t.Errorf("SessionTypeFromWire(%s) = %s, want %s", tt.wire, got, tt.internal)
		}
	}

	// Unknown enum values fall back to work.
	if got := SessionTypeFromWire("DEEP_FOCUS_ULTRA"); got != model.SessionWork {
		t.Errorf("expected fallback to work, got %s", got)
	}
}

func TestIntensityColorMapping(t *testing.T) {
	tests := []struct {
		intensity float64
		color     string
	}{
		{1.0, "#FF"},
		{0.3, "#4D"},
		{0.5, "#80"},
	}
	for _, tt := range tests {
		if got := IntensityToColor(tt.intensity); got != tt.color {
			t.Errorf("IntensityToColor(%v) = %s, want %s", tt.intensity, got, tt.color)
		}
		back := ColorToIntensity(tt.color)
		if diff := back - tt.intensity; diff > 0.005 || diff < -0.005 {
			t.Errorf("ColorToIntensity(%s) = %v, want ~%v", tt.color, back, tt.intensity)
		}
	}

	// Out-of-range intensities clamp before encoding.
	if got := IntensityToColor(2.5); got != "#FF" {
		t.Errorf("expected clamp to #FF, got %s", got)
	}
	if got := IntensityToColor(0.0); got != "#4D" {
		t.Errorf("expected clamp to #4D, got %s", got)
	}

	// Malformed colors decode to full intensity, clamped.
	if got := ColorToIntensity("not-a-color"); got != model.MaxIntensity {
		t.Errorf("expected MaxIntensity for malformed input, got %v", got)
	}
	if got := ColorToIntensity("#05"); got != model.MinIntensity {
		t.Errorf("expected clamp to MinIntensity, got %v", got)
	}
}

func TestSessionWireRoundTrip(t *testing.T) {
	completed := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	updated := completed.Add(time.Minute)
	overflow := 45

	session := model.NewSession(model.SessionShortBreak, 300, completed)
	session.ID = "s1"
	session.Task = "stretch"
	session.OverflowSeconds = &overflow
	session.LocalUpdatedAt = updated

	rec := SessionToWire(session, "srv-p1")
	if rec.LocalID != "s1" || rec.Type != "SHORT_BREAK" || rec.ProjectID != "srv-p1" {
		t.Errorf("unexpected wire record: %+v", rec)
	}
	if !rec.UpdatedAt.Equal(updated) {
		t.Errorf("expected updatedAt %v, got %v", updated, rec.UpdatedAt)
	}

	rec.ID = "srv-s1"
	localProject := "p1"
	syncedAt := updated.Add(time.Second)
	back := SessionFromWire(rec, &localProject, syncedAt)

	if back.ID != "s1" || back.Type != model.SessionShortBreak || back.Task != "stretch" {
		t.Errorf("round trip lost fields: %+v", back)
	}
	if back.ProjectID == nil || *back.ProjectID != "p1" {
		t.Errorf("expected local project reference, got %v", back.ProjectID)
	}
	if back.OverflowSeconds == nil || *back.OverflowSeconds != 45 {
		t.Errorf("expected overflow preserved, got %v", back.OverflowSeconds)
	}
	if back.SyncStatus != model.StatusSynced {
		t.Errorf("expected synced status, got %s", back.SyncStatus)
	}
	if back.ServerID == nil || *back.ServerID != "srv-s1" {
		t.Errorf("expected server id recorded, got %v", back.ServerID)
	}
	if !back.LocalUpdatedAt.Equal(updated) {
		t.Errorf("expected localUpdatedAt from wire, got %v", back.LocalUpdatedAt)
	}
}

func TestProjectWireRoundTrip(t *testing.T) {
	created := time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)

	project := model.NewProject("Deep Work", 0.5, created)
	project.ID = "p1"
	project.Archived = true

	rec := ProjectToWire(project)
	if rec.LocalID != "p1" || rec.Name != "Deep Work" || !rec.Archived {
		t.Errorf("unexpected wire record: %+v", rec)
	}
	if rec.Color != "#80" {
		t.Errorf("expected color #80, got %s", rec.Color)
	}

	rec.ID = "srv-p1"
	back := ProjectFromWire(rec, created.Add(time.Hour))
	if back.ID != "p1" || back.Name != "Deep Work" || !back.Archived {
		t.Errorf("round trip lost fields: %+v", back)
	}
	if diff := back.Intensity - 0.5; diff > 0.005 || diff < -0.005 {
		t.Errorf("expected intensity ~0.5, got %v", back.Intensity)
	}
	if back.ServerID == nil || *back.ServerID != "srv-p1" {
		t.Errorf("expected server id recorded, got %v", back.ServerID)
	}
}
