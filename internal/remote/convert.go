package remote

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/focalapp/focal/internal/model"
)

// Wire enum values for session types.
const (
	wireFocus      = "FOCUS"
	wireShortBreak = "SHORT_BREAK"
	wireLongBreak  = "LONG_BREAK"
)

// SessionTypeToWire maps the internal session type to the server enum.
func SessionTypeToWire(t model.SessionType) string {
	switch t {
	case model.SessionShortBreak:
		return wireShortBreak
	case model.SessionLongBreak:
		return wireLongBreak
	default:
		return wireFocus
	}
}

// SessionTypeFromWire maps the server enum back to the internal type.
// Unknown values fall back to work, the conservative default.
func SessionTypeFromWire(s string) model.SessionType {
	switch s {
	case wireShortBreak:
		return model.SessionShortBreak
	case wireLongBreak:
		return model.SessionLongBreak
	default:
		return model.SessionWork
	}
}

// IntensityToColor encodes a 0.3-1.0 intensity as a hex channel string,
// e.g. 1.0 -> "#FF". Out-of-range values are clamped first.
func IntensityToColor(intensity float64) string {
	v := model.ClampIntensity(intensity)
	return fmt.Sprintf("#%02X", int(math.Round(v*255)))
}

// ColorToIntensity decodes a hex channel string back to an intensity,
// clamped into the valid range. Malformed input yields MaxIntensity.
func ColorToIntensity(color string) float64 {
	hex := strings.TrimPrefix(strings.TrimSpace(color), "#")
	n, err := strconv.ParseUint(hex, 16, 16)
	if err != nil {
		return model.MaxIntensity
	}
	return model.ClampIntensity(float64(n) / 255)
}

// SessionToWire builds the wire record for a local session.
// projectServerID is the remote id of the referenced project, resolved by
// the caller through its id map; empty when the session has no project.
func SessionToWire(s *model.Session, projectServerID string) SessionRecord {
	rec := SessionRecord{
		LocalID:          s.ID,
		Type:             SessionTypeToWire(s.Type),
		DurationSeconds:  s.DurationSeconds,
		CompletedAt:      s.CompletedAt.UTC(),
		Task:             s.Task,
		ProjectID:        projectServerID,
		OverflowSeconds:  s.OverflowSeconds,
		EstimatedSeconds: s.EstimatedSeconds,
		UpdatedAt:        s.LocalUpdatedAt.UTC(),
		Deleted:          s.Deleted,
	}
	return rec
}

// SessionFromWire builds a local session from a wire record.
// projectLocalID is the local id of the referenced project, resolved by
// the caller; nil when the session has no project or the project is
// unknown locally.
func SessionFromWire(rec SessionRecord, projectLocalID *string, syncedAt time.Time) *model.Session {
	serverID := rec.ID
	return &model.Session{
		ID:               rec.LocalID,
		Type:             SessionTypeFromWire(rec.Type),
		DurationSeconds:  rec.DurationSeconds,
		CompletedAt:      rec.CompletedAt,
		Task:             rec.Task,
		ProjectID:        projectLocalID,
		OverflowSeconds:  rec.OverflowSeconds,
		EstimatedSeconds: rec.EstimatedSeconds,
		SyncMeta: model.SyncMeta{
			SyncStatus:     model.StatusSynced,
			LocalUpdatedAt: rec.UpdatedAt,
			SyncedAt:       &syncedAt,
			ServerID:       &serverID,
			Deleted:        rec.Deleted,
		},
	}
}

// ProjectToWire builds the wire record for a local project.
func ProjectToWire(p *model.Project) ProjectRecord {
	return ProjectRecord{
		LocalID:   p.ID,
		Name:      p.Name,
		Color:     IntensityToColor(p.Intensity),
		Archived:  p.Archived,
		CreatedAt: p.CreatedAt.UTC(),
		UpdatedAt: p.LocalUpdatedAt.UTC(),
		Deleted:   p.Deleted,
	}
}

// ProjectFromWire builds a local project from a wire record.
func ProjectFromWire(rec ProjectRecord, syncedAt time.Time) *model.Project {
	serverID := rec.ID
	return &model.Project{
		ID:        rec.LocalID,
		Name:      rec.Name,
		Intensity: ColorToIntensity(rec.Color),
		Archived:  rec.Archived,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
		SyncMeta: model.SyncMeta{
			SyncStatus:     model.StatusSynced,
			LocalUpdatedAt: rec.UpdatedAt,
			SyncedAt:       &syncedAt,
			ServerID:       &serverID,
			Deleted:        rec.Deleted,
		},
	}
}
