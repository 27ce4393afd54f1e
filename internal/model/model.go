// Package model defines the entity types held in the Focal local store.
//
// Sessions and projects share a common sync-metadata shape: a stable local
// id assigned at creation, a sync status, and timestamps used by the
// last-write-wins conflict resolver. Local ids are immutable and are the
// only identifiers referenced across entities; a session's project
// reference always points at a local project id, never a server id.
package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SyncStatus tracks where an entity sits in its sync lifecycle.
type SyncStatus string

const (
	// StatusLocal marks an entity that has never been pushed.
	StatusLocal SyncStatus = "local"
	// StatusPending marks a previously synced entity with unpushed changes.
	StatusPending SyncStatus = "pending"
	// StatusSynced marks an entity whose latest state is on the server.
	StatusSynced SyncStatus = "synced"
	// StatusConflict marks an entity whose last push hit a conflict.
	StatusConflict SyncStatus = "conflict"
)

// Valid reports whether s is one of the known sync statuses.
func (s SyncStatus) Valid() bool {
	switch s {
	case StatusLocal, StatusPending, StatusSynced, StatusConflict:
		return true
	}
	return false
}

// SessionType is the three-way kind of a completed timer session.
type SessionType string

const (
	SessionWork       SessionType = "work"
	SessionShortBreak SessionType = "short_break"
	SessionLongBreak  SessionType = "long_break"
)

// Valid reports whether t is one of the known session types.
func (t SessionType) Valid() bool {
	switch t {
	case SessionWork, SessionShortBreak, SessionLongBreak:
		return true
	}
	return false
}

// SyncMeta is the sync bookkeeping embedded in every syncable entity.
type SyncMeta struct {
	SyncStatus     SyncStatus `json:"sync_status"`
	LocalUpdatedAt time.Time  `json:"local_updated_at"`
	SyncedAt       *time.Time `json:"synced_at,omitempty"`
	ServerID       *string    `json:"server_id,omitempty"`
	Deleted        bool       `json:"deleted,omitempty"`
}

// MarkSynced records a successful push or pull.
func (m *SyncMeta) MarkSynced(serverID string, at time.Time) {
	m.SyncStatus = StatusSynced
	m.ServerID = &serverID
	m.SyncedAt = &at
}

// MarkDirty records a local mutation. An entity that has never synced
// stays "local"; one that has moves to "pending".
func (m *SyncMeta) MarkDirty(at time.Time) {
	m.LocalUpdatedAt = at
	if m.SyncStatus == StatusSynced || m.SyncStatus == StatusConflict {
		m.SyncStatus = StatusPending
	}
}

// Session is a completed timer interval.
type Session struct {
	ID               string      `json:"id"`
	Type             SessionType `json:"type"`
	DurationSeconds  int         `json:"duration_seconds"`
	CompletedAt      time.Time   `json:"completed_at"`
	Task             string      `json:"task,omitempty"`
	ProjectID        *string     `json:"project_id,omitempty"`
	OverflowSeconds  *int        `json:"overflow_seconds,omitempty"`
	EstimatedSeconds *int        `json:"estimated_seconds,omitempty"`

	SyncMeta
}

// Validate checks the session's field values.
func (s *Session) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("id is required")
	}
	if !s.Type.Valid() {
		return fmt.Errorf("unknown session type %q", s.Type)
	}
	if s.DurationSeconds < 0 {
		return fmt.Errorf("duration must not be negative (got %d)", s.DurationSeconds)
	}
	if s.CompletedAt.IsZero() {
		return fmt.Errorf("completed_at is required")
	}
	if !s.SyncStatus.Valid() {
		return fmt.Errorf("unknown sync status %q", s.SyncStatus)
	}
	return nil
}

// Intensity bounds for project display brightness.
const (
	MinIntensity = 0.3
	MaxIntensity = 1.0
)

// ClampIntensity forces v into the valid intensity range.
func ClampIntensity(v float64) float64 {
	if v < MinIntensity {
		return MinIntensity
	}
	if v > MaxIntensity {
		return MaxIntensity
	}
	return v
}

// Project groups sessions under a named bucket of work.
type Project struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Intensity float64   `json:"intensity"`
	Archived  bool      `json:"archived"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	SyncMeta
}

// Validate checks the project's field values.
func (p *Project) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("id is required")
	}
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	if p.Intensity < MinIntensity || p.Intensity > MaxIntensity {
		return fmt.Errorf("intensity must be between %.1f and %.1f (got %g)", MinIntensity, MaxIntensity, p.Intensity)
	}
	if !p.SyncStatus.Valid() {
		return fmt.Errorf("unknown sync status %q", p.SyncStatus)
	}
	return nil
}

// RecentTask is a recently-used task label, keyed by its own text.
// Recent tasks are purely local: they are never synced or queued.
type RecentTask struct {
	Text       string    `json:"text"`
	LastUsedAt time.Time `json:"last_used_at"`
}

// MaxRecentTasks caps the recent-task list; the store evicts
// oldest-by-last-use beyond this.
const MaxRecentTasks = 10

// DefaultUserID keys the single settings row on a device.
const DefaultUserID = "default"

// Settings is the per-user settings document. Values are opaque to the
// sync engine and are synced as a whole document, not per key.
type Settings struct {
	UserID         string            `json:"user_id"`
	Values         map[string]string `json:"values"`
	LocalUpdatedAt time.Time         `json:"local_updated_at"`
}

// Clone returns a deep copy of the settings document.
func (s *Settings) Clone() *Settings {
	out := &Settings{
		UserID:         s.UserID,
		Values:         make(map[string]string, len(s.Values)),
		LocalUpdatedAt: s.LocalUpdatedAt,
	}
	for k, v := range s.Values {
		out.Values[k] = v
	}
	return out
}

// Equal reports whether two settings documents carry the same values.
// Timestamps are ignored; only the key-value content matters.
func (s *Settings) Equal(other *Settings) bool {
	if other == nil || len(s.Values) != len(other.Values) {
		return false
	}
	for k, v := range s.Values {
		if ov, ok := other.Values[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// NewID returns a fresh local entity id.
func NewID() string {
	return uuid.NewString()
}

// NewSession builds a session with a fresh local id and "local" sync
// status. The caller fills optional fields afterwards.
func NewSession(typ SessionType, durationSeconds int, completedAt time.Time) *Session {
	return &Session{
		ID:              NewID(),
		Type:            typ,
		DurationSeconds: durationSeconds,
		CompletedAt:     completedAt,
		SyncMeta: SyncMeta{
			SyncStatus:     StatusLocal,
			LocalUpdatedAt: completedAt,
		},
	}
}

// NewProject builds a project with a fresh local id and "local" sync status.
func NewProject(name string, intensity float64, now time.Time) *Project {
	return &Project{
		ID:        NewID(),
		Name:      name,
		Intensity: ClampIntensity(intensity),
		CreatedAt: now,
		UpdatedAt: now,
		SyncMeta: SyncMeta{
			SyncStatus:     StatusLocal,
			LocalUpdatedAt: now,
		},
	}
}
