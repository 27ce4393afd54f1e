// Package legacy reads the flat key-value file left behind by the
// pre-database version of the app and migrates its contents into the
// local store, exactly once per record family.
package legacy

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Well-known keys in the legacy file.
const (
	KeySessions    = "focal.sessions"
	KeyProjects    = "focal.projects"
	KeySettings    = "focal.settings"
	KeyRecentTasks = "focal.recentTasks"
)

// SessionRecord is the legacy shape of a timed session.
type SessionRecord struct {
	ID               string `json:"id"`
	Type             string `json:"type"` // work, shortBreak, longBreak
	DurationSeconds  int    `json:"duration"`
	CompletedAt      string `json:"completedAt"`
	Task             string `json:"task,omitempty"`
	ProjectID        string `json:"projectId,omitempty"`
	OverflowSeconds  *int   `json:"overflow,omitempty"`
	EstimatedSeconds *int   `json:"estimated,omitempty"`
	UpdatedAt        string `json:"updatedAt,omitempty"`
}

// ProjectRecord is the legacy shape of a project.
type ProjectRecord struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Intensity float64 `json:"intensity"`
	Archived  bool    `json:"archived,omitempty"`
	CreatedAt string  `json:"createdAt,omitempty"`
	UpdatedAt string  `json:"updatedAt,omitempty"`
}

// RecentTaskRecord is the legacy shape of a recently-used task label.
type RecentTaskRecord struct {
	Text       string `json:"text"`
	LastUsedAt string `json:"lastUsedAt,omitempty"`
}

// Storage is a read-only view of the legacy file: one JSON object whose
// top-level keys each hold a JSON array or object.
type Storage struct {
	path   string
	values map[string]json.RawMessage
}

// OpenStorage reads the legacy file. A missing or unreadable file yields
// an empty Storage rather than an error; migration then has nothing to
// do, which is the correct outcome for a fresh install.
func OpenStorage(path string) *Storage {
	s := &Storage{path: path, values: make(map[string]json.RawMessage)}

	data, err := os.ReadFile(path)
	if err != nil {
		return s
	}
	// A corrupt file is treated as empty.
	_ = json.Unmarshal(data, &s.values)
	return s
}

// Path returns the file the storage was read from.
func (s *Storage) Path() string {
	return s.path
}

// Get returns the raw JSON stored under a well-known key.
func (s *Storage) Get(key string) (json.RawMessage, bool) {
	raw, ok := s.values[key]
	return raw, ok
}

// Empty reports whether the legacy file held no known keys.
func (s *Storage) Empty() bool {
	for _, key := range []string{KeySessions, KeyProjects, KeySettings, KeyRecentTasks} {
		if _, ok := s.values[key]; ok {
			return false
		}
	}
	return true
}

// ParseTimestamp decodes a legacy timestamp. The old app wrote RFC3339
// strings in recent versions and millisecond epochs before that.
func ParseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil && ms > 0 {
		return time.UnixMilli(ms).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
