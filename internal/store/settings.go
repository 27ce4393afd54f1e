package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/focalapp/focal/internal/model"
)

// GetSettings retrieves the settings document for userID.
// Returns an empty document (not an error) if none exists yet.
func (s *Store) GetSettings(userID string) (*model.Settings, error) {
	return s.GetSettingsContext(context.Background(), userID)
}

// GetSettingsContext retrieves a settings document with context support.
func (s *Store) GetSettingsContext(ctx context.Context, userID string) (*model.Settings, error) {
	var doc, localUpdatedAt string
	err := s.conn.QueryRowContext(ctx,
		`SELECT doc, local_updated_at FROM settings WHERE user_id = ?`, userID).
		Scan(&doc, &localUpdatedAt)
	if err == sql.ErrNoRows {
		return &model.Settings{UserID: userID, Values: map[string]string{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settings for %s: %w", userID, err)
	}

	settings := &model.Settings{
		UserID:         userID,
		Values:         map[string]string{},
		LocalUpdatedAt: parseTime(localUpdatedAt),
	}
	if err := json.Unmarshal([]byte(doc), &settings.Values); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settings doc: %w", err)
	}

	return settings, nil
}

// PutSettings stores the whole settings document.
func (s *Store) PutSettings(settings *model.Settings) error {
	return s.PutSettingsContext(context.Background(), settings)
}

// PutSettingsContext stores a settings document with context support.
func (s *Store) PutSettingsContext(ctx context.Context, settings *model.Settings) error {
	if settings.UserID == "" {
		return fmt.Errorf("user id is required")
	}

	doc, err := json.Marshal(settings.Values)
	if err != nil {
		return fmt.Errorf("failed to marshal settings doc: %w", err)
	}

	query := `
	INSERT INTO settings (user_id, doc, local_updated_at) VALUES (?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		doc = excluded.doc,
		local_updated_at = excluded.local_updated_at
	`
	if _, err := s.conn.ExecContext(ctx, query,
		settings.UserID, string(doc), formatTime(settings.LocalUpdatedAt)); err != nil {
		return fmt.Errorf("failed to put settings for %s: %w", settings.UserID, err)
	}

	return nil
}
