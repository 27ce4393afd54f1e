package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/focalapp/focal/internal/bus"
	"github.com/focalapp/focal/internal/model"
	"github.com/focalapp/focal/internal/remote"
)

// scheduleSettingsPush arms (or re-arms) the debounce timer after a local
// settings write. A burst of writes collapses into one document push.
// Writes performed while applying a remote document are ignored so a pull
// does not echo the document straight back to the server.
func (s *Service) scheduleSettingsPush() {
	s.settingsMu.Lock()
	defer s.settingsMu.Unlock()

	if s.pullingSettings {
		return
	}
	if s.settingsTimer != nil {
		s.settingsTimer.Reset(s.config.SettingsDebounce)
		return
	}
	s.settingsTimer = time.AfterFunc(s.config.SettingsDebounce, func() {
		s.settingsMu.Lock()
		s.settingsTimer = nil
		s.settingsMu.Unlock()
		s.submit(opPushSettings{})
	})
}

// pushSettings replaces the remote settings document with the local one.
// Settings are not queued on failure: the document is whole-state, so the
// next push carries everything a failed one would have.
func (s *Service) pushSettings(ctx context.Context) {
	if !s.isOnline() {
		return
	}

	local, err := s.store.GetSettingsContext(ctx, s.config.UserID)
	if err != nil {
		s.setError(fmt.Errorf("failed to load settings: %w", err))
		return
	}

	out, err := s.remote.PutSettings(ctx, remote.SettingsRecord{Values: local.Values})
	if err != nil {
		s.setError(err)
		return
	}

	watermark := out.UpdatedAt
	if watermark.IsZero() {
		watermark = s.now()
	}
	if err := s.store.SetMetaTime(ctx, metaLastSettingsSync, watermark); err != nil {
		s.logger.Printf("Warning: failed to record settings sync time: %v", err)
	}
	s.setState(StateIdle, "")
}

// pullSettings reconciles the settings document with the server.
// Last-write-wins on the whole document: the newer side replaces the
// older one, and an unchanged document is never rewritten locally.
func (s *Service) pullSettings(ctx context.Context) {
	if !s.isOnline() {
		return
	}
	gen := s.generation()

	rec, err := s.remote.GetSettings(ctx)
	if err != nil {
		s.setError(err)
		return
	}
	if gen != s.generation() {
		return
	}

	local, err := s.store.GetSettingsContext(ctx, s.config.UserID)
	if err != nil {
		s.setError(fmt.Errorf("failed to load settings: %w", err))
		return
	}

	// Server has no document yet; seed it from the local one.
	if rec == nil {
		if len(local.Values) > 0 {
			s.pushSettings(ctx)
		}
		return
	}

	if local.LocalUpdatedAt.After(rec.UpdatedAt) {
		s.pushSettings(ctx)
		return
	}

	lastSync, err := s.store.GetMetaTime(ctx, metaLastSettingsSync)
	if err != nil {
		s.setError(fmt.Errorf("failed to read settings sync time: %w", err))
		return
	}
	if !rec.UpdatedAt.After(lastSync) {
		return
	}

	incoming := &model.Settings{
		UserID:         s.config.UserID,
		Values:         rec.Values,
		LocalUpdatedAt: rec.UpdatedAt,
	}

	if !local.Equal(incoming) {
		s.settingsMu.Lock()
		s.pullingSettings = true
		s.settingsMu.Unlock()

		err := s.store.PutSettingsContext(ctx, incoming)
		if err == nil {
			// Synchronous fan-out; the pulling flag is still set
			// when subscribers observe this event.
			s.bus.Publish(bus.SettingsChanged{UserID: s.config.UserID})
		}

		s.settingsMu.Lock()
		s.pullingSettings = false
		s.settingsMu.Unlock()

		if err != nil {
			s.setError(fmt.Errorf("failed to apply remote settings: %w", err))
			return
		}
	}

	if err := s.store.SetMetaTime(ctx, metaLastSettingsSync, rec.UpdatedAt); err != nil {
		s.logger.Printf("Warning: failed to record settings sync time: %v", err)
	}
}
