package sync

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/focalapp/focal/internal/bus"
	"github.com/focalapp/focal/internal/model"
	"github.com/focalapp/focal/internal/remote"
)

type pullStats struct {
	sessions int
	projects int
	deleted  int
	errors   int
}

// runPull fetches remote changes since the last pull watermark and folds
// them into the local store. Projects are applied before sessions so
// session project references resolve through the id map.
//
// The watermark is captured before the fetch and only advanced when the
// whole pass applies cleanly; a failed pass re-fetches the same window,
// which is safe because applying a record twice converges.
func (s *Service) runPull(ctx context.Context) {
	if !s.isOnline() {
		return
	}
	gen := s.generation()
	s.setState(StateSyncing, "")

	since, err := s.store.GetMetaTime(ctx, metaLastPull)
	if err != nil {
		s.setError(fmt.Errorf("failed to read pull watermark: %w", err))
		return
	}

	start := s.now()

	remoteProjects, err := s.remote.ListProjects(ctx, since)
	if err != nil {
		s.setError(err)
		return
	}
	remoteSessions, err := s.remote.ListSessions(ctx, since)
	if err != nil {
		s.setError(err)
		return
	}

	// The service was stopped or restarted while the fetch was in
	// flight; the response belongs to the previous run.
	if gen != s.generation() {
		return
	}

	var stats pullStats
	for _, rec := range remoteProjects {
		if err := s.applyProject(ctx, rec, &stats); err != nil {
			stats.errors++
			s.logger.Printf("Warning: failed to apply remote project %s: %v", rec.ID, err)
		}
	}
	for _, rec := range remoteSessions {
		if err := s.applySession(ctx, rec, &stats); err != nil {
			stats.errors++
			s.logger.Printf("Warning: failed to apply remote session %s: %v", rec.ID, err)
		}
	}

	if stats.errors > 0 {
		s.setError(fmt.Errorf("pull applied with %d errors", stats.errors))
		return
	}

	if err := s.store.SetMetaTime(ctx, metaLastPull, start); err != nil {
		s.setError(fmt.Errorf("failed to advance pull watermark: %w", err))
		return
	}

	s.logger.Printf("Pull complete: %d projects, %d sessions, %d deletions",
		stats.projects, stats.sessions, stats.deleted)
	s.bus.Publish(bus.PullCompleted{
		At:       start,
		Sessions: stats.sessions,
		Projects: stats.projects,
		Deleted:  stats.deleted,
	})
	s.setState(StateIdle, "")
}

// applyProject folds one remote project record into the local store.
func (s *Service) applyProject(ctx context.Context, rec remote.ProjectRecord, stats *pullStats) error {
	local, err := s.findLocalProject(ctx, rec)
	if err != nil {
		return err
	}

	// A remote tombstone always wins, regardless of timestamps.
	if rec.Deleted {
		if local == nil {
			return nil
		}
		if err := s.store.DeleteProjectContext(ctx, local.ID); err != nil {
			return err
		}
		s.dropMapping(local.ID)
		stats.deleted++
		return nil
	}

	if local == nil {
		p := remote.ProjectFromWire(rec, s.now())
		if err := s.store.UpsertProjectContext(ctx, p); err != nil {
			return err
		}
		s.setMapping(p.ID, rec.ID)
		stats.projects++
		return nil
	}

	s.setMapping(local.ID, rec.ID)

	if Resolve(local.LocalUpdatedAt, rec.UpdatedAt) == KeepLocal {
		// Local copy is newer; just make sure the server id is
		// recorded so the eventual push updates the right row.
		if local.ServerID == nil {
			serverID := rec.ID
			local.ServerID = &serverID
			return s.store.UpsertProjectContext(ctx, local)
		}
		return nil
	}

	p := remote.ProjectFromWire(rec, s.now())
	p.ID = local.ID
	if err := s.store.UpsertProjectContext(ctx, p); err != nil {
		return err
	}
	stats.projects++
	return nil
}

// applySession folds one remote session record into the local store.
func (s *Service) applySession(ctx context.Context, rec remote.SessionRecord, stats *pullStats) error {
	local, err := s.findLocalSession(ctx, rec)
	if err != nil {
		return err
	}

	if rec.Deleted {
		if local == nil {
			return nil
		}
		if err := s.store.DeleteSessionContext(ctx, local.ID); err != nil {
			return err
		}
		stats.deleted++
		return nil
	}

	var projectLocalID *string
	if rec.ProjectID != "" {
		if lid, ok := s.lookupLocalID(rec.ProjectID); ok {
			projectLocalID = &lid
		} else {
			// The referenced project was not in this window and is
			// unknown locally; keep the session without the link.
			s.logger.Printf("Warning: remote session %s references unknown project %s", rec.ID, rec.ProjectID)
		}
	}

	if local == nil {
		sess := remote.SessionFromWire(rec, projectLocalID, s.now())
		if err := s.store.UpsertSessionContext(ctx, sess); err != nil {
			return err
		}
		stats.sessions++
		return nil
	}

	if Resolve(local.LocalUpdatedAt, rec.UpdatedAt) == KeepLocal {
		if local.ServerID == nil {
			serverID := rec.ID
			local.ServerID = &serverID
			return s.store.UpsertSessionContext(ctx, local)
		}
		return nil
	}

	sess := remote.SessionFromWire(rec, projectLocalID, s.now())
	sess.ID = local.ID
	if err := s.store.UpsertSessionContext(ctx, sess); err != nil {
		return err
	}
	stats.sessions++
	return nil
}

// findLocalProject locates the local counterpart of a remote record,
// first by the echoed local id, then by server id for records created on
// another device before this one ever pushed.
func (s *Service) findLocalProject(ctx context.Context, rec remote.ProjectRecord) (*model.Project, error) {
	if rec.LocalID != "" {
		p, err := s.store.GetProjectContext(ctx, rec.LocalID)
		if err == nil {
			return p, nil
		}
		if err != sql.ErrNoRows {
			return nil, err
		}
	}
	p, err := s.store.GetProjectByServerID(ctx, rec.ID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) findLocalSession(ctx context.Context, rec remote.SessionRecord) (*model.Session, error) {
	if rec.LocalID != "" {
		sess, err := s.store.GetSessionContext(ctx, rec.LocalID)
		if err == nil {
			return sess, nil
		}
		if err != sql.ErrNoRows {
			return nil, err
		}
	}
	sess, err := s.store.GetSessionByServerID(ctx, rec.ID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return sess, nil
}
