package sync

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	gosync "sync"
	"time"

	"github.com/focalapp/focal/internal/bus"
	"github.com/focalapp/focal/internal/model"
	"github.com/focalapp/focal/internal/queue"
	"github.com/focalapp/focal/internal/remote"
	"github.com/focalapp/focal/internal/store"
)

// State is the sync service's externally visible condition.
type State string

const (
	StateIdle    State = "idle"
	StateSyncing State = "syncing"
	StateError   State = "error"
	StateOffline State = "offline"
)

// Remote is the slice of the REST client the service depends on.
type Remote interface {
	ListSessions(ctx context.Context, since time.Time) ([]remote.SessionRecord, error)
	UpsertSession(ctx context.Context, rec remote.SessionRecord) (remote.SessionRecord, error)
	DeleteSession(ctx context.Context, serverID string) error
	ListProjects(ctx context.Context, since time.Time) ([]remote.ProjectRecord, error)
	UpsertProject(ctx context.Context, rec remote.ProjectRecord) (remote.ProjectRecord, error)
	DeleteProject(ctx context.Context, serverID string) error
	GetSettings(ctx context.Context) (*remote.SettingsRecord, error)
	PutSettings(ctx context.Context, rec remote.SettingsRecord) (remote.SettingsRecord, error)
}

// Config holds service tuning knobs.
type Config struct {
	// UserID keys the settings document.
	UserID string

	// PullInterval is the periodic pull cadence.
	PullInterval time.Duration

	// DrainBatchSize bounds how many queued changes one drain processes.
	DrainBatchSize int

	// Retry is the offline-queue backoff policy.
	Retry queue.Policy

	// SettingsDebounce delays the settings push after a local write so a
	// burst of writes becomes one document push.
	SettingsDebounce time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		UserID:           model.DefaultUserID,
		PullInterval:     60 * time.Second,
		DrainBatchSize:   25,
		Retry:            queue.DefaultPolicy(),
		SettingsDebounce: 2 * time.Second,
	}
}

// Status is a snapshot of service health for passive UI indication.
type Status struct {
	State     State  `json:"state"`
	LastError string `json:"last_error,omitempty"`
	Online    bool   `json:"online"`
}

// Meta keys in the local store.
const (
	metaLastPull         = "sync:last_pull_at"
	metaLastSettingsSync = "sync:last_settings_sync_at"
)

// op is a request handled by the service's event loop.
type op interface{ isOp() }

type (
	opPull          struct{}
	opDrain         struct{}
	opPushSession   struct{ id string }
	opDeleteSession struct{ id string }
	opPushProject   struct{ id string }
	opDeleteProject struct{ id string }
	opPushSettings  struct{}
	opPullSettings  struct{}
)

func (opPull) isOp()          {}
func (opDrain) isOp()         {}
func (opPushSession) isOp()   {}
func (opDeleteSession) isOp() {}
func (opPushProject) isOp()   {}
func (opDeleteProject) isOp() {}
func (opPushSettings) isOp()  {}
func (opPullSettings) isOp()  {}

// Service orchestrates push, pull and queue draining.
//
// All sync work runs on a single event-loop goroutine; public methods
// only submit requests to it. Dependencies are injected - the service
// holds no global state.
type Service struct {
	store  *store.Store
	queue  *queue.Queue
	remote Remote
	bus    *bus.Bus
	config Config
	logger *log.Logger
	now    func() time.Time

	mu        gosync.Mutex
	state     State
	lastError string
	online    bool
	started   bool
	gen       int
	idMap     map[string]string // project local id -> server id
	revMap    map[string]string // project server id -> local id

	// Event-loop-only guards (never touched off the loop goroutine).
	draining bool

	settingsMu      gosync.Mutex
	settingsTimer   *time.Timer
	pullingSettings bool

	ops         chan op
	ctx         context.Context
	cancel      context.CancelFunc
	wg          gosync.WaitGroup
	unsubscribe func()
}

// New creates a Service. All dependencies are required except logger;
// if logger is nil, a default logger writing to stderr is used.
func New(st *store.Store, q *queue.Queue, rc Remote, b *bus.Bus, config Config, logger *log.Logger) (*Service, error) {
	if st == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if q == nil {
		return nil, fmt.Errorf("queue cannot be nil")
	}
	if rc == nil {
		return nil, fmt.Errorf("remote cannot be nil")
	}
	if b == nil {
		return nil, fmt.Errorf("bus cannot be nil")
	}
	if logger == nil {
		logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}

	return &Service{
		store:  st,
		queue:  q,
		remote: rc,
		bus:    b,
		config: config,
		logger: logger,
		now:    time.Now,
		state:  StateIdle,
		online: true,
		idMap:  make(map[string]string),
		revMap: make(map[string]string),
		ops:    make(chan op, 256),
	}, nil
}

// Start brings the service up: it rebuilds the project id map, schedules
// an initial pull and queue drain, subscribes to mutation events, and
// starts the periodic pull ticker. Non-blocking; Stop tears it down.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("sync service already started")
	}
	s.started = true
	s.gen++
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	if err := s.ReloadIDMap(ctx); err != nil {
		return fmt.Errorf("failed to load id map: %w", err)
	}

	s.unsubscribe = s.bus.Subscribe(s.handleEvent)

	s.wg.Add(1)
	go s.run()

	// Initial catch-up.
	s.submit(opPull{})
	s.submit(opDrain{})
	s.submit(opPullSettings{})

	s.logger.Printf("Sync service started (pull every %v)", s.config.PullInterval)
	return nil
}

// Stop cancels the ticker and event loop and detaches listeners.
// In-flight requests are not cancelled mid-call, but their results are
// discarded: the generation counter advances so a late response cannot
// corrupt post-stop state.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.gen++
	cancel := s.cancel
	s.mu.Unlock()

	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}

	s.settingsMu.Lock()
	if s.settingsTimer != nil {
		s.settingsTimer.Stop()
		s.settingsTimer = nil
	}
	s.settingsMu.Unlock()

	cancel()
	s.wg.Wait()
	s.logger.Printf("Sync service stopped")
}

// SetOnline flips the connectivity flag. Regaining connectivity triggers
// an immediate pull and queue drain.
func (s *Service) SetOnline(online bool) {
	s.mu.Lock()
	was := s.online
	s.online = online
	s.mu.Unlock()

	if online && !was {
		s.logger.Printf("Connectivity restored")
		s.setState(StateIdle, "")
		s.submit(opPull{})
		s.submit(opDrain{})
		s.submit(opPullSettings{})
	}
	if !online {
		s.setState(StateOffline, "")
	}
}

// TriggerSync requests an immediate pull and drain, used on window focus
// or an external trigger to catch up quickly after backgrounding.
func (s *Service) TriggerSync() {
	s.submit(opPull{})
	s.submit(opDrain{})
}

// Status returns a snapshot of service health.
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{State: s.state, LastError: s.lastError, Online: s.online}
}

// ReloadIDMap rebuilds the local-to-remote project id map from the store.
// Idempotent; safe to call while running.
func (s *Service) ReloadIDMap(ctx context.Context) error {
	projects, err := s.store.ListSyncedProjects(ctx)
	if err != nil {
		return err
	}

	idMap := make(map[string]string, len(projects))
	revMap := make(map[string]string, len(projects))
	for _, p := range projects {
		if p.ServerID == nil {
			continue
		}
		idMap[p.ID] = *p.ServerID
		revMap[*p.ServerID] = p.ID
	}

	s.mu.Lock()
	s.idMap = idMap
	s.revMap = revMap
	s.mu.Unlock()

	return nil
}

// handleEvent reacts to mutation events published by call sites.
func (s *Service) handleEvent(e bus.Event) {
	switch ev := e.(type) {
	case bus.SessionUpserted:
		s.submit(opPushSession{id: ev.ID})
	case bus.SessionDeleted:
		s.submit(opDeleteSession{id: ev.ID})
	case bus.ProjectUpserted:
		s.submit(opPushProject{id: ev.ID})
	case bus.ProjectDeleted:
		s.submit(opDeleteProject{id: ev.ID})
	case bus.SettingsChanged:
		s.scheduleSettingsPush()
	}
}

// submit hands a request to the event loop without blocking the caller.
func (s *Service) submit(o op) {
	s.mu.Lock()
	started := s.started
	ctx := s.ctx
	s.mu.Unlock()
	if !started {
		return
	}

	select {
	case s.ops <- o:
	default:
		go func() {
			select {
			case s.ops <- o:
			case <-ctx.Done():
			}
		}()
	}
}

// run is the event loop. All sync work happens here.
func (s *Service) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.PullInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return

		case <-ticker.C:
			s.runPull(s.ctx)
			s.runDrain(s.ctx)

		case o := <-s.ops:
			s.handle(s.ctx, o)
		}
	}
}

func (s *Service) handle(ctx context.Context, o op) {
	switch v := o.(type) {
	case opPull:
		s.runPull(ctx)
	case opDrain:
		s.runDrain(ctx)
	case opPushSession:
		s.pushSessionByID(ctx, v.id)
	case opDeleteSession:
		s.deleteSessionByID(ctx, v.id)
	case opPushProject:
		s.pushProjectByID(ctx, v.id)
	case opDeleteProject:
		s.deleteProjectByID(ctx, v.id)
	case opPushSettings:
		s.pushSettings(ctx)
	case opPullSettings:
		s.pullSettings(ctx)
	}
}

// ---- push: sessions ----

func (s *Service) pushSessionByID(ctx context.Context, id string) {
	session, err := s.store.GetSessionContext(ctx, id)
	if err == sql.ErrNoRows {
		return
	}
	if err != nil {
		s.setError(err)
		return
	}
	if session.Deleted {
		s.deleteSession(ctx, session)
		return
	}
	s.pushSession(ctx, session)
}

func (s *Service) pushSession(ctx context.Context, session *model.Session) {
	if !s.isOnline() {
		s.enqueueSession(ctx, session, queue.OpUpsert)
		return
	}

	serverID, err := s.writeSessionRemote(ctx, session)
	if err != nil {
		s.enqueueSession(ctx, session, queue.OpUpsert)
		s.setError(err)
		return
	}

	session.MarkSynced(serverID, s.now())
	if err := s.store.UpsertSessionContext(ctx, session); err != nil {
		s.setError(err)
		return
	}
	if err := s.queue.RemoveForEntity(ctx, queue.EntitySessions, session.ID); err != nil {
		s.logger.Printf("Warning: failed to purge queue for session %s: %v", session.ID, err)
	}
	s.setState(StateIdle, "")
}

// writeSessionRemote performs the remote upsert, resolving the session's
// project reference through the id map. A session whose project has not
// been pushed yet fails here and retries from the queue.
func (s *Service) writeSessionRemote(ctx context.Context, session *model.Session) (string, error) {
	projectServerID := ""
	if session.ProjectID != nil && !session.Deleted {
		sid, ok := s.lookupServerID(*session.ProjectID)
		if !ok {
			return "", fmt.Errorf("project %s has no server id yet", *session.ProjectID)
		}
		projectServerID = sid
	}

	out, err := s.remote.UpsertSession(ctx, remote.SessionToWire(session, projectServerID))
	if err != nil {
		return "", err
	}
	return out.ID, nil
}

func (s *Service) deleteSessionByID(ctx context.Context, id string) {
	session, err := s.store.GetSessionContext(ctx, id)
	if err == sql.ErrNoRows {
		return
	}
	if err != nil {
		s.setError(err)
		return
	}
	s.deleteSession(ctx, session)
}

// deleteSession propagates a tombstone, then purges the local row.
// A session the server has never seen is tombstoned via upsert so other
// replicas that may have pulled it still observe the deletion.
func (s *Service) deleteSession(ctx context.Context, session *model.Session) {
	if !s.isOnline() {
		s.enqueueSession(ctx, session, queue.OpDelete)
		return
	}

	var err error
	if session.ServerID != nil {
		err = s.remote.DeleteSession(ctx, *session.ServerID)
	} else {
		session.Deleted = true
		_, err = s.remote.UpsertSession(ctx, remote.SessionToWire(session, ""))
	}
	if err != nil {
		s.enqueueSession(ctx, session, queue.OpDelete)
		s.setError(err)
		return
	}

	if err := s.store.DeleteSessionContext(ctx, session.ID); err != nil {
		s.setError(err)
		return
	}
	if err := s.queue.RemoveForEntity(ctx, queue.EntitySessions, session.ID); err != nil {
		s.logger.Printf("Warning: failed to purge queue for session %s: %v", session.ID, err)
	}
	s.setState(StateIdle, "")
}

func (s *Service) enqueueSession(ctx context.Context, session *model.Session, o queue.Operation) {
	payload, err := json.Marshal(session)
	if err != nil {
		s.setError(fmt.Errorf("failed to snapshot session %s: %w", session.ID, err))
		return
	}
	if _, err := s.queue.Enqueue(ctx, queue.EntitySessions, session.ID, o, payload); err != nil {
		s.setError(err)
	}
}

// ---- push: projects ----

func (s *Service) pushProjectByID(ctx context.Context, id string) {
	project, err := s.store.GetProjectContext(ctx, id)
	if err == sql.ErrNoRows {
		return
	}
	if err != nil {
		s.setError(err)
		return
	}
	if project.Deleted {
		s.deleteProject(ctx, project)
		return
	}
	s.pushProject(ctx, project)
}

func (s *Service) pushProject(ctx context.Context, project *model.Project) {
	if !s.isOnline() {
		s.enqueueProject(ctx, project, queue.OpUpsert)
		return
	}

	out, err := s.remote.UpsertProject(ctx, remote.ProjectToWire(project))
	if err != nil {
		s.enqueueProject(ctx, project, queue.OpUpsert)
		s.setError(err)
		return
	}

	project.MarkSynced(out.ID, s.now())
	if err := s.store.UpsertProjectContext(ctx, project); err != nil {
		s.setError(err)
		return
	}
	// Map immediately so sessions referencing this project can resolve
	// their foreign key on their own push.
	s.setMapping(project.ID, out.ID)
	if err := s.queue.RemoveForEntity(ctx, queue.EntityProjects, project.ID); err != nil {
		s.logger.Printf("Warning: failed to purge queue for project %s: %v", project.ID, err)
	}
	s.setState(StateIdle, "")
}

func (s *Service) deleteProjectByID(ctx context.Context, id string) {
	project, err := s.store.GetProjectContext(ctx, id)
	if err == sql.ErrNoRows {
		return
	}
	if err != nil {
		s.setError(err)
		return
	}
	s.deleteProject(ctx, project)
}

func (s *Service) deleteProject(ctx context.Context, project *model.Project) {
	if !s.isOnline() {
		s.enqueueProject(ctx, project, queue.OpDelete)
		return
	}

	var err error
	if project.ServerID != nil {
		err = s.remote.DeleteProject(ctx, *project.ServerID)
	} else {
		project.Deleted = true
		_, err = s.remote.UpsertProject(ctx, remote.ProjectToWire(project))
	}
	if err != nil {
		s.enqueueProject(ctx, project, queue.OpDelete)
		s.setError(err)
		return
	}

	if err := s.store.DeleteProjectContext(ctx, project.ID); err != nil {
		s.setError(err)
		return
	}
	s.dropMapping(project.ID)
	if err := s.queue.RemoveForEntity(ctx, queue.EntityProjects, project.ID); err != nil {
		s.logger.Printf("Warning: failed to purge queue for project %s: %v", project.ID, err)
	}
	s.setState(StateIdle, "")
}

func (s *Service) enqueueProject(ctx context.Context, project *model.Project, o queue.Operation) {
	payload, err := json.Marshal(project)
	if err != nil {
		s.setError(fmt.Errorf("failed to snapshot project %s: %w", project.ID, err))
		return
	}
	if _, err := s.queue.Enqueue(ctx, queue.EntityProjects, project.ID, o, payload); err != nil {
		s.setError(err)
	}
}

// ---- queue draining ----

// runDrain pushes store records still awaiting sync, then replays queued
// changes against the remote service. A single in-flight guard prevents
// overlapping drains; one call processes at most DrainBatchSize entries.
func (s *Service) runDrain(ctx context.Context) {
	if s.draining || !s.isOnline() {
		return
	}
	s.draining = true
	defer func() { s.draining = false }()

	s.sweepUnsynced(ctx)

	batch, err := s.queue.NextBatch(ctx, s.config.DrainBatchSize)
	if err != nil {
		s.setError(err)
		return
	}
	if len(batch) == 0 {
		return
	}

	processed, failed := 0, 0
	for _, change := range batch {
		if err := s.replay(ctx, change); err != nil {
			failed++
			dropped, ferr := s.queue.MarkFailed(ctx, change.ID, err, s.config.Retry)
			if ferr != nil {
				s.logger.Printf("Warning: failed to record queue failure for entry %d: %v", change.ID, ferr)
				continue
			}
			if dropped {
				s.logger.Printf("WARNING: dropping %s/%s %s after %d retries: %v",
					change.EntityType, change.EntityID, change.Op, s.config.Retry.MaxRetries, err)
				s.bus.Publish(bus.ChangeDropped{
					EntityKind: entityKind(change.EntityType),
					EntityID:   change.EntityID,
					LastError:  err.Error(),
				})
			}
			continue
		}
		if err := s.queue.MarkProcessed(ctx, change.ID); err != nil {
			s.logger.Printf("Warning: failed to remove processed entry %d: %v", change.ID, err)
		}
		processed++
	}

	s.logger.Printf("Queue drain: processed=%d failed=%d", processed, failed)
	s.bus.Publish(bus.QueueDrained{Processed: processed, Failed: failed})
	if failed == 0 {
		s.setState(StateIdle, "")
	}
}

// sweepUnsynced pushes entities sitting in the store with an unsynced
// status but no queue entry. These are records that never went through a
// mutation event: migrated legacy data, or writes whose event was lost.
// Projects go first so the id map can resolve session references.
// Entities that already have queued snapshots are left to the replay
// path, which carries their exact state.
func (s *Service) sweepUnsynced(ctx context.Context) {
	projects, err := s.store.ListProjectsNeedingSync(ctx)
	if err != nil {
		s.setError(err)
		return
	}
	for _, p := range projects {
		queued, err := s.queue.HasEntity(ctx, queue.EntityProjects, p.ID)
		if err != nil {
			s.logger.Printf("Warning: failed to check queue for project %s: %v", p.ID, err)
			continue
		}
		if queued {
			continue
		}
		s.pushProjectByID(ctx, p.ID)
	}

	sessions, err := s.store.ListSessionsNeedingSync(ctx)
	if err != nil {
		s.setError(err)
		return
	}
	for _, sess := range sessions {
		queued, err := s.queue.HasEntity(ctx, queue.EntitySessions, sess.ID)
		if err != nil {
			s.logger.Printf("Warning: failed to check queue for session %s: %v", sess.ID, err)
			continue
		}
		if queued {
			continue
		}
		s.pushSessionByID(ctx, sess.ID)
	}
}

// replay applies one queued change using its payload snapshot.
// It deliberately does not purge other queue entries for the entity:
// later entries may hold newer snapshots.
func (s *Service) replay(ctx context.Context, change *queue.Change) error {
	switch change.EntityType {
	case queue.EntitySessions:
		var snap model.Session
		if err := json.Unmarshal(change.Payload, &snap); err != nil {
			return fmt.Errorf("failed to decode session snapshot: %w", err)
		}
		if change.Op == queue.OpDelete {
			return s.replayDeleteSession(ctx, &snap)
		}
		serverID, err := s.writeSessionRemote(ctx, &snap)
		if err != nil {
			return err
		}
		s.finishSessionReplay(ctx, &snap, serverID)
		return nil

	case queue.EntityProjects:
		var snap model.Project
		if err := json.Unmarshal(change.Payload, &snap); err != nil {
			return fmt.Errorf("failed to decode project snapshot: %w", err)
		}
		if change.Op == queue.OpDelete {
			return s.replayDeleteProject(ctx, &snap)
		}
		out, err := s.remote.UpsertProject(ctx, remote.ProjectToWire(&snap))
		if err != nil {
			return err
		}
		s.setMapping(snap.ID, out.ID)
		s.finishProjectReplay(ctx, &snap, out.ID)
		return nil

	default:
		return fmt.Errorf("unknown entity type %q", change.EntityType)
	}
}

func (s *Service) replayDeleteSession(ctx context.Context, snap *model.Session) error {
	if snap.ServerID != nil {
		if err := s.remote.DeleteSession(ctx, *snap.ServerID); err != nil {
			return err
		}
	} else {
		snap.Deleted = true
		if _, err := s.remote.UpsertSession(ctx, remote.SessionToWire(snap, "")); err != nil {
			return err
		}
	}
	if err := s.store.DeleteSessionContext(ctx, snap.ID); err != nil {
		s.logger.Printf("Warning: failed to purge deleted session %s: %v", snap.ID, err)
	}
	return nil
}

func (s *Service) replayDeleteProject(ctx context.Context, snap *model.Project) error {
	if snap.ServerID != nil {
		if err := s.remote.DeleteProject(ctx, *snap.ServerID); err != nil {
			return err
		}
	} else {
		snap.Deleted = true
		if _, err := s.remote.UpsertProject(ctx, remote.ProjectToWire(snap)); err != nil {
			return err
		}
	}
	if err := s.store.DeleteProjectContext(ctx, snap.ID); err != nil {
		s.logger.Printf("Warning: failed to purge deleted project %s: %v", snap.ID, err)
	}
	s.dropMapping(snap.ID)
	return nil
}

// finishSessionReplay records sync metadata after a replayed upsert.
// The entity only becomes "synced" if it has not been mutated again
// since the snapshot was queued.
func (s *Service) finishSessionReplay(ctx context.Context, snap *model.Session, serverID string) {
	current, err := s.store.GetSessionContext(ctx, snap.ID)
	if err == sql.ErrNoRows {
		return
	}
	if err != nil {
		s.logger.Printf("Warning: failed to load session %s after replay: %v", snap.ID, err)
		return
	}

	now := s.now()
	current.ServerID = &serverID
	current.SyncedAt = &now
	if !current.LocalUpdatedAt.After(snap.LocalUpdatedAt) {
		current.SyncStatus = model.StatusSynced
	}
	if err := s.store.UpsertSessionContext(ctx, current); err != nil {
		s.logger.Printf("Warning: failed to record sync for session %s: %v", snap.ID, err)
	}
}

func (s *Service) finishProjectReplay(ctx context.Context, snap *model.Project, serverID string) {
	current, err := s.store.GetProjectContext(ctx, snap.ID)
	if err == sql.ErrNoRows {
		return
	}
	if err != nil {
		s.logger.Printf("Warning: failed to load project %s after replay: %v", snap.ID, err)
		return
	}

	now := s.now()
	current.ServerID = &serverID
	current.SyncedAt = &now
	if !current.LocalUpdatedAt.After(snap.LocalUpdatedAt) {
		current.SyncStatus = model.StatusSynced
	}
	if err := s.store.UpsertProjectContext(ctx, current); err != nil {
		s.logger.Printf("Warning: failed to record sync for project %s: %v", snap.ID, err)
	}
}

// ---- shared helpers ----

func (s *Service) isOnline() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online
}

func (s *Service) generation() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

func (s *Service) lookupServerID(localID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sid, ok := s.idMap[localID]
	return sid, ok
}

func (s *Service) lookupLocalID(serverID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lid, ok := s.revMap[serverID]
	return lid, ok
}

func (s *Service) setMapping(localID, serverID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.idMap[localID] = serverID
	s.revMap[serverID] = localID
}

func (s *Service) dropMapping(localID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sid, ok := s.idMap[localID]; ok {
		delete(s.revMap, sid)
	}
	delete(s.idMap, localID)
}

func (s *Service) setState(state State, errText string) {
	s.mu.Lock()
	if !s.online && state == StateIdle {
		state = StateOffline
	}
	changed := s.state != state || s.lastError != errText
	s.state = state
	s.lastError = errText
	s.mu.Unlock()

	if changed {
		s.bus.Publish(bus.StateChanged{State: string(state), LastError: errText})
	}
}

// setError records a failure in service state. Errors never propagate to
// the mutation call site - local writes have already succeeded.
func (s *Service) setError(err error) {
	s.logger.Printf("Sync error: %v", err)
	s.setState(StateError, err.Error())
}

func entityKind(t queue.EntityType) bus.EntityKind {
	if t == queue.EntityProjects {
		return bus.KindProject
	}
	return bus.KindSession
}
