// Package bus provides the in-process event bus decoupling mutation call
// sites from the sync engine.
//
// Events form a closed set of typed messages: handlers switch on the
// concrete type instead of casting loosely-typed payloads. Publishing is
// fire-and-forget; a slow subscriber never blocks a publisher.
package bus

import (
	"sort"
	"sync"
	"time"
)

// Event is implemented by every message type carried on the bus.
// The isEvent marker keeps the set closed to this package's types.
type Event interface {
	isEvent()
}

// EntityKind names a record family in entity events.
type EntityKind string

const (
	KindSession EntityKind = "session"
	KindProject EntityKind = "project"
)

// SessionUpserted announces a local session create or update.
type SessionUpserted struct {
	ID string
}

// SessionDeleted announces a local session deletion (tombstone set).
type SessionDeleted struct {
	ID string
}

// ProjectUpserted announces a local project create or update.
type ProjectUpserted struct {
	ID string
}

// ProjectDeleted announces a local project deletion (tombstone set).
type ProjectDeleted struct {
	ID string
}

// SettingsChanged announces a local settings write.
type SettingsChanged struct {
	UserID string
}

// PullCompleted announces a finished pull pass; consumers refresh any
// cached views derived from the local store.
type PullCompleted struct {
	At       time.Time
	Sessions int
	Projects int
	Deleted  int
}

// QueueDrained announces a finished queue drain pass.
type QueueDrained struct {
	Processed int
	Failed    int
}

// ChangeDropped announces a mutation lost after exhausting its retries.
// This is the operator-visible face of the dead-letter path.
type ChangeDropped struct {
	EntityKind EntityKind
	EntityID   string
	LastError  string
}

// StateChanged announces a sync-service state transition.
type StateChanged struct {
	State     string
	LastError string
}

func (SessionUpserted) isEvent() {}
func (SessionDeleted) isEvent()  {}
func (ProjectUpserted) isEvent() {}
func (ProjectDeleted) isEvent()  {}
func (SettingsChanged) isEvent() {}
func (PullCompleted) isEvent()   {}
func (QueueDrained) isEvent()    {}
func (ChangeDropped) isEvent()   {}
func (StateChanged) isEvent()    {}

// Handler receives published events.
type Handler func(Event)

// Bus fans events out to subscribers.
type Bus struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[int]Handler
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{handlers: make(map[int]Handler)}
}

// Subscribe registers a handler and returns an unsubscribe function.
// Handlers run on the publishing goroutine in registration order; they
// must not block.
func (b *Bus) Subscribe(h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.handlers[id] = h

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers, id)
	}
}

// Publish delivers an event to all current subscribers.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	ids := make([]int, 0, len(b.handlers))
	for id := range b.handlers {
		ids = append(ids, id)
	}
	// Subscription ids are monotonic, so sorted ids give registration
	// order.
	sort.Ints(ids)
	handlers := make([]Handler, len(ids))
	for i, id := range ids {
		handlers[i] = b.handlers[id]
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(e)
	}
}
