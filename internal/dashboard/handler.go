package dashboard

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/focalapp/focal/internal/bus"
	"github.com/focalapp/focal/internal/queue"
	"github.com/focalapp/focal/internal/store"
)

// Handler bridges the in-process event bus and the WebSocket server,
// formatting bus events as dashboard messages.
type Handler struct {
	server *Server
	store  *store.Store
	queue  *queue.Queue
	logger *log.Logger

	unsubscribe func()
}

// NewHandler creates an event handler connected to a dashboard server.
func NewHandler(server *Server, st *store.Store, q *queue.Queue, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{
		server: server,
		store:  st,
		queue:  q,
		logger: logger,
	}
}

// Attach subscribes the handler to the bus. Detach reverses it.
func (h *Handler) Attach(b *bus.Bus) {
	h.unsubscribe = b.Subscribe(h.onEvent)
}

// Detach unsubscribes from the bus.
func (h *Handler) Detach() {
	if h.unsubscribe != nil {
		h.unsubscribe()
		h.unsubscribe = nil
	}
}

func (h *Handler) onEvent(e bus.Event) {
	switch ev := e.(type) {
	case bus.SessionUpserted:
		h.broadcastEntity("session", "upserted", ev.ID)
	case bus.SessionDeleted:
		h.broadcastEntity("session", "deleted", ev.ID)
	case bus.ProjectUpserted:
		h.broadcastEntity("project", "upserted", ev.ID)
	case bus.ProjectDeleted:
		h.broadcastEntity("project", "deleted", ev.ID)

	case bus.PullCompleted:
		h.send(MessageTypePullComplete, PullCompleteData{
			Sessions: ev.Sessions,
			Projects: ev.Projects,
			Deleted:  ev.Deleted,
		})
		h.broadcastStats()

	case bus.QueueDrained:
		h.send(MessageTypeQueueDrained, QueueDrainedData{
			Processed: ev.Processed,
			Failed:    ev.Failed,
		})
		h.broadcastStats()

	case bus.ChangeDropped:
		h.send(MessageTypeChangeDropped, ChangeDroppedData{
			Kind:      string(ev.EntityKind),
			EntityID:  ev.EntityID,
			LastError: ev.LastError,
		})

	case bus.StateChanged:
		h.send(MessageTypeStateChange, StateChangeData{
			State:     ev.State,
			LastError: ev.LastError,
		})
	}
}

func (h *Handler) broadcastEntity(kind, action, id string) {
	h.send(MessageTypeEntityUpdate, EntityUpdateData{
		Kind:     kind,
		Action:   action,
		EntityID: id,
	})
}

// broadcastStats queries current store counts and broadcasts them.
func (h *Handler) broadcastStats() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	stats := StatsData{}
	var err error
	if stats.Sessions, err = h.store.SessionCountContext(ctx); err != nil {
		h.logger.Printf("Failed to count sessions: %v", err)
		return
	}
	if stats.Projects, err = h.store.ProjectCountContext(ctx); err != nil {
		h.logger.Printf("Failed to count projects: %v", err)
		return
	}
	if stats.QueueDepth, err = h.queue.Depth(ctx); err != nil {
		h.logger.Printf("Failed to read queue depth: %v", err)
		return
	}

	h.send(MessageTypeStats, stats)
}

func (h *Handler) send(typ MessageType, data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		h.logger.Printf("Failed to marshal %s message: %v", typ, err)
		return
	}
	h.server.Broadcast(Message{
		Type:      typ,
		Timestamp: time.Now(),
		Data:      payload,
	})
}
