package dashboard

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/focalapp/focal/internal/bus"
	"github.com/focalapp/focal/internal/queue"
	"github.com/focalapp/focal/internal/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	server := NewServer(&Config{
		Port:   0, // random available port
		Logger: log.New(os.Stderr, "[test] ", log.LstdFlags),
	})
	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	t.Cleanup(func() { server.Stop() })

	time.Sleep(100 * time.Millisecond)
	return server
}

func TestServerStartStop(t *testing.T) {
	server := newTestServer(t)

	if server.Addr() == "" {
		t.Fatal("Server address is empty")
	}

	resp, err := http.Get("http://" + server.Addr() + "/health")
	if err != nil {
		t.Fatalf("Health check failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 from health check, got %d", resp.StatusCode)
	}
}

func TestBroadcastReachesClient(t *testing.T) {
	server := newTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws://"+server.Addr()+"/ws", nil)
	if err != nil {
		t.Fatalf("Failed to connect WebSocket: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	time.Sleep(100 * time.Millisecond)
	if count := server.ClientCount(); count != 1 {
		t.Errorf("Expected 1 client, got %d", count)
	}

	payload, _ := json.Marshal(StateChangeData{State: "syncing"})
	server.Broadcast(Message{Type: MessageTypeStateChange, Data: payload})

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Failed to read broadcast: %v", err)
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Failed to unmarshal message: %v", err)
	}
	if msg.Type != MessageTypeStateChange {
		t.Errorf("Expected %s, got %s", MessageTypeStateChange, msg.Type)
	}
	if msg.Timestamp.IsZero() {
		t.Error("Expected timestamp to be filled in")
	}
}

func TestHandlerFormatsBusEvents(t *testing.T) {
	server := newTestServer(t)

	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	if err := st.InitSchema(); err != nil {
		t.Fatalf("failed to initialize schema: %v", err)
	}

	b := bus.New()
	handler := NewHandler(server, st, queue.New(st.RawDB()), nil)
	handler.Attach(b)
	defer handler.Detach()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws://"+server.Addr()+"/ws", nil)
	if err != nil {
		t.Fatalf("Failed to connect WebSocket: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")
	time.Sleep(100 * time.Millisecond)

	b.Publish(bus.SessionUpserted{ID: "s1"})

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Failed to read message: %v", err)
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Failed to unmarshal message: %v", err)
	}
	if msg.Type != MessageTypeEntityUpdate {
		t.Fatalf("Expected entity_update, got %s", msg.Type)
	}
	var update EntityUpdateData
	if err := json.Unmarshal(msg.Data, &update); err != nil {
		t.Fatalf("Failed to unmarshal data: %v", err)
	}
	if update.Kind != "session" || update.Action != "upserted" || update.EntityID != "s1" {
		t.Errorf("Unexpected update: %+v", update)
	}
}
