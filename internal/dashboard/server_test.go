package dashboard

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/openpharm/pharmsync/internal/syncer"
)

func testServer(t *testing.T) *Server {
	t.Helper()

	srv := NewServer(&Config{
		Port:   0,
		Logger: log.New(io.Discard, "", 0),
	})
	if err := srv.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	t.Cleanup(func() { srv.Stop() })
	return srv
}

func dialClient(t *testing.T, srv *Server) *websocket.Conn {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws://"+srv.Addr()+"/ws", nil)
	if err != nil {
		t.Fatalf("Dial() failed: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })

	// The server registers the client asynchronously after the upgrade.
	deadline := time.Now().Add(3 * time.Second)
	for srv.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if srv.ClientCount() == 0 {
		t.Fatal("client never registered")
	}
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Read() failed: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("failed to decode message: %v", err)
	}
	return msg
}

func TestServer_StartStop(t *testing.T) {
	srv := NewServer(&Config{Port: 0, Logger: log.New(io.Discard, "", 0)})
	if err := srv.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if srv.Addr() == "" {
		t.Error("Addr() is empty after Start()")
	}
	if err := srv.Stop(); err != nil {
		t.Errorf("Stop() failed: %v", err)
	}
}

func TestServer_Health(t *testing.T) {
	srv := testServer(t)

	resp, err := http.Get("http://" + srv.Addr() + "/health")
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("/health = %d, want 200", resp.StatusCode)
	}
	var body struct {
		Status  string `json:"status"`
		Clients int    `json:"clients"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status = %q, want ok", body.Status)
	}
}

func TestServer_BroadcastsSyncEvents(t *testing.T) {
	srv := testServer(t)
	conn := dialClient(t, srv)

	srv.PublishEvent(syncer.Event{Type: syncer.EventOnline, Time: time.Now()})

	msg := readMessage(t, conn)
	if msg.Type != MessageTypeSyncEvent {
		t.Errorf("message type = %q, want %q", msg.Type, MessageTypeSyncEvent)
	}
	var ev syncer.Event
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		t.Fatalf("failed to decode event payload: %v", err)
	}
	if ev.Type != syncer.EventOnline {
		t.Errorf("event type = %q, want %q", ev.Type, syncer.EventOnline)
	}
}

func TestServer_BroadcastsStatus(t *testing.T) {
	srv := testServer(t)
	conn := dialClient(t, srv)

	srv.PublishStatus(syncer.Status{IsOnline: true, IsSyncing: false}, 12)

	msg := readMessage(t, conn)
	if msg.Type != MessageTypeStatus {
		t.Errorf("message type = %q, want %q", msg.Type, MessageTypeStatus)
	}
	var status StatusData
	if err := json.Unmarshal(msg.Data, &status); err != nil {
		t.Fatalf("failed to decode status payload: %v", err)
	}
	if !status.Online || status.Syncing || status.PendingCount != 12 {
		t.Errorf("status = %+v, want online with 12 pending", status)
	}
}

func TestServer_RemovesDisconnectedClients(t *testing.T) {
	srv := testServer(t)
	conn := dialClient(t, srv)

	conn.Close(websocket.StatusNormalClosure, "done")

	deadline := time.Now().Add(3 * time.Second)
	for srv.ClientCount() > 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := srv.ClientCount(); got != 0 {
		t.Errorf("ClientCount() = %d after disconnect, want 0", got)
	}
}

func TestServer_PublishWithoutClientsDoesNotBlock(t *testing.T) {
	srv := testServer(t)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 500; i++ {
			srv.PublishEvent(syncer.Event{Type: syncer.EventDrainComplete})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("PublishEvent blocked with no clients connected")
	}
}
