package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/wricardo/mcp-training/memorygame/game/service"
)

// wireEvent mirrors service.Event with undecoded data.
type wireEvent struct {
	Type      string          `json:"type"`
	SessionID string          `json:"session_id"`
	Data      json.RawMessage `json:"data"`
}

func startHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub()
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("session")
		hub.ServeWS(w, r, id, service.Event{Type: "hello", SessionID: id})
	}))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return hub, srv
}

func dial(t *testing.T, ctx context.Context, srv *httptest.Server, session string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?session=" + session
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { conn.CloseNow() })

	var hello wireEvent
	if err := wsjson.Read(ctx, conn, &hello); err != nil {
		t.Fatalf("Reading initial event failed: %v", err)
	}
	if hello.Type != "hello" || hello.SessionID != session {
		t.Fatalf("Unexpected initial event %+v", hello)
	}
	return conn
}

func TestHubRegisterClient(t *testing.T) {
	hub := NewHub()
	client := &Client{hub: hub, sessionID: "test-session", send: make(chan []byte, 1)}

	hub.registerClient(client)
	if !hub.sessions["test-session"][client] {
		t.Fatal("Client was not registered in session")
	}

	hub.unregisterClient(client)
	if _, exists := hub.sessions["test-session"]; exists {
		t.Error("Empty session should be removed")
	}
	if _, ok := <-client.send; ok {
		t.Error("Send channel should be closed")
	}

	// A second unregister must not panic on the closed channel.
	hub.unregisterClient(client)
}

func TestHubDropsSlowClient(t *testing.T) {
	hub := NewHub()
	slow := &Client{hub: hub, sessionID: "s", send: make(chan []byte)}
	hub.registerClient(slow)

	hub.broadcastEvent(service.Event{Type: service.EventTick, SessionID: "s"})
	if len(hub.sessions["s"]) != 0 {
		t.Error("Client with a full queue should be unregistered")
	}
}

func TestHubPublishToSession(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	hub, srv := startHub(t)

	a := dial(t, ctx, srv, "aaaa")
	b := dial(t, ctx, srv, "bbbb")
	if n := hub.ClientCount("aaaa"); n != 1 {
		t.Fatalf("Expected 1 client on aaaa, got %d", n)
	}

	hub.Publish(service.Event{
		Type:      service.EventTick,
		SessionID: "aaaa",
		Data:      service.TickData{ElapsedSeconds: 5, Elapsed: "00:05"},
	})
	hub.Publish(service.Event{Type: service.EventStatus, SessionID: "bbbb"})

	var got wireEvent
	if err := wsjson.Read(ctx, a, &got); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if got.Type != service.EventTick {
		t.Fatalf("Expected tick, got %s", got.Type)
	}
	var tick service.TickData
	if err := json.Unmarshal(got.Data, &tick); err != nil || tick.Elapsed != "00:05" {
		t.Errorf("Unexpected tick payload %s (%v)", got.Data, err)
	}

	if err := wsjson.Read(ctx, b, &got); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if got.Type != service.EventStatus || got.SessionID != "bbbb" {
		t.Errorf("Session bbbb received %+v", got)
	}
}

func TestHubEventsArriveInOrder(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	hub, srv := startHub(t)
	conn := dial(t, ctx, srv, "ord1")

	kinds := []string{service.EventRender, service.EventStatus, service.EventWin}
	for _, k := range kinds {
		hub.Publish(service.Event{Type: k, SessionID: "ord1"})
	}
	for _, want := range kinds {
		var got wireEvent
		if err := wsjson.Read(ctx, conn, &got); err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		if got.Type != want {
			t.Errorf("Expected %s, got %s", want, got.Type)
		}
	}
}

func TestHubClientDisconnect(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	hub, srv := startHub(t)

	conn := dial(t, ctx, srv, "gone")
	conn.Close(websocket.StatusNormalClosure, "bye")

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount("gone") != 0 {
		if time.Now().After(deadline) {
			t.Fatal("Client was not unregistered after disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHubPublishAfterShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub()
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	// Must not block once the hub is gone.
	for i := 0; i < sendBuffer+10; i++ {
		hub.Publish(service.Event{Type: service.EventTick, SessionID: "x"})
	}
	if n := hub.ClientCount("x"); n != 0 {
		t.Errorf("Expected 0 clients after shutdown, got %d", n)
	}
}
