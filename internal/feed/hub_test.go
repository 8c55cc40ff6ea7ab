package feed

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/larsnaesbye/mars-sim2-sub002/internal/events"
)

func setupFeedServer(t *testing.T) (*events.Bus, *Hub, string) {
	t.Helper()
	bus := events.NewBus()
	hub := NewHub(bus)
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	t.Cleanup(func() {
		hub.Stop()
		srv.Close()
	})
	// Convert http:// to ws://
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	return bus, hub, wsURL
}

func TestHubConnectDisconnect(t *testing.T) {
	_, hub, wsURL := setupFeedServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}

	// Give the server time to register the connection
	time.Sleep(50 * time.Millisecond)
	if got := hub.ClientCount(); got != 1 {
		t.Errorf("ClientCount = %d, want 1", got)
	}

	conn.Close()
	time.Sleep(50 * time.Millisecond)
	if got := hub.ClientCount(); got != 0 {
		t.Errorf("ClientCount = %d after disconnect, want 0", got)
	}
}

func TestHubBroadcastsEvents(t *testing.T) {
	bus, _, wsURL := setupFeedServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()
	time.Sleep(50 * time.Millisecond)

	bus.Publish(events.Event{
		Type:     events.MalfunctionRaised,
		Severity: events.SeverityCritical,
		Entity:   "Lander Habitat",
		Sol:      42,
		Message:  "air leak (severity 85) in Lander Habitat",
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame Frame
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if frame.Type != "event" {
		t.Fatalf("frame type = %q, want event", frame.Type)
	}

	var e events.Event
	if err := json.Unmarshal(frame.Payload, &e); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if e.Type != events.MalfunctionRaised || e.Entity != "Lander Habitat" || e.Sol != 42 {
		t.Errorf("payload = %+v", e)
	}
}

func TestHubFansOutToAllClients(t *testing.T) {
	bus, _, wsURL := setupFeedServer(t)

	var conns []*websocket.Conn
	for i := 0; i < 3; i++ {
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		if err != nil {
			t.Fatalf("dial %d failed: %v", i, err)
		}
		defer conn.Close()
		conns = append(conns, conn)
	}
	time.Sleep(50 * time.Millisecond)

	bus.Publish(events.Event{Type: events.MaintenanceCompleted, Message: "maintenance cycle completed"})

	for i, conn := range conns {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var frame Frame
		if err := conn.ReadJSON(&frame); err != nil {
			t.Fatalf("client %d read: %v", i, err)
		}
		if frame.Type != "event" {
			t.Errorf("client %d frame type = %q", i, frame.Type)
		}
	}
}

func TestHubStopClosesClients(t *testing.T) {
	_, hub, wsURL := setupFeedServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()
	time.Sleep(50 * time.Millisecond)

	hub.Stop()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("read after Stop succeeded, want closed connection")
	}
	if got := hub.ClientCount(); got != 0 {
		t.Errorf("ClientCount = %d after Stop, want 0", got)
	}
}
