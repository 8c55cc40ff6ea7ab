// Package feed streams live simulation events to dashboard clients over
// WebSocket. It is read-only: clients receive frames, nothing they send is
// interpreted beyond keeping the connection alive.
package feed

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/larsnaesbye/mars-sim2-sub002/internal/events"
)

// Frame is the wire format for messages sent over the WebSocket.
type Frame struct {
	Type    string          `json:"type"` // event, heartbeat
	Payload json.RawMessage `json:"payload,omitempty"`
}

const (
	writeWait      = 10 * time.Second
	heartbeatEvery = 30 * time.Second
)

// Hub manages active WebSocket connections and fans events out to them.
type Hub struct {
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*websocket.Conn]chan Frame

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewHub creates a hub subscribed to the given bus.
func NewHub(bus *events.Bus) *Hub {
	h := &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		conns:  make(map[*websocket.Conn]chan Frame),
		stopCh: make(chan struct{}),
	}

	bus.Subscribe(func(e events.Event) {
		payload, err := json.Marshal(e)
		if err != nil {
			return
		}
		h.broadcast(Frame{Type: "event", Payload: payload})
	})

	go h.heartbeatLoop()
	return h
}

// HandleWS upgrades an HTTP request and serves frames until the client
// disconnects.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("feed: upgrade failed: %v", err)
		return
	}

	send := make(chan Frame, 64)
	h.mu.Lock()
	h.conns[conn] = send
	h.mu.Unlock()

	go h.writePump(conn, send)
	h.readPump(conn)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Stop closes every connection and the heartbeat loop.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stopCh) })

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		conn.Close()
	}
	h.conns = make(map[*websocket.Conn]chan Frame)
}

// broadcast queues a frame for every connection, dropping frames for slow
// clients rather than blocking the publisher.
func (h *Hub) broadcast(f Frame) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, send := range h.conns {
		select {
		case send <- f:
		default:
			log.Printf("feed: client %s too slow, dropping frame", conn.RemoteAddr())
		}
	}
}

func (h *Hub) writePump(conn *websocket.Conn, send chan Frame) {
	for {
		select {
		case f, ok := <-send:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(f); err != nil {
				return
			}
		case <-h.stopCh:
			return
		}
	}
}

// readPump discards client messages and detects disconnects.
func (h *Hub) readPump(conn *websocket.Conn) {
	defer func() {
		h.mu.Lock()
		if send, ok := h.conns[conn]; ok {
			delete(h.conns, conn)
			close(send)
		}
		h.mu.Unlock()
		conn.Close()
	}()

	conn.SetReadLimit(512)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) heartbeatLoop() {
	ticker := time.NewTicker(heartbeatEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			h.broadcast(Frame{Type: "heartbeat"})
		case <-h.stopCh:
			return
		}
	}
}
