// Package notify fans organization change events out to websocket
// subscribers. Delivery is fire-and-forget: a slow or broken client is
// dropped, and no publisher ever blocks on the hub.
package notify

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Event is one change notification.
type Event struct {
	Action         string `json:"action"`
	OrganizationID int64  `json:"organizationId"`
}

const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

const (
	// writeWait bounds a single frame write to a peer.
	writeWait = 10 * time.Second

	// sendBufferSize is how many events a client may fall behind before
	// it is dropped.
	sendBufferSize = 32
)

// client is one subscriber. All frames go through the send channel and a
// single writer goroutine, because the websocket connection supports only
// one concurrent writer.
type client struct {
	conn *websocket.Conn
	send chan Event
}

// Hub tracks connected subscribers and broadcasts events to them.
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Subscribers are read-only observers; any origin may attach.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// ServeWS upgrades the request and registers the connection until the peer
// goes away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan Event, sendBufferSize)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go h.writePump(c)
	go h.readPump(c)
}

// readPump drains incoming frames so close/ping handling works; the client
// is dropped on the first read error.
func (h *Hub) readPump(c *client) {
	defer h.drop(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump is the sole writer for one connection. It exits when drop
// closes the send channel, or drops the client itself on a write failure.
func (h *Hub) writePump(c *client) {
	for ev := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(ev); err != nil {
			h.drop(c)
			for range c.send {
				// Discard whatever was queued before the close.
			}
			return
		}
	}
}

// drop unregisters the client once and closes its connection. Closing the
// send channel terminates the write pump. The registration check under the
// lock makes drop idempotent and keeps Broadcast from ever sending on a
// closed channel.
func (h *Hub) drop(c *client) {
	h.mu.Lock()
	if _, registered := h.clients[c]; registered {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	_ = c.conn.Close()
}

// Broadcast queues the event for every subscriber. A client whose buffer is
// full is dropped rather than waited on.
func (h *Hub) Broadcast(ev Event) {
	var stalled []*client

	h.mu.Lock()
	for c := range h.clients {
		select {
		case c.send <- ev:
		default:
			stalled = append(stalled, c)
		}
	}
	h.mu.Unlock()

	for _, c := range stalled {
		h.drop(c)
	}
}

// OrganizationCreated publishes a created event.
func (h *Hub) OrganizationCreated(id int64) {
	h.Broadcast(Event{Action: ActionCreated, OrganizationID: id})
}

// OrganizationUpdated publishes an updated event.
func (h *Hub) OrganizationUpdated(id int64) {
	h.Broadcast(Event{Action: ActionUpdated, OrganizationID: id})
}

// OrganizationDeleted publishes a deleted event.
func (h *Hub) OrganizationDeleted(id int64) {
	h.Broadcast(Event{Action: ActionDeleted, OrganizationID: id})
}

// ClientCount reports the number of attached subscribers.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
