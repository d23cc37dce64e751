package rest

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/agent-memory/agent-memory/internal/adapter/event"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// watchEvent is the wire shape pushed to a connected watcher.
type watchEvent struct {
	Kind      string    `json:"kind"`
	EntryID   string    `json:"entry_id,omitempty"`
	ScopeKind string    `json:"scope_kind,omitempty"`
	ScopeID   string    `json:"scope_id,omitempty"`
	AgentID   string    `json:"agent_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// watchHub fans event.Adapter publications out to every connected
// websocket client, grounded on the teacher's cmd/server/handlers
// WebSocketHub: a client set guarded by a read-write mutex, with each
// outbound frame written from its own goroutine.
type watchHub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]bool
	logger  *slog.Logger
}

func newWatchHub(logger *slog.Logger) *watchHub {
	return &watchHub{clients: make(map[*websocket.Conn]bool), logger: logger}
}

// handleEvent is registered as an event.Handler via the Runtime's event
// bus; it runs on the bus's own fan-out goroutine, so it must not block.
func (h *watchHub) handleEvent(evt event.Event) {
	out := watchEvent{
		Kind:      string(evt.Kind),
		EntryID:   evt.EntryID,
		ScopeKind: evt.ScopeKind,
		ScopeID:   evt.ScopeID,
		AgentID:   evt.AgentID,
		Timestamp: time.Now().UTC(),
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		go h.send(client, out)
	}
}

func (h *watchHub) send(client *websocket.Conn, evt watchEvent) {
	client.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := client.WriteJSON(evt); err != nil {
		h.remove(client)
	}
}

func (h *watchHub) add(client *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = true
}

func (h *watchHub) remove(client *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		_ = client.Close()
	}
}

// ServeHTTP upgrades the request to a websocket and keeps the
// connection registered until the peer disconnects. The connection is
// read-only from the client's side; any inbound frame is discarded
// (read loop only exists to detect close).
func (h *watchHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("watch: upgrade failed", slog.String("error", err.Error()))
		return
	}
	h.add(conn)
	defer h.remove(conn)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
