package hub

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"

	"studio-session/internal/log"
)

// SendBuffer is how many frames may wait for a slow tab before the hub gives
// up on it.
const SendBuffer = 32

type Writer interface {
	Write(message []byte) error
	Close() error
}

// Connection is one open tab of a user. Frames are queued and written by the
// connection's own goroutine, so a stalled socket never blocks the sender.
type Connection struct {
	ID     string
	UserID string
	Writer Writer

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func NewConnection(userID string, w Writer) *Connection {
	return &Connection{
		ID:     uuid.NewString(),
		UserID: userID,
		Writer: w,
		send:   make(chan []byte, SendBuffer),
		done:   make(chan struct{}),
	}
}

func (c *Connection) stop() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Frame is the envelope pushed to every tab of a user.
type Frame struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Body  any    `json:"body,omitempty"`
}

type Hub struct {
	mu          sync.RWMutex
	connections map[string]map[*Connection]struct{}
}

func New() *Hub {
	return &Hub{connections: make(map[string]map[*Connection]struct{})}
}

// Register adds conn and starts its writer.
func (h *Hub) Register(conn *Connection) {
	h.mu.Lock()
	if h.connections[conn.UserID] == nil {
		h.connections[conn.UserID] = make(map[*Connection]struct{})
	}
	h.connections[conn.UserID][conn] = struct{}{}
	h.mu.Unlock()

	go h.writeLoop(conn)
}

func (h *Hub) Unregister(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conn.stop()
	set := h.connections[conn.UserID]
	if set == nil {
		return
	}
	delete(set, conn)
	if len(set) == 0 {
		delete(h.connections, conn.UserID)
	}
}

func (h *Hub) Count(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections[userID])
}

func (h *Hub) writeLoop(conn *Connection) {
	for {
		select {
		case <-conn.done:
			return
		case msg := <-conn.send:
			if err := conn.Writer.Write(msg); err != nil {
				h.drop(conn, "write failed")
				return
			}
		}
	}
}

func (h *Hub) drop(conn *Connection, reason string) {
	log.Debug().Str("user", conn.UserID).Str("conn", conn.ID).Str("reason", reason).Msg("hub: dropping connection")
	h.Unregister(conn)
	_ = conn.Writer.Close()
}

// Send queues message for conn without blocking. A connection whose queue is
// full is dropped and false is returned.
func (h *Hub) Send(conn *Connection, message []byte) bool {
	select {
	case <-conn.done:
		return false
	default:
	}
	select {
	case conn.send <- message:
		return true
	default:
		h.drop(conn, "send buffer full")
		return false
	}
}

func (h *Hub) Broadcast(userID string, message []byte) {
	h.mu.RLock()
	set := h.connections[userID]
	conns := make([]*Connection, 0, len(set))
	for c := range set {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		h.Send(c, message)
	}
}

// Notify sends a session event frame to every tab of userID.
func (h *Hub) Notify(userID, event string, body any) {
	msg, err := json.Marshal(Frame{Type: "session", Event: event, Body: body})
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("hub: encode frame")
		return
	}
	h.Broadcast(userID, msg)
}
