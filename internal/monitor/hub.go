package monitor

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gofiber/websocket/v2"

	"github.com/edgeflow/lccstack/internal/lccmsg"
)

// eventType discriminates the frames this hub broadcasts.
type eventType string

const (
	eventMessage eventType = "message"
	eventLog     eventType = "log"
)

// event is one broadcastable unit, mirroring the teacher's
// websocket.Message shape.
type event struct {
	Type      eventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// messageView is the JSON-friendly projection of an lccmsg.Message the
// live tap broadcasts; raw Message isn't itself serialization-friendly
// (NodeID/EventID are fixed-size arrays of opaque meaning to a client).
type messageView struct {
	Kind   string `json:"kind"`
	Source string `json:"source"`
	Dest   string `json:"dest,omitempty"`
}

func newMessageView(msg lccmsg.Message) messageView {
	v := messageView{Kind: msg.Kind.String(), Source: msg.Source.String()}
	if msg.Addressed() {
		v.Dest = msg.Dest.String()
	}
	return v
}

// logView is the JSON-friendly projection of one log entry the live tap
// broadcasts.
type logView struct {
	Level   string                 `json:"level"`
	Message string                 `json:"message"`
	Fields  map[string]interface{} `json:"fields,omitempty"`
}

// client is one connected websocket viewer.
type client struct {
	id   string
	conn *websocket.Conn
	send chan event
}

// hub fans decoded messages and log entries out to every connected
// monitor client. It generalizes the teacher's websocket.Hub, narrowed
// to the two event types this node's live tap emits.
type hub struct {
	mu      sync.RWMutex
	clients map[string]*client
}

func newHub() *hub {
	return &hub{clients: make(map[string]*client)}
}

func (h *hub) register(c *client) {
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
}

func (h *hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c.id]; ok {
		delete(h.clients, c.id)
		close(c.send)
	}
	h.mu.Unlock()
}

// BroadcastMessage pushes msg to every connected client's send buffer,
// dropping it for any client whose buffer is full rather than blocking.
func (h *hub) BroadcastMessage(msg lccmsg.Message) {
	ev := event{Type: eventMessage, Timestamp: time.Now(), Data: newMessageView(msg)}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		select {
		case c.send <- ev:
		default:
		}
	}
}

// BroadcastLog pushes a log entry to every connected client's send
// buffer, dropping it for any client whose buffer is full rather than
// blocking.
func (h *hub) BroadcastLog(level, message string, fields map[string]interface{}) {
	ev := event{Type: eventLog, Timestamp: time.Now(), Data: logView{Level: level, Message: message, Fields: fields}}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		select {
		case c.send <- ev:
		default:
		}
	}
}

// ClientCount returns the number of currently connected viewers.
func (h *hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// handleConn drives one websocket connection's lifetime: registers it,
// starts its writer, then reads (and discards) inbound frames until the
// connection closes, mirroring the teacher's read/write pump split.
func (h *hub) handleConn(conn *websocket.Conn) {
	c := &client{id: uuid.NewString(), conn: conn, send: make(chan event, 64)}
	h.register(c)
	go c.writePump()
	c.readPump(h)
}

func (c *client) readPump(h *hub) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case ev, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
