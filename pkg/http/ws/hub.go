package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	writeWait  = 10 * time.Second
	readLimit  = 4096
)

// Hub tracks live connections grouped by quiz session.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]map[*Connection]struct{}
	logger   zerolog.Logger
}

// NewHub creates a new WebSocket hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		sessions: make(map[string]map[*Connection]struct{}),
		logger:   logger,
	}
}

// Register adds a connection to a session group.
func (h *Hub) Register(sessionID string, conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	group, ok := h.sessions[sessionID]
	if !ok {
		group = make(map[*Connection]struct{})
		h.sessions[sessionID] = group
	}
	group[conn] = struct{}{}
	h.logger.Debug().Str("session_id", sessionID).Int("connections", len(group)).Msg("connection registered")
}

// Unregister removes a connection and closes it.
func (h *Hub) Unregister(sessionID string, conn *Connection) {
	h.mu.Lock()
	if group, ok := h.sessions[sessionID]; ok {
		delete(group, conn)
		if len(group) == 0 {
			delete(h.sessions, sessionID)
		}
	}
	h.mu.Unlock()

	conn.Close()
}

// Count returns the number of live connections for a session.
func (h *Hub) Count(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}

// Broadcast queues v on every connection of a session and returns how many accepted it.
func (h *Hub) Broadcast(sessionID string, v interface{}) int {
	delivered := 0
	for _, conn := range h.snapshot(sessionID) {
		if err := conn.Send(v); err != nil {
			h.logger.Debug().Err(err).Str("session_id", sessionID).Msg("broadcast send failed")
			continue
		}
		delivered++
	}
	return delivered
}

// CloseSession sends a close frame to every connection of a session and forgets them.
func (h *Hub) CloseSession(sessionID string, code int, reason string) {
	h.mu.Lock()
	group := h.sessions[sessionID]
	delete(h.sessions, sessionID)
	h.mu.Unlock()

	for conn := range group {
		conn.CloseWith(code, reason)
	}
}

func (h *Hub) snapshot(sessionID string) []*Connection {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]*Connection, 0, len(h.sessions[sessionID]))
	for conn := range h.sessions[sessionID] {
		out = append(out, conn)
	}
	return out
}

type outbound struct {
	payload     interface{}
	closeCode   int
	closeReason string
}

// Connection is a WebSocket connection with a buffered send queue drained by WritePump.
type Connection struct {
	conn   *websocket.Conn
	sendCh chan outbound
	mu     sync.Mutex
	closed bool
	logger zerolog.Logger
}

// NewConnection wraps a WebSocket connection.
func NewConnection(conn *websocket.Conn, logger zerolog.Logger) *Connection {
	return &Connection{
		conn:   conn,
		sendCh: make(chan outbound, 32),
		logger: logger,
	}
}

// Send queues a JSON frame for delivery.
func (c *Connection) Send(v interface{}) error {
	return c.enqueue(outbound{payload: v})
}

// CloseWith queues a close frame after any pending frames. Later sends fail.
func (c *Connection) CloseWith(code int, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	select {
	case c.sendCh <- outbound{closeCode: code, closeReason: reason}:
	default:
	}
	c.closed = true
	close(c.sendCh)
}

func (c *Connection) enqueue(msg outbound) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrConnectionClosed
	}

	select {
	case c.sendCh <- msg:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// Close shuts down the send queue; WritePump then closes the socket.
func (c *Connection) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.sendCh)
}

// WritePump sends queued frames and keeps the connection alive with pings.
func (c *Connection) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.sendCh:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if msg.closeCode != 0 {
				frame := websocket.FormatCloseMessage(msg.closeCode, msg.closeReason)
				_ = c.conn.WriteMessage(websocket.CloseMessage, frame)
				return
			}
			if err := c.conn.WriteJSON(msg.payload); err != nil {
				c.logger.Warn().Err(err).Msg("write error")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ReadPump receives frames and calls the handler until the peer goes away.
func (c *Connection) ReadPump(handler func(json.RawMessage) error) {
	c.conn.SetReadLimit(readLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn().Err(err).Msg("read error")
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		if err := handler(raw); err != nil {
			c.logger.Warn().Err(err).Msg("message handler error")
		}
	}
}

var (
	ErrConnectionClosed = &Error{Code: "connection_closed", Message: "Connection is closed"}
	ErrSendQueueFull    = &Error{Code: "send_queue_full", Message: "Send queue is full"}
)

type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}
