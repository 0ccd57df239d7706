package websocket

import (
	"bytes"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait       = 10 * time.Second
	defaultPongWait = 60 * time.Second
	maxMessageSize  = 512
)

// Timing controls the keepalive cadence of a client connection. Zero
// values fall back to defaults; PingPeriod must stay below PongWait or
// the peer times out between pings.
type Timing struct {
	PingPeriod time.Duration
	PongWait   time.Duration
}

func (t Timing) withDefaults() Timing {
	if t.PongWait <= 0 {
		t.PongWait = defaultPongWait
	}
	if t.PingPeriod <= 0 || t.PingPeriod >= t.PongWait {
		t.PingPeriod = t.PongWait * 9 / 10
	}
	return t
}

var (
	newline = []byte{'\n'}
	space   = []byte{' '}
)

// Connection abstracts the underlying websocket connection so the pumps
// can be tested without a network.
type Connection interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(string) error)
	Close() error
}

// Client is the middleman between one websocket connection and the hub.
type Client struct {
	hub  *Hub
	conn Connection
	send chan []byte

	id          string
	username    string
	connectedAt time.Time
	timing      Timing
	logger      *slog.Logger
}

// NewClient creates a client for an authenticated user's connection.
func NewClient(hub *Hub, conn Connection, username string, timing Timing, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.New().String()
	return &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, 256),
		id:          id,
		username:    username,
		connectedAt: time.Now(),
		timing:      timing.withDefaults(),
		logger: logger.With(
			slog.String("component", "websocket.client"),
			slog.String("client_id", id)),
	}
}

// ReadPump pumps messages from the connection to the hub. Incoming
// traffic is limited to heartbeats; anything else is ignored.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.timing.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.timing.PongWait))
		return nil
	})
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("unexpected close", slog.String("error", err.Error()))
			}
			break
		}
		message = bytes.TrimSpace(bytes.Replace(message, newline, space, -1))
		if string(message) == `{"type":"heartbeat"}` {
			continue
		}
	}
}

// WritePump pumps messages from the hub to the connection and keeps it
// alive with periodic pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.timing.PingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Error("write failed", slog.String("error", err.Error()))
				return
			}

			// Drain anything queued behind the first message.
			n := len(c.send)
			for i := 0; i < n; i++ {
				msg := <-c.send
				c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					c.logger.Error("write failed", slog.String("error", err.Error()))
					return
				}
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWS registers an upgraded connection with the hub and starts its
// read and write pumps.
func ServeWS(hub *Hub, conn *websocket.Conn, username string, timing Timing, logger *slog.Logger) {
	client := NewClient(hub, conn, username, timing, logger)
	hub.register <- client

	go client.WritePump()
	go client.ReadPump()
}
