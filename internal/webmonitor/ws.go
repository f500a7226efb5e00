package webmonitor

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Tetra360/bolt-test/internal/logger"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 4 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsCommand is a message sent by a websocket client.
type wsCommand struct {
	Type string `json:"type"`
}

type wsClient struct {
	id     string
	conn   *websocket.Conn
	events <-chan *SerializedEvent
	direct chan []byte
	done   chan struct{}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("WebSocket", "Upgrade failed: %v", err)
		return
	}

	subID, events := s.events.Subscribe()
	client := &wsClient{
		id:     uuid.NewString(),
		conn:   conn,
		events: events,
		direct: make(chan []byte, 4),
		done:   make(chan struct{}),
	}
	logger.Info("WebSocket", "Client %s connected from %s", client.id, r.RemoteAddr)

	go func() {
		client.readPump(s)
		s.events.Unsubscribe(subID)
	}()
	client.writePump()
	logger.Info("WebSocket", "Client %s disconnected", client.id)
}

// readPump handles client commands until the connection fails.
func (c *wsClient) readPump(s *Server) {
	defer func() {
		close(c.done)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("WebSocket", "Read error from %s: %v", c.id, err)
			}
			return
		}

		var cmd wsCommand
		if err := json.Unmarshal(message, &cmd); err != nil {
			logger.Debug("WebSocket", "Ignoring malformed message from %s: %v", c.id, err)
			continue
		}

		switch cmd.Type {
		case "ping":
			c.reply(map[string]any{"type": "pong", "timestamp": time.Now()})
		case "get_state":
			if data, err := json.Marshal(s.state.StateEvent()); err == nil {
				c.queue(data)
			}
		default:
			logger.Debug("WebSocket", "Unknown command from %s: %q", c.id, cmd.Type)
		}
	}
}

func (c *wsClient) reply(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	c.queue(data)
}

func (c *wsClient) queue(data []byte) {
	select {
	case c.direct <- data:
	default:
	}
}

// writePump forwards events and replies, and keeps the connection alive with pings.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			return

		case ev, ok := <-c.events:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, ev.JSONData); err != nil {
				return
			}

		case data := <-c.direct:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
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
