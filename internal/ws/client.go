package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/capitalize-ai/chat-platform/pkg/logger"
)

const (
	// writeWait is the deadline for a single write to the peer.
	writeWait = 10 * time.Second

	// pongWait is how long to wait for a pong before dropping the peer.
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

// Client is one live WebSocket connection, bound to a single authenticated
// identity for its lifetime. A connection belongs to zero or more rooms; the
// hub tracks admissions, the presence registry tracks liveness.
type Client struct {
	id     string
	userID string

	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	server *Server
	logger *logger.Logger

	closeOnce sync.Once
}

// UserID returns the identity that owns the connection.
func (c *Client) UserID() string {
	return c.userID
}

// trySend queues a payload for delivery without blocking. It reports false
// when the connection is closing or its buffer is full; the event is then
// dropped for this recipient only.
func (c *Client) trySend(payload []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// shutdown signals the write pump to stop. Safe to call more than once.
func (c *Client) shutdown() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// readPump reads events from the peer and dispatches them sequentially.
// Sequential dispatch is what preserves per-sender broadcast ordering: a
// second send-message is not read until the first one has persisted and
// fanned out.
func (c *Client) readPump() {
	defer c.server.unregister(c)

	c.conn.SetReadLimit(c.server.maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure) {
				c.logger.Debug("websocket read error", zap.Error(err))
			}
			return
		}
		c.server.dispatch(c, raw)
	}
}

// writePump writes queued events to the peer and keeps the connection alive
// with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
