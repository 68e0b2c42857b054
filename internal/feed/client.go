package feed

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// client is one connected WebSocket peer.
type client struct {
	hub    *Hub
	conn   *websocket.Conn
	remote string

	send chan []byte
	done chan struct{}
	once sync.Once
}

func newClient(h *Hub, conn *websocket.Conn, remote string) *client {
	return &client{
		hub:    h,
		conn:   conn,
		remote: remote,
		send:   make(chan []byte, h.cfg.SendBuffer),
		done:   make(chan struct{}),
	}
}

// enqueue never blocks; a full queue drops the message.
func (c *client) enqueue(msg []byte) {
	select {
	case <-c.done:
		return
	default:
	}

	select {
	case c.send <- msg:
	default:
		c.hub.dropped.Add(1)
		c.hub.logger.Warn("feed client buffer full, dropping message",
			"remote", c.remote,
		)
	}
}

// close sends a close frame and tears the connection down. Safe to call
// more than once.
func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		c.conn.Close()
	})
}

// readLoop discards client input and returns once the connection is gone.
// It keeps the read deadline moving while pongs arrive.
func (c *client) readLoop() {
	pongWait := 2 * c.hub.cfg.PingInterval

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.hub.logger.Debug("feed client read error", "error", err)
			}
			return
		}
	}
}

// writeLoop is the only writer of data frames on the connection.
func (c *client) writeLoop() {
	ticker := time.NewTicker(c.hub.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return

		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.hub.logger.Debug("feed write failed", "error", err)
				c.close()
				return
			}
			c.hub.sent.Add(1)

		case <-ticker.C:
			deadline := time.Now().Add(c.hub.cfg.WriteTimeout)
			if err := c.conn.WriteControl(websocket.PingMessage, []byte("keepalive"), deadline); err != nil {
				c.hub.logger.Debug("failed to send ping", "error", err)
				c.close()
				return
			}
		}
	}
}
