package ws

import (
	"sync"
	"time"

	"github.com/zanphear/planview/internal/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 25 * time.Second

	DefaultSendBuffer = 256
)

// Client is a websocket subscriber of one workspace.
type Client struct {
	UserID      uuid.UUID
	WorkspaceID uuid.UUID
	Conn        *websocket.Conn

	hub       *Hub
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func NewClient(userID, workspaceID uuid.UUID, conn *websocket.Conn, hub *Hub, buffer int) *Client {
	if buffer <= 0 {
		buffer = DefaultSendBuffer
	}
	return &Client{
		UserID:      userID,
		WorkspaceID: workspaceID,
		Conn:        conn,
		hub:         hub,
		send:        make(chan []byte, buffer),
		done:        make(chan struct{}),
	}
}

// Deliver implements Subscriber.
func (c *Client) Deliver(msg []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// Close implements Subscriber. The write pump sends a close frame and
// releases the connection.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Run registers the client and blocks until the connection goes away.
func (c *Client) Run() {
	if err := c.hub.Register(c.WorkspaceID, c); err != nil {
		logger.Warn("ws register failed", "user_id", c.UserID, "error", err)
		_ = c.Conn.Close()
		return
	}
	go c.writePump()

	if msg, err := encode(Envelope{Type: MsgReady, Data: ReadyPayload{
		WorkspaceID: c.WorkspaceID.String(),
		UserID:      c.UserID.String(),
	}}); err == nil {
		c.Deliver(msg)
	}

	c.readPump()
}

// readPump only services control frames; subscribers never send events.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c.WorkspaceID, c)
		c.Close()
	}()

	c.Conn.SetReadLimit(4096)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("ws read error", "user_id", c.UserID, "error", err)
			}
			return
		}
		if msg, err := encode(Envelope{Type: MsgError, Data: ErrorPayload{Message: "stream is read-only"}}); err == nil {
			c.Deliver(msg)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				logger.Debug("ws write error", "user_id", c.UserID, "error", err)
				c.Close()
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}

		case <-c.done:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
