package chatserver

import (
	"context"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/Vovarama1992/shop-chat/internal/identity"
	"github.com/Vovarama1992/shop-chat/internal/transport"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = (pongWait * 9) / 10
	maxFrameSize = 512 * 1024
)

// Client is the hub's side of one socket connection.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan transport.Frame

	mu      sync.Mutex
	actorID string
	role    identity.Role
	closed  bool
}

func newClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		send: make(chan transport.Frame, 256),
	}
}

// Role returns the role the client announced with its join event.
func (c *Client) Role() identity.Role {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.role
}

func (c *Client) setIdentity(id string, role identity.Role) {
	c.mu.Lock()
	c.actorID = id
	c.role = role
	c.mu.Unlock()
}

// trySend queues a frame for the write pump. False means the client is
// gone or its buffer is full; either way the frame is dropped.
func (c *Client) trySend(frame transport.Frame) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// closeSend shuts the send channel exactly once. The mutex keeps it
// ordered against in-flight trySend calls.
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) start() {
	go c.writePump()
	go c.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxFrameSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var frame transport.Frame
		if err := c.conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.Warn().Err(err).Msg("socket read failed")
			}
			return
		}
		c.handleFrame(frame)
	}
}

func (c *Client) handleFrame(frame transport.Frame) {
	switch frame.Event {
	case transport.EventJoin:
		var p transport.JoinPayload
		if err := json.Unmarshal(frame.Data, &p); err != nil || p.UserID == "" {
			return
		}
		c.setIdentity(p.UserID, identity.Role(p.Role))

	case transport.EventJoinChat:
		var p transport.JoinChatPayload
		if err := json.Unmarshal(frame.Data, &p); err != nil {
			return
		}
		c.hub.joinChat(c, p.ChatID)

	case transport.EventLeaveChat:
		var p transport.LeaveChatPayload
		if err := json.Unmarshal(frame.Data, &p); err != nil {
			return
		}
		c.hub.leaveChat(c, p.ChatID)

	case transport.EventSendMessage:
		var p transport.SendMessagePayload
		if err := json.Unmarshal(frame.Data, &p); err != nil {
			return
		}
		c.hub.handleSend(context.Background(), p)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(frame); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
