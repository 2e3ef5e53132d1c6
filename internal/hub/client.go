package hub

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512

	// Buffer size for outbound messages
	sendBufferSize = 16
)

// Client represents a WebSocket client connection
type Client struct {
	ID   string
	conn *websocket.Conn
	send chan ServerMessage
	hub  *Hub
	log  *zap.Logger

	sports   map[string]bool
	filterMu sync.RWMutex

	sendMu sync.Mutex
	closed bool

	connectedAt      time.Time
	messagesSent     int64
	messagesReceived int64
	mu               sync.Mutex
}

func newClient(id string, conn *websocket.Conn, hub *Hub) *Client {
	return &Client{
		ID:          id,
		conn:        conn,
		send:        make(chan ServerMessage, sendBufferSize),
		hub:         hub,
		log:         hub.log.With(zap.String("client_id", id)),
		connectedAt: time.Now(),
	}
}

// readPump handles client messages until the connection drops
func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if ctx.Err() != nil {
			return
		}

		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Debug("unexpected close", zap.Error(err))
			}
			return
		}

		c.mu.Lock()
		c.messagesReceived++
		c.mu.Unlock()

		c.handleClientMessage(msg)
	}
}

// writePump drains the send buffer to the connection and keeps it alive with pings
func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				c.log.Debug("write failed", zap.Error(err))
				return
			}

			c.mu.Lock()
			c.messagesSent++
			c.mu.Unlock()

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// trySend queues a message without blocking; false means the buffer is full or closed
func (c *Client) trySend(msg ServerMessage) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// closeSend closes the outbound channel once, which ends writePump
func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// Subscribe limits the client to the given sports; no sports means all of them
func (c *Client) Subscribe(sports []string) {
	c.filterMu.Lock()
	defer c.filterMu.Unlock()

	if len(sports) == 0 {
		c.sports = nil
		return
	}
	c.sports = make(map[string]bool, len(sports))
	for _, s := range sports {
		c.sports[s] = true
	}
}

// Wants reports whether the client's subscription includes the sport
func (c *Client) Wants(sport string) bool {
	c.filterMu.RLock()
	defer c.filterMu.RUnlock()
	return len(c.sports) == 0 || c.sports[sport]
}

// Stats returns connection statistics
func (c *Client) Stats() ConnectionStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return ConnectionStats{
		ClientID:         c.ID,
		ConnectedAt:      c.connectedAt,
		MessagesSent:     c.messagesSent,
		MessagesReceived: c.messagesReceived,
	}
}

func (c *Client) handleClientMessage(msg ClientMessage) {
	switch msg.Type {
	case MessageTypeSubscribe:
		c.Subscribe(msg.Sports)
		c.log.Debug("subscribed", zap.Strings("sports", msg.Sports))
	case MessageTypeUnsubscribe:
		c.Subscribe(nil)
	case MessageTypeHeartbeat:
		c.trySend(ServerMessage{
			Type:      MessageTypeHeartbeat,
			Payload:   c.Stats(),
			Timestamp: time.Now().UTC(),
		})
	default:
		c.trySend(ServerMessage{
			Type: MessageTypeError,
			Payload: ErrorMessage{
				Code:    "unknown_message_type",
				Message: fmt.Sprintf("unknown message type: %s", msg.Type),
			},
			Timestamp: time.Now().UTC(),
		})
	}
}
