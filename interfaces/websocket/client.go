package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"askingwho-backend/application/ports"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 4 * 1024

	sendBufferSize = 64
)

// Client is one websocket connection. It receives events only after it has
// joined its own member channel.
type Client struct {
	id     string
	userID string // authenticated member
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	logger *zap.Logger

	mu     sync.Mutex
	joined bool
	closed bool
}

// NewClient creates a client for an authenticated connection
func NewClient(userID string, hub *Hub, conn *websocket.Conn, logger *zap.Logger) *Client {
	id := uuid.NewString()
	return &Client{
		id:     id,
		userID: userID,
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		logger: logger.With(
			zap.String("userID", userID),
			zap.String("connectionID", id),
		),
	}
}

// Start begins the client's read and write pumps
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.close()
		c.logger.Debug("Read pump stopped")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("WebSocket read error", zap.Error(err))
			}
			return
		}
		if messageType != websocket.TextMessage {
			c.logger.Debug("Binary messages not supported")
			continue
		}
		c.handleTextMessage(message)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Debug("Failed to write message", zap.Error(err))
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

func (c *Client) handleTextMessage(message []byte) {
	var in Envelope
	if err := json.Unmarshal(message, &in); err != nil {
		c.reply(ports.EventError, map[string]string{"message": "malformed frame"})
		return
	}

	switch in.Event {
	case ports.EventJoin:
		c.handleJoin(in.UserID)
	default:
		c.logger.Debug("Ignoring client event", zap.String("event", in.Event))
	}
}

func (c *Client) handleJoin(userID string) {
	if userID == "" || userID != c.userID {
		c.logger.Warn("Rejected join for another member", zap.String("requestedUserID", userID))
		c.reply(ports.EventError, map[string]string{"message": "you can only join your own channel"})
		return
	}
	if err := c.hub.join(c, userID); err != nil {
		c.reply(ports.EventError, map[string]string{"message": err.Error()})
		return
	}

	c.mu.Lock()
	c.joined = true
	c.mu.Unlock()
	c.reply(ports.EventJoin, map[string]string{"userId": userID})
}

func (c *Client) reply(event string, data interface{}) {
	frame, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		return
	}
	c.enqueue(frame)
}

// enqueue queues a frame without blocking. It reports false when the client
// is closed or its buffer is full.
func (c *Client) enqueue(frame []byte) bool {
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

// close leaves the hub and stops the write pump. It is safe to call twice.
func (c *Client) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	joined := c.joined
	close(c.send)
	c.mu.Unlock()

	if joined {
		c.hub.leave(c, c.userID)
	}
}
