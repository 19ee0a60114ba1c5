package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/satriahrh/cocoa-fruit/haggle/utils/log"
)

// Frame is the envelope for every server-to-client message.
type Frame struct {
	Type      string      `json:"type"`
	SessionID string      `json:"session_id"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

const (
	FrameWelcome = "welcome"
	FrameReply   = "reply"
	FrameSummary = "summary"
	FrameError   = "error"
)

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 8 * 1024
	// turnQueueSize caps messages waiting behind the turn in progress.
	turnQueueSize = 8
)

var (
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// MessageHandler is called for every text message the buyer sends, one at a time,
// off the read loop.
type MessageHandler func(ctx context.Context, c *Client, text string)

type Client struct {
	conn      *websocket.Conn
	send      chan []byte
	turns     chan string
	sessionID string
	onMessage MessageHandler
	ctx       context.Context
	cancel    context.CancelFunc
	mu        sync.RWMutex
	closed    bool
}

// NewClient creates a client bound to one negotiation session
func NewClient(ctx context.Context, conn *websocket.Conn, sessionID string, onMessage MessageHandler) *Client {
	ctx, cancel := context.WithCancel(log.WithSession(ctx, sessionID))
	return &Client{
		conn:      conn,
		send:      make(chan []byte, 64),
		turns:     make(chan string, turnQueueSize),
		sessionID: sessionID,
		onMessage: onMessage,
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (c *Client) Run() {
	c.setupHandlers()

	go c.readPump()
	go c.writePump()
	go c.turnPump()
}

func (c *Client) setupHandlers() {
	c.conn.SetCloseHandler(func(code int, text string) error {
		log.WithCtx(c.ctx).Debug("WebSocket connection closed", zap.Int("code", code), zap.String("text", text))
		c.Close()
		return nil
	})

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
}

// Close gracefully closes the client connection
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.cancel()
	c.conn.Close()
	close(c.send)
}

func (c *Client) IsClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

func (c *Client) Context() context.Context {
	return c.ctx
}

func (c *Client) SessionID() string {
	return c.sessionID
}

// readPump delivers buyer messages to the handler in arrival order.
func (c *Client) readPump() {
	defer c.Close()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		msgType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.WithCtx(c.ctx).Error("WebSocket error", zap.Error(err))
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		select {
		case c.turns <- decodeText(message):
		default:
			c.SendFrame(FrameError, ErrorResponse{Code: "busy", Message: "Still working on your earlier messages. Please wait for a reply."})
		}
	}
}

// turnPump runs queued messages one at a time, so a slow turn never stalls the
// reader and pongs keep extending the read deadline.
func (c *Client) turnPump() {
	for {
		select {
		case text := <-c.turns:
			c.onMessage(c.ctx, c, text)
		case <-c.ctx.Done():
			return
		}
	}
}

// decodeText accepts either {"text": "..."} or the bare message.
func decodeText(message []byte) string {
	var in struct {
		Text *string `json:"text"`
	}
	if err := json.Unmarshal(message, &in); err == nil && in.Text != nil {
		return *in.Text
	}
	return string(message)
}

// writePump owns all writes to the connection, pings included.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
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
				log.WithCtx(c.ctx).Error("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.WithCtx(c.ctx).Debug("Failed to send ping", zap.Error(err))
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// SendFrame queues a frame for the client
func (c *Client) SendFrame(frameType string, data interface{}) error {
	payload, err := json.Marshal(Frame{
		Type:      frameType,
		SessionID: c.sessionID,
		Timestamp: time.Now().UTC(),
		Data:      data,
	})
	if err != nil {
		return err
	}
	return c.SendMessage(payload)
}

// SendMessage sends a message to the client safely
func (c *Client) SendMessage(message []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return websocket.ErrCloseSent
	}

	select {
	case c.send <- message:
		return nil
	default:
		// Buffer full: the reader is gone or hopelessly behind.
		go c.Close()
		return websocket.ErrCloseSent
	}
}
