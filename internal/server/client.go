// Package server manages individual WebSocket clients, handling read/write
// pumps, rate limiting, and lifecycle control for each connection.
package server

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Tyrowin/signalrelay/internal/relay"
)

// Client is one WebSocket connection to the relay. It implements relay.Peer:
// the hub queues frames through Send and the write pump drains them.
type Client struct {
	conn           *websocket.Conn
	send           chan []byte
	hub            *relay.Hub
	addr           string
	log            *zap.Logger
	observer       relay.Observer
	maxMessageSize int64
	limiter        *tokenBucket
	rateLimit      RateLimitConfig

	mu     sync.Mutex
	closed bool
	id     string
}

// NewClient creates a new Client for conn. The send channel is buffered so
// the hub never waits on a slow peer.
func NewClient(conn *websocket.Conn, hub *relay.Hub, addr string, cfg Config, log *zap.Logger, observer relay.Observer) *Client {
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}
	if log == nil {
		log = zap.NewNop()
	}
	if observer == nil {
		observer = relay.NopObserver{}
	}
	sendBuffer := cfg.SendBuffer
	if sendBuffer <= 0 {
		sendBuffer = defaultSendBuffer
	}

	return &Client{
		conn:           conn,
		send:           make(chan []byte, sendBuffer),
		hub:            hub,
		addr:           addr,
		log:            log.With(zap.String("addr", addr)),
		observer:       observer,
		maxMessageSize: cfg.MaxMessageSize,
		limiter:        newTokenBucket(cfg.RateLimit, observer),
		rateLimit:      cfg.RateLimit,
	}
}

// GetSendChan returns the client's send channel for reading outgoing messages.
func (c *Client) GetSendChan() <-chan []byte {
	return c.send
}

// ID returns the session identifier, or "" before the client has joined.
func (c *Client) ID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id
}

// Send queues payload without blocking. It returns false once the client is
// closed or when its buffer is full.
func (c *Client) Send(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}

	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// Close closes the underlying connection; the read pump then leaves the hub.
func (c *Client) Close() error {
	if c.conn == nil {
		c.stopSending()
		return nil
	}
	err := c.conn.Close()
	if isExpectedCloseError(err) {
		return nil
	}
	return err
}

// stopSending marks the client closed and ends the write pump.
func (c *Client) stopSending() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// setupReadConnection configures read deadlines and pong handler for the WebSocket connection
func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.log.Warn("Error setting initial read deadline", zap.Error(err))
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			c.log.Warn("Error setting read deadline in pong handler", zap.Error(err))
		}
		return nil
	})
}

// logReadError logs why the read loop is ending.
func (c *Client) logReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.log.Warn("Message exceeded maximum size", zap.Int64("limit", c.maxMessageSize))
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		c.log.Debug("Client closed connection", zap.Error(err))
	case errors.Is(err, io.EOF) || isExpectedCloseError(err):
		c.log.Debug("Connection closed", zap.Error(err))
	case websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseMessageTooBig):
		c.log.Warn("Unexpected WebSocket close", zap.Error(err))
	default:
		c.log.Warn("WebSocket read error", zap.Error(err))
	}
}

// checkRateLimit reports whether the next frame may be processed.
func (c *Client) checkRateLimit() bool {
	if c.limiter != nil && !c.limiter.take() {
		c.log.Warn("Rate limit exceeded; discarding message",
			zap.Int("burst", c.rateLimit.Burst),
			zap.Duration("interval", c.rateLimit.RefillInterval))
		return false
	}
	return true
}

// processMessage hands a frame to the hub. Malformed frames are logged and
// discarded; the connection stays open.
func (c *Client) processMessage(rawMessage []byte) {
	if err := c.hub.Dispatch(c, rawMessage); err != nil {
		c.log.Warn("Discarding malformed message", zap.String("id", c.ID()), zap.Error(err))
	}
}

// readPump drives the connection lifecycle: join on open, dispatch every
// inbound frame, leave on close.
func (c *Client) readPump() {
	joined := false
	defer func() {
		if joined {
			c.hub.Leave(c)
		}
		c.stopSending()
		c.closeConnection()
	}()

	record, err := c.hub.Join(c, c.addr)
	if err != nil {
		c.log.Error("Failed to register client", zap.Error(err))
		return
	}
	joined = true
	c.mu.Lock()
	c.id = record.ID
	c.mu.Unlock()

	c.setupReadConnection()

	for {
		messageType, rawMessage, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return
		}
		if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
			continue
		}

		if !c.checkRateLimit() {
			continue
		}

		c.processMessage(rawMessage)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.closeConnection()
	}()

	for c.processWriteEvent(ticker) {
	}
}

// processWriteEvent waits for the next write event and returns false when the
// pump should stop processing.
func (c *Client) processWriteEvent(ticker *time.Ticker) bool {
	select {
	case message, ok := <-c.send:
		return c.handleMessage(message, ok)
	case <-ticker.C:
		return c.handlePing()
	}
}

// closeConnection safely closes the WebSocket connection with proper error handling
func (c *Client) closeConnection() {
	if err := c.conn.Close(); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Debug("Error closing connection", zap.Error(err))
		}
	}
}

// handleMessage writes one outgoing frame and returns false if the connection should be closed
func (c *Client) handleMessage(message []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.log.Debug("Error setting write deadline", zap.Error(err))
		return false
	}

	if !ok {
		return c.writeCloseMessage()
	}

	return c.writeTextMessage(message)
}

// writeCloseMessage sends a close message to the client
func (c *Client) writeCloseMessage() bool {
	if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Debug("Error writing close message", zap.Error(err))
		}
	}
	return false
}

// writeTextMessage writes message as a single text frame. Frames are never
// coalesced; each one is a complete JSON document.
func (c *Client) writeTextMessage(message []byte) bool {
	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Warn("Error writing message", zap.Error(err))
		}
		return false
	}
	return true
}

// handlePing sends a ping message to keep the connection alive
func (c *Client) handlePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.log.Debug("Error setting write deadline for ping", zap.Error(err))
		return false
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.log.Debug("Error writing ping message", zap.Error(err))
		return false
	}
	return true
}
