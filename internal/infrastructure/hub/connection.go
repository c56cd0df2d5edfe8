package hub

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"refresh-notify/internal/infrastructure/logger"
)

// Connection is one open streaming channel to a single client instance.
// A subscriber with several tabs or devices holds several connections.
type Connection interface {
	// ID is the process-unique identifier assigned at registration.
	ID() uint64
	Transport() string
	// Send writes one serialized event as a single discrete frame.
	Send(ctx context.Context, payload []byte) error
	// KeepAlive writes a no-op frame that clients ignore as content.
	KeepAlive(ctx context.Context) error
	Close() error
	IsClosed() bool
	// Context is cancelled when the connection closes, letting the hub
	// deregister it promptly.
	Context() context.Context
}

// SSEConnection streams events to one browser tab over Server-Sent Events.
type SSEConnection struct {
	id     uint64
	writer http.ResponseWriter
	flush  http.Flusher

	ctx    context.Context
	cancel context.CancelFunc

	writeMu      sync.Mutex
	writeTimeout time.Duration

	closed   bool
	closedMu sync.RWMutex

	logger logger.Logger
}

// NewSSEConnection wraps a response writer into a connection. The writer
// must support flushing; callers obtain one from a live SSE request.
func NewSSEConnection(
	ctx context.Context,
	id uint64,
	w http.ResponseWriter,
	writeTimeout time.Duration,
	log logger.Logger,
) (*SSEConnection, error) {
	flush, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support flushing")
	}

	cctx, cancel := context.WithCancel(ctx)
	return &SSEConnection{
		id:           id,
		writer:       w,
		flush:        flush,
		ctx:          cctx,
		cancel:       cancel,
		writeTimeout: writeTimeout,
		logger:       log.WithField("connection_id", id),
	}, nil
}

func (c *SSEConnection) ID() uint64        { return c.id }
func (c *SSEConnection) Transport() string { return "sse" }

// Send frames the payload as a single `data:` line followed by a blank
// line, so the client parser treats each write as one complete event.
func (c *SSEConnection) Send(ctx context.Context, payload []byte) error {
	frame := make([]byte, 0, len(payload)+8)
	frame = append(frame, "data: "...)
	frame = append(frame, payload...)
	frame = append(frame, "\n\n"...)
	return c.writeFrame(ctx, frame)
}

// KeepAlive writes a comment frame. Intermediary proxies see traffic, the
// client parser discards it.
func (c *SSEConnection) KeepAlive(ctx context.Context) error {
	return c.writeFrame(ctx, []byte(": keep-alive\n\n"))
}

func (c *SSEConnection) writeFrame(ctx context.Context, frame []byte) error {
	if c.IsClosed() {
		return fmt.Errorf("connection %d is closed", c.id)
	}

	// The write runs in its own goroutine so a stalled client cannot block
	// delivery to the subscriber's other connections.
	done := make(chan error, 1)
	go func() {
		c.writeMu.Lock()
		defer c.writeMu.Unlock()

		if _, err := c.writer.Write(frame); err != nil {
			done <- err
			return
		}
		c.flush.Flush()
		done <- nil
	}()

	select {
	case err := <-done:
		if err != nil {
			c.logger.Debugf("write failed: %v", err)
			c.Close()
			return err
		}
		return nil

	case <-ctx.Done():
		return ctx.Err()

	case <-c.ctx.Done():
		return fmt.Errorf("connection %d is closed", c.id)

	case <-time.After(c.writeTimeout):
		c.logger.Warnf("write timed out after %v", c.writeTimeout)
		c.Close()
		return fmt.Errorf("write timeout")
	}
}

func (c *SSEConnection) Close() error {
	c.closedMu.Lock()
	defer c.closedMu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.cancel()
	return nil
}

func (c *SSEConnection) IsClosed() bool {
	c.closedMu.RLock()
	defer c.closedMu.RUnlock()
	return c.closed
}

func (c *SSEConnection) Context() context.Context {
	return c.ctx
}

// WebSocketConnection carries the same event stream over a WebSocket, for
// clients behind proxies that buffer SSE responses.
type WebSocketConnection struct {
	id   uint64
	conn *websocket.Conn

	ctx    context.Context
	cancel context.CancelFunc

	send chan []byte

	closed   bool
	closedMu sync.RWMutex

	writeTimeout time.Duration

	logger logger.Logger
}

const wsSendBuffer = 16

func NewWebSocketConnection(
	ctx context.Context,
	id uint64,
	conn *websocket.Conn,
	writeTimeout time.Duration,
	log logger.Logger,
) *WebSocketConnection {
	cctx, cancel := context.WithCancel(ctx)
	c := &WebSocketConnection{
		id:           id,
		conn:         conn,
		ctx:          cctx,
		cancel:       cancel,
		send:         make(chan []byte, wsSendBuffer),
		writeTimeout: writeTimeout,
		logger:       log.WithField("connection_id", id),
	}

	go c.writePump()
	go c.readPump()

	return c
}

func (c *WebSocketConnection) ID() uint64        { return c.id }
func (c *WebSocketConnection) Transport() string { return "websocket" }

// Send enqueues one event as one text message. A full buffer means the
// client has stopped reading; it is treated as a write failure so the hub
// prunes the connection rather than letting it stall delivery.
func (c *WebSocketConnection) Send(ctx context.Context, payload []byte) error {
	if c.IsClosed() {
		return fmt.Errorf("connection %d is closed", c.id)
	}

	select {
	case c.send <- payload:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.ctx.Done():
		return fmt.Errorf("connection %d is closed", c.id)
	default:
		c.logger.Warn("send buffer full, dropping slow client")
		c.Close()
		return fmt.Errorf("send buffer full")
	}
}

// KeepAlive sends a ping control frame. WriteControl is safe to call
// concurrently with the write pump.
func (c *WebSocketConnection) KeepAlive(_ context.Context) error {
	if c.IsClosed() {
		return fmt.Errorf("connection %d is closed", c.id)
	}

	deadline := time.Now().Add(c.writeTimeout)
	if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
		c.Close()
		return err
	}
	return nil
}

func (c *WebSocketConnection) Close() error {
	c.closedMu.Lock()
	defer c.closedMu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.cancel()

	_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	_ = c.conn.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
	)
	return c.conn.Close()
}

func (c *WebSocketConnection) IsClosed() bool {
	c.closedMu.RLock()
	defer c.closedMu.RUnlock()
	return c.closed
}

func (c *WebSocketConnection) Context() context.Context {
	return c.ctx
}

func (c *WebSocketConnection) writePump() {
	for {
		select {
		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.logger.Debugf("write failed: %v", err)
				c.Close()
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

// readPump drains and discards client frames. The notification stream is
// one-way; reading is only needed to notice disconnects and answer pings.
func (c *WebSocketConnection) readPump() {
	defer c.Close()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(
				err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure,
				websocket.CloseAbnormalClosure,
			) {
				c.logger.Debugf("read failed: %v", err)
			}
			return
		}
	}
}
