package hub

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"refresh-notify/internal/infrastructure/logger"
)

const (
	// DefaultHeartbeatInterval keeps idle streams alive through proxies.
	DefaultHeartbeatInterval = 30 * time.Second
	// DefaultWriteTimeout bounds a single frame write to one client.
	DefaultWriteTimeout = 10 * time.Second
)

// Config carries the hub tunables. Zero values fall back to defaults.
type Config struct {
	HeartbeatInterval time.Duration
	WriteTimeout      time.Duration
}

// Hub owns the connection registry and manages stream lifecycles: it
// assigns connection identifiers, registers new streams, deregisters them
// on disconnect and runs the heartbeat sweep for the life of the process.
type Hub struct {
	registry  *Registry
	heartbeat *heartbeat
	logger    logger.Logger

	nextConnID atomic.Uint64

	writeTimeout time.Duration

	running   bool
	runningMu sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a hub. Start must be called before streams are accepted.
func New(cfg Config, clock clockwork.Clock, log logger.Logger) *Hub {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}

	h := &Hub{
		registry:     NewRegistry(),
		logger:       log.WithField("component", "hub"),
		writeTimeout: cfg.WriteTimeout,
	}
	h.heartbeat = newHeartbeat(h, cfg.HeartbeatInterval, clock, log)
	return h
}

// Start begins accepting streams and launches the heartbeat sweep.
func (h *Hub) Start(ctx context.Context) error {
	h.runningMu.Lock()
	defer h.runningMu.Unlock()

	if h.running {
		return fmt.Errorf("hub is already running")
	}

	h.ctx, h.cancel = context.WithCancel(ctx)
	h.running = true

	go h.heartbeat.run(h.ctx)

	h.logger.Info("hub started")
	return nil
}

// Stop closes every open connection and clears the registry. Clients are
// expected to reconnect and catch up through the regular query path.
func (h *Hub) Stop(ctx context.Context) error {
	h.runningMu.Lock()
	defer h.runningMu.Unlock()

	if !h.running {
		return nil
	}

	h.cancel()

	for subscriberID, conns := range h.registry.clear() {
		for _, conn := range conns {
			if err := conn.Close(); err != nil {
				h.logger.Errorf("failed to close connection %d for %s: %v", conn.ID(), subscriberID, err)
			}
		}
	}

	h.running = false
	h.logger.Info("hub stopped")
	return nil
}

// IsRunning reports whether the hub accepts streams.
func (h *Hub) IsRunning() bool {
	h.runningMu.RLock()
	defer h.runningMu.RUnlock()
	return h.running
}

// OpenSSEStream wraps an SSE response writer into a connection, assigns it
// the next connection identifier and registers it for the subscriber.
// The returned handle lets the transport handler close it explicitly.
func (h *Hub) OpenSSEStream(ctx context.Context, subscriberID string, w http.ResponseWriter) (*SSEConnection, error) {
	if !h.IsRunning() {
		return nil, fmt.Errorf("hub is not running")
	}
	if subscriberID == "" {
		return nil, fmt.Errorf("subscriber id is required")
	}

	conn, err := NewSSEConnection(ctx, h.nextConnID.Add(1), w, h.writeTimeout, h.logger)
	if err != nil {
		return nil, fmt.Errorf("open sse stream: %w", err)
	}

	h.track(subscriberID, conn)
	return conn, nil
}

// OpenWebSocketStream registers an upgraded WebSocket for the subscriber.
func (h *Hub) OpenWebSocketStream(ctx context.Context, subscriberID string, ws *websocket.Conn) (*WebSocketConnection, error) {
	if !h.IsRunning() {
		return nil, fmt.Errorf("hub is not running")
	}
	if subscriberID == "" {
		return nil, fmt.Errorf("subscriber id is required")
	}

	conn := NewWebSocketConnection(ctx, h.nextConnID.Add(1), ws, h.writeTimeout, h.logger)
	h.track(subscriberID, conn)
	return conn, nil
}

// CloseStream deregisters and closes a connection. Closing a stream that
// was already removed has no effect.
func (h *Hub) CloseStream(subscriberID string, conn Connection) {
	h.registry.Remove(subscriberID, conn)
	if err := conn.Close(); err != nil {
		h.logger.Errorf("failed to close connection %d: %v", conn.ID(), err)
	}
	h.logger.Infof("stream %d closed for subscriber %s", conn.ID(), subscriberID)
}

// Registry exposes the connection registry for delivery and introspection.
func (h *Hub) Registry() *Registry {
	return h.registry
}

func (h *Hub) track(subscriberID string, conn Connection) {
	h.registry.Register(subscriberID, conn)
	h.logger.Infof("stream %d opened for subscriber %s (%s)", conn.ID(), subscriberID, conn.Transport())

	// Deregister promptly when the transport closes underneath us.
	go func() {
		<-conn.Context().Done()
		h.registry.Remove(subscriberID, conn)
	}()
}
