package websocket

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"refresh-notify/internal/infrastructure/hub"
	"refresh-notify/internal/infrastructure/logger"
)

// StreamHandler upgrades HTTP requests to WebSocket notification streams.
// The payloads match the SSE transport; only the framing differs.
type StreamHandler struct {
	hub      *hub.Hub
	logger   logger.Logger
	upgrader websocket.Upgrader
}

func NewStreamHandler(hubInstance *hub.Hub, log logger.Logger) *StreamHandler {
	return &StreamHandler{
		hub:    hubInstance,
		logger: log.WithField("handler", "websocket"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Origin checking is the surrounding auth layer's concern.
				return true
			},
		},
	}
}

// Connect upgrades the request and registers the stream for the subscriber.
func (h *StreamHandler) Connect(c *gin.Context) {
	subscriberID := c.Query("subscriberId")
	if subscriberID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "subscriberId is required"})
		return
	}

	if !h.hub.IsRunning() {
		h.logger.Error("hub is not running")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "service temporarily unavailable"})
		return
	}

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Errorf("failed to upgrade connection: %v", err)
		return
	}

	conn, err := h.hub.OpenWebSocketStream(c.Request.Context(), subscriberID, ws)
	if err != nil {
		h.logger.Errorf("failed to open stream for %s: %v", subscriberID, err)
		_ = ws.Close()
		return
	}

	h.logger.Infof("subscriber %s connected on stream %d", subscriberID, conn.ID())

	<-conn.Context().Done()
	h.hub.CloseStream(subscriberID, conn)
	h.logger.Infof("subscriber %s disconnected from stream %d", subscriberID, conn.ID())
}

// GetConnections reports open WebSocket streams.
func (h *StreamHandler) GetConnections(c *gin.Context) {
	entries := h.hub.Registry().Entries()
	subscribers := make([]gin.H, 0, len(entries))
	total := 0

	for subscriberID, conns := range entries {
		ids := make([]uint64, 0, len(conns))
		for _, conn := range conns {
			if conn.Transport() != "websocket" {
				continue
			}
			ids = append(ids, conn.ID())
		}
		if len(ids) == 0 {
			continue
		}
		total += len(ids)
		subscribers = append(subscribers, gin.H{
			"subscriberId": subscriberID,
			"connections":  ids,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"total_connections": total,
		"subscribers":       subscribers,
		"hub_running":       h.hub.IsRunning(),
	})
}
