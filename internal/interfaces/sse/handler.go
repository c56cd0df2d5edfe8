package sse

import (
	"net/http"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"

	"refresh-notify/internal/infrastructure/hub"
	"refresh-notify/internal/infrastructure/logger"
)

type StreamHandler struct {
	hub    *hub.Hub
	logger logger.Logger
}

func NewStreamHandler(hubInstance *hub.Hub, log logger.Logger) *StreamHandler {
	return &StreamHandler{
		hub:    hubInstance,
		logger: log.WithField("handler", "sse"),
	}
}

// Connect opens a notification stream for one subscriber. Authentication
// happens upstream; by the time this runs the subscriber identity in the
// query string is trusted.
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

	// Stream headers go out only once the request is accepted, so error
	// responses above stay plain JSON.
	setStreamHeaders(c)

	conn, err := h.hub.OpenSSEStream(c.Request.Context(), subscriberID, c.Writer)
	if err != nil {
		h.logger.Errorf("failed to open stream for %s: %v", subscriberID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to open stream"})
		return
	}
	defer h.hub.CloseStream(subscriberID, conn)

	// Handshake frame so the client learns its connection id immediately.
	sse.Encode(c.Writer, sse.Event{
		Event: "connected",
		Data: map[string]any{
			"connectionId": conn.ID(),
			"timestamp":    time.Now().Format(time.RFC3339),
		},
	})
	c.Writer.Flush()

	h.logger.Infof("subscriber %s connected on stream %d", subscriberID, conn.ID())

	// Hold the request open until the client goes away or the connection
	// is pruned after a failed write.
	select {
	case <-c.Request.Context().Done():
		h.logger.Infof("subscriber %s disconnected from stream %d", subscriberID, conn.ID())
	case <-conn.Context().Done():
		h.logger.Infof("stream %d for subscriber %s closed", conn.ID(), subscriberID)
	}
}

// GetConnections reports open SSE streams for the status endpoints.
func (h *StreamHandler) GetConnections(c *gin.Context) {
	entries := h.hub.Registry().Entries()
	subscribers := make([]gin.H, 0, len(entries))
	total := 0

	for subscriberID, conns := range entries {
		ids := make([]uint64, 0, len(conns))
		for _, conn := range conns {
			if conn.Transport() != "sse" {
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

// setStreamHeaders prepares the response for an event stream before the
// handler writes the first frame.
func setStreamHeaders(c *gin.Context) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no") // nginx
}
