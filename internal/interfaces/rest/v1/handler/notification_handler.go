package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"refresh-notify/internal/infrastructure/logger"
	"refresh-notify/internal/notification"
)

// NotificationHandler is the inbound surface for domain-mutation
// resolvers: after a like, follow or comment lands, the resolver posts
// here to push the event to the subscriber's open streams.
type NotificationHandler struct {
	notifier *notification.Notifier
	logger   logger.Logger
}

type publisherRequest struct {
	ID        string `json:"id" binding:"required"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	UserName  string `json:"userName"`
	PfpPath   string `json:"pfpPath"`
}

type notifyRequest struct {
	EventID      string           `json:"_id"`
	EventType    string           `json:"eventType" binding:"required"`
	Publisher    publisherRequest `json:"publisher" binding:"required"`
	SubscriberID string           `json:"subscriberId" binding:"required"`
}

func NewNotificationHandler(notifier *notification.Notifier, log logger.Logger) *NotificationHandler {
	return &NotificationHandler{
		notifier: notifier,
		logger:   log.WithField("handler", "notification"),
	}
}

// Notify validates the event and fans it out. Delivery is best-effort, so
// success here only means the event was accepted.
func (h *NotificationHandler) Notify(c *gin.Context) {
	var req notifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid notification payload"})
		return
	}

	err := h.notifier.Notify(c.Request.Context(), notification.Input{
		EventID: req.EventID,
		Kind:    notification.Kind(req.EventType),
		Publisher: notification.Publisher{
			ID:        req.Publisher.ID,
			FirstName: req.Publisher.FirstName,
			LastName:  req.Publisher.LastName,
			UserName:  req.Publisher.UserName,
			PfpPath:   req.Publisher.PfpPath,
		},
		SubscriberID: req.SubscriberID,
	})
	if err != nil {
		h.logger.Warnf("rejected notification: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"status":       "accepted",
		"eventType":    req.EventType,
		"subscriberId": req.SubscriberID,
	})
}
