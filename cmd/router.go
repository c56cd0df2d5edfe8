package main

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"refresh-notify/internal/infrastructure/hub"
	"refresh-notify/internal/infrastructure/logger"
	"refresh-notify/internal/interfaces/rest/v1/handler"
	"refresh-notify/internal/interfaces/sse"
	"refresh-notify/internal/interfaces/websocket"
	"refresh-notify/internal/notification"
)

func InitRouter(hubInstance *hub.Hub, notifier *notification.Notifier, log logger.Logger) http.Handler {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	rootGroup := router.Group("")

	rootGroup.GET("/hub/status", func(c *gin.Context) {
		registry := hubInstance.Registry()
		c.JSON(http.StatusOK, gin.H{
			"status":      "healthy",
			"hub_running": hubInstance.IsRunning(),
			"connections": registry.ConnectionCount(),
			"subscribers": registry.SubscriberCount(),
		})
	})

	notificationHandler := handler.NewNotificationHandler(notifier, log)
	apiGroup := rootGroup.Group("/api/v1")
	{
		apiGroup.POST("/notifications", notificationHandler.Notify)
	}

	sse.InitSSERouter(log, hubInstance, rootGroup)
	websocket.InitWebSocketRouter(log, hubInstance, rootGroup)

	return router
}
