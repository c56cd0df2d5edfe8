package sse

import (
	"github.com/gin-gonic/gin"

	"refresh-notify/internal/infrastructure/hub"
	"refresh-notify/internal/infrastructure/logger"
)

func InitSSERouter(log logger.Logger, hubInstance *hub.Hub, rg *gin.RouterGroup) {
	handler := NewStreamHandler(hubInstance, log)

	sseGroup := rg.Group("/sse")
	sseGroup.GET("", handler.Connect)

	apiGroup := rg.Group("/api/v1/sse")
	apiGroup.GET("/connections", handler.GetConnections)
}
