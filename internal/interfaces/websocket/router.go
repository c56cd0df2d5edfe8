package websocket

import (
	"github.com/gin-gonic/gin"

	"refresh-notify/internal/infrastructure/hub"
	"refresh-notify/internal/infrastructure/logger"
)

func InitWebSocketRouter(log logger.Logger, hubInstance *hub.Hub, rg *gin.RouterGroup) {
	handler := NewStreamHandler(hubInstance, log)

	wsGroup := rg.Group("/ws")
	wsGroup.GET("", handler.Connect)

	apiGroup := rg.Group("/api/v1/ws")
	apiGroup.GET("/connections", handler.GetConnections)
}
