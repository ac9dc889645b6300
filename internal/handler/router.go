package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/muhtawa-io/muhtawa/internal/middleware"
	"github.com/muhtawa-io/muhtawa/internal/pkg/response"
)

type RouterDeps struct {
	Chat              *ChatHandler
	JWTSecret         []byte
	ChatRateWindow    time.Duration
	HistoryRateWindow time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.GET("/healthz", func(c *gin.Context) {
		response.Success(c, gin.H{"status": "ok"})
	})

	authGroup := api.Group("")
	authGroup.Use(middleware.JWTAuth(deps.JWTSecret))
	authGroup.POST("/chat", middleware.RateLimit(deps.ChatRateWindow), deps.Chat.Chat)
	authGroup.GET("/chat/history", middleware.RateLimit(deps.HistoryRateWindow), deps.Chat.History)
}
