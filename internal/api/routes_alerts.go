package api

import (
	"github.com/gin-gonic/gin"

	"github.com/secretaryai/secretary/internal/handlers"
)

func registerAlertRoutes(api *gin.RouterGroup, handler *handlers.AlertHandler) {
	group := api.Group("/alerts")
	{
		group.GET("", handler.List)
		group.GET("/unread", handler.Unread)
		group.GET("/stats", handler.Stats)
		group.POST("", handler.Create)
		group.POST("/read-all", handler.MarkAllRead)

		group.GET("/:id", handler.Get)
		group.POST("/:id/read", handler.MarkRead)
		group.POST("/:id/dismiss", handler.Dismiss)
	}
}
