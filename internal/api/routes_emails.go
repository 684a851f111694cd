package api

import (
	"github.com/gin-gonic/gin"

	"github.com/secretaryai/secretary/internal/handlers"
)

func registerEmailRoutes(api *gin.RouterGroup, handler *handlers.EmailHandler) {
	group := api.Group("/emails")
	{
		group.GET("", handler.List)
		group.POST("/send", handler.Send)
		group.GET("/:id", handler.Get)
		group.POST("/:id/draft-reply", handler.DraftReply)
	}
}
