package api

import (
	"github.com/gin-gonic/gin"

	"github.com/secretaryai/secretary/internal/handlers"
)

func registerProfileRoutes(api *gin.RouterGroup, handler *handlers.ProfileHandler) {
	group := api.Group("/profile")
	{
		group.GET("", handler.Get)
		group.PUT("/preferences", handler.UpdatePreferences)
	}
}
