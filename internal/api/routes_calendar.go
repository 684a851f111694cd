package api

import (
	"github.com/gin-gonic/gin"

	"github.com/secretaryai/secretary/internal/handlers"
)

func registerCalendarRoutes(api *gin.RouterGroup, handler *handlers.CalendarHandler) {
	group := api.Group("/calendar")
	{
		group.GET("/events", handler.Upcoming)
		group.GET("/events/:id", handler.Get)
	}
}
