package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/secretaryai/secretary/internal/middleware"
	"github.com/secretaryai/secretary/internal/services"
	"github.com/secretaryai/secretary/pkg/errors"
	"github.com/secretaryai/secretary/pkg/response"
)

// CalendarHandler exposes HTTP endpoints for synced calendar events.
type CalendarHandler struct {
	service *services.CalendarService
}

// NewCalendarHandler constructs a calendar handler.
func NewCalendarHandler(service *services.CalendarService) (*CalendarHandler, error) {
	if service == nil {
		return nil, errors.ErrInternalServer
	}
	return &CalendarHandler{service: service}, nil
}

// Upcoming returns events starting within the requested window (default 24h).
func (h *CalendarHandler) Upcoming(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	hours := parseIntQuery(c, "hours", 24)
	if hours < 1 || hours > 24*7 {
		response.Error(c, errors.NewBadRequest("hours must be between 1 and 168"))
		return
	}

	items, err := h.service.ListUpcoming(requestContext(c), userID, time.Duration(hours)*time.Hour)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, items)
}

// Get returns a single calendar event.
func (h *CalendarHandler) Get(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	dto, err := h.service.Get(requestContext(c), userID, strings.TrimSpace(c.Param("id")))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, dto)
}
