package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/secretaryai/secretary/internal/alerts"
	"github.com/secretaryai/secretary/internal/middleware"
	"github.com/secretaryai/secretary/internal/models"
	"github.com/secretaryai/secretary/internal/services"
	"github.com/secretaryai/secretary/pkg/errors"
	"github.com/secretaryai/secretary/pkg/response"
)

// AlertHandler exposes HTTP endpoints for the alert inbox.
type AlertHandler struct {
	service *services.AlertService
}

// NewAlertHandler constructs an alert handler.
func NewAlertHandler(service *services.AlertService) (*AlertHandler, error) {
	if service == nil {
		return nil, errors.ErrInternalServer
	}
	return &AlertHandler{service: service}, nil
}

// List returns the current user's alerts, newest first.
func (h *AlertHandler) List(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	limit := parseIntQuery(c, "limit", 25)
	offset := parseIntQuery(c, "offset", 0)

	items, total, err := h.service.List(requestContext(c), services.ListAlertsInput{
		UserID: userID,
		Type:   strings.TrimSpace(c.Query("type")),
		Status: strings.TrimSpace(c.Query("status")),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, items, &response.Meta{
		Limit:  limit,
		Offset: offset,
		Total:  total,
	})
}

// Unread returns pending and sent alerts ordered by priority.
func (h *AlertHandler) Unread(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	items, err := h.service.ListUnread(requestContext(c), userID, parseIntQuery(c, "limit", 25))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, items)
}

// Stats returns aggregate alert counts for the current user.
func (h *AlertHandler) Stats(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	stats, err := h.service.Stats(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, stats)
}

// Get returns a single alert.
func (h *AlertHandler) Get(c *gin.Context) {
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

// MarkRead transitions an alert to read.
func (h *AlertHandler) MarkRead(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	dto, err := h.service.MarkRead(requestContext(c), userID, strings.TrimSpace(c.Param("id")))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, dto)
}

// Dismiss retires an alert and frees its source key for future alerts.
func (h *AlertHandler) Dismiss(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	dto, err := h.service.Dismiss(requestContext(c), userID, strings.TrimSpace(c.Param("id")))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, dto)
}

// MarkAllRead marks every unread alert read and reports how many changed.
func (h *AlertHandler) MarkAllRead(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	updated, err := h.service.MarkAllRead(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"updated": updated})
}

// Create files a system alert for the current user (primarily for tests/admin).
func (h *AlertHandler) Create(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var payload struct {
		Key      string `json:"key" validate:"required"`
		Title    string `json:"title" validate:"required"`
		Message  string `json:"message"`
		Priority string `json:"priority"`
	}

	if !bindAndValidate(c, &payload) {
		return
	}

	candidate, err := alerts.NormalizeSystem(payload.Key, payload.Title, payload.Message)
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.service.InsertIfNew(requestContext(c), userID, candidate, alerts.Classification{
		Priority: models.AlertPriority(payload.Priority),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	if !result.Created {
		response.Success(c, http.StatusOK, gin.H{"created": false, "existing_id": result.ExistingID})
		return
	}

	response.Success(c, http.StatusCreated, result.Alert)
}
