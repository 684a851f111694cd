package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/secretaryai/secretary/internal/middleware"
	"github.com/secretaryai/secretary/internal/services"
	"github.com/secretaryai/secretary/pkg/errors"
	"github.com/secretaryai/secretary/pkg/response"
)

// EmailHandler exposes HTTP endpoints for ingested emails.
type EmailHandler struct {
	service *services.EmailService
}

// NewEmailHandler constructs an email handler.
func NewEmailHandler(service *services.EmailService) (*EmailHandler, error) {
	if service == nil {
		return nil, errors.ErrInternalServer
	}
	return &EmailHandler{service: service}, nil
}

// List returns the current user's ingested emails, newest first.
func (h *EmailHandler) List(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	limit := parseIntQuery(c, "limit", 25)
	offset := parseIntQuery(c, "offset", 0)

	items, total, err := h.service.List(requestContext(c), services.ListEmailsInput{
		UserID:   userID,
		Priority: strings.TrimSpace(c.Query("priority")),
		VIPOnly:  parseBoolQuery(c, "vip_only"),
		Limit:    limit,
		Offset:   offset,
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

// Get returns a single email with its summary and suggested reply.
func (h *EmailHandler) Get(c *gin.Context) {
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

// Send delivers an outbound email through the user's SMTP account.
func (h *EmailHandler) Send(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var input services.SendInput
	if !bindAndValidate(c, &input) {
		return
	}

	if err := h.service.Send(requestContext(c), userID, input); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"sent": true})
}

// DraftReply generates (and persists) a suggested reply for an email.
func (h *EmailHandler) DraftReply(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var payload struct {
		Tone string `json:"tone" validate:"omitempty,max=64"`
	}
	if !bindAndValidate(c, &payload) {
		return
	}

	reply, err := h.service.DraftReply(requestContext(c), userID, strings.TrimSpace(c.Param("id")), payload.Tone)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"suggested_reply": reply})
}
