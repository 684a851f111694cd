package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/secretaryai/secretary/internal/middleware"
	"github.com/secretaryai/secretary/internal/services"
	"github.com/secretaryai/secretary/pkg/errors"
	"github.com/secretaryai/secretary/pkg/response"
)

// ProfileHandler exposes the current user's profile and alerting preferences.
type ProfileHandler struct {
	users *services.UserService
}

// NewProfileHandler constructs a profile handler.
func NewProfileHandler(users *services.UserService) (*ProfileHandler, error) {
	if users == nil {
		return nil, errors.ErrInternalServer
	}
	return &ProfileHandler{users: users}, nil
}

// Get returns the current user's profile including preferences.
func (h *ProfileHandler) Get(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	dto, err := h.users.Profile(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, dto)
}

// UpdatePreferences patches the VIP list, emergency keywords and briefing settings.
// Fields omitted from the payload are left unchanged.
func (h *ProfileHandler) UpdatePreferences(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var input services.UpdatePreferencesInput
	if !bindAndValidate(c, &input) {
		return
	}

	dto, err := h.users.UpdatePreferences(requestContext(c), userID, input)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, dto)
}
