package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	iauth "github.com/secretaryai/secretary/internal/auth"
	"github.com/secretaryai/secretary/internal/middleware"
	"github.com/secretaryai/secretary/internal/services"
	"github.com/secretaryai/secretary/pkg/errors"
	"github.com/secretaryai/secretary/pkg/response"
)

// AuthHandler manages authentication flows (login/me).
type AuthHandler struct {
	users *services.UserService
	jwt   *iauth.JWTService
}

func NewAuthHandler(users *services.UserService, jwt *iauth.JWTService) *AuthHandler {
	return &AuthHandler{users: users, jwt: jwt}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.users.Authenticate(requestContext(c), strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		// Normalise auth errors to 401
		response.Error(c, errors.ErrInvalidCredentials)
		return
	}

	token, err := h.jwt.GenerateAccessToken(user.ID, user.Email)
	if err != nil {
		response.Error(c, errors.ErrInternalServer)
		return
	}

	payload := gin.H{
		"tokens": tokenResponse{AccessToken: token},
		"user": gin.H{
			"id":        user.ID,
			"email":     user.Email,
			"full_name": user.FullName,
			"is_active": user.IsActive,
		},
	}

	response.Success(c, http.StatusOK, payload)
}

// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	user, err := h.users.GetByID(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"id":        user.ID,
		"email":     user.Email,
		"full_name": user.FullName,
		"is_active": user.IsActive,
	})
}
