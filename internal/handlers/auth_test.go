package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	iauth "github.com/secretaryai/secretary/internal/auth"
	"github.com/secretaryai/secretary/internal/database"
	"github.com/secretaryai/secretary/internal/database/testutil"
	"github.com/secretaryai/secretary/internal/services"
)

func newAuthHandler(t *testing.T) *AuthHandler {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate(), testutil.WithSeedData())
	users, err := services.NewUserService(db)
	require.NoError(t, err)
	jwt, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret:         "test-secret-test-secret-test-secret",
		Issuer:         "secretary-test",
		AccessTokenTTL: time.Hour,
	})
	require.NoError(t, err)
	return NewAuthHandler(users, jwt)
}

func TestAuthHandlerLoginIssuesToken(t *testing.T) {
	handler := newAuthHandler(t)

	body := `{"email":"` + database.DefaultAdminEmail + `","password":"changeme"}`

	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	handler.Login(c)

	require.Equal(t, http.StatusOK, recorder.Code)

	var payload struct {
		Tokens tokenResponse  `json:"tokens"`
		User   map[string]any `json:"user"`
	}
	decodeData(t, recorder, &payload)
	require.NotEmpty(t, payload.Tokens.AccessToken)
	require.Equal(t, database.DefaultAdminEmail, payload.User["email"])

	claims, err := handler.jwt.ValidateAccessToken(payload.Tokens.AccessToken)
	require.NoError(t, err)
	require.Equal(t, payload.User["id"], claims.UserID)
}

func TestAuthHandlerLoginRejectsBadPassword(t *testing.T) {
	handler := newAuthHandler(t)

	body := `{"email":"` + database.DefaultAdminEmail + `","password":"wrong"}`

	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	handler.Login(c)

	require.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestAuthHandlerLoginValidatesPayload(t *testing.T) {
	handler := newAuthHandler(t)

	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"email":"not-an-email"}`))
	c.Request.Header.Set("Content-Type", "application/json")
	handler.Login(c)

	require.Equal(t, http.StatusBadRequest, recorder.Code)
}
