package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/secretaryai/secretary/internal/database/testutil"
	"github.com/secretaryai/secretary/internal/middleware"
	"github.com/secretaryai/secretary/internal/services"
)

func newProfileHandler(t *testing.T) (*ProfileHandler, *services.UserService) {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	users, err := services.NewUserService(db)
	require.NoError(t, err)
	handler, err := NewProfileHandler(users)
	require.NoError(t, err)

	seedHandlerUser(t, db, "user-handler-profile")
	return handler, users
}

func TestProfileHandlerUpdatePreferences(t *testing.T) {
	handler, _ := newProfileHandler(t)

	body := `{"vip_senders":["CEO@Company.com","ceo@company.com"],"emergency_keywords":["urgent"],"briefing_time":"07:30"}`

	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	c.Request = httptest.NewRequest(http.MethodPut, "/api/profile/preferences", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set(middleware.CtxUserIDKey, "user-handler-profile")
	handler.UpdatePreferences(c)

	require.Equal(t, http.StatusOK, recorder.Code)

	var dto services.UserDTO
	decodeData(t, recorder, &dto)
	require.Equal(t, []string{"ceo@company.com"}, dto.VIPSenders)
	require.Equal(t, []string{"urgent"}, dto.EmergencyKeywords)
	require.Equal(t, "07:30", dto.BriefingTime)
}

func TestProfileHandlerRejectsBadBriefingTime(t *testing.T) {
	handler, _ := newProfileHandler(t)

	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	c.Request = httptest.NewRequest(http.MethodPut, "/api/profile/preferences", strings.NewReader(`{"briefing_time":"7 am"}`))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set(middleware.CtxUserIDKey, "user-handler-profile")
	handler.UpdatePreferences(c)

	require.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestProfileHandlerGetReturnsPreferences(t *testing.T) {
	handler, _ := newProfileHandler(t)

	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	c.Set(middleware.CtxUserIDKey, "user-handler-profile")
	handler.Get(c)

	require.Equal(t, http.StatusOK, recorder.Code)

	var dto services.UserDTO
	decodeData(t, recorder, &dto)
	require.Equal(t, "user-handler-profile", dto.ID)
}
