package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/secretaryai/secretary/internal/alerts"
	"github.com/secretaryai/secretary/internal/database/testutil"
	"github.com/secretaryai/secretary/internal/middleware"
	"github.com/secretaryai/secretary/internal/models"
	"github.com/secretaryai/secretary/internal/services"
	"github.com/secretaryai/secretary/pkg/response"
)

func newAlertHandler(t *testing.T) (*AlertHandler, *gorm.DB, *services.AlertService) {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	service, err := services.NewAlertService(db)
	require.NoError(t, err)
	handler, err := NewAlertHandler(service)
	require.NoError(t, err)
	return handler, db, service
}

func seedHandlerUser(t *testing.T, db *gorm.DB, id string) *models.User {
	t.Helper()

	user := &models.User{
		Email:    id + "@example.com",
		Password: "x",
		IsActive: true,
	}
	user.ID = id
	require.NoError(t, db.Create(user).Error)
	return user
}

func systemAlert(t *testing.T, service *services.AlertService, userID, key string) string {
	t.Helper()

	candidate, err := alerts.NormalizeSystem(key, "Title "+key, "message")
	require.NoError(t, err)
	result, err := service.InsertIfNew(testContext(), userID, candidate, alerts.Classification{})
	require.NoError(t, err)
	require.True(t, result.Created)
	return result.Alert.ID
}

func decodeData(t *testing.T, recorder *httptest.ResponseRecorder, dest any) *response.Response {
	t.Helper()

	var payload response.Response
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &payload))
	require.True(t, payload.Success)

	if dest != nil {
		data, err := json.Marshal(payload.Data)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(data, dest))
	}
	return &payload
}

func TestAlertHandlerListAndMarkRead(t *testing.T) {
	handler, db, service := newAlertHandler(t)
	user := seedHandlerUser(t, db, "user-handler-list")

	systemAlert(t, service, user.ID, "disk-space")
	alertID := systemAlert(t, service, user.ID, "cert-expiry")

	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/alerts?limit=10", nil)
	c.Set(middleware.CtxUserIDKey, user.ID)
	handler.List(c)

	require.Equal(t, http.StatusOK, recorder.Code)

	var items []services.AlertDTO
	payload := decodeData(t, recorder, &items)
	require.Len(t, items, 2)
	require.NotNil(t, payload.Meta)
	require.EqualValues(t, 2, payload.Meta.Total)

	readRecorder := httptest.NewRecorder()
	c2, _ := gin.CreateTestContext(readRecorder)
	c2.Request = httptest.NewRequest(http.MethodPost, "/api/alerts/"+alertID+"/read", nil)
	c2.Params = gin.Params{gin.Param{Key: "id", Value: alertID}}
	c2.Set(middleware.CtxUserIDKey, user.ID)
	handler.MarkRead(c2)

	require.Equal(t, http.StatusOK, readRecorder.Code)

	var dto services.AlertDTO
	decodeData(t, readRecorder, &dto)
	require.Equal(t, string(models.AlertStatusRead), dto.Status)
	require.NotNil(t, dto.ReadAt)
}

func TestAlertHandlerCreateDeduplicates(t *testing.T) {
	handler, db, _ := newAlertHandler(t)
	user := seedHandlerUser(t, db, "user-handler-create")

	body := `{"key":"backup-failed","title":"Backup failed","message":"nightly run","priority":"high"}`

	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/alerts", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set(middleware.CtxUserIDKey, user.ID)
	handler.Create(c)

	require.Equal(t, http.StatusCreated, recorder.Code)

	var dto services.AlertDTO
	decodeData(t, recorder, &dto)
	require.Equal(t, "high", dto.Priority)

	dupRecorder := httptest.NewRecorder()
	c2, _ := gin.CreateTestContext(dupRecorder)
	c2.Request = httptest.NewRequest(http.MethodPost, "/api/alerts", strings.NewReader(body))
	c2.Request.Header.Set("Content-Type", "application/json")
	c2.Set(middleware.CtxUserIDKey, user.ID)
	handler.Create(c2)

	require.Equal(t, http.StatusOK, dupRecorder.Code)

	var dup struct {
		Created    bool   `json:"created"`
		ExistingID string `json:"existing_id"`
	}
	decodeData(t, dupRecorder, &dup)
	require.False(t, dup.Created)
	require.Equal(t, dto.ID, dup.ExistingID)
}

func TestAlertHandlerMarkAllRead(t *testing.T) {
	handler, db, service := newAlertHandler(t)
	user := seedHandlerUser(t, db, "user-handler-markall")

	systemAlert(t, service, user.ID, "one")
	systemAlert(t, service, user.ID, "two")

	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/alerts/read-all", nil)
	c.Set(middleware.CtxUserIDKey, user.ID)
	handler.MarkAllRead(c)

	require.Equal(t, http.StatusOK, recorder.Code)

	var result struct {
		Updated int64 `json:"updated"`
	}
	decodeData(t, recorder, &result)
	require.EqualValues(t, 2, result.Updated)
}

func testContext() context.Context {
	return context.Background()
}

func TestAlertHandlerRequiresUser(t *testing.T) {
	handler, _, _ := newAlertHandler(t)

	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/alerts", nil)
	handler.List(c)

	require.Equal(t, http.StatusUnauthorized, recorder.Code)
}
