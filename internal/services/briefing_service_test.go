package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/secretaryai/secretary/internal/database/testutil"
	"github.com/secretaryai/secretary/internal/models"
)

func newBriefingService(t *testing.T, assist AssistantClient) (*BriefingService, *AlertService) {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	alertSvc, err := NewAlertService(db)
	require.NoError(t, err)
	emailSvc, err := NewEmailService(db, &fakeFetcher{}, assist, alertSvc)
	require.NoError(t, err)
	calendarSvc, err := NewCalendarService(db, &fakeCalendarFetcher{}, alertSvc)
	require.NoError(t, err)
	svc, err := NewBriefingService(emailSvc, calendarSvc, alertSvc, assist)
	require.NoError(t, err)
	return svc, alertSvc
}

func TestGenerateForUserCreatesOneBriefingPerDay(t *testing.T) {
	svc, alertSvc := newBriefingService(t, &fakeAssistant{briefing: "Good morning. Quiet day ahead."})
	user := &models.User{Email: "briefing@example.com", BriefingTime: "08:00"}
	user.ID = "user-briefing-once"

	created, err := svc.GenerateForUser(context.Background(), user)
	require.NoError(t, err)
	require.True(t, created)

	created, err = svc.GenerateForUser(context.Background(), user)
	require.NoError(t, err)
	require.False(t, created)

	unread, err := alertSvc.ListUnread(context.Background(), user.ID, 10)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	require.Equal(t, "morning_briefing", unread[0].Type)
	require.Equal(t, "Good morning. Quiet day ahead.", unread[0].Message)
}

func TestGenerateForUserFallsBackWithoutAssistant(t *testing.T) {
	svc, alertSvc := newBriefingService(t, &fakeAssistant{err: errors.New("unavailable")})
	user := &models.User{Email: "fallback@example.com"}
	user.ID = "user-briefing-fallback"

	created, err := svc.GenerateForUser(context.Background(), user)
	require.NoError(t, err)
	require.True(t, created)

	unread, err := alertSvc.ListUnread(context.Background(), user.ID, 10)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	require.Contains(t, unread[0].Message, "emails in the last day")
}

func TestDueHonoursBriefingTime(t *testing.T) {
	svc, _ := newBriefingService(t, nil)

	user := &models.User{BriefingTime: "08:00"}
	morning := time.Date(2025, 3, 1, 7, 59, 0, 0, time.Local)
	require.False(t, svc.Due(user, morning))
	require.True(t, svc.Due(user, morning.Add(time.Minute)))
	require.True(t, svc.Due(user, morning.Add(3*time.Hour)))

	// Bad configuration falls back to 08:00.
	user.BriefingTime = "not-a-time"
	require.True(t, svc.Due(user, time.Date(2025, 3, 1, 9, 0, 0, 0, time.Local)))
}
