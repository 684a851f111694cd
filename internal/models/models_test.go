package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestPriorityRankOrdering(t *testing.T) {
	require.Less(t, AlertPriorityLow.Rank(), AlertPriorityNormal.Rank())
	require.Less(t, AlertPriorityNormal.Rank(), AlertPriorityHigh.Rank())
	require.Less(t, AlertPriorityHigh.Rank(), AlertPriorityUrgent.Rank())
	require.Equal(t, AlertPriorityNormal.Rank(), AlertPriority("bogus").Rank())
}

func TestAlertTypeAndStatusValidation(t *testing.T) {
	require.True(t, AlertTypeVIPEmail.Valid())
	require.True(t, AlertStatusDismissed.Valid())
	require.False(t, AlertType("email").Valid())
	require.False(t, AlertStatus("archived").Valid())
}

func TestAlertUnread(t *testing.T) {
	a := Alert{Status: AlertStatusPending}
	require.True(t, a.Unread())
	a.Status = AlertStatusSent
	require.True(t, a.Unread())
	a.Status = AlertStatusRead
	require.False(t, a.Unread())
	a.Status = AlertStatusDismissed
	require.False(t, a.Unread())
}

func TestUserPreferenceDecoding(t *testing.T) {
	u := User{
		VIPSenders:        datatypes.JSON(`["ceo@company.com","cfo@company.com"]`),
		EmergencyKeywords: datatypes.JSON(`["urgent","server down"]`),
	}
	require.Equal(t, []string{"ceo@company.com", "cfo@company.com"}, u.VIPSenderList())
	require.Equal(t, []string{"urgent", "server down"}, u.EmergencyKeywordList())

	empty := User{}
	require.Nil(t, empty.VIPSenderList())
	require.Nil(t, empty.EmergencyKeywordList())
}

func TestCalendarEventReminderDue(t *testing.T) {
	now := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

	event := CalendarEvent{
		StartsAt:            now.Add(14 * time.Minute),
		ReminderLeadMinutes: 15,
	}
	require.True(t, event.ReminderDue(now))

	// Too far out.
	event.StartsAt = now.Add(20 * time.Minute)
	require.False(t, event.ReminderDue(now))

	// Already started.
	event.StartsAt = now.Add(-1 * time.Minute)
	require.False(t, event.ReminderDue(now))

	// Already reminded.
	sent := now.Add(-5 * time.Minute)
	event.StartsAt = now.Add(10 * time.Minute)
	event.ReminderSentAt = &sent
	require.False(t, event.ReminderDue(now))
}
