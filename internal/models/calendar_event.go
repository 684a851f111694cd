package models

import (
	"time"

	"gorm.io/datatypes"
)

// CalendarEvent mirrors an upstream calendar entry for the reminder trigger
// and the briefing generator.
type CalendarEvent struct {
	BaseModel

	UserID          string `gorm:"type:uuid;not null;index;uniqueIndex:idx_events_user_provider" json:"user_id"`
	ProviderEventID string `gorm:"type:varchar(255);not null;uniqueIndex:idx_events_user_provider" json:"provider_event_id"`
	CalendarID      string `gorm:"type:varchar(255);not null" json:"calendar_id"`

	Title       string `gorm:"type:varchar(500);not null" json:"title"`
	Description string `gorm:"type:text" json:"description"`
	Location    string `gorm:"type:varchar(500)" json:"location"`
	MeetingLink string `gorm:"type:varchar(500)" json:"meeting_link"`

	StartsAt time.Time `gorm:"not null;index" json:"starts_at"`
	EndsAt   time.Time `gorm:"not null" json:"ends_at"`
	IsAllDay bool      `gorm:"default:false" json:"is_all_day"`

	OrganizerEmail string         `gorm:"type:varchar(255)" json:"organizer_email"`
	Attendees      datatypes.JSON `json:"attendees"`

	Status string `gorm:"type:varchar(20);default:'confirmed'" json:"status"`

	// Reminder bookkeeping: ReminderSentAt guards against re-firing at the
	// store level; the alert source key guards at the pipeline level.
	ReminderLeadMinutes int        `gorm:"default:15" json:"reminder_lead_minutes"`
	ReminderSentAt      *time.Time `json:"reminder_sent_at"`
}

// ReminderDue reports whether a reminder should fire at the supplied time.
func (e *CalendarEvent) ReminderDue(now time.Time) bool {
	if e.ReminderSentAt != nil || e.Status == "cancelled" || e.IsAllDay {
		return false
	}
	lead := time.Duration(e.ReminderLeadMinutes) * time.Minute
	if lead <= 0 {
		lead = 15 * time.Minute
	}
	return !e.StartsAt.After(now.Add(lead)) && e.StartsAt.After(now)
}
