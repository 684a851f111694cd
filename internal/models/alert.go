package models

import (
	"time"

	"gorm.io/datatypes"
)

// AlertType identifies the source category of an alert.
type AlertType string

const (
	AlertTypeVIPEmail        AlertType = "vip_email"
	AlertTypeEmergencyEmail  AlertType = "emergency_email"
	AlertTypeMeetingReminder AlertType = "meeting_reminder"
	AlertTypeMorningBriefing AlertType = "morning_briefing"
	AlertTypeSystem          AlertType = "system"
)

// Valid reports whether the alert type is one of the recognised values.
func (t AlertType) Valid() bool {
	switch t {
	case AlertTypeVIPEmail, AlertTypeEmergencyEmail, AlertTypeMeetingReminder,
		AlertTypeMorningBriefing, AlertTypeSystem:
		return true
	}
	return false
}

// AlertPriority orders alerts for display. Rank grows with urgency.
type AlertPriority string

const (
	AlertPriorityLow    AlertPriority = "low"
	AlertPriorityNormal AlertPriority = "normal"
	AlertPriorityHigh   AlertPriority = "high"
	AlertPriorityUrgent AlertPriority = "urgent"
)

// Rank returns the total order position of the priority (low=0 .. urgent=3).
func (p AlertPriority) Rank() int {
	switch p {
	case AlertPriorityLow:
		return 0
	case AlertPriorityNormal:
		return 1
	case AlertPriorityHigh:
		return 2
	case AlertPriorityUrgent:
		return 3
	}
	return 1
}

// Valid reports whether the priority is a recognised value.
func (p AlertPriority) Valid() bool {
	switch p {
	case AlertPriorityLow, AlertPriorityNormal, AlertPriorityHigh, AlertPriorityUrgent:
		return true
	}
	return false
}

// AlertStatus tracks the delivery lifecycle of an alert. Transitions move
// forward only: pending → sent → read, and any of those → dismissed.
// Dismissed is terminal.
type AlertStatus string

const (
	AlertStatusPending   AlertStatus = "pending"
	AlertStatusSent      AlertStatus = "sent"
	AlertStatusRead      AlertStatus = "read"
	AlertStatusDismissed AlertStatus = "dismissed"
)

// Valid reports whether the status is a recognised value.
func (s AlertStatus) Valid() bool {
	switch s {
	case AlertStatusPending, AlertStatusSent, AlertStatusRead, AlertStatusDismissed:
		return true
	}
	return false
}

// Alert is a user-visible notification produced by the alert pipeline.
//
// SourceKey is derived deterministically from the originating event and is
// unique per user among live (non-dismissed) alerts; the composite unique
// index makes the check-and-insert atomic. Dismissal retires the key (see
// AlertService.Dismiss) so history is kept without blocking future alerts.
type Alert struct {
	BaseModel

	UserID    string `gorm:"type:uuid;not null;index;uniqueIndex:idx_alerts_user_source" json:"user_id"`
	SourceKey string `gorm:"type:varchar(512);not null;uniqueIndex:idx_alerts_user_source" json:"source_key"`

	Type     AlertType     `gorm:"type:varchar(32);not null;index" json:"type"`
	Priority AlertPriority `gorm:"type:varchar(16);not null;default:'normal'" json:"priority"`
	Status   AlertStatus   `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`

	Title   string `gorm:"type:varchar(255);not null" json:"title"`
	Message string `gorm:"type:text" json:"message"`

	// Metadata is an opaque payload (originating email id, meeting id, ...)
	// passed through to the client, never interpreted by the pipeline.
	Metadata datatypes.JSON `json:"metadata"`

	SentAt *time.Time `json:"sent_at"`
	ReadAt *time.Time `json:"read_at"`
}

// Unread reports whether the alert still counts against the unread badge.
func (a *Alert) Unread() bool {
	return a.Status == AlertStatusPending || a.Status == AlertStatusSent
}
