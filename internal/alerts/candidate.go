// Package alerts contains the alert pipeline's pure pieces: normalizing raw
// source events into alert candidates and classifying their priority.
package alerts

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/secretaryai/secretary/internal/models"
	apperrors "github.com/secretaryai/secretary/pkg/errors"
)

// AlertCandidate is the uniform record an inbound source event is normalized
// into before classification and storage.
type AlertCandidate struct {
	SourceKey string
	Type      models.AlertType
	Title     string
	Message   string
	Metadata  map[string]any

	// Raw content used for classification only, never stored.
	Sender  string
	Subject string
	Body    string
}

// NormalizeEmail converts a stored email into an alert candidate. The alert
// type is assigned later from the classification via ApplyEmailClassification.
func NormalizeEmail(email *models.Email) (AlertCandidate, error) {
	if email == nil || strings.TrimSpace(email.MessageID) == "" {
		return AlertCandidate{}, apperrors.NewMalformed("email is missing a message id")
	}

	message := email.Summary
	if message == "" {
		message = snippet(email.Body, 200)
	}

	return AlertCandidate{
		SourceKey: "email:" + email.MessageID,
		Title:     email.Subject,
		Message:   message,
		Metadata: map[string]any{
			"email_id":   email.ID,
			"message_id": email.MessageID,
			"sender":     email.SenderEmail,
		},
		Sender:  email.SenderEmail,
		Subject: email.Subject,
		Body:    email.Body,
	}, nil
}

// ApplyEmailClassification assigns the candidate's alert type and title from
// the classifier's output. It reports false when the email warrants no alert.
func (c *AlertCandidate) ApplyEmailClassification(class Classification) bool {
	switch {
	case class.IsEmergency:
		c.Type = models.AlertTypeEmergencyEmail
		c.Title = "Emergency: " + c.Subject
	case class.IsVIP:
		c.Type = models.AlertTypeVIPEmail
		c.Title = "VIP email from " + c.Sender
	default:
		return false
	}
	return true
}

// NormalizeMeetingReminder converts an upcoming calendar event into a reminder
// candidate. The source key embeds the reminder offset so the same event with
// a changed lead time produces a distinct alert.
func NormalizeMeetingReminder(event *models.CalendarEvent) (AlertCandidate, error) {
	if event == nil || strings.TrimSpace(event.ProviderEventID) == "" {
		return AlertCandidate{}, apperrors.NewMalformed("calendar event is missing a provider id")
	}

	message := fmt.Sprintf("Starts at %s", event.StartsAt.Local().Format("15:04"))
	if event.Location != "" {
		message += " in " + event.Location
	}

	return AlertCandidate{
		SourceKey: fmt.Sprintf("meeting:%s:%d", event.ProviderEventID, event.ReminderLeadMinutes),
		Type:      models.AlertTypeMeetingReminder,
		Title:     "Upcoming: " + event.Title,
		Message:   message,
		Metadata: map[string]any{
			"event_id":     event.ID,
			"provider_id":  event.ProviderEventID,
			"starts_at":    event.StartsAt.UTC().Format(time.RFC3339),
			"lead_minutes": event.ReminderLeadMinutes,
		},
	}, nil
}

// NormalizeBriefing converts a generated daily briefing into a candidate
// keyed by calendar date, so at most one briefing alert exists per day.
func NormalizeBriefing(date time.Time, content string) (AlertCandidate, error) {
	if date.IsZero() {
		return AlertCandidate{}, apperrors.NewMalformed("briefing date is required")
	}

	day := date.Format("2006-01-02")
	return AlertCandidate{
		SourceKey: "briefing:" + day,
		Type:      models.AlertTypeMorningBriefing,
		Title:     "Morning briefing for " + date.Format("January 2"),
		Message:   content,
		Metadata:  map[string]any{"date": day},
	}, nil
}

// NormalizeSystem builds a candidate for an operator-created system alert.
func NormalizeSystem(key, title, message string) (AlertCandidate, error) {
	if strings.TrimSpace(key) == "" {
		return AlertCandidate{}, apperrors.NewMalformed("system alert key is required")
	}

	return AlertCandidate{
		SourceKey: "system:" + key,
		Type:      models.AlertTypeSystem,
		Title:     title,
		Message:   message,
		Metadata:  map[string]any{"key": key},
	}, nil
}

func snippet(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	// Cut on a rune boundary so a multi-byte character is never split.
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return strings.TrimSpace(s[:cut]) + "…"
}
