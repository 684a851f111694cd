package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/secretaryai/secretary/internal/alerts"
	"github.com/secretaryai/secretary/internal/calendar"
	"github.com/secretaryai/secretary/internal/models"
	apperrors "github.com/secretaryai/secretary/pkg/errors"
	"github.com/secretaryai/secretary/pkg/logger"
)

// syncWindow is how far ahead the calendar poll mirrors upstream events.
const syncWindow = 24 * time.Hour

// EventDTO represents the API-friendly calendar event payload.
type EventDTO struct {
	ID              string     `json:"id"`
	ProviderEventID string     `json:"provider_event_id"`
	Title           string     `json:"title"`
	Description     string     `json:"description,omitempty"`
	Location        string     `json:"location,omitempty"`
	StartsAt        time.Time  `json:"starts_at"`
	EndsAt          time.Time  `json:"ends_at"`
	IsAllDay        bool       `json:"is_all_day"`
	Status          string     `json:"status"`
	ReminderSentAt  *time.Time `json:"reminder_sent_at,omitempty"`
}

// CalendarService mirrors upstream calendar events and fires meeting
// reminders through the alert store.
type CalendarService struct {
	db       *gorm.DB
	fetcher  calendar.Fetcher
	alertSvc *AlertService
	now      func() time.Time
	log      *zap.Logger
}

// NewCalendarService constructs a CalendarService.
func NewCalendarService(db *gorm.DB, fetcher calendar.Fetcher, alertSvc *AlertService) (*CalendarService, error) {
	if db == nil {
		return nil, errors.New("calendar service: db is required")
	}
	if fetcher == nil {
		return nil, errors.New("calendar service: calendar fetcher is required")
	}
	if alertSvc == nil {
		return nil, errors.New("calendar service: alert service is required")
	}
	return &CalendarService{
		db:       db,
		fetcher:  fetcher,
		alertSvc: alertSvc,
		now:      time.Now,
		log:      logger.WithModule("calendar-service"),
	}, nil
}

// SyncUser mirrors the user's upcoming events into the local store. Existing
// rows are updated in place; reminder bookkeeping is preserved.
func (s *CalendarService) SyncUser(ctx context.Context, user *models.User) (int, error) {
	ctx = ensureContext(ctx)
	if user == nil || !user.HasCalendar() {
		return 0, nil
	}

	events, err := s.fetcher.FetchUpcoming(ctx, calendar.Settings{
		CalendarID:   user.CalendarID,
		RefreshToken: user.GoogleRefreshToken,
	}, syncWindow)
	if err != nil {
		return 0, err
	}

	synced := 0
	for _, event := range events {
		if err := s.upsertEvent(ctx, user, event); err != nil {
			s.log.Warn("skipping event",
				zap.String("user_id", user.ID),
				zap.String("provider_event_id", event.ProviderID),
				zap.Error(err))
			continue
		}
		synced++
	}

	return synced, nil
}

func (s *CalendarService) upsertEvent(ctx context.Context, user *models.User, event calendar.Event) error {
	var existing models.CalendarEvent
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND provider_event_id = ?", user.ID, event.ProviderID).
		First(&existing).Error

	switch {
	case err == nil:
		updates := map[string]any{
			"title":       event.Title,
			"description": event.Description,
			"location":    event.Location,
			"starts_at":   event.StartsAt,
			"ends_at":     event.EndsAt,
			"is_all_day":  event.AllDay,
			"status":      defaultIfEmpty(event.Status, "confirmed"),
		}
		if err := s.db.WithContext(ctx).Model(&existing).Updates(updates).Error; err != nil {
			return fmt.Errorf("calendar service: update event: %w", err)
		}
		return nil

	case errors.Is(err, gorm.ErrRecordNotFound):
		row := models.CalendarEvent{
			UserID:          user.ID,
			ProviderEventID: event.ProviderID,
			CalendarID:      defaultIfEmpty(user.CalendarID, "primary"),
			Title:           event.Title,
			Description:     event.Description,
			Location:        event.Location,
			StartsAt:        event.StartsAt,
			EndsAt:          event.EndsAt,
			IsAllDay:        event.AllDay,
			Status:          defaultIfEmpty(event.Status, "confirmed"),
		}
		if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
			if isUniqueConstraintError(err) {
				return nil
			}
			return fmt.Errorf("calendar service: create event: %w", err)
		}
		return nil

	default:
		return fmt.Errorf("calendar service: load event: %w", err)
	}
}

// SendDueReminders creates a meeting reminder alert for every event whose
// reminder window has opened. The alert source key keeps overlapping ticks
// from double-firing; ReminderSentAt keeps the store from rescanning. It
// returns the number of alerts created.
func (s *CalendarService) SendDueReminders(ctx context.Context, userID string) (int, error) {
	ctx = ensureContext(ctx)
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, errors.New("calendar service: user id is required")
	}

	now := s.now().UTC()

	var events []models.CalendarEvent
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND reminder_sent_at IS NULL AND starts_at > ? AND starts_at <= ?",
			userID, now, now.Add(time.Hour)).
		Find(&events).Error; err != nil {
		return 0, fmt.Errorf("calendar service: load upcoming events: %w", err)
	}

	created := 0
	for i := range events {
		event := &events[i]
		if !event.ReminderDue(now) {
			continue
		}

		candidate, err := alerts.NormalizeMeetingReminder(event)
		if err != nil {
			s.log.Warn("dropping malformed event",
				zap.String("event_id", event.ID),
				zap.Error(err))
			continue
		}

		result, err := s.alertSvc.InsertIfNew(ctx, userID, candidate, alerts.Classification{
			Priority: models.AlertPriorityHigh,
		})
		if err != nil {
			return created, err
		}
		if result.Created {
			created++
		}

		if err := s.db.WithContext(ctx).Model(event).Update("reminder_sent_at", now).Error; err != nil {
			return created, fmt.Errorf("calendar service: record reminder: %w", err)
		}
	}

	return created, nil
}

// ListUpcoming returns the user's events starting within the window.
func (s *CalendarService) ListUpcoming(ctx context.Context, userID string, window time.Duration) ([]EventDTO, error) {
	ctx = ensureContext(ctx)
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, errors.New("calendar service: user id is required")
	}
	if window <= 0 {
		window = syncWindow
	}

	now := s.now().UTC()

	var rows []models.CalendarEvent
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND starts_at >= ? AND starts_at <= ? AND status <> ?",
			userID, now, now.Add(window), "cancelled").
		Order("starts_at ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("calendar service: list events: %w", err)
	}

	items := make([]EventDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapEvent(row))
	}
	return items, nil
}

// Get loads a single event owned by the user.
func (s *CalendarService) Get(ctx context.Context, userID, eventID string) (*EventDTO, error) {
	ctx = ensureContext(ctx)

	var row models.CalendarEvent
	if err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", strings.TrimSpace(eventID), strings.TrimSpace(userID)).
		First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("calendar service: load event: %w", err)
	}

	dto := mapEvent(row)
	return &dto, nil
}

// TodayLines renders one line per event starting today, for the briefing.
func (s *CalendarService) TodayLines(ctx context.Context, userID string, now time.Time) ([]string, error) {
	ctx = ensureContext(ctx)

	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	dayEnd := dayStart.Add(24 * time.Hour)

	var rows []models.CalendarEvent
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND starts_at >= ? AND starts_at < ? AND status <> ?",
			strings.TrimSpace(userID), dayStart, dayEnd, "cancelled").
		Order("starts_at ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("calendar service: load today's events: %w", err)
	}

	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		line := row.StartsAt.Local().Format("15:04") + " " + row.Title
		if row.IsAllDay {
			line = "All day: " + row.Title
		}
		if row.Location != "" {
			line += " (" + row.Location + ")"
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func mapEvent(row models.CalendarEvent) EventDTO {
	return EventDTO{
		ID:              row.ID,
		ProviderEventID: row.ProviderEventID,
		Title:           row.Title,
		Description:     row.Description,
		Location:        row.Location,
		StartsAt:        row.StartsAt,
		EndsAt:          row.EndsAt,
		IsAllDay:        row.IsAllDay,
		Status:          row.Status,
		ReminderSentAt:  row.ReminderSentAt,
	}
}
