package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/secretaryai/secretary/internal/alerts"
	"github.com/secretaryai/secretary/internal/assistant"
	"github.com/secretaryai/secretary/internal/models"
	"github.com/secretaryai/secretary/pkg/logger"
)

// BriefingService generates the daily morning briefing alert.
type BriefingService struct {
	emailSvc    *EmailService
	calendarSvc *CalendarService
	alertSvc    *AlertService
	assist      AssistantClient
	now         func() time.Time
	log         *zap.Logger
}

// NewBriefingService constructs a BriefingService. The assistant may be nil;
// the briefing then falls back to a locally rendered digest.
func NewBriefingService(emailSvc *EmailService, calendarSvc *CalendarService, alertSvc *AlertService, assist AssistantClient) (*BriefingService, error) {
	if emailSvc == nil || calendarSvc == nil || alertSvc == nil {
		return nil, errors.New("briefing service: email, calendar, and alert services are required")
	}
	return &BriefingService{
		emailSvc:    emailSvc,
		calendarSvc: calendarSvc,
		alertSvc:    alertSvc,
		assist:      assist,
		now:         time.Now,
		log:         logger.WithModule("briefing-service"),
	}, nil
}

// Due reports whether the user's briefing time has passed for the day.
func (s *BriefingService) Due(user *models.User, now time.Time) bool {
	briefingTime := defaultIfEmpty(user.BriefingTime, "08:00")
	target, err := time.Parse("15:04", briefingTime)
	if err != nil {
		target, _ = time.Parse("15:04", "08:00")
	}

	local := now.Local()
	wallClock := local.Hour()*60 + local.Minute()
	return wallClock >= target.Hour()*60+target.Minute()
}

// GenerateForUser produces today's briefing alert for the user unless one
// already exists. Reports whether a new alert was created.
func (s *BriefingService) GenerateForUser(ctx context.Context, user *models.User) (bool, error) {
	ctx = ensureContext(ctx)
	if user == nil {
		return false, errors.New("briefing service: user is required")
	}

	now := s.now()
	candidateKey := "briefing:" + now.Format("2006-01-02")

	// Cheap pre-check so the assistant is not consulted on every tick after
	// the briefing time; InsertIfNew stays the authoritative guard.
	exists, err := s.alertSvc.Exists(ctx, user.ID, candidateKey)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	unreadCount, emailLines, err := s.emailSvc.UnreadDigest(ctx, user.ID, now.Add(-24*time.Hour))
	if err != nil {
		return false, err
	}

	eventLines, err := s.calendarSvc.TodayLines(ctx, user.ID, now)
	if err != nil {
		return false, err
	}

	stats, err := s.alertSvc.Stats(ctx, user.ID)
	if err != nil {
		return false, err
	}

	input := assistant.BriefingInput{
		Date:         now.Format("2006-01-02"),
		UnreadCount:  unreadCount,
		EmailLines:   emailLines,
		EventLines:   eventLines,
		PendingCount: int(stats.Unread),
	}

	content := s.renderContent(ctx, input)

	candidate, err := alerts.NormalizeBriefing(now, content)
	if err != nil {
		return false, err
	}

	result, err := s.alertSvc.InsertIfNew(ctx, user.ID, candidate, alerts.Classification{
		Priority: models.AlertPriorityNormal,
	})
	if err != nil {
		return false, err
	}
	return result.Created, nil
}

// renderContent asks the assistant for prose and falls back to a plain
// digest when the call fails.
func (s *BriefingService) renderContent(ctx context.Context, input assistant.BriefingInput) string {
	if s.assist != nil {
		content, err := s.assist.MorningBriefing(ctx, input)
		if err == nil && strings.TrimSpace(content) != "" {
			return content
		}
		if err != nil {
			s.log.Warn("assistant briefing unavailable, using plain digest", zap.Error(err))
		}
	}
	return plainBriefing(input)
}

func plainBriefing(input assistant.BriefingInput) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You received %d emails in the last day and have %d unread alerts.", input.UnreadCount, input.PendingCount)
	if len(input.EmailLines) > 0 {
		sb.WriteString("\n\nNotable emails:")
		for _, line := range input.EmailLines {
			sb.WriteString("\n- " + line)
		}
	}
	if len(input.EventLines) > 0 {
		sb.WriteString("\n\nToday's schedule:")
		for _, line := range input.EventLines {
			sb.WriteString("\n- " + line)
		}
	}
	return sb.String()
}
