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
	"github.com/secretaryai/secretary/internal/assistant"
	"github.com/secretaryai/secretary/internal/mailbox"
	"github.com/secretaryai/secretary/internal/models"
	apperrors "github.com/secretaryai/secretary/pkg/errors"
	"github.com/secretaryai/secretary/pkg/logger"
	"github.com/secretaryai/secretary/pkg/mail"
)

// fetchBatchLimit bounds how many unseen messages one poll ingests per user.
const fetchBatchLimit = 25

// AssistantClient is the slice of the assistant the services depend on.
type AssistantClient interface {
	alerts.Detector
	Summarize(ctx context.Context, in assistant.EmailInput) (string, error)
	DraftReply(ctx context.Context, in assistant.EmailInput, tone string) (string, error)
	MorningBriefing(ctx context.Context, in assistant.BriefingInput) (string, error)
}

// EmailDTO represents the API-friendly email payload.
type EmailDTO struct {
	ID             string     `json:"id"`
	MessageID      string     `json:"message_id"`
	SenderEmail    string     `json:"sender_email"`
	SenderName     string     `json:"sender_name,omitempty"`
	Subject        string     `json:"subject"`
	Body           string     `json:"body,omitempty"`
	Priority       string     `json:"priority"`
	IsEmergency    bool       `json:"is_emergency"`
	IsFromVIP      bool       `json:"is_from_vip"`
	Summary        string     `json:"summary,omitempty"`
	SuggestedReply string     `json:"suggested_reply,omitempty"`
	Sentiment      string     `json:"sentiment,omitempty"`
	Category       string     `json:"category,omitempty"`
	ReceivedAt     time.Time  `json:"received_at"`
	ProcessedAt    *time.Time `json:"processed_at,omitempty"`
}

// ListEmailsInput defines filters for querying a user's ingested emails.
type ListEmailsInput struct {
	UserID   string
	Priority string
	VIPOnly  bool
	Limit    int
	Offset   int
}

// EmailService ingests mailbox messages, classifies them, and feeds the
// alert store.
type EmailService struct {
	db         *gorm.DB
	fetcher    mailbox.Fetcher
	assist     AssistantClient
	classifier *alerts.Classifier
	alertSvc   *AlertService
	log        *zap.Logger

	// Outbound delivery. systemSMTP is the fallback account used when a
	// user has no personal SMTP configuration.
	systemSMTP mail.SMTPSettings
	newMailer  func(mail.SMTPSettings) (mail.Mailer, error)
}

// NewEmailService constructs an EmailService. The assistant may be nil; the
// pipeline then runs on VIP and keyword rules alone.
func NewEmailService(db *gorm.DB, fetcher mailbox.Fetcher, assist AssistantClient, alertSvc *AlertService) (*EmailService, error) {
	if db == nil {
		return nil, errors.New("email service: db is required")
	}
	if fetcher == nil {
		return nil, errors.New("email service: mailbox fetcher is required")
	}
	if alertSvc == nil {
		return nil, errors.New("email service: alert service is required")
	}

	var detector alerts.Detector
	if assist != nil {
		detector = assist
	}

	return &EmailService{
		db:         db,
		fetcher:    fetcher,
		assist:     assist,
		classifier: alerts.NewClassifier(detector),
		alertSvc:   alertSvc,
		log:        logger.WithModule("email-service"),
		newMailer:  mail.NewSMTPMailer,
	}, nil
}

// CheckUser polls the user's mailbox once: unseen messages are stored,
// classified, and alert-worthy ones are pushed into the alert store. It
// returns the number of alerts created. A malformed message is dropped and
// logged, never fatal to the batch.
func (s *EmailService) CheckUser(ctx context.Context, user *models.User) (int, error) {
	ctx = ensureContext(ctx)
	if user == nil || !user.HasMailbox() {
		return 0, nil
	}

	messages, err := s.fetcher.FetchUnseen(ctx, mailbox.Settings{
		Host:     user.IMAPHost,
		Port:     user.IMAPPort,
		Username: user.IMAPUsername,
		Password: user.IMAPPassword,
		UseTLS:   user.IMAPUseTLS,
	}, fetchBatchLimit)
	if err != nil {
		return 0, err
	}

	prefs := ClassifierPreferences(user)
	created := 0

	for _, msg := range messages {
		alertCreated, err := s.ingestMessage(ctx, user, msg, prefs)
		if err != nil {
			if apperrors.IsMalformed(err) {
				s.log.Warn("dropping malformed message",
					zap.String("user_id", user.ID),
					zap.Uint32("uid", msg.UID),
					zap.Error(err))
				continue
			}
			return created, err
		}
		if alertCreated {
			created++
		}
	}

	return created, nil
}

// ingestMessage stores one message and, when classification warrants it,
// creates the matching alert. Reports whether an alert was created.
func (s *EmailService) ingestMessage(ctx context.Context, user *models.User, msg mailbox.Message, prefs alerts.Preferences) (bool, error) {
	if strings.TrimSpace(msg.MessageID) == "" {
		return false, apperrors.NewMalformed("message has no message id")
	}

	receivedAt := msg.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now().UTC()
	}

	email := models.Email{
		UserID:         user.ID,
		MessageID:      msg.MessageID,
		SenderEmail:    strings.ToLower(strings.TrimSpace(msg.SenderAddress)),
		SenderName:     msg.SenderName,
		RecipientEmail: user.Email,
		Subject:        msg.Subject,
		Body:           firstNonEmpty(msg.TextBody, msg.HTMLBody),
		ReceivedAt:     receivedAt,
	}

	candidate, err := alerts.NormalizeEmail(&email)
	if err != nil {
		return false, err
	}

	class := s.classifier.Classify(ctx, candidate, prefs)
	email.Priority = class.Priority
	email.IsEmergency = class.IsEmergency
	email.IsFromVIP = class.IsVIP
	email.Sentiment = string(class.Sentiment)
	email.Category = string(class.Category)

	alertWorthy := candidate.ApplyEmailClassification(class)
	if alertWorthy {
		s.enrich(ctx, &email, &candidate, user.AssistantTone)
	}

	now := time.Now().UTC()
	email.ProcessedAt = &now

	if err := s.db.WithContext(ctx).Create(&email).Error; err != nil {
		if isUniqueConstraintError(err) {
			// Already ingested by an earlier poll.
			return false, nil
		}
		return false, fmt.Errorf("email service: store email: %w", err)
	}

	if !alertWorthy {
		return false, nil
	}

	candidate.Metadata["email_id"] = email.ID
	result, err := s.alertSvc.InsertIfNew(ctx, user.ID, candidate, class)
	if err != nil {
		return false, err
	}
	return result.Created, nil
}

// enrich adds assistant-generated summary and reply draft to an alert-worthy
// email. Assistant failures degrade to the raw content.
func (s *EmailService) enrich(ctx context.Context, email *models.Email, candidate *alerts.AlertCandidate, tone string) {
	if s.assist == nil {
		return
	}

	input := assistant.EmailInput{
		Sender:  email.SenderEmail,
		Subject: email.Subject,
		Body:    email.Body,
	}

	if summary, err := s.assist.Summarize(ctx, input); err != nil {
		s.log.Warn("summary unavailable", zap.String("message_id", email.MessageID), zap.Error(err))
	} else {
		email.Summary = summary
		candidate.Message = summary
	}

	if reply, err := s.assist.DraftReply(ctx, input, tone); err != nil {
		s.log.Warn("reply draft unavailable", zap.String("message_id", email.MessageID), zap.Error(err))
	} else {
		email.SuggestedReply = reply
	}
}

// Get loads a single email owned by the user.
func (s *EmailService) Get(ctx context.Context, userID, emailID string) (*EmailDTO, error) {
	ctx = ensureContext(ctx)
	email, err := s.load(ctx, userID, emailID)
	if err != nil {
		return nil, err
	}
	dto := mapEmail(*email)
	return &dto, nil
}

// List returns the user's ingested emails, newest first.
func (s *EmailService) List(ctx context.Context, input ListEmailsInput) ([]EmailDTO, int64, error) {
	ctx = ensureContext(ctx)
	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return nil, 0, errors.New("email service: user id is required")
	}

	query := s.db.WithContext(ctx).Model(&models.Email{}).Where("user_id = ?", userID)

	if priority := models.AlertPriority(strings.TrimSpace(input.Priority)); priority != "" {
		if !priority.Valid() {
			return nil, 0, apperrors.NewBadRequest(fmt.Sprintf("unknown priority %q", input.Priority))
		}
		query = query.Where("priority = ?", priority)
	}
	if input.VIPOnly {
		query = query.Where("is_from_vip = ?", true)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("email service: count emails: %w", err)
	}

	var rows []models.Email
	if err := query.
		Order("received_at DESC").
		Limit(clampLimit(input.Limit, 25, 100)).
		Offset(max(0, input.Offset)).
		Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("email service: list emails: %w", err)
	}

	items := make([]EmailDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapEmail(row))
	}
	return items, total, nil
}

// DraftReply generates a fresh reply draft for a stored email in the given
// tone and persists it as the email's suggested reply.
func (s *EmailService) DraftReply(ctx context.Context, userID, emailID, tone string) (string, error) {
	ctx = ensureContext(ctx)
	if s.assist == nil {
		return "", apperrors.NewBadRequest("assistant is not configured")
	}

	email, err := s.load(ctx, userID, emailID)
	if err != nil {
		return "", err
	}

	reply, err := s.assist.DraftReply(ctx, assistant.EmailInput{
		Sender:  email.SenderEmail,
		Subject: email.Subject,
		Body:    email.Body,
	}, tone)
	if err != nil {
		return "", err
	}

	if err := s.db.WithContext(ctx).Model(email).Update("suggested_reply", reply).Error; err != nil {
		return "", fmt.Errorf("email service: store reply: %w", err)
	}
	return reply, nil
}

// UnreadDigest summarises recent unprocessed traffic for the briefing
// generator: a count plus one line per notable email.
func (s *EmailService) UnreadDigest(ctx context.Context, userID string, since time.Time) (int, []string, error) {
	ctx = ensureContext(ctx)

	var rows []models.Email
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND received_at >= ?", userID, since).
		Order("received_at DESC").
		Limit(50).
		Find(&rows).Error; err != nil {
		return 0, nil, fmt.Errorf("email service: load digest: %w", err)
	}

	var lines []string
	for _, row := range rows {
		if !row.IsFromVIP && !row.IsEmergency {
			continue
		}
		line := row.SenderEmail + ": " + row.Subject
		if row.Summary != "" {
			line = row.SenderEmail + ": " + row.Summary
		}
		lines = append(lines, line)
	}

	return len(rows), lines, nil
}

func (s *EmailService) load(ctx context.Context, userID, emailID string) (*models.Email, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, errors.New("email service: user id is required")
	}

	var email models.Email
	if err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", strings.TrimSpace(emailID), userID).
		First(&email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("email service: load email: %w", err)
	}
	return &email, nil
}

func mapEmail(row models.Email) EmailDTO {
	return EmailDTO{
		ID:             row.ID,
		MessageID:      row.MessageID,
		SenderEmail:    row.SenderEmail,
		SenderName:     row.SenderName,
		Subject:        row.Subject,
		Body:           row.Body,
		Priority:       string(row.Priority),
		IsEmergency:    row.IsEmergency,
		IsFromVIP:      row.IsFromVIP,
		Summary:        row.Summary,
		SuggestedReply: row.SuggestedReply,
		Sentiment:      row.Sentiment,
		Category:       row.Category,
		ReceivedAt:     row.ReceivedAt,
		ProcessedAt:    row.ProcessedAt,
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
