package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/secretaryai/secretary/internal/models"
	apperrors "github.com/secretaryai/secretary/pkg/errors"
	"github.com/secretaryai/secretary/pkg/mail"
	"github.com/secretaryai/secretary/pkg/metrics"
)

// SendInput carries an outbound email composed by the user.
type SendInput struct {
	To      []string `json:"to" validate:"required,min=1"`
	Subject string   `json:"subject" validate:"required"`
	Body    string   `json:"body"`
}

// ConfigureSMTP sets the system-level fallback account for outbound mail.
func (s *EmailService) ConfigureSMTP(settings mail.SMTPSettings) {
	s.systemSMTP = settings
}

// Send delivers an email on behalf of the user. The user's own SMTP account
// wins; without one the system fallback is used.
func (s *EmailService) Send(ctx context.Context, userID string, input SendInput) error {
	ctx = ensureContext(ctx)

	recipients := make([]string, 0, len(input.To))
	for _, to := range input.To {
		if addr := strings.TrimSpace(to); addr != "" {
			recipients = append(recipients, addr)
		}
	}
	if len(recipients) == 0 {
		return apperrors.NewBadRequest("at least one recipient is required")
	}
	if strings.TrimSpace(input.Subject) == "" {
		return apperrors.NewBadRequest("subject is required")
	}

	var user models.User
	if err := s.db.WithContext(ctx).Where("id = ?", strings.TrimSpace(userID)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("email service: load user: %w", err)
	}

	settings := s.smtpSettingsFor(&user)
	if !settings.Enabled {
		return apperrors.NewBadRequest("no smtp account is configured")
	}

	mailer, err := s.newMailer(settings)
	if err != nil {
		return fmt.Errorf("email service: build mailer: %w", err)
	}

	if err := mailer.Send(ctx, mail.Message{
		To:      recipients,
		Subject: input.Subject,
		Body:    input.Body,
	}); err != nil {
		metrics.EmailsSent.WithLabelValues("failure").Inc()
		s.log.Warn("smtp send failed",
			zap.String("user_id", user.ID),
			zap.Int("recipients", len(recipients)),
			zap.Error(err),
		)
		return apperrors.NewExternal("smtp", apperrors.ExternalUnavailable, err)
	}

	metrics.EmailsSent.WithLabelValues("success").Inc()
	return nil
}

func (s *EmailService) smtpSettingsFor(user *models.User) mail.SMTPSettings {
	if user.HasSMTP() {
		return mail.SMTPSettings{
			Enabled:  true,
			Host:     user.SMTPHost,
			Port:     user.SMTPPort,
			Username: user.SMTPUsername,
			Password: user.SMTPPassword,
			From:     firstNonEmpty(user.SMTPUsername, user.Email),
			UseTLS:   true,
		}
	}
	return s.systemSMTP
}
