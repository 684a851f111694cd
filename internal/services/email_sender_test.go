package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	apperrors "github.com/secretaryai/secretary/pkg/errors"
	"github.com/secretaryai/secretary/pkg/mail"
)

type fakeMailer struct {
	sent []mail.Message
	err  error
}

func (f *fakeMailer) Send(_ context.Context, msg mail.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func TestSendUsesPersonalSMTPAccount(t *testing.T) {
	svc, _, db := newEmailService(t, &fakeFetcher{}, nil)
	user := mailboxUser("user-send-personal")
	user.SMTPHost = "smtp.example.com"
	user.SMTPPort = 587
	user.SMTPUsername = "dana@example.com"
	user.SMTPPassword = "secret"
	require.NoError(t, db.Create(user).Error)

	mailer := &fakeMailer{}
	var captured mail.SMTPSettings
	svc.newMailer = func(settings mail.SMTPSettings) (mail.Mailer, error) {
		captured = settings
		return mailer, nil
	}

	err := svc.Send(context.Background(), user.ID, SendInput{
		To:      []string{"boss@company.com"},
		Subject: "Status",
		Body:    "All green.",
	})
	require.NoError(t, err)

	require.Equal(t, "smtp.example.com", captured.Host)
	require.Equal(t, "dana@example.com", captured.From)
	require.Len(t, mailer.sent, 1)
	require.Equal(t, []string{"boss@company.com"}, mailer.sent[0].To)
}

func TestSendFallsBackToSystemAccount(t *testing.T) {
	svc, _, db := newEmailService(t, &fakeFetcher{}, nil)
	user := mailboxUser("user-send-system")
	require.NoError(t, db.Create(user).Error)

	svc.ConfigureSMTP(mail.SMTPSettings{
		Enabled:  true,
		Host:     "smtp.secretary.local",
		Port:     587,
		Username: "noreply",
		Password: "secret",
		From:     "noreply@secretary.local",
	})

	mailer := &fakeMailer{}
	var captured mail.SMTPSettings
	svc.newMailer = func(settings mail.SMTPSettings) (mail.Mailer, error) {
		captured = settings
		return mailer, nil
	}

	err := svc.Send(context.Background(), user.ID, SendInput{
		To:      []string{"boss@company.com"},
		Subject: "Status",
	})
	require.NoError(t, err)
	require.Equal(t, "smtp.secretary.local", captured.Host)
	require.Equal(t, "noreply@secretary.local", captured.From)
	require.Len(t, mailer.sent, 1)
}

func TestSendWithoutAnyAccountFails(t *testing.T) {
	svc, _, db := newEmailService(t, &fakeFetcher{}, nil)
	user := mailboxUser("user-send-none")
	require.NoError(t, db.Create(user).Error)

	err := svc.Send(context.Background(), user.ID, SendInput{
		To:      []string{"boss@company.com"},
		Subject: "Status",
	})
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, 400, appErr.StatusCode)
}

func TestSendValidatesRecipients(t *testing.T) {
	svc, _, db := newEmailService(t, &fakeFetcher{}, nil)
	user := mailboxUser("user-send-empty")
	require.NoError(t, db.Create(user).Error)

	err := svc.Send(context.Background(), user.ID, SendInput{
		To:      []string{"  "},
		Subject: "Status",
	})
	require.Error(t, err)
}

func TestSendWrapsTransportFailure(t *testing.T) {
	svc, _, db := newEmailService(t, &fakeFetcher{}, nil)
	user := mailboxUser("user-send-fail")
	require.NoError(t, db.Create(user).Error)

	svc.ConfigureSMTP(mail.SMTPSettings{
		Enabled: true,
		Host:    "smtp.secretary.local",
		Port:    587,
		From:    "noreply@secretary.local",
	})
	svc.newMailer = func(mail.SMTPSettings) (mail.Mailer, error) {
		return &fakeMailer{err: errors.New("connection refused")}, nil
	}

	err := svc.Send(context.Background(), user.ID, SendInput{
		To:      []string{"boss@company.com"},
		Subject: "Status",
	})
	require.True(t, apperrors.IsExternal(err))
}
