package mail

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestNewSMTPMailerValidatesSettings(t *testing.T) {
	_, err := NewSMTPMailer(SMTPSettings{Enabled: true})
	if err == nil || !strings.Contains(err.Error(), "host is required") {
		t.Fatalf("expected host validation error, got %v", err)
	}

	_, err = NewSMTPMailer(SMTPSettings{Enabled: true, Host: "smtp.example.com", Port: 587})
	if err == nil || !strings.Contains(err.Error(), "from address is required") {
		t.Fatalf("expected from validation error, got %v", err)
	}

	mailer, err := NewSMTPMailer(SMTPSettings{Enabled: false})
	if err != nil {
		t.Fatalf("expected disabled configuration to succeed: %v", err)
	}
	if mailer == nil {
		t.Fatal("expected mailer to be returned")
	}
}

func TestSMTPMailerSendDisabled(t *testing.T) {
	mailer, err := NewSMTPMailer(SMTPSettings{Enabled: false})
	if err != nil {
		t.Fatalf("unexpected error creating mailer: %v", err)
	}

	err = mailer.Send(context.Background(), Message{
		To:      []string{"user@example.com"},
		Subject: "Secretary AI: Meeting Reminder",
		Body:    "Your meeting starts in 15 minutes.",
	})
	if err != ErrSMTPDisabled {
		t.Fatalf("expected ErrSMTPDisabled, got %v", err)
	}
}

func TestSMTPMailerDefaultTimeout(t *testing.T) {
	mailer, err := NewSMTPMailer(SMTPSettings{
		Enabled: true,
		Host:    "smtp.example.com",
		Port:    587,
		From:    "no-reply@example.com",
	})
	if err != nil {
		t.Fatalf("unexpected error creating mailer: %v", err)
	}

	sm := mailer.(*smtpMailer)
	if sm.cfg.Timeout != 10*time.Second {
		t.Fatalf("expected default 10s timeout, got %v", sm.cfg.Timeout)
	}
}

func TestSMTPMailerSendRequiresRecipients(t *testing.T) {
	mailer, err := NewSMTPMailer(SMTPSettings{
		Enabled: true,
		Host:    "smtp.example.com",
		Port:    587,
		From:    "no-reply@example.com",
	})
	if err != nil {
		t.Fatalf("unexpected error creating mailer: %v", err)
	}

	err = mailer.Send(context.Background(), Message{
		To:      []string{"  ", "\t"},
		Subject: "No recipients",
		Body:    "Body",
	})
	if err == nil || !strings.Contains(err.Error(), "at least one recipient") {
		t.Fatalf("expected missing recipient error, got %v", err)
	}

	err = mailer.Send(context.Background(), Message{
		To:      []string{"not an address"},
		Subject: "Bad recipient",
	})
	if err == nil || !strings.Contains(err.Error(), "invalid recipient") {
		t.Fatalf("expected invalid recipient error, got %v", err)
	}
}

func TestSMTPMailerSendEncodesAndDelivers(t *testing.T) {
	mailer, err := NewSMTPMailer(SMTPSettings{
		Enabled: true,
		Host:    "smtp.example.com",
		Port:    587,
		From:    "no-reply@example.com",
	})
	if err != nil {
		t.Fatalf("unexpected error creating mailer: %v", err)
	}

	var gotTo []string
	var gotRaw []byte
	sm := mailer.(*smtpMailer)
	sm.deliver = func(_ context.Context, _ SMTPSettings, to []string, raw []byte) error {
		gotTo = to
		gotRaw = raw
		return nil
	}

	err = mailer.Send(context.Background(), Message{
		To:      []string{"boss@company.com", " boss@company.com ", "cfo@company.com"},
		Subject: "Status",
		Body:    "All green.",
	})
	if err != nil {
		t.Fatalf("unexpected send error: %v", err)
	}

	if len(gotTo) != 2 || gotTo[0] != "boss@company.com" || gotTo[1] != "cfo@company.com" {
		t.Fatalf("expected deduplicated recipients, got %v", gotTo)
	}
	content := string(gotRaw)
	for _, want := range []string{
		"From: no-reply@example.com\r\n",
		"To: boss@company.com, cfo@company.com\r\n",
		"Subject: Status\r\n",
		"Date: ",
		"\r\n\r\nAll green.",
	} {
		if !strings.Contains(content, want) {
			t.Fatalf("expected message to contain %q, got %q", want, content)
		}
	}
}

func TestEncodeSanitisesHeaders(t *testing.T) {
	content := string(encode("sec@example.com", []string{"to@example.com"}, "Alert\r\nInjected", "Body"))
	if !strings.Contains(content, "Subject: Alert  Injected") {
		t.Fatalf("expected sanitised subject, got %q", content)
	}
	if !strings.Contains(content, "\r\n\r\nBody") {
		t.Fatalf("expected blank line before body, got %q", content)
	}
}
