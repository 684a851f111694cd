// Package mail delivers outbound email over SMTP. Secretary builds a mailer
// per send from whichever account won the selection, the user's own SMTP
// account or the system fallback, so the sender address always comes from the
// account settings rather than the message.
package mail

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

// ErrSMTPDisabled signals that SMTP delivery is disabled via configuration.
var ErrSMTPDisabled = errors.New("smtp: delivery disabled")

const defaultTimeout = 10 * time.Second

// Message is the outbound payload. The sender is taken from the account
// settings the mailer was built with.
type Message struct {
	To      []string
	Subject string
	Body    string
}

// Mailer defines behaviour for sending email messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPSettings capture the runtime configuration required by the SMTP mailer.
type SMTPSettings struct {
	Enabled  bool
	Host     string
	Port     int
	Username string
	Password string
	From     string
	UseTLS   bool
	Timeout  time.Duration
}

type smtpMailer struct {
	cfg SMTPSettings

	// deliver hands the encoded message to the wire. Swapped in tests.
	deliver func(ctx context.Context, cfg SMTPSettings, to []string, raw []byte) error
}

// NewSMTPMailer builds a Mailer backed by the provided SMTP settings.
func NewSMTPMailer(cfg SMTPSettings) (Mailer, error) {
	if cfg.Enabled {
		if strings.TrimSpace(cfg.Host) == "" {
			return nil, errors.New("smtp: host is required when enabled")
		}
		if cfg.Port == 0 {
			return nil, errors.New("smtp: port is required when enabled")
		}
		if strings.TrimSpace(cfg.From) == "" {
			return nil, errors.New("smtp: from address is required when enabled")
		}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &smtpMailer{cfg: cfg, deliver: deliverSMTP}, nil
}

func (m *smtpMailer) Send(ctx context.Context, msg Message) error {
	if !m.cfg.Enabled {
		return ErrSMTPDisabled
	}

	to, err := cleanRecipients(msg.To)
	if err != nil {
		return err
	}
	if _, err := mail.ParseAddress(m.cfg.From); err != nil {
		return fmt.Errorf("smtp: invalid from address: %w", err)
	}

	return m.deliver(ctx, m.cfg, to, encode(m.cfg.From, to, msg.Subject, msg.Body))
}

// cleanRecipients trims, deduplicates and validates the recipient list.
func cleanRecipients(addresses []string) ([]string, error) {
	seen := make(map[string]struct{}, len(addresses))
	var out []string
	for _, addr := range addresses {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		if _, dup := seen[addr]; dup {
			continue
		}
		if _, err := mail.ParseAddress(addr); err != nil {
			return nil, fmt.Errorf("smtp: invalid recipient address %q: %w", addr, err)
		}
		seen[addr] = struct{}{}
		out = append(out, addr)
	}
	if len(out) == 0 {
		return nil, errors.New("smtp: at least one recipient is required")
	}
	return out, nil
}

// deliverSMTP speaks the protocol end to end against a single connection,
// upgrading plaintext connections via STARTTLS when the server offers it.
func deliverSMTP(ctx context.Context, cfg SMTPSettings, to []string, raw []byte) error {
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	dialer := &net.Dialer{Timeout: cfg.Timeout}

	var (
		conn net.Conn
		err  error
	)
	if cfg.UseTLS {
		conn, err = tls.DialWithDialer(dialer, "tcp", addr, &tls.Config{ServerName: cfg.Host})
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("smtp: dial %s: %w", addr, err)
	}

	client, err := smtp.NewClient(conn, cfg.Host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("smtp: handshake: %w", err)
	}
	defer client.Close()

	if !cfg.UseTLS {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: cfg.Host}); err != nil {
				return fmt.Errorf("smtp: starttls: %w", err)
			}
		}
	}

	if strings.TrimSpace(cfg.Username) != "" {
		auth := smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp: auth: %w", err)
		}
	}

	if err := client.Mail(cfg.From); err != nil {
		return fmt.Errorf("smtp: mail from: %w", err)
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("smtp: rcpt to %s: %w", rcpt, err)
		}
	}

	wc, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp: data: %w", err)
	}
	if _, err := wc.Write(raw); err != nil {
		_ = wc.Close()
		return fmt.Errorf("smtp: write message: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("smtp: finish message: %w", err)
	}

	return client.Quit()
}

var headerSanitizer = strings.NewReplacer("\r", " ", "\n", " ")

// encode renders the message as a plain-text RFC 5322 payload.
func encode(from string, to []string, subject, body string) []byte {
	var b strings.Builder
	writeHeader(&b, "From", from)
	writeHeader(&b, "To", strings.Join(to, ", "))
	writeHeader(&b, "Subject", subject)
	writeHeader(&b, "Date", time.Now().UTC().Format(time.RFC1123Z))
	writeHeader(&b, "MIME-Version", "1.0")
	writeHeader(&b, "Content-Type", "text/plain; charset=UTF-8")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}

func writeHeader(b *strings.Builder, name, value string) {
	b.WriteString(name)
	b.WriteString(": ")
	b.WriteString(headerSanitizer.Replace(value))
	b.WriteString("\r\n")
}
