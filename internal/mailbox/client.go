// Package mailbox fetches unseen messages from a user's IMAP account.
package mailbox

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message/mail"

	apperrors "github.com/secretaryai/secretary/pkg/errors"
)

// ServiceName identifies the mailbox in external-service errors.
const ServiceName = "mailbox"

// Settings holds per-user IMAP connection parameters.
type Settings struct {
	Host     string
	Port     int
	Username string
	Password string
	UseTLS   bool
}

// Message is a fetched inbox message with its parsed body.
type Message struct {
	UID           uint32
	MessageID     string
	SenderName    string
	SenderAddress string
	Subject       string
	ReceivedAt    time.Time
	TextBody      string
	HTMLBody      string
}

// Fetcher retrieves unseen messages for a mailbox.
type Fetcher interface {
	FetchUnseen(ctx context.Context, settings Settings, limit int) ([]Message, error)
}

type imapFetcher struct{}

// NewIMAPFetcher returns a Fetcher backed by go-imap.
func NewIMAPFetcher() Fetcher {
	return imapFetcher{}
}

func (imapFetcher) FetchUnseen(ctx context.Context, settings Settings, limit int) ([]Message, error) {
	client, err := dial(settings)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Logout().Wait() }()

	if _, err := client.Select("INBOX", nil).Wait(); err != nil {
		return nil, apperrors.NewExternal(ServiceName, apperrors.ExternalUnavailable, fmt.Errorf("select INBOX: %w", err))
	}

	criteria := &imap.SearchCriteria{
		NotFlag: []imap.Flag{imap.FlagSeen},
	}

	searchData, err := client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, apperrors.NewExternal(ServiceName, apperrors.ExternalUnavailable, fmt.Errorf("search unseen: %w", err))
	}

	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}
	if limit > 0 && len(uids) > limit {
		uids = uids[len(uids)-limit:]
	}

	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchCmd := client.Fetch(imap.UIDSetNum(uids...), &imap.FetchOptions{
		Envelope:    true,
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	})
	defer fetchCmd.Close()

	var messages []Message
	for {
		if err := ctx.Err(); err != nil {
			return messages, err
		}

		msg := fetchCmd.Next()
		if msg == nil {
			break
		}

		buf, err := msg.Collect()
		if err != nil {
			continue
		}

		messages = append(messages, messageFromBuffer(buf, bodySection))
	}

	if err := fetchCmd.Close(); err != nil {
		return messages, apperrors.NewExternal(ServiceName, apperrors.ExternalUnavailable, fmt.Errorf("fetch messages: %w", err))
	}

	return messages, nil
}

func dial(settings Settings) (*imapclient.Client, error) {
	addr := fmt.Sprintf("%s:%d", settings.Host, settings.Port)

	var client *imapclient.Client
	var err error
	if settings.UseTLS {
		client, err = imapclient.DialTLS(addr, nil)
	} else {
		client, err = imapclient.DialStartTLS(addr, nil)
	}
	if err != nil {
		return nil, apperrors.NewExternal(ServiceName, apperrors.ExternalUnavailable, fmt.Errorf("dial %s: %w", addr, err))
	}

	if err := client.Login(settings.Username, settings.Password).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, apperrors.NewExternal(ServiceName, apperrors.ExternalUnavailable, fmt.Errorf("login %s: %w", settings.Username, err))
	}

	return client, nil
}

func messageFromBuffer(buf *imapclient.FetchMessageBuffer, bodySection *imap.FetchItemBodySection) Message {
	msg := Message{UID: uint32(buf.UID)}

	if buf.Envelope != nil {
		msg.MessageID = buf.Envelope.MessageID
		msg.Subject = buf.Envelope.Subject
		msg.ReceivedAt = buf.Envelope.Date

		if len(buf.Envelope.From) > 0 {
			from := buf.Envelope.From[0]
			msg.SenderName = from.Name
			msg.SenderAddress = from.Addr()
		}
	}

	if raw := buf.FindBodySection(bodySection); raw != nil {
		msg.TextBody, msg.HTMLBody = parseBody(raw)
	}

	return msg
}

// parseBody extracts the text/plain and text/html parts of a MIME message,
// falling back to the raw bytes when the message is not valid MIME.
func parseBody(raw []byte) (textBody, htmlBody string) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return string(raw), ""
	}
	defer mr.Close()

	for {
		part, err := mr.NextPart()
		if err != nil {
			break
		}

		header, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}

		contentType, _, _ := header.ContentType()
		body, readErr := io.ReadAll(part.Body)
		if readErr != nil {
			continue
		}

		switch {
		case strings.HasPrefix(contentType, "text/plain"):
			textBody = strings.TrimRight(string(body), "\r\n")
		case strings.HasPrefix(contentType, "text/html"):
			htmlBody = strings.TrimRight(string(body), "\r\n")
		}
	}

	return textBody, htmlBody
}
