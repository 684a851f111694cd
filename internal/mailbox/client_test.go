package mailbox

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const multipartMessage = "MIME-Version: 1.0\r\n" +
	"From: Alice <alice@example.com>\r\n" +
	"Subject: Status\r\n" +
	"Content-Type: multipart/alternative; boundary=b1\r\n" +
	"\r\n" +
	"--b1\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Plain text body.\r\n" +
	"--b1\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<p>HTML body.</p>\r\n" +
	"--b1--\r\n"

func TestParseBodyMultipart(t *testing.T) {
	text, html := parseBody([]byte(multipartMessage))
	require.Equal(t, "Plain text body.", text)
	require.Equal(t, "<p>HTML body.</p>", html)
}

func TestParseBodyPlainMessage(t *testing.T) {
	raw := "From: Bob <bob@example.com>\r\n" +
		"Subject: Hi\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"Just a line.\r\n"

	text, html := parseBody([]byte(raw))
	require.Equal(t, "Just a line.", text)
	require.Empty(t, html)
}

func TestParseBodyInvalidMIMEFallsBackToRaw(t *testing.T) {
	raw := "not a mime message at all"

	text, html := parseBody([]byte(raw))
	require.True(t, strings.Contains(text, "not a mime message"))
	require.Empty(t, html)
}
