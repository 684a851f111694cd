package assistant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	apperrors "github.com/secretaryai/secretary/pkg/errors"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{BaseURL: srv.URL, APIKey: "test-key"})
	require.NoError(t, err)
	return client
}

func completionHandler(t *testing.T, answer string) http.HandlerFunc {
	t.Helper()

	return func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		require.Equal(t, "system", req.Messages[0].Role)
		require.Equal(t, "user", req.Messages[1].Role)

		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": answer}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	_, err := NewClient(Config{})
	require.Error(t, err)
}

func TestSummarize(t *testing.T) {
	client := newTestClient(t, completionHandler(t, "  The sender needs the report by Friday. "))

	summary, err := client.Summarize(context.Background(), EmailInput{
		Sender:  "boss@example.com",
		Subject: "Quarterly report",
		Body:    "Please send the report by Friday.",
	})
	require.NoError(t, err)
	require.Equal(t, "The sender needs the report by Friday.", summary)
}

func TestCategorizeKnownCategory(t *testing.T) {
	client := newTestClient(t, completionHandler(t, "Action_Required."))

	category, err := client.Categorize(context.Background(), EmailInput{Subject: "Invoice overdue"})
	require.NoError(t, err)
	require.Equal(t, CategoryAction, category)
}

func TestCategorizeUnknownFallsBackToOther(t *testing.T) {
	client := newTestClient(t, completionHandler(t, "something unexpected"))

	category, err := client.Categorize(context.Background(), EmailInput{Subject: "Hello"})
	require.NoError(t, err)
	require.Equal(t, CategoryOther, category)
}

func TestDetectEmergency(t *testing.T) {
	client := newTestClient(t, completionHandler(t, "Yes, the server is down."))

	emergency, err := client.DetectEmergency(context.Background(), EmailInput{Subject: "Production outage"})
	require.NoError(t, err)
	require.True(t, emergency)
}

func TestSentimentDefaultsToNeutral(t *testing.T) {
	client := newTestClient(t, completionHandler(t, "calm"))

	sentiment, err := client.Sentiment(context.Background(), EmailInput{Subject: "FYI"})
	require.NoError(t, err)
	require.Equal(t, SentimentNeutral, sentiment)
}

func TestRateLimitedReturnsExternalError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limit exceeded"}}`))
	})

	_, err := client.Summarize(context.Background(), EmailInput{Subject: "x"})
	require.Error(t, err)
	require.True(t, apperrors.IsExternal(err))

	var ext *apperrors.ExternalServiceError
	require.ErrorAs(t, err, &ext)
	require.Equal(t, apperrors.ExternalRateLimited, ext.Kind)
	require.Equal(t, ServiceName, ext.Service)
}

func TestServerErrorReturnsUnavailable(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.DraftReply(context.Background(), EmailInput{Subject: "x"}, "")
	require.Error(t, err)

	var ext *apperrors.ExternalServiceError
	require.ErrorAs(t, err, &ext)
	require.Equal(t, apperrors.ExternalUnavailable, ext.Kind)
}

func TestMorningBriefingIncludesInputs(t *testing.T) {
	var captured string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		captured = req.Messages[1].Content

		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "Good morning."}},
			},
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	})

	briefing, err := client.MorningBriefing(context.Background(), BriefingInput{
		Date:        "2025-03-01",
		UnreadCount: 4,
		EmailLines:  []string{"CEO: budget approval needed"},
		EventLines:  []string{"10:00 Standup"},
	})
	require.NoError(t, err)
	require.Equal(t, "Good morning.", briefing)
	require.Contains(t, captured, "2025-03-01")
	require.Contains(t, captured, "CEO: budget approval needed")
	require.Contains(t, captured, "10:00 Standup")
}
