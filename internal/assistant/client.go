// Package assistant talks to an OpenAI-compatible chat completions API and
// exposes the narrow set of operations the pipeline needs: summaries, reply
// drafts, categorisation, emergency detection, briefings, and sentiment.
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/secretaryai/secretary/pkg/errors"
	"github.com/secretaryai/secretary/pkg/logger"
	"github.com/secretaryai/secretary/pkg/metrics"
)

const (
	// ServiceName identifies the assistant in external-service errors.
	ServiceName = "assistant"

	defaultBaseURL   = "https://api.openai.com/v1"
	defaultModel     = "gpt-4o-mini"
	defaultMaxTokens = 400
	defaultTimeout   = 20 * time.Second
)

// Category is the assistant's coarse classification of an email.
type Category string

const (
	CategoryAction     Category = "action_required"
	CategoryMeeting    Category = "meeting"
	CategoryFinancial  Category = "financial"
	CategoryNewsletter Category = "newsletter"
	CategoryPersonal   Category = "personal"
	CategorySpam       Category = "spam"
	CategoryOther      Category = "other"
)

// Sentiment is the assistant's read of an email's tone.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
	SentimentUrgent   Sentiment = "urgent"
)

// EmailInput carries the fields of an email the assistant operations inspect.
type EmailInput struct {
	Sender  string
	Subject string
	Body    string
}

// BriefingInput aggregates the material a morning briefing is built from.
type BriefingInput struct {
	Date         string
	UnreadCount  int
	EmailLines   []string
	EventLines   []string
	PendingCount int
}

// Config controls the client's endpoint, model, and limits.
type Config struct {
	BaseURL   string
	APIKey    string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// Client issues chat completion requests over plain HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	maxTokens  int
	httpClient *http.Client
	log        *zap.Logger
}

// NewClient builds a Client, applying defaults for any unset option.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("assistant: api key must be provided")
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		model:      model,
		maxTokens:  maxTokens,
		httpClient: &http.Client{Timeout: timeout},
		log:        logger.WithModule("assistant"),
	}, nil
}

// Summarize produces a two-to-three sentence summary of an email.
func (c *Client) Summarize(ctx context.Context, in EmailInput) (string, error) {
	system := "You are an executive assistant. Summarize the email in two to three short sentences. Mention any deadline or requested action."
	user := formatEmail(in)

	return c.complete(ctx, "summarize", system, user)
}

// DraftReply writes a reply draft in the requested tone ("professional" when empty).
func (c *Client) DraftReply(ctx context.Context, in EmailInput, tone string) (string, error) {
	if strings.TrimSpace(tone) == "" {
		tone = "professional"
	}
	system := fmt.Sprintf("You are an executive assistant. Draft a %s reply to the email below. Return only the reply body.", tone)
	user := formatEmail(in)

	return c.complete(ctx, "draft_reply", system, user)
}

// Categorize assigns one of the known categories to an email. Unknown
// answers map to CategoryOther.
func (c *Client) Categorize(ctx context.Context, in EmailInput) (Category, error) {
	system := "Classify the email into exactly one category: action_required, meeting, financial, newsletter, personal, spam, other. Answer with the category name only."
	user := formatEmail(in)

	raw, err := c.complete(ctx, "categorize", system, user)
	if err != nil {
		return CategoryOther, err
	}

	switch Category(normalizeAnswer(raw)) {
	case CategoryAction:
		return CategoryAction, nil
	case CategoryMeeting:
		return CategoryMeeting, nil
	case CategoryFinancial:
		return CategoryFinancial, nil
	case CategoryNewsletter:
		return CategoryNewsletter, nil
	case CategoryPersonal:
		return CategoryPersonal, nil
	case CategorySpam:
		return CategorySpam, nil
	default:
		return CategoryOther, nil
	}
}

// DetectEmergency asks whether the email demands immediate attention.
func (c *Client) DetectEmergency(ctx context.Context, in EmailInput) (bool, error) {
	system := "Does this email describe an emergency that demands immediate attention from the recipient? Answer yes or no."
	user := formatEmail(in)

	raw, err := c.complete(ctx, "detect_emergency", system, user)
	if err != nil {
		return false, err
	}

	return strings.HasPrefix(normalizeAnswer(raw), "yes"), nil
}

// Sentiment reads the overall tone of an email.
func (c *Client) Sentiment(ctx context.Context, in EmailInput) (Sentiment, error) {
	system := "Describe the tone of the email with one word: positive, neutral, negative, or urgent. Answer with the word only."
	user := formatEmail(in)

	raw, err := c.complete(ctx, "sentiment", system, user)
	if err != nil {
		return SentimentNeutral, err
	}

	switch Sentiment(normalizeAnswer(raw)) {
	case SentimentPositive:
		return SentimentPositive, nil
	case SentimentNegative:
		return SentimentNegative, nil
	case SentimentUrgent:
		return SentimentUrgent, nil
	default:
		return SentimentNeutral, nil
	}
}

// MorningBriefing renders a short daily digest from the aggregated inputs.
func (c *Client) MorningBriefing(ctx context.Context, in BriefingInput) (string, error) {
	system := "You are an executive assistant writing a concise morning briefing. Use short paragraphs. Lead with the most time-sensitive item."

	var sb strings.Builder
	fmt.Fprintf(&sb, "Date: %s\n", in.Date)
	fmt.Fprintf(&sb, "Unread emails: %d\n", in.UnreadCount)
	fmt.Fprintf(&sb, "Pending alerts: %d\n", in.PendingCount)
	if len(in.EmailLines) > 0 {
		sb.WriteString("Notable emails:\n")
		for _, line := range in.EmailLines {
			sb.WriteString("- " + line + "\n")
		}
	}
	if len(in.EventLines) > 0 {
		sb.WriteString("Today's events:\n")
		for _, line := range in.EventLines {
			sb.WriteString("- " + line + "\n")
		}
	}

	return c.complete(ctx, "morning_briefing", system, sb.String())
}

func (c *Client) complete(ctx context.Context, operation, system, user string) (string, error) {
	reqBody := chatRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("assistant: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("assistant: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.AssistantCalls.WithLabelValues(operation, "error").Inc()
		kind := apperrors.ExternalUnavailable
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			kind = apperrors.ExternalTimeout
		}
		return "", apperrors.NewExternal(ServiceName, kind, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		metrics.AssistantCalls.WithLabelValues(operation, "error").Inc()
		return "", apperrors.NewExternal(ServiceName, apperrors.ExternalUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		metrics.AssistantCalls.WithLabelValues(operation, "error").Inc()
		kind := apperrors.ExternalUnavailable
		if resp.StatusCode == http.StatusTooManyRequests {
			kind = apperrors.ExternalRateLimited
		}
		return "", apperrors.NewExternal(ServiceName, kind, fmt.Errorf("assistant: status %d: %s", resp.StatusCode, apiErrorMessage(respBody)))
	}

	var result chatResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		metrics.AssistantCalls.WithLabelValues(operation, "error").Inc()
		return "", apperrors.NewExternal(ServiceName, apperrors.ExternalUnavailable, fmt.Errorf("assistant: decode response: %w", err))
	}

	if len(result.Choices) == 0 {
		metrics.AssistantCalls.WithLabelValues(operation, "error").Inc()
		return "", apperrors.NewExternal(ServiceName, apperrors.ExternalUnavailable, errors.New("assistant: empty response"))
	}

	metrics.AssistantCalls.WithLabelValues(operation, "success").Inc()
	c.log.Debug("assistant call completed",
		zap.String("operation", operation),
		zap.Duration("duration", time.Since(start)))

	return strings.TrimSpace(result.Choices[0].Message.Content), nil
}

func formatEmail(in EmailInput) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "From: %s\n", in.Sender)
	fmt.Fprintf(&sb, "Subject: %s\n\n", in.Subject)
	sb.WriteString(truncate(in.Body, 6000))
	return sb.String()
}

func normalizeAnswer(raw string) string {
	return strings.ToLower(strings.Trim(strings.TrimSpace(raw), ".\"'"))
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

func apiErrorMessage(body []byte) string {
	var apiErr struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
		return apiErr.Error.Message
	}
	return strings.TrimSpace(string(body))
}

type chatRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens,omitempty"`
	Messages  []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}
