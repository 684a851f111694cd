package alerts

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/secretaryai/secretary/internal/assistant"
	"github.com/secretaryai/secretary/internal/models"
)

type stubDetector struct {
	emergency    bool
	emergencyErr error
	category     assistant.Category
	categoryErr  error
	sentiment    assistant.Sentiment
	sentimentErr error
}

func (s *stubDetector) DetectEmergency(context.Context, assistant.EmailInput) (bool, error) {
	return s.emergency, s.emergencyErr
}

func (s *stubDetector) Categorize(context.Context, assistant.EmailInput) (assistant.Category, error) {
	return s.category, s.categoryErr
}

func (s *stubDetector) Sentiment(context.Context, assistant.EmailInput) (assistant.Sentiment, error) {
	return s.sentiment, s.sentimentErr
}

var testPrefs = Preferences{
	VIPSenders:        []string{"CEO@Company.com"},
	EmergencyKeywords: []string{"urgent", "server down"},
}

func TestClassifyEmergencyBeatsVIP(t *testing.T) {
	classifier := NewClassifier(nil)

	class := classifier.Classify(context.Background(), AlertCandidate{
		Sender:  "ceo@company.com",
		Subject: "URGENT: approvals needed",
	}, testPrefs)

	require.True(t, class.IsEmergency)
	require.True(t, class.IsVIP)
	require.Equal(t, models.AlertPriorityUrgent, class.Priority)
}

func TestClassifyVIPMatchIsCaseInsensitive(t *testing.T) {
	classifier := NewClassifier(nil)

	class := classifier.Classify(context.Background(), AlertCandidate{
		Sender:  "ceo@company.com",
		Subject: "Re: budget",
		Body:    "Looks good to me.",
	}, testPrefs)

	require.False(t, class.IsEmergency)
	require.True(t, class.IsVIP)
	require.Equal(t, models.AlertPriorityHigh, class.Priority)
}

func TestClassifyKeywordEmergencyFromNonVIP(t *testing.T) {
	classifier := NewClassifier(nil)

	class := classifier.Classify(context.Background(), AlertCandidate{
		Sender:  "ops@elsewhere.com",
		Subject: "URGENT - server down",
	}, testPrefs)

	require.True(t, class.IsEmergency)
	require.False(t, class.IsVIP)
	require.Equal(t, models.AlertPriorityUrgent, class.Priority)
}

func TestClassifyDetectorEmergency(t *testing.T) {
	classifier := NewClassifier(&stubDetector{emergency: true})

	class := classifier.Classify(context.Background(), AlertCandidate{
		Sender:  "someone@example.com",
		Subject: "The building is on fire",
	}, testPrefs)

	require.True(t, class.IsEmergency)
	require.Equal(t, models.AlertPriorityUrgent, class.Priority)
}

func TestClassifyDegradesWhenDetectorFails(t *testing.T) {
	classifier := NewClassifier(&stubDetector{
		emergencyErr: errors.New("timeout"),
		categoryErr:  errors.New("timeout"),
		sentimentErr: errors.New("timeout"),
	})

	class := classifier.Classify(context.Background(), AlertCandidate{
		Sender:  "someone@example.com",
		Subject: "Weekly notes",
	}, testPrefs)

	require.False(t, class.IsEmergency)
	require.False(t, class.IsVIP)
	require.Equal(t, models.AlertPriorityNormal, class.Priority)
	require.Equal(t, assistant.SentimentNeutral, class.Sentiment)
}

func TestClassifyCategoryMapsToLowPriority(t *testing.T) {
	classifier := NewClassifier(&stubDetector{
		category:  assistant.CategoryNewsletter,
		sentiment: assistant.SentimentNeutral,
	})

	class := classifier.Classify(context.Background(), AlertCandidate{
		Sender:  "news@example.com",
		Subject: "This week in Go",
	}, testPrefs)

	require.Equal(t, models.AlertPriorityLow, class.Priority)
	require.Equal(t, assistant.CategoryNewsletter, class.Category)
}
