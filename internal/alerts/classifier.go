package alerts

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/secretaryai/secretary/internal/assistant"
	"github.com/secretaryai/secretary/internal/models"
	"github.com/secretaryai/secretary/pkg/logger"
)

// Classification is the classifier's verdict for one candidate.
type Classification struct {
	Priority    models.AlertPriority
	IsEmergency bool
	IsVIP       bool
	Category    assistant.Category
	Sentiment   assistant.Sentiment
}

// Preferences carries the per-user knobs the classifier consults.
type Preferences struct {
	VIPSenders        []string
	EmergencyKeywords []string
}

// Detector is the slice of the assistant the classifier depends on. Both
// calls may fail; the classifier degrades to keyword-only rules when they do.
type Detector interface {
	DetectEmergency(ctx context.Context, in assistant.EmailInput) (bool, error)
	Categorize(ctx context.Context, in assistant.EmailInput) (assistant.Category, error)
	Sentiment(ctx context.Context, in assistant.EmailInput) (assistant.Sentiment, error)
}

// categoryPriorities maps assistant categories onto the lower priority band.
// Emergency and VIP rules take precedence and never consult this map.
var categoryPriorities = map[assistant.Category]models.AlertPriority{
	assistant.CategoryAction:     models.AlertPriorityNormal,
	assistant.CategoryMeeting:    models.AlertPriorityNormal,
	assistant.CategoryFinancial:  models.AlertPriorityNormal,
	assistant.CategoryPersonal:   models.AlertPriorityNormal,
	assistant.CategoryNewsletter: models.AlertPriorityLow,
	assistant.CategorySpam:       models.AlertPriorityLow,
	assistant.CategoryOther:      models.AlertPriorityNormal,
}

// Classifier assigns a priority and VIP/emergency flags to email candidates.
type Classifier struct {
	detector Detector
	log      *zap.Logger
}

// NewClassifier builds a Classifier. The detector may be nil, in which case
// only the VIP and keyword rules apply.
func NewClassifier(detector Detector) *Classifier {
	return &Classifier{
		detector: detector,
		log:      logger.WithModule("classifier"),
	}
}

// Classify applies the precedence rules: emergency wins over VIP, VIP wins
// over the assistant's category mapping, and everything else is normal.
func (c *Classifier) Classify(ctx context.Context, candidate AlertCandidate, prefs Preferences) Classification {
	class := Classification{
		IsVIP:     isVIPSender(candidate.Sender, prefs.VIPSenders),
		Category:  assistant.CategoryOther,
		Sentiment: assistant.SentimentNeutral,
	}

	class.IsEmergency = matchesKeyword(candidate.Subject+"\n"+candidate.Body, prefs.EmergencyKeywords)

	input := assistant.EmailInput{
		Sender:  candidate.Sender,
		Subject: candidate.Subject,
		Body:    candidate.Body,
	}

	if !class.IsEmergency && c.detector != nil {
		detected, err := c.detector.DetectEmergency(ctx, input)
		if err != nil {
			c.log.Warn("emergency detection degraded to keyword rules", zap.Error(err))
		} else {
			class.IsEmergency = detected
		}
	}

	switch {
	case class.IsEmergency:
		class.Priority = models.AlertPriorityUrgent
	case class.IsVIP:
		class.Priority = models.AlertPriorityHigh
	default:
		class.Priority = models.AlertPriorityNormal
		if c.detector != nil {
			category, err := c.detector.Categorize(ctx, input)
			if err != nil {
				c.log.Warn("categorization unavailable, defaulting to normal priority", zap.Error(err))
			} else {
				class.Category = category
				if priority, ok := categoryPriorities[category]; ok {
					class.Priority = priority
				}
			}
		}
	}

	if c.detector != nil {
		if sentiment, err := c.detector.Sentiment(ctx, input); err == nil {
			class.Sentiment = sentiment
		}
	}

	return class
}

func isVIPSender(sender string, vipSenders []string) bool {
	sender = strings.ToLower(strings.TrimSpace(sender))
	if sender == "" {
		return false
	}
	for _, vip := range vipSenders {
		if strings.ToLower(strings.TrimSpace(vip)) == sender {
			return true
		}
	}
	return false
}

func matchesKeyword(text string, keywords []string) bool {
	lowered := strings.ToLower(text)
	for _, keyword := range keywords {
		keyword = strings.ToLower(strings.TrimSpace(keyword))
		if keyword != "" && strings.Contains(lowered, keyword) {
			return true
		}
	}
	return false
}
