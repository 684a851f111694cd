package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/secretaryai/secretary/internal/alerts"
	"github.com/secretaryai/secretary/internal/models"
	apperrors "github.com/secretaryai/secretary/pkg/errors"
	"github.com/secretaryai/secretary/pkg/metrics"
)

// UserDTO represents the API-friendly user payload.
type UserDTO struct {
	ID                string     `json:"id"`
	Email             string     `json:"email"`
	FullName          string     `json:"full_name"`
	IsActive          bool       `json:"is_active"`
	VIPSenders        []string   `json:"vip_senders"`
	EmergencyKeywords []string   `json:"emergency_keywords"`
	BriefingTime      string     `json:"briefing_time"`
	AssistantTone     string     `json:"assistant_tone"`
	AssistantLanguage string     `json:"assistant_language"`
	LastLoginAt       *time.Time `json:"last_login_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

// UpdatePreferencesInput carries the user-tunable alerting preferences. Nil
// fields are left unchanged.
type UpdatePreferencesInput struct {
	VIPSenders        []string `json:"vip_senders"`
	EmergencyKeywords []string `json:"emergency_keywords"`
	BriefingTime      *string  `json:"briefing_time"`
	AssistantTone     *string  `json:"assistant_tone"`
	AssistantLanguage *string  `json:"assistant_language"`
}

// UserService manages accounts and their alerting preferences.
type UserService struct {
	db *gorm.DB
}

// NewUserService constructs a UserService.
func NewUserService(db *gorm.DB) (*UserService, error) {
	if db == nil {
		return nil, errors.New("user service: db is required")
	}
	return &UserService{db: db}, nil
}

// Authenticate verifies the credentials and records the login time.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	ctx = ensureContext(ctx)
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return nil, apperrors.ErrInvalidCredentials
	}

	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			metrics.AuthAttempts.WithLabelValues("failure").Inc()
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("user service: load user: %w", err)
	}

	if !user.IsActive {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return nil, apperrors.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return nil, apperrors.ErrInvalidCredentials
	}

	now := time.Now().UTC()
	if err := s.db.WithContext(ctx).Model(&user).Update("last_login_at", now).Error; err != nil {
		return nil, fmt.Errorf("user service: record login: %w", err)
	}
	user.LastLoginAt = &now

	metrics.AuthAttempts.WithLabelValues("success").Inc()
	return &user, nil
}

// GetByID loads a user by id.
func (s *UserService) GetByID(ctx context.Context, userID string) (*models.User, error) {
	ctx = ensureContext(ctx)

	var user models.User
	if err := s.db.WithContext(ctx).Where("id = ?", strings.TrimSpace(userID)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("user service: load user: %w", err)
	}
	return &user, nil
}

// Profile returns the API-friendly view of a user.
func (s *UserService) Profile(ctx context.Context, userID string) (*UserDTO, error) {
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	dto := mapUser(*user)
	return &dto, nil
}

// ListActive returns every active account. The background triggers iterate
// this set and decide per user whether mailbox or calendar work applies.
func (s *UserService) ListActive(ctx context.Context) ([]models.User, error) {
	ctx = ensureContext(ctx)

	var users []models.User
	if err := s.db.WithContext(ctx).Where("is_active = ?", true).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("user service: list active users: %w", err)
	}
	return users, nil
}

// UpdatePreferences applies the supplied preference changes to the user.
func (s *UserService) UpdatePreferences(ctx context.Context, userID string, input UpdatePreferencesInput) (*UserDTO, error) {
	ctx = ensureContext(ctx)
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}

	if input.VIPSenders != nil {
		data, err := json.Marshal(normalizeAddressList(input.VIPSenders))
		if err != nil {
			return nil, fmt.Errorf("user service: marshal vip senders: %w", err)
		}
		updates["vip_senders"] = data
	}
	if input.EmergencyKeywords != nil {
		data, err := json.Marshal(normalizeAddressList(input.EmergencyKeywords))
		if err != nil {
			return nil, fmt.Errorf("user service: marshal keywords: %w", err)
		}
		updates["emergency_keywords"] = data
	}
	if input.BriefingTime != nil {
		if _, err := time.Parse("15:04", *input.BriefingTime); err != nil {
			return nil, apperrors.NewBadRequest("briefing_time must be HH:MM")
		}
		updates["briefing_time"] = *input.BriefingTime
	}
	if input.AssistantTone != nil {
		updates["assistant_tone"] = defaultIfEmpty(*input.AssistantTone, "professional")
	}
	if input.AssistantLanguage != nil {
		updates["assistant_language"] = defaultIfEmpty(*input.AssistantLanguage, "en")
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("user service: update preferences: %w", err)
		}
		if user, err = s.GetByID(ctx, userID); err != nil {
			return nil, err
		}
	}

	dto := mapUser(*user)
	return &dto, nil
}

// ClassifierPreferences projects the user's settings for the classifier.
func ClassifierPreferences(user *models.User) alerts.Preferences {
	return alerts.Preferences{
		VIPSenders:        user.VIPSenderList(),
		EmergencyKeywords: user.EmergencyKeywordList(),
	}
}

func mapUser(user models.User) UserDTO {
	return UserDTO{
		ID:                user.ID,
		Email:             user.Email,
		FullName:          user.FullName,
		IsActive:          user.IsActive,
		VIPSenders:        user.VIPSenderList(),
		EmergencyKeywords: user.EmergencyKeywordList(),
		BriefingTime:      user.BriefingTime,
		AssistantTone:     user.AssistantTone,
		AssistantLanguage: user.AssistantLanguage,
		LastLoginAt:       user.LastLoginAt,
		CreatedAt:         user.CreatedAt,
	}
}

func normalizeAddressList(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.ToLower(strings.TrimSpace(value))
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}
