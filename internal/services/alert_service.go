package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/secretaryai/secretary/internal/alerts"
	"github.com/secretaryai/secretary/internal/models"
	apperrors "github.com/secretaryai/secretary/pkg/errors"
	"github.com/secretaryai/secretary/pkg/metrics"
)

// AlertDTO represents the API-friendly alert payload.
type AlertDTO struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Priority  string         `json:"priority"`
	Status    string         `json:"status"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	SentAt    *time.Time     `json:"sent_at,omitempty"`
	ReadAt    *time.Time     `json:"read_at,omitempty"`
}

// InsertResult reports whether an insert created an alert or was suppressed
// by deduplication.
type InsertResult struct {
	Created    bool
	Alert      *AlertDTO
	ExistingID string
}

// ListAlertsInput defines filters for querying a user's alerts.
type ListAlertsInput struct {
	UserID string
	Type   string
	Status string
	Limit  int
	Offset int
}

// AlertStatsDTO aggregates alert counts for the dashboard.
type AlertStatsDTO struct {
	Total      int64            `json:"total"`
	Unread     int64            `json:"unread"`
	ByType     map[string]int64 `json:"by_type"`
	ByPriority map[string]int64 `json:"by_priority"`
}

// AlertService is the deduplicating alert store. All alert mutations in the
// system go through it.
type AlertService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewAlertService constructs an AlertService.
func NewAlertService(db *gorm.DB) (*AlertService, error) {
	if db == nil {
		return nil, errors.New("alert service: db is required")
	}
	return &AlertService{db: db, now: time.Now}, nil
}

// InsertIfNew atomically inserts an alert for the candidate unless an alert
// with the same source key already exists for the user. The uniqueness check
// rides on the (user_id, source_key) constraint, so concurrent ticks
// processing the same source event produce exactly one row.
func (s *AlertService) InsertIfNew(ctx context.Context, userID string, candidate alerts.AlertCandidate, class alerts.Classification) (*InsertResult, error) {
	ctx = ensureContext(ctx)
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, errors.New("alert service: user id is required")
	}
	if strings.TrimSpace(candidate.SourceKey) == "" {
		return nil, apperrors.NewMalformed("alert candidate has no source key")
	}
	if !candidate.Type.Valid() {
		return nil, apperrors.NewMalformed(fmt.Sprintf("unknown alert type %q", candidate.Type))
	}

	priority := class.Priority
	if !priority.Valid() {
		priority = models.AlertPriorityNormal
	}

	metadata, err := encodeJSON(candidate.Metadata)
	if err != nil {
		return nil, fmt.Errorf("alert service: marshal metadata: %w", err)
	}

	alert := models.Alert{
		UserID:    userID,
		SourceKey: candidate.SourceKey,
		Type:      candidate.Type,
		Priority:  priority,
		Status:    models.AlertStatusPending,
		Title:     strings.TrimSpace(candidate.Title),
		Message:   strings.TrimSpace(candidate.Message),
		Metadata:  metadata,
	}

	if err := s.db.WithContext(ctx).Create(&alert).Error; err != nil {
		if !isUniqueConstraintError(err) {
			return nil, fmt.Errorf("alert service: create alert: %w", err)
		}

		var existing models.Alert
		if lookupErr := s.db.WithContext(ctx).
			Select("id").
			Where("user_id = ? AND source_key = ?", userID, candidate.SourceKey).
			First(&existing).Error; lookupErr != nil {
			return nil, fmt.Errorf("alert service: load duplicate: %w", lookupErr)
		}

		metrics.AlertsSuppressed.WithLabelValues(string(candidate.Type)).Inc()
		return &InsertResult{ExistingID: existing.ID}, nil
	}

	metrics.AlertsCreated.WithLabelValues(string(alert.Type), string(alert.Priority)).Inc()
	dto := mapAlert(alert)
	return &InsertResult{Created: true, Alert: &dto}, nil
}

// Exists reports whether the user already has an alert for the source key.
// Used as a cheap pre-check before expensive alert generation; InsertIfNew
// remains the authoritative guard.
func (s *AlertService) Exists(ctx context.Context, userID, sourceKey string) (bool, error) {
	ctx = ensureContext(ctx)

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Alert{}).
		Where("user_id = ? AND source_key = ?", strings.TrimSpace(userID), sourceKey).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("alert service: check source key: %w", err)
	}
	return count > 0, nil
}

// Get loads a single alert owned by the user.
func (s *AlertService) Get(ctx context.Context, userID, alertID string) (*AlertDTO, error) {
	ctx = ensureContext(ctx)
	alert, err := s.load(ctx, userID, alertID)
	if err != nil {
		return nil, err
	}
	dto := mapAlert(*alert)
	return &dto, nil
}

// MarkRead transitions an alert to read. Reading an already-read alert is a
// no-op; reading a dismissed alert is rejected.
func (s *AlertService) MarkRead(ctx context.Context, userID, alertID string) (*AlertDTO, error) {
	ctx = ensureContext(ctx)
	alert, err := s.load(ctx, userID, alertID)
	if err != nil {
		return nil, err
	}

	switch alert.Status {
	case models.AlertStatusDismissed:
		return nil, apperrors.ErrInvalidTransition
	case models.AlertStatusRead:
		dto := mapAlert(*alert)
		return &dto, nil
	}

	now := s.now().UTC()
	updates := map[string]any{
		"status":  models.AlertStatusRead,
		"read_at": now,
	}
	if alert.SentAt == nil {
		updates["sent_at"] = now
	}

	if err := s.db.WithContext(ctx).Model(alert).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("alert service: mark read: %w", err)
	}

	alert.Status = models.AlertStatusRead
	alert.ReadAt = &now
	if alert.SentAt == nil {
		alert.SentAt = &now
	}

	dto := mapAlert(*alert)
	return &dto, nil
}

// Dismiss terminally dismisses an alert from any prior status. The source key
// is rewritten in the same transaction so a later occurrence of the same
// source event may create a fresh alert.
func (s *AlertService) Dismiss(ctx context.Context, userID, alertID string) (*AlertDTO, error) {
	ctx = ensureContext(ctx)
	alert, err := s.load(ctx, userID, alertID)
	if err != nil {
		return nil, err
	}

	if alert.Status == models.AlertStatusDismissed {
		dto := mapAlert(*alert)
		return &dto, nil
	}

	retiredKey := fmt.Sprintf("%s#dismissed:%s", alert.SourceKey, alert.ID)
	if err := s.db.WithContext(ctx).Model(alert).Updates(map[string]any{
		"status":     models.AlertStatusDismissed,
		"source_key": retiredKey,
	}).Error; err != nil {
		return nil, fmt.Errorf("alert service: dismiss: %w", err)
	}

	alert.Status = models.AlertStatusDismissed
	alert.SourceKey = retiredKey

	dto := mapAlert(*alert)
	return &dto, nil
}

// MarkAllRead marks every pending or sent alert for the user as read and
// returns the number of rows updated. Dismissed and read rows are untouched.
func (s *AlertService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	ctx = ensureContext(ctx)
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, errors.New("alert service: user id is required")
	}

	now := s.now().UTC()
	var updated int64

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Alert{}).
			Where("user_id = ? AND status = ? AND sent_at IS NULL", userID, models.AlertStatusPending).
			Update("sent_at", now).Error; err != nil {
			return err
		}

		result := tx.Model(&models.Alert{}).
			Where("user_id = ? AND status IN ?", userID, []models.AlertStatus{models.AlertStatusPending, models.AlertStatusSent}).
			Updates(map[string]any{
				"status":  models.AlertStatusRead,
				"read_at": now,
			})
		if result.Error != nil {
			return result.Error
		}

		updated = result.RowsAffected
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("alert service: mark all read: %w", err)
	}

	return updated, nil
}

// List returns the user's alerts, newest first, optionally filtered by type
// and status, along with the total row count for pagination.
func (s *AlertService) List(ctx context.Context, input ListAlertsInput) ([]AlertDTO, int64, error) {
	ctx = ensureContext(ctx)
	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return nil, 0, errors.New("alert service: user id is required")
	}

	query := s.db.WithContext(ctx).Model(&models.Alert{}).Where("user_id = ?", userID)

	if alertType := models.AlertType(strings.TrimSpace(input.Type)); alertType != "" {
		if !alertType.Valid() {
			return nil, 0, apperrors.NewBadRequest(fmt.Sprintf("unknown alert type %q", input.Type))
		}
		query = query.Where("type = ?", alertType)
	}
	if status := models.AlertStatus(strings.TrimSpace(input.Status)); status != "" {
		if !status.Valid() {
			return nil, 0, apperrors.NewBadRequest(fmt.Sprintf("unknown alert status %q", input.Status))
		}
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("alert service: count alerts: %w", err)
	}

	var rows []models.Alert
	if err := query.
		Order("created_at DESC").
		Limit(clampLimit(input.Limit, 25, 100)).
		Offset(max(0, input.Offset)).
		Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("alert service: list alerts: %w", err)
	}

	return mapAlertRows(rows), total, nil
}

// ListUnread returns the user's pending and sent alerts, most urgent first.
func (s *AlertService) ListUnread(ctx context.Context, userID string, limit int) ([]AlertDTO, error) {
	ctx = ensureContext(ctx)
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, errors.New("alert service: user id is required")
	}

	var rows []models.Alert
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND status IN ?", userID, []models.AlertStatus{models.AlertStatusPending, models.AlertStatusSent}).
		Order("created_at DESC").
		Limit(clampLimit(limit, 50, 200)).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("alert service: list unread: %w", err)
	}

	dtos := mapAlertRows(rows)
	sortByPriority(rows, dtos)
	return dtos, nil
}

// Stats aggregates the user's alert counts by type and priority.
func (s *AlertService) Stats(ctx context.Context, userID string) (*AlertStatsDTO, error) {
	ctx = ensureContext(ctx)
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, errors.New("alert service: user id is required")
	}

	stats := &AlertStatsDTO{
		ByType:     make(map[string]int64),
		ByPriority: make(map[string]int64),
	}

	base := s.db.WithContext(ctx).Model(&models.Alert{}).Where("user_id = ?", userID)

	if err := base.Session(&gorm.Session{}).Count(&stats.Total).Error; err != nil {
		return nil, fmt.Errorf("alert service: count total: %w", err)
	}
	if err := base.Session(&gorm.Session{}).
		Where("status IN ?", []models.AlertStatus{models.AlertStatusPending, models.AlertStatusSent}).
		Count(&stats.Unread).Error; err != nil {
		return nil, fmt.Errorf("alert service: count unread: %w", err)
	}

	type bucket struct {
		Key   string
		Count int64
	}

	var byType []bucket
	if err := base.Session(&gorm.Session{}).
		Select("type AS key, COUNT(*) AS count").
		Group("type").
		Scan(&byType).Error; err != nil {
		return nil, fmt.Errorf("alert service: count by type: %w", err)
	}
	for _, row := range byType {
		stats.ByType[row.Key] = row.Count
	}

	var byPriority []bucket
	if err := base.Session(&gorm.Session{}).
		Select("priority AS key, COUNT(*) AS count").
		Group("priority").
		Scan(&byPriority).Error; err != nil {
		return nil, fmt.Errorf("alert service: count by priority: %w", err)
	}
	for _, row := range byPriority {
		stats.ByPriority[row.Key] = row.Count
	}

	return stats, nil
}

// FlushPending transitions pending alerts older than the grace period to
// sent, across all users, and returns the number of rows updated.
func (s *AlertService) FlushPending(ctx context.Context, grace time.Duration) (int64, error) {
	ctx = ensureContext(ctx)

	now := s.now().UTC()
	cutoff := now.Add(-grace)

	result := s.db.WithContext(ctx).Model(&models.Alert{}).
		Where("status = ? AND created_at <= ?", models.AlertStatusPending, cutoff).
		Updates(map[string]any{
			"status":  models.AlertStatusSent,
			"sent_at": now,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("alert service: flush pending: %w", result.Error)
	}

	return result.RowsAffected, nil
}

func (s *AlertService) load(ctx context.Context, userID, alertID string) (*models.Alert, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, errors.New("alert service: user id is required")
	}

	var alert models.Alert
	if err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", strings.TrimSpace(alertID), userID).
		First(&alert).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("alert service: load alert: %w", err)
	}
	return &alert, nil
}

// sortByPriority reorders the DTO slice so more urgent alerts come first,
// keeping the recency order within each priority band.
func sortByPriority(rows []models.Alert, dtos []AlertDTO) {
	for i := 1; i < len(rows); i++ {
		for j := i; j > 0 && rows[j].Priority.Rank() > rows[j-1].Priority.Rank(); j-- {
			rows[j], rows[j-1] = rows[j-1], rows[j]
			dtos[j], dtos[j-1] = dtos[j-1], dtos[j]
		}
	}
}

func mapAlertRows(rows []models.Alert) []AlertDTO {
	items := make([]AlertDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapAlert(row))
	}
	return items
}

func mapAlert(row models.Alert) AlertDTO {
	return AlertDTO{
		ID:        row.ID,
		Type:      string(row.Type),
		Priority:  string(row.Priority),
		Status:    string(row.Status),
		Title:     row.Title,
		Message:   row.Message,
		Metadata:  decodeJSON(row.Metadata),
		CreatedAt: row.CreatedAt,
		SentAt:    row.SentAt,
		ReadAt:    row.ReadAt,
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
