package models

import (
	"time"
)

// Email is a message ingested from the user's mailbox, enriched with the
// classifier verdict and assistant-generated content.
type Email struct {
	BaseModel

	UserID    string `gorm:"type:uuid;not null;index;uniqueIndex:idx_emails_user_message" json:"user_id"`
	MessageID string `gorm:"type:varchar(512);not null;uniqueIndex:idx_emails_user_message" json:"message_id"`

	SenderEmail    string `gorm:"type:varchar(255);not null;index" json:"sender_email"`
	SenderName     string `gorm:"type:varchar(255)" json:"sender_name"`
	RecipientEmail string `gorm:"type:varchar(255)" json:"recipient_email"`
	Subject        string `gorm:"type:text;not null" json:"subject"`
	Body           string `gorm:"type:text" json:"body"`

	Priority    AlertPriority `gorm:"type:varchar(16);default:'normal'" json:"priority"`
	IsEmergency bool          `gorm:"default:false" json:"is_emergency"`
	IsFromVIP   bool          `gorm:"column:is_from_vip;default:false" json:"is_from_vip"`

	Summary        string `gorm:"type:text" json:"summary"`
	SuggestedReply string `gorm:"type:text" json:"suggested_reply"`
	Sentiment      string `gorm:"type:varchar(32)" json:"sentiment"`
	Category       string `gorm:"type:varchar(32)" json:"category"`

	ReceivedAt  time.Time  `gorm:"not null;index" json:"received_at"`
	ProcessedAt *time.Time `json:"processed_at"`
}
