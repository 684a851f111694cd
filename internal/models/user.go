package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// User holds account credentials plus the per-user mailbox, calendar, and
// assistant settings the background triggers operate on.
type User struct {
	BaseModel

	Email    string `gorm:"uniqueIndex;not null" json:"email"`
	Password string `gorm:"not null" json:"-"`
	FullName string `gorm:"type:varchar(255)" json:"full_name"`

	IsActive bool `gorm:"default:true" json:"is_active"`

	// Mailbox transport settings. IMAP credentials are required before the
	// email poll trigger picks the user up.
	IMAPHost     string `gorm:"type:varchar(255)" json:"-"`
	IMAPPort     int    `gorm:"default:993" json:"-"`
	IMAPUsername string `gorm:"type:varchar(255)" json:"-"`
	IMAPPassword string `gorm:"type:text" json:"-"`
	IMAPUseTLS   bool   `gorm:"default:true" json:"-"`

	SMTPHost     string `gorm:"type:varchar(255)" json:"-"`
	SMTPPort     int    `gorm:"default:587" json:"-"`
	SMTPUsername string `gorm:"type:varchar(255)" json:"-"`
	SMTPPassword string `gorm:"type:text" json:"-"`

	// Calendar sync settings. The refresh token is provisioned out of band;
	// OAuth consent flows are not part of this service.
	CalendarID         string `gorm:"type:varchar(255);default:'primary'" json:"-"`
	GoogleRefreshToken string `gorm:"type:text" json:"-"`

	// Alerting preferences.
	// Explicit column name: the default naming strategy would split the
	// initialism into v_ip_senders.
	VIPSenders        datatypes.JSON `gorm:"column:vip_senders" json:"vip_senders"`
	EmergencyKeywords datatypes.JSON `json:"emergency_keywords"`
	BriefingTime      string         `gorm:"type:varchar(5);default:'08:00'" json:"briefing_time"`

	// Assistant preferences.
	AssistantTone     string `gorm:"type:varchar(32);default:'professional'" json:"assistant_tone"`
	AssistantLanguage string `gorm:"type:varchar(10);default:'en'" json:"assistant_language"`

	LastLoginAt *time.Time `json:"last_login_at"`
}

// HasMailbox reports whether the user has IMAP polling configured.
func (u *User) HasMailbox() bool {
	return u.IMAPHost != "" && u.IMAPUsername != ""
}

// HasSMTP reports whether the user has a personal outbound mail account.
func (u *User) HasSMTP() bool {
	return u.SMTPHost != "" && u.SMTPUsername != ""
}

// HasCalendar reports whether the user has calendar sync configured.
func (u *User) HasCalendar() bool {
	return u.GoogleRefreshToken != ""
}

// VIPSenderList decodes the stored VIP sender addresses.
func (u *User) VIPSenderList() []string {
	return decodeStringList(u.VIPSenders)
}

// EmergencyKeywordList decodes the stored emergency keywords.
func (u *User) EmergencyKeywordList() []string {
	return decodeStringList(u.EmergencyKeywords)
}

func decodeStringList(data datatypes.JSON) []string {
	if len(data) == 0 {
		return nil
	}
	var out []string
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}
