package database

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/secretaryai/secretary/internal/models"
	"github.com/secretaryai/secretary/pkg/logger"
)

// DefaultAdminEmail is the account created on first start so the API is
// reachable before any user is provisioned. The password must be rotated.
const DefaultAdminEmail = "admin@secretary.local"

const defaultAdminPassword = "changeme"

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Email{},
		&models.CalendarEvent{},
		&models.Alert{},
	)
}

// SeedData provisions the bootstrap admin account when the store is empty.
func SeedData(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.User{}).Count(&count).Error; err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if count > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(defaultAdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash bootstrap password: %w", err)
	}

	admin := models.User{
		Email:             DefaultAdminEmail,
		Password:          string(hash),
		FullName:          "Secretary Admin",
		IsActive:          true,
		VIPSenders:        datatypes.JSON(`[]`),
		EmergencyKeywords: datatypes.JSON(`["urgent","emergency","asap","critical"]`),
		BriefingTime:      "08:00",
	}
	if err := db.Create(&admin).Error; err != nil {
		return fmt.Errorf("create bootstrap admin: %w", err)
	}

	logger.WithModule("database").Warn("created bootstrap admin account; rotate its password")
	return nil
}
