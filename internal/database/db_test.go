package database

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/secretaryai/secretary/internal/models"
)

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported database driver")
}

func TestOpenDefaultsToSQLiteMemory(t *testing.T) {
	db, err := Open(Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	defer sqlDB.Close()

	require.NoError(t, AutoMigrate(db))
	require.True(t, db.Migrator().HasTable(&models.Alert{}))
	require.True(t, db.Migrator().HasTable(&models.User{}))
}

func TestSeedDataCreatesBootstrapAdminOnce(t *testing.T) {
	db, err := Open(Config{Driver: "sqlite"})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	defer sqlDB.Close()

	require.NoError(t, AutoMigrateAndSeed(db))

	var count int64
	require.NoError(t, db.Model(&models.User{}).Count(&count).Error)
	require.EqualValues(t, 1, count)

	// Idempotent on restart.
	require.NoError(t, SeedData(db))
	require.NoError(t, db.Model(&models.User{}).Count(&count).Error)
	require.EqualValues(t, 1, count)

	var admin models.User
	require.NoError(t, db.Where("email = ?", DefaultAdminEmail).First(&admin).Error)
	require.NotEmpty(t, admin.EmergencyKeywordList())
}
