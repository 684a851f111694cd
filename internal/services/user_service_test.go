package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/secretaryai/secretary/internal/database"
	"github.com/secretaryai/secretary/internal/database/testutil"
	"github.com/secretaryai/secretary/internal/models"
	apperrors "github.com/secretaryai/secretary/pkg/errors"
)

func TestAuthenticateBootstrapAdmin(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())
	svc, err := NewUserService(db)
	require.NoError(t, err)

	user, err := svc.Authenticate(context.Background(), database.DefaultAdminEmail, "changeme")
	require.NoError(t, err)
	require.Equal(t, database.DefaultAdminEmail, user.Email)
	require.NotNil(t, user.LastLoginAt)

	_, err = svc.Authenticate(context.Background(), database.DefaultAdminEmail, "wrong")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	_, err = svc.Authenticate(context.Background(), "nobody@secretary.local", "changeme")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
}

// The default naming strategy splits VIP into v_ip; the raw queries rely on
// the explicit column names.
func TestPreferenceColumnsUseExplicitNames(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	require.True(t, db.Migrator().HasColumn(&models.User{}, "vip_senders"))
	require.True(t, db.Migrator().HasColumn(&models.Email{}, "is_from_vip"))
}

func TestUpdatePreferences(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())
	svc, err := NewUserService(db)
	require.NoError(t, err)

	admin, err := svc.Authenticate(context.Background(), database.DefaultAdminEmail, "changeme")
	require.NoError(t, err)

	briefing := "07:30"
	tone := "casual"
	dto, err := svc.UpdatePreferences(context.Background(), admin.ID, UpdatePreferencesInput{
		VIPSenders:    []string{" CEO@Company.com ", "ceo@company.com", "cfo@company.com"},
		BriefingTime:  &briefing,
		AssistantTone: &tone,
	})
	require.NoError(t, err)
	require.Equal(t, []string{"ceo@company.com", "cfo@company.com"}, dto.VIPSenders)
	require.Equal(t, "07:30", dto.BriefingTime)
	require.Equal(t, "casual", dto.AssistantTone)

	// Seeded defaults survive when the field is omitted.
	require.NotEmpty(t, dto.EmergencyKeywords)

	bad := "25:99"
	_, err = svc.UpdatePreferences(context.Background(), admin.ID, UpdatePreferencesInput{BriefingTime: &bad})
	require.Error(t, err)

	_, err = svc.UpdatePreferences(context.Background(), "missing-user", UpdatePreferencesInput{})
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}
