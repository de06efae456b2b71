package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"24h", 24 * time.Hour},
		{"90m", 90 * time.Minute},
		{"7d", 7 * 24 * time.Hour},
		{"2w", 14 * 24 * time.Hour},
		{" 3D ", 3 * 24 * time.Hour},
	}
	for _, tc := range tests {
		got, err := parseDuration(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}

	_, err := parseDuration("soon")
	assert.Error(t, err)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("USE_SSM", "false")
	t.Setenv("APP_ENV", "development")
	t.Setenv("DB_DRIVER", "")
	t.Setenv("DB_PORT", "")
	t.Setenv("STORE_MODE", "")
	t.Setenv("RESET_KEYWORD", "")
	t.Setenv("ENFORCE_ROLES", "")
	t.Setenv("BACKUP_CRON", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverMySQL, cfg.DBDriver)
	assert.Equal(t, "3306", cfg.DBPort)
	assert.Equal(t, StoreModeDatabase, cfg.StoreMode)
	assert.Equal(t, "smpthhkok", cfg.ResetKeyword)
	assert.False(t, cfg.EnforceRoles)
	assert.Equal(t, "0 2 * * *", cfg.BackupCron)
	assert.Contains(t, cfg.GetDSN(), "@tcp(")
}

func TestLoadPostgresAndOffline(t *testing.T) {
	t.Setenv("USE_SSM", "false")
	t.Setenv("APP_ENV", "development")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DB_PORT", "")
	t.Setenv("DB_SSLMODE", "require")
	t.Setenv("STORE_MODE", "offline")
	t.Setenv("ENFORCE_ROLES", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "5432", cfg.DBPort)
	assert.Contains(t, cfg.GetDSN(), "sslmode=require")
	assert.True(t, cfg.Offline())
	assert.True(t, cfg.EnforceRoles)
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	t.Setenv("USE_SSM", "false")
	t.Setenv("APP_ENV", "development")

	t.Setenv("STORE_MODE", "cloud")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("STORE_MODE", "database")
	t.Setenv("JWT_EXPIRES_IN", "tomorrow")
	_, err = Load()
	assert.Error(t, err)
}

func TestProductionRequiresSecrets(t *testing.T) {
	t.Setenv("USE_SSM", "false")
	t.Setenv("APP_ENV", "production")
	t.Setenv("STORE_MODE", "database")
	t.Setenv("JWT_EXPIRES_IN", "")
	t.Setenv("DB_PASSWORD", "")
	t.Setenv("JWT_SECRET", "a-long-enough-production-secret")

	_, err := Load()
	assert.Error(t, err)

	t.Setenv("DB_PASSWORD", "pw")
	_, err = Load()
	assert.NoError(t, err)

	t.Setenv("JWT_SECRET", "short")
	_, err = Load()
	assert.Error(t, err)
}
