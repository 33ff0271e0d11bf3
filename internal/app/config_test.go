package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.Equal(t, "folio_session", cfg.SessionCookie)
	assert.Equal(t, 30*time.Second, cfg.RBACCacheTTL)
	assert.Equal(t, "admin", cfg.RBACAdminRole)
	assert.True(t, cfg.DBAutoMigrate)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("RBAC_CACHE_TTL", "0s")
	t.Setenv("RBAC_ADMIN_ROLE", "owner")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "0")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Zero(t, cfg.RBACCacheTTL)
	assert.Equal(t, "owner", cfg.RBACAdminRole)
	assert.Zero(t, cfg.RateLimitPerMinute)
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	t.Setenv("SESSION_TTL", "0s")
	t.Setenv("RBAC_CACHE_TTL", "-1s")
	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SESSION_TTL")
	assert.Contains(t, err.Error(), "RBAC_CACHE_TTL")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, "DEBUG", parseLevel(&Config{LogLevel: "debug"}).String())
	assert.Equal(t, "WARN", parseLevel(&Config{LogLevel: "Warning"}).String())
	assert.Equal(t, "INFO", parseLevel(nil).String())
}

func TestLoadConfigTrashRetention(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 720*time.Hour, cfg.TrashRetention)
	assert.Equal(t, "0 3 * * *", cfg.TrashPurgeCron)

	t.Setenv("TRASH_RETENTION", "10m")
	_, err = LoadConfig()
	assert.ErrorContains(t, err, "TRASH_RETENTION")
}
