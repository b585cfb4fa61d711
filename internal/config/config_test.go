package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")
	t.Setenv("MANAGER_PIN", "")

	cfg := Load()
	assert.Empty(t, cfg.AuthSecret)
	assert.Empty(t, cfg.ManagerPIN)
}

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "AUTO_MIGRATE", "CART_TTL_MINUTES", "ACCESS_TOKEN_TTL_MINUTES", "LOW_STOCK_LIMIT", "REDIS_DB"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	assert.Equal(t, ":8080", cfg.Address())
	assert.True(t, cfg.AutoMigrate)
	assert.Equal(t, 4*time.Hour, cfg.CartTTL())
	assert.Equal(t, 8*time.Hour, cfg.AccessTokenTTL())
	assert.Equal(t, 3, cfg.LowStockLimit)
	assert.Equal(t, 0, cfg.RedisDB)
}

func TestLoadParsesOverridesAndRejectsBadNumbers(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("AUTO_MIGRATE", "false")
	t.Setenv("CART_TTL_MINUTES", "15")
	t.Setenv("LOW_STOCK_LIMIT", "0")
	t.Setenv("REDIS_DB", "two")

	cfg := Load()
	assert.Equal(t, ":9090", cfg.Address())
	assert.False(t, cfg.AutoMigrate)
	assert.Equal(t, 15*time.Minute, cfg.CartTTL())
	assert.Equal(t, 3, cfg.LowStockLimit)
	assert.Equal(t, 0, cfg.RedisDB)
}

func TestLoadReadsDotEnvWithoutOverridingEnvironment(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("LOW_STOCK_LIMIT=7\nPORT=7000\n"), 0o600))
	t.Chdir(dir)
	t.Setenv("PORT", "9191")
	t.Setenv("LOW_STOCK_LIMIT", "")
	os.Unsetenv("LOW_STOCK_LIMIT")

	cfg := Load()
	assert.Equal(t, ":9191", cfg.Address())
	assert.Equal(t, 7, cfg.LowStockLimit)
}
