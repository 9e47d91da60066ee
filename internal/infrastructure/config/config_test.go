package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("APP_ENV", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.AppPort)
	assert.True(t, cfg.Development())
	assert.False(t, cfg.UsesPostgres())
	assert.Equal(t, 5*time.Minute, cfg.ReconcileInterval)
	assert.Equal(t, 30*time.Second, cfg.OrderLockTTL)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("DATABASE_URL", "postgres://localhost/purchasing")
	t.Setenv("DB_MAX_CONNS", "40")
	t.Setenv("ORDER_LOCK_TTL", "10s")
	t.Setenv("REDIS_DB", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.False(t, cfg.Development())
	assert.True(t, cfg.UsesPostgres())
	assert.Equal(t, 40, cfg.DBMaxConns)
	assert.Equal(t, 10*time.Second, cfg.OrderLockTTL)
	assert.Zero(t, cfg.RedisDB, "malformed values fall back to the default")
}

func TestLoad_RejectsInconsistentPool(t *testing.T) {
	t.Setenv("DB_MAX_CONNS", "2")
	t.Setenv("DB_MIN_CONNS", "5")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_WriterRoles(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("WRITER_ROLES", " buyer, ,warehouse ")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"buyer", "warehouse"}, cfg.WriterRoles)

	t.Setenv("JWT_SECRET", "")
	_, err = Load()
	assert.Error(t, err, "roles cannot be checked without tokens")
}
