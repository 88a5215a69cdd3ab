package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DB_HOST", "")
	t.Setenv("BATCH_STEP_SIZE", "")
	t.Setenv("EXPIRATION_CHECK_INTERVAL", "")

	cfg := Load()

	assert.Equal(t, "localhost", cfg.DBHost)
	assert.Equal(t, 100, cfg.BatchStepSize)
	assert.Equal(t, time.Hour, cfg.ExpirationCheckInterval)
	assert.Equal(t, 15*time.Minute, cfg.JWTAccessExpiry)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("BATCH_STEP_SIZE", "25")
	t.Setenv("BATCH_AUTORUN", "false")
	t.Setenv("JWT_ACCESS_EXPIRY", "1h")

	cfg := Load()

	assert.Equal(t, "db.internal", cfg.DBHost)
	assert.Equal(t, 25, cfg.BatchStepSize)
	assert.False(t, cfg.BatchAutoRun)
	assert.Equal(t, time.Hour, cfg.JWTAccessExpiry)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("BATCH_STEP_SIZE", "-4")
	t.Setenv("JWT_REFRESH_EXPIRY", "forever")

	cfg := Load()

	assert.Equal(t, 100, cfg.BatchStepSize)
	assert.Equal(t, 168*time.Hour, cfg.JWTRefreshExpiry)
}

func TestDSN(t *testing.T) {
	cfg := &Config{DBHost: "h", DBUser: "u", DBPassword: "p", DBName: "n", DBPort: "1", DBSSLMode: "disable"}
	assert.Equal(t, "host=h user=u password=p dbname=n port=1 sslmode=disable TimeZone=UTC", cfg.DSN())
}
