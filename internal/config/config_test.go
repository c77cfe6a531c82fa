package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("DB_DRIVER", "")
	t.Setenv("ACCESS_TOKEN_TTL", "")

	cfg := LoadConfig()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "mysql", cfg.DBDriver)
	assert.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.RefreshTokenTTL)
	assert.Equal(t, "bcrypt", cfg.PasswordHasher)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ACCESS_TOKEN_TTL", "5m")
	t.Setenv("HASH_WORKERS", "3")
	t.Setenv("CORS_ORIGINS", "https://a.example,https://b.example")

	cfg := LoadConfig()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 5*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, 3, cfg.HashWorkers)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
}

func TestValidate(t *testing.T) {
	base := Config{
		Env:             "development",
		DBDriver:        "memory",
		JWTSecret:       defaultJWTSecret,
		AccessTokenTTL:  time.Minute,
		RefreshTokenTTL: time.Hour,
		ResetTokenTTL:   time.Hour,
		PasswordHasher:  "bcrypt",
	}
	require.NoError(t, base.Validate())

	prod := base
	prod.Env = "production"
	assert.Error(t, prod.Validate(), "default secret must be rejected in production")

	prod.JWTSecret = "0123456789abcdef0123456789abcdef"
	assert.NoError(t, prod.Validate())

	noURL := base
	noURL.DBDriver = "mysql"
	assert.Error(t, noURL.Validate())

	badTTL := base
	badTTL.RefreshTokenTTL = time.Second
	assert.Error(t, badTTL.Validate())

	noResetTTL := base
	noResetTTL.ResetTokenTTL = 0
	assert.Error(t, noResetTTL.Validate(), "reset links would be born expired")

	badHasher := base
	badHasher.PasswordHasher = "md5"
	assert.Error(t, badHasher.Validate())
}
