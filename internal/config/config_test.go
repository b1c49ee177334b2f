package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/auth_test")
	t.Setenv("JWT_SECRET", "test-secret-needs-enough-bytes!!")
}

func TestLoadReadsEnvironment(t *testing.T) {
	setRequired(t)
	t.Setenv("GOOGLE_OAUTH_CLIENT_ID", "client-id")
	t.Setenv("GOOGLE_OAUTH_CLIENT_SECRET", "client-secret")
	t.Setenv("GOOGLE_OAUTH_REDIRECT_URI", "https://app.example.com/auth/callback")
	t.Setenv("VERIFICATION_TTL", "48h")
	t.Setenv("HTTP_READ_TIMEOUT", "5s")
	t.Setenv("HTTP_WRITE_TIMEOUT", "20s")
	t.Setenv("SHUTDOWN_GRACE", "3s")
	t.Setenv("OTEL_TRACES_SAMPLE_RATIO", "0.5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "client-id", cfg.GoogleClientID)
	assert.Equal(t, "client-secret", cfg.GoogleClientSecret)
	assert.Equal(t, "https://app.example.com/auth/callback", cfg.GoogleRedirectURI)
	assert.Equal(t, 48*time.Hour, cfg.VerificationTTL)
	assert.Equal(t, 5*time.Second, cfg.HTTPReadTimeout)
	assert.Equal(t, 20*time.Second, cfg.HTTPWriteTimeout)
	assert.Equal(t, 3*time.Second, cfg.ShutdownGrace)
	assert.Equal(t, 0.5, cfg.TelemetrySampleRatio)
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/api/v1", cfg.APIBasePath)
	assert.Equal(t, time.Hour, cfg.AccessTokenTTL)
	assert.Equal(t, 24*time.Hour, cfg.VerificationTTL)
	assert.Equal(t, 10*time.Second, cfg.HTTPReadTimeout)
	assert.Equal(t, 10*time.Second, cfg.ShutdownGrace)
	assert.Equal(t, 1.0, cfg.TelemetrySampleRatio)
	assert.False(t, cfg.Production())
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "test-secret-needs-enough-bytes!!")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/auth_test")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoadNormalizesBasePath(t *testing.T) {
	setRequired(t)
	t.Setenv("API_BASE_PATH", "api/v2")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/api/v2", cfg.APIBasePath)
}
