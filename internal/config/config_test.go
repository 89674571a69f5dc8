package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"realtime_go/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("ENCRYPTION_KEY", "k3y")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "0.0.0.0:8000", cfg.HTTPAddr())
	assert.Equal(t, 5000, cfg.MaxMessageLength)
	assert.Equal(t, 100, cfg.MessagesPageSize)
	assert.Equal(t, 5*time.Second, cfg.DedupWindow)
	assert.Equal(t, 5*time.Second, cfg.PushTimeout)
	assert.NotEmpty(t, cfg.CORSOrigins)
}

func TestLoadRequiredSecrets(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("ENCRYPTION_KEY", "k3y")

	_, err := config.Load()
	assert.Error(t, err)

	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("ENCRYPTION_KEY", "")

	_, err = config.Load()
	assert.Error(t, err)
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("ENCRYPTION_KEY", "k3y")
	t.Setenv("DB_DRIVER", "mysql")

	_, err := config.Load()
	assert.Error(t, err)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("ENCRYPTION_KEY", "k3y")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("NOTIFICATION_DEDUP_SECONDS", "30")
	t.Setenv("CORS_ORIGINS", "https://a.example , https://b.example")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, 30*time.Second, cfg.DedupWindow)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
}
