package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("BOT_TOKEN", "123:token")
	t.Setenv("DATABASE_URL", "postgres://localhost/quest")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.APIHost)
	assert.Equal(t, "8080", cfg.APIPort)
	assert.Equal(t, "./uploads/photos", cfg.PhotosDir)
	assert.Equal(t, int64(MaxPhotoSize), cfg.MaxPhotoSize)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadRequiresBotToken(t *testing.T) {
	t.Setenv("BOT_TOKEN", "")
	t.Setenv("DATABASE_URL", "postgres://localhost/quest")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("BOT_TOKEN", "123:token")
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestPortOverridesAPIPort(t *testing.T) {
	setRequired(t)
	t.Setenv("API_PORT", "8081")
	t.Setenv("PORT", "9000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.APIPort)
}

func TestAllowedOriginsIncludeWebApp(t *testing.T) {
	setRequired(t)
	t.Setenv("WEB_APP_URL", "https://quest.example.com")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Contains(t, cfg.AllowedOrigins(), "https://quest.example.com")
	assert.Contains(t, cfg.AllowedOrigins(), "http://localhost:3000")
}
