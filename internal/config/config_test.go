package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigDefaults(t *testing.T) {
	for _, k := range []string{"GEMINI_MODEL", "HTTP_PORT", "MAX_RETRIES", "PRIMARY_TIMEZONE", "ICLOUD_USERNAME", "GOOGLE_CALENDAR_ID", "MIRROR_STATE_FILE"} {
		unsetenv(t, k)
		unsetenv(t, "CHATCAL_"+k)
	}

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, "gemini-1.5-flash", cfg.GeminiModel)
	assert.Equal(t, 3000, cfg.HTTPPort)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, "primary", cfg.GoogleCalendarID)
	assert.Equal(t, "UTC", cfg.Location().String())
	assert.False(t, cfg.MirrorEnabled())
	assert.Equal(t, "mirror-state.json", cfg.MirrorStateFile)
}

func TestConfigEnvOverride(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "key-1")
	t.Setenv("CHATCAL_HTTP_PORT", "8081")
	t.Setenv("PRIMARY_TIMEZONE", "Europe/Lisbon")

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, "key-1", cfg.GeminiAPIKey)
	assert.Equal(t, 8081, cfg.HTTPPort)
	assert.Equal(t, "Europe/Lisbon", cfg.Location().String())
}

func TestConfigValidation(t *testing.T) {
	t.Setenv("MAX_RETRIES", "0")
	_, err := New()
	assert.ErrorContains(t, err, "MAX_RETRIES")

	t.Setenv("MAX_RETRIES", "3")
	t.Setenv("PRIMARY_TIMEZONE", "Nowhere/City")
	_, err = New()
	assert.ErrorContains(t, err, "invalid timezone")

	t.Setenv("PRIMARY_TIMEZONE", "UTC")
	t.Setenv("ICLOUD_USERNAME", "me@icloud.com")
	_, err = New()
	assert.Error(t, err)
}

// unsetenv clears key for the duration of the test.
func unsetenv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	_ = os.Unsetenv(key)
}
