package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "WEBHOOK_BASE_URL", "WEBHOOK_TOKEN", "WEBHOOK_TIMEOUT", "TRIAL_DURATION", "VOICE_FFT_SIZE", "VOICE_VISUALIZER_BARS"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, DefaultWebhookBaseURL, cfg.Webhook.BaseURL)
	assert.Empty(t, cfg.Webhook.Token)
	assert.Equal(t, 30*time.Second, cfg.Webhook.Timeout)
	assert.Equal(t, 15*time.Minute, cfg.Trial.Duration)
	assert.Equal(t, 48, cfg.Voice.VisualizerBars)
	assert.Equal(t, 256, cfg.Voice.FFTSize)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "127.0.0.1:9000")
	t.Setenv("WEBHOOK_BASE_URL", "http://localhost:8090/")
	t.Setenv("WEBHOOK_TOKEN", "  secret ")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.test, ,http://b.test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, "http://localhost:8090", cfg.Webhook.BaseURL)
	assert.Equal(t, "secret", cfg.Webhook.Token)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.AllowedOrigins)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"WEBHOOK_TIMEOUT":  "soon",
		"WEBHOOK_BASE_URL": "ftp://example.com",
		"VOICE_FFT_SIZE":   "200",
		"PORT":             "80 80",
		"ARK_MAX_TOKENS":   "many",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestAIConfigEnabled(t *testing.T) {
	assert.False(t, AIConfig{}.Enabled())
	assert.True(t, AIConfig{Model: "m", APIKey: "k"}.Enabled())
	assert.True(t, AIConfig{Model: "m", AccessKey: "a", SecretKey: "s"}.Enabled())
	assert.False(t, AIConfig{Model: "m", AccessKey: "a"}.Enabled())
}
