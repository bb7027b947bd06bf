package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DOCSERVER_BASE_URL", "http://docs.local/")
	t.Setenv("CHAT_POLL_STEP_MS", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://docs.local", cfg.DocServer.BaseURL)
	assert.Equal(t, 2*time.Second, cfg.Chat.PollInitialDelay())
	assert.Equal(t, 3*time.Second, cfg.Chat.PollStep())
	assert.Equal(t, 9000*time.Second, cfg.Chat.PollMaxDelay())
	assert.Equal(t, 24*time.Hour, cfg.Chat.PollTimeout())
	assert.Equal(t, 5*time.Minute, cfg.Chat.ProgressInterval())
	assert.Equal(t, 10, cfg.Chat.StatusListLimit)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("CHAT_POLL_INITIAL_DELAY_MS", "500")
	t.Setenv("APP_PORT", "9999")
	t.Setenv("HTTP_REQUEST_TIMEOUT_SECONDS", "0")
	t.Setenv("CHAT_TIME_ZONE", "Not/AZone")
	t.Setenv("NOTIFY_WEBHOOK_URL", " http://hooks.local/review ")
	t.Setenv("NOTIFY_WEBHOOK_TIMEOUT_SECONDS", "0")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 500*time.Millisecond, cfg.Chat.PollInitialDelay())
	assert.Equal(t, "0.0.0.0:9999", cfg.App.Addr())
	assert.Zero(t, cfg.App.RequestTimeout())
	assert.Equal(t, time.UTC, cfg.Chat.Location())
	assert.Equal(t, "http://hooks.local/review", cfg.Notification.WebhookURL)
	assert.Equal(t, 5*time.Second, cfg.Notification.WebhookTimeout())
}

func TestLoadRejectsBadRedisDB(t *testing.T) {
	t.Setenv("REDIS_DB", "one")

	_, err := Load()
	require.Error(t, err)
}
