package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	// Run from an empty dir so no stray .env is picked up
	t.Chdir(t.TempDir())

	t.Setenv("STOCKFLOW_API_BASE_URL", "https://api.example.test/")

	optionals := []string{
		"STOCKFLOW_BROKER",
		"LOG_LEVEL",
		"POLL_INTERVAL_SEC",
		"ORDER_TIMEOUT_SEC",
		"CONFIRMATION_TTL_SEC",
		"WATCHLIST",
		"TELEGRAM_BOT_TOKEN",
		"TELEGRAM_CHAT_ID",
	}
	for _, k := range optionals {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	cfg := Load()

	assert.Equal(t, BrokerStockflow, cfg.Broker)
	assert.Equal(t, "https://api.example.test", cfg.APIBaseURL)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 300*time.Second, cfg.PollInterval)
	assert.Equal(t, 15*time.Second, cfg.OrderTimeout)
	assert.Equal(t, 120, cfg.ConfirmationTTLSec)
	assert.Empty(t, cfg.Watchlist)
	assert.False(t, cfg.TelegramEnabled())
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Chdir(t.TempDir())

	t.Setenv("STOCKFLOW_API_BASE_URL", "https://api.example.test")
	t.Setenv("ORDER_TIMEOUT_SEC", "2.5")
	t.Setenv("WATCHLIST", "aapl, msft,,nvda ")
	t.Setenv("TELEGRAM_BOT_TOKEN", "bot-token")
	t.Setenv("TELEGRAM_CHAT_ID", "123456")
	t.Setenv("STREAM_ENABLED", "true")

	cfg := Load()

	assert.Equal(t, 2500*time.Millisecond, cfg.OrderTimeout)
	assert.Equal(t, []string{"AAPL", "MSFT", "NVDA"}, cfg.Watchlist)
	assert.True(t, cfg.TelegramEnabled())
	assert.Equal(t, int64(123456), cfg.TelegramChatID)
	assert.True(t, cfg.StreamEnabled)
}

func TestEnvHelpers_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("SF_TEST_INT", "ten")
	t.Setenv("SF_TEST_BOOL", "maybe")
	t.Setenv("SF_TEST_SECS", "-3")

	assert.Equal(t, 7, getEnvAsInt("SF_TEST_INT", 7))
	assert.True(t, getEnvAsBool("SF_TEST_BOOL", true))
	assert.Equal(t, 4*time.Second, getEnvAsSeconds("SF_TEST_SECS", 4))
}

func TestMissingRequired_Alpaca(t *testing.T) {
	t.Setenv("APCA_API_KEY_ID", "key")
	t.Setenv("APCA_API_SECRET_KEY", "")
	t.Setenv("APCA_API_BASE_URL", "https://paper-api.alpaca.markets")

	cfg := &Config{Broker: BrokerAlpaca}
	require.Equal(t, []string{"APCA_API_SECRET_KEY"}, cfg.missingRequired())
}

func TestMaskValue(t *testing.T) {
	assert.Equal(t, "***cret", maskValue("GEMINI_API_KEY", "supersecret"))
	assert.Equal(t, "***", maskValue("TELEGRAM_BOT_TOKEN", "abc"))
	assert.Equal(t, "plain", maskValue("LOG_LEVEL", "plain"))
}
