package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("TELEGRAM_TOKEN", "123:abc")
	t.Setenv("PRIMARY_ADMIN_ID", "42")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, int64(42), cfg.PrimaryAdminID)
	require.Equal(t, "bot_database/ledger.db", cfg.DatabaseURL)
	require.Equal(t, time.Hour, cfg.GroupRefreshInterval)
	require.Equal(t, "09:00", cfg.AdminDigestTime)
	require.Equal(t, 20, cfg.BootstrapSampleCodes)
	require.Equal(t, 256, cfg.NotifyQueueSize)
	require.Empty(t, cfg.ChannelLink())
}

func TestLoadMissingToken(t *testing.T) {
	t.Setenv("TELEGRAM_TOKEN", "")
	t.Setenv("PRIMARY_ADMIN_ID", "42")

	_, err := Load()
	require.ErrorContains(t, err, "TELEGRAM_TOKEN")
}

func TestLoadRejectsBadAdminID(t *testing.T) {
	t.Setenv("TELEGRAM_TOKEN", "123:abc")

	t.Setenv("PRIMARY_ADMIN_ID", "not-a-number")
	_, err := Load()
	require.ErrorContains(t, err, "parse env:")

	t.Setenv("PRIMARY_ADMIN_ID", "-5")
	_, err = Load()
	require.ErrorContains(t, err, "PRIMARY_ADMIN_ID")
}

func TestLoadChannel(t *testing.T) {
	setRequired(t)
	t.Setenv("CHANNEL_USERNAME", "rewards_channel")
	t.Setenv("CHANNEL_ID", "-1001234")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "@rewards_channel", cfg.ChannelUsername)
	require.Equal(t, int64(-1001234), cfg.ChannelID)
	require.Equal(t, "https://t.me/rewards_channel", cfg.ChannelLink())
}

func TestLoadLogLevel(t *testing.T) {
	setRequired(t)

	t.Setenv("LOG_LEVEL", "debug")
	cfg, err := Load()
	require.NoError(t, err)
	lvl, err := ParseLevel(cfg.LogLevel)
	require.NoError(t, err)
	require.Equal(t, slog.LevelDebug, lvl)

	t.Setenv("LOG_LEVEL", "loud")
	_, err = Load()
	require.ErrorContains(t, err, "LOG_LEVEL")
}
