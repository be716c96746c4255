package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config keeps runtime settings for the bot.
type Config struct {
	TelegramToken        string        `env:"TELEGRAM_TOKEN,required,notEmpty"`
	PrimaryAdminID       int64         `env:"PRIMARY_ADMIN_ID,required"`
	DatabaseURL          string        `env:"DATABASE_URL" envDefault:"bot_database/ledger.db"`
	ChannelUsername      string        `env:"CHANNEL_USERNAME"`
	ChannelID            int64         `env:"CHANNEL_ID"`
	GroupRefreshInterval time.Duration `env:"GROUP_REFRESH_INTERVAL" envDefault:"1h"`
	AdminDigestTime      string        `env:"ADMIN_DIGEST_TIME" envDefault:"09:00"`
	BootstrapSampleCodes int           `env:"BOOTSTRAP_SAMPLE_CODES" envDefault:"20"`
	NotifyQueueSize      int           `env:"NOTIFY_QUEUE_SIZE" envDefault:"256"`
	LogLevel             string        `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads configuration from environment variables with sane defaults.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	cfg.TelegramToken = strings.TrimSpace(cfg.TelegramToken)
	cfg.ChannelUsername = strings.TrimSpace(cfg.ChannelUsername)
	if cfg.ChannelUsername != "" && !strings.HasPrefix(cfg.ChannelUsername, "@") {
		cfg.ChannelUsername = "@" + cfg.ChannelUsername
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks values the env tags cannot express.
func (c Config) Validate() error {
	switch {
	case c.TelegramToken == "":
		return fmt.Errorf("TELEGRAM_TOKEN is required")
	case c.PrimaryAdminID <= 0:
		return fmt.Errorf("PRIMARY_ADMIN_ID must be a positive user id")
	case c.GroupRefreshInterval < time.Second:
		return fmt.Errorf("GROUP_REFRESH_INTERVAL must be at least 1s")
	case c.BootstrapSampleCodes < 0:
		return fmt.Errorf("BOOTSTRAP_SAMPLE_CODES must not be negative")
	case c.NotifyQueueSize <= 0:
		return fmt.Errorf("NOTIFY_QUEUE_SIZE must be positive")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// ChannelLink is the public link of the gate channel, if one is configured.
func (c Config) ChannelLink() string {
	if c.ChannelUsername == "" {
		return ""
	}
	return "https://t.me/" + strings.TrimPrefix(c.ChannelUsername, "@")
}

// ParseLevel maps LOG_LEVEL onto a slog level.
func ParseLevel(raw string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(raw))); err != nil {
		return 0, fmt.Errorf("LOG_LEVEL %q: %w", raw, err)
	}
	return lvl, nil
}
