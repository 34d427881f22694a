// Package config loads the bot settings from the environment.
package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"
)

// Store backends
const (
	BackendRedis    = "redis"
	BackendFirebase = "firebase"
	BackendBolt     = "bolt"
	BackendMemory   = "memory"
)

type Config struct {
	BotToken string `env:"TELEGRAM_BOT_TOKEN,required,notEmpty"`

	// WebhookURL switches the bot from long polling to webhook mode. The
	// token is appended as the path.
	WebhookURL    string `env:"WEBHOOK_URL"`
	WebhookSecret string `env:"WEBHOOK_SECRET"`
	Port          int    `env:"PORT" envDefault:"8443"`

	StoreBackend        string `env:"STORE_BACKEND" envDefault:"redis"`
	RedisURL            string `env:"REDIS_URL"`
	FirebaseKeyPath     string `env:"FIREBASE_SERVICE_ACCOUNT_KEY_PATH"`
	FirebaseDatabaseURL string `env:"FIREBASE_DATABASE_URL"`
	BoltPath            string `env:"BOLT_PATH" envDefault:"rosterbot.db"`

	// AdminIDs limits admin buttons and /start to these users. Empty means
	// everyone.
	AdminIDs []int64 `env:"ADMIN_IDS" envSeparator:","`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty bool   `env:"LOG_PRETTY"`
}

// Load parses the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(cfg.StoreBackend))
	cfg.WebhookURL = strings.TrimRight(cfg.WebhookURL, "/")
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.StoreBackend {
	case BackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL environment variable not set")
		}
	case BackendFirebase:
		if c.FirebaseDatabaseURL == "" {
			return fmt.Errorf("FIREBASE_DATABASE_URL environment variable not set")
		}
	case BackendBolt:
		if strings.TrimSpace(c.BoltPath) == "" {
			return fmt.Errorf("BOLT_PATH environment variable not set")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", c.Port)
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	return nil
}

// Level is the configured log level, info when unset.
func (c Config) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

// WebhookEndpoint is the URL registered with Telegram in webhook mode.
func (c Config) WebhookEndpoint() string {
	if c.WebhookURL == "" {
		return ""
	}
	return c.WebhookURL + "/" + c.BotToken
}
