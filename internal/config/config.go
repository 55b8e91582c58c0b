// Package config reads process configuration from the environment
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Store backends
const (
	StoreRedis  = "redis"
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

// ErrUnknownStore is returned for an unsupported VIPSYNC_STORE value
var ErrUnknownStore = errors.New("unknown store backend")

// Config holds every setting the vipsync commands read
type Config struct {
	Store string `env:"VIPSYNC_STORE" envDefault:"redis"`

	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	ChangeChannel string `env:"VIPSYNC_CHANGE_CHANNEL" envDefault:"vip_storage_changes"`

	SQLitePath   string        `env:"VIPSYNC_SQLITE_PATH" envDefault:"vipsync.db"`
	PollInterval time.Duration `env:"VIPSYNC_POLL_INTERVAL" envDefault:"2s"`

	CleanupInterval time.Duration `env:"VIPSYNC_CLEANUP_INTERVAL" envDefault:"1m"`

	LogLevel    string `env:"VIPSYNC_LOG_LEVEL" envDefault:"info"`
	MetricsAddr string `env:"VIPSYNC_METRICS_ADDR"`

	DiscordToken         string `env:"DISCORD_TOKEN"`
	DiscordApplicationID string `env:"APPLICATION_ID"`
	DiscordGuildID       string `env:"GUILD_ID"`
	DiscordChannelID     string `env:"DISCORD_CHANNEL_ID"`
}

// Load reads an optional .env file from the working directory, then parses
// the environment
func Load() (*Config, error) {
	// a missing .env file is fine
	_ = godotenv.Load()

	return Parse()
}

// Parse reads configuration from the environment only
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks values that the env tags cannot express
func (c *Config) Validate() error {
	switch c.Store {
	case StoreRedis:
		if c.RedisAddr == "" {
			return errors.New("REDIS_ADDR cannot be empty")
		}
	case StoreSQLite:
		if c.SQLitePath == "" {
			return errors.New("VIPSYNC_SQLITE_PATH cannot be empty")
		}
		if c.PollInterval <= 0 {
			return errors.New("VIPSYNC_POLL_INTERVAL must be positive")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStore, c.Store)
	}

	if c.DiscordChannelID != "" && c.DiscordToken == "" {
		return errors.New("DISCORD_CHANNEL_ID requires DISCORD_TOKEN")
	}

	return nil
}
