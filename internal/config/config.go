// Package config loads driftroomd's runtime configuration from the
// environment, grounded on ws/config.go's caarlos0/env + godotenv setup.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds every tunable driftroomd reads at startup.
type Config struct {
	Addr string `env:"DRIFTROOM_ADDR" envDefault:":8080"`

	MetricsAddr string `env:"DRIFTROOM_METRICS_ADDR" envDefault:":9090"`

	RedisAddr string `env:"DRIFTROOM_REDIS_ADDR" envDefault:"localhost:6379"`
	RedisDB   int    `env:"DRIFTROOM_REDIS_DB" envDefault:"0"`
	// Replication is entirely optional: DisableReplication runs rooms in
	// memory only, with no kv.Store and no rehydration across restarts.
	DisableReplication bool `env:"DRIFTROOM_DISABLE_REPLICATION" envDefault:"false"`

	RoomIdleTimeout time.Duration `env:"DRIFTROOM_ROOM_IDLE_TIMEOUT" envDefault:"10m"`
	SweepInterval   time.Duration `env:"DRIFTROOM_SWEEP_INTERVAL" envDefault:"1m"`

	OutboxSize      int           `env:"DRIFTROOM_OUTBOX_SIZE" envDefault:"64"`
	RateLimitPerSec float64       `env:"DRIFTROOM_RATE_LIMIT_PER_SEC" envDefault:"50"`
	RateLimitBurst  int           `env:"DRIFTROOM_RATE_LIMIT_BURST" envDefault:"100"`
	HandshakeTimeout time.Duration `env:"DRIFTROOM_HANDSHAKE_TIMEOUT" envDefault:"10s"`

	LogLevel  string `env:"DRIFTROOM_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"DRIFTROOM_LOG_FORMAT" envDefault:"json"`
}

// Load reads a .env file if present, then parses environment variables
// over it; explicit environment variables always win. A missing .env
// file is not an error.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Println("driftroomd: no .env file found, using environment variables only")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Validate rejects configuration combinations that would otherwise fail
// confusingly deep inside a subsystem.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("DRIFTROOM_ADDR is required")
	}
	if c.OutboxSize < 1 {
		return fmt.Errorf("DRIFTROOM_OUTBOX_SIZE must be > 0, got %d", c.OutboxSize)
	}
	if c.RateLimitPerSec <= 0 {
		return fmt.Errorf("DRIFTROOM_RATE_LIMIT_PER_SEC must be > 0, got %f", c.RateLimitPerSec)
	}
	if c.RoomIdleTimeout <= 0 {
		return fmt.Errorf("DRIFTROOM_ROOM_IDLE_TIMEOUT must be > 0, got %s", c.RoomIdleTimeout)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("DRIFTROOM_LOG_LEVEL must be one of debug, info, warn, error (got %q)", c.LogLevel)
	}
	switch c.LogFormat {
	case "json", "pretty":
	default:
		return fmt.Errorf("DRIFTROOM_LOG_FORMAT must be one of json, pretty (got %q)", c.LogFormat)
	}
	return nil
}
