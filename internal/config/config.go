package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Config holds all relay configuration.
// Tags:
//
//	env: Environment variable name
//	envDefault: Default value if not set
type Config struct {
	// Server basics
	Addr string `env:"RELAY_ADDR" envDefault:":8081"`

	// Backend REST API (chat history + message persistence)
	BackendBaseURL string        `env:"RELAY_BACKEND_URL" envDefault:"https://cleanmate.dekesandev.com/api"`
	NotifyURL      string        `env:"RELAY_NOTIFY_URL" envDefault:"https://cleanmate.app/api/socket/notify"`
	BackendTimeout time.Duration `env:"RELAY_BACKEND_TIMEOUT" envDefault:"10s"`

	// Liveness probing
	// A connection survives one missed probe and is reaped on the second.
	// Industry standard interval: 15-30s (Bloomberg: 15s, Coinbase: 30s)
	HeartbeatInterval time.Duration `env:"RELAY_HEARTBEAT_INTERVAL" envDefault:"30s"`

	// Capacity
	MaxConnections int `env:"RELAY_MAX_CONNECTIONS" envDefault:"5000"`
	SendBufferSize int `env:"RELAY_SEND_BUFFER" envDefault:"256"`

	// Per-client inbound rate limiting (burst + sustained)
	MessageRateBurst  int     `env:"RELAY_MSG_RATE_BURST" envDefault:"100"`
	MessageRatePerSec float64 `env:"RELAY_MSG_RATE_PER_SEC" envDefault:"10"`

	// Monitoring
	StatsInterval time.Duration `env:"RELAY_STATS_INTERVAL" envDefault:"15s"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
}

// Load reads configuration from a .env file and environment variables.
// Priority: ENV vars > .env file > defaults.
func Load(logger *zerolog.Logger) (*Config, error) {
	// .env file is optional; in production we use environment variables directly.
	if err := godotenv.Load(); err != nil {
		if logger != nil {
			logger.Info().Msg("No .env file found (using environment variables only)")
		}
	} else if logger != nil {
		logger.Info().Msg("Loaded configuration from .env file")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks configuration for errors.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("RELAY_ADDR is required")
	}
	if c.BackendBaseURL == "" {
		return fmt.Errorf("RELAY_BACKEND_URL is required")
	}
	if c.MaxConnections < 1 {
		return fmt.Errorf("RELAY_MAX_CONNECTIONS must be > 0, got %d", c.MaxConnections)
	}
	if c.SendBufferSize < 1 {
		return fmt.Errorf("RELAY_SEND_BUFFER must be > 0, got %d", c.SendBufferSize)
	}
	if c.HeartbeatInterval < time.Second {
		return fmt.Errorf("RELAY_HEARTBEAT_INTERVAL must be >= 1s, got %s", c.HeartbeatInterval)
	}
	if c.MessageRatePerSec <= 0 {
		return fmt.Errorf("RELAY_MSG_RATE_PER_SEC must be > 0, got %.2f", c.MessageRatePerSec)
	}
	if c.BackendTimeout <= 0 {
		return fmt.Errorf("RELAY_BACKEND_TIMEOUT must be > 0, got %s", c.BackendTimeout)
	}
	return nil
}
