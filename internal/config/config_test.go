package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Addr:              ":8081",
		BackendBaseURL:    "http://localhost:9000/api",
		NotifyURL:         "http://localhost:9000/api/socket/notify",
		BackendTimeout:    10 * time.Second,
		HeartbeatInterval: 30 * time.Second,
		MaxConnections:    100,
		SendBufferSize:    64,
		MessageRateBurst:  100,
		MessageRatePerSec: 10,
		StatsInterval:     15 * time.Second,
		LogLevel:          "info",
		LogFormat:         "json",
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty addr", func(c *Config) { c.Addr = "" }},
		{"empty backend url", func(c *Config) { c.BackendBaseURL = "" }},
		{"zero max connections", func(c *Config) { c.MaxConnections = 0 }},
		{"zero send buffer", func(c *Config) { c.SendBufferSize = 0 }},
		{"sub-second heartbeat", func(c *Config) { c.HeartbeatInterval = 100 * time.Millisecond }},
		{"zero message rate", func(c *Config) { c.MessageRatePerSec = 0 }},
		{"zero backend timeout", func(c *Config) { c.BackendTimeout = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, ":8081", cfg.Addr)
	assert.Equal(t, 30*time.Second, cfg.HeartbeatInterval)
	assert.Equal(t, "info", cfg.LogLevel)
}
