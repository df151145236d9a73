// Package config handles configuration loading and validation for cueline.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Ticker   TickerConfig   `yaml:"ticker"`
	Database DatabaseConfig `yaml:"database"`
	Line     LineConfig     `yaml:"line"`
	DataDir  string         `yaml:"-"` // set by caller, not from config file
}

// ServerConfig holds the API server settings.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// MetricsConfig holds the Prometheus endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// TickerConfig holds the coordinator heartbeat settings.
type TickerConfig struct {
	IntervalMS int `yaml:"interval_ms"`
}

// Interval returns the heartbeat cadence as a duration.
func (t TickerConfig) Interval() time.Duration {
	return time.Duration(t.IntervalMS) * time.Millisecond
}

// DatabaseConfig holds the sqlite pool settings.
type DatabaseConfig struct {
	MaxOpenConns  int `yaml:"max_open_conns"`
	MaxIdleConns  int `yaml:"max_idle_conns"`
	BusyTimeoutMS int `yaml:"busy_timeout_ms"`
}

// LineConfig holds the LINE Messaging API credentials. Notifications are
// disabled entirely when Enabled is false.
type LineConfig struct {
	Enabled            bool   `yaml:"enabled"`
	ChannelAccessToken string `yaml:"channel_access_token"`
	ChannelSecret      string `yaml:"channel_secret"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Addr: ":8700",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    ":9700",
		},
		Ticker: TickerConfig{
			IntervalMS: 1000,
		},
		Database: DatabaseConfig{
			MaxOpenConns:  10,
			MaxIdleConns:  5,
			BusyTimeoutMS: 5000,
		},
	}
}

// Load reads configuration from the given path and sets the data directory.
// If configPath is empty or doesn't exist, returns defaults with the provided dataDir.
func Load(configPath, dataDir string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.DataDir = dataDir

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			data, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}

			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}

			// Re-set dataDir since Unmarshal may have cleared it
			cfg.DataDir = dataDir
		}
	}

	// Apply defaults for zero values
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for any unset configuration options.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	if c.Server.Addr == "" {
		c.Server.Addr = defaults.Server.Addr
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = defaults.Metrics.Addr
	}
	if c.Ticker.IntervalMS == 0 {
		c.Ticker.IntervalMS = defaults.Ticker.IntervalMS
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = defaults.Database.MaxOpenConns
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = defaults.Database.MaxIdleConns
	}
	if c.Database.BusyTimeoutMS == 0 {
		c.Database.BusyTimeoutMS = defaults.Database.BusyTimeoutMS
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data directory cannot be empty")
	}

	if c.Ticker.IntervalMS < 100 {
		return fmt.Errorf("ticker.interval_ms must be at least 100")
	}

	if c.Database.MaxOpenConns < 1 {
		return fmt.Errorf("database.max_open_conns must be at least 1")
	}

	if c.Line.Enabled {
		if c.Line.ChannelAccessToken == "" {
			return fmt.Errorf("line.channel_access_token is required when line is enabled")
		}
		if c.Line.ChannelSecret == "" {
			return fmt.Errorf("line.channel_secret is required when line is enabled")
		}
	}

	return nil
}
