// Package config loads process configuration from a YAML file with
// environment variable overrides. Deployments that are pure-env (no config
// file) are supported: a missing file yields defaults.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the tracker.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Tracking  TrackingConfig  `yaml:"tracking"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// GetHost returns the server host, with container detection.
func (c ServerConfig) GetHost() string {
	// In a container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// TrackingConfig holds the tracking-link protocol settings. BaseURL and
// SigningSecret are process-wide and fixed at startup; rotating the secret
// invalidates all outstanding tracking links.
type TrackingConfig struct {
	BaseURL              string `yaml:"base_url"`
	SigningSecret        string `yaml:"signing_secret"`
	DefaultRedirect      string `yaml:"default_redirect"`
	PixelFormat          string `yaml:"pixel_format"` // "gif" or "png"
	QueueURL             string `yaml:"queue_url"`    // SQS; empty = write events in-process
	LookupTimeoutSeconds int    `yaml:"lookup_timeout_seconds"`
}

// LookupTimeout returns the click-path message lookup bound as a duration.
func (c TrackingConfig) LookupTimeout() time.Duration {
	return time.Duration(c.LookupTimeoutSeconds) * time.Second
}

// DatabaseConfig holds the Postgres connection settings.
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// RedisConfig holds optional Redis settings for tracking-endpoint rate
// limiting. An empty Addr disables Redis entirely.
type RedisConfig struct {
	Addr               string `yaml:"addr"`
	TrackRatePerMinute int    `yaml:"track_rate_per_minute"`
}

// DashboardConfig holds dashboard access settings.
type DashboardConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Load reads and parses the configuration file. A missing file is not an
// error; defaults (plus any env overrides applied later) take over.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Tracking.DefaultRedirect == "" {
		cfg.Tracking.DefaultRedirect = "https://orbitl.cc/"
	}
	if cfg.Tracking.PixelFormat == "" {
		cfg.Tracking.PixelFormat = "gif"
	}
	if cfg.Tracking.LookupTimeoutSeconds == 0 {
		cfg.Tracking.LookupTimeoutSeconds = 3
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It loads a .env file first (if present), so secrets can live in .env
// locally and in real env vars in production.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("APP_BASE"); v != "" {
		cfg.Tracking.BaseURL = v
	}
	if v := os.Getenv("TRACK_SECRET"); v != "" {
		cfg.Tracking.SigningSecret = v
	}
	if v := os.Getenv("DEFAULT_REDIRECT"); v != "" {
		cfg.Tracking.DefaultRedirect = v
	}
	if v := os.Getenv("PIXEL_FORMAT"); v != "" {
		cfg.Tracking.PixelFormat = v
	}
	if v := os.Getenv("SQS_TRACKING_QUEUE_URL"); v != "" {
		cfg.Tracking.QueueURL = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}

	return cfg, nil
}
