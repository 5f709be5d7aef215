// Package common provides shared utilities for navsync
package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // schedule timezones must resolve on minimal images

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for navsync
type Config struct {
	Environment string         `toml:"environment"`
	Server      ServerConfig   `toml:"server"`
	Storage     StorageConfig  `toml:"storage"`
	Feed        FeedConfig     `toml:"feed"`
	Schedule    ScheduleConfig `toml:"schedule"`
	Lock        LockConfig     `toml:"lock"`
	Logging     LoggingConfig  `toml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// StorageConfig holds SurrealDB connection settings.
type StorageConfig struct {
	Address   string `toml:"address"`
	Namespace string `toml:"namespace"`
	Database  string `toml:"database"`
	Username  string `toml:"username"`
	Password  string `toml:"password"`
}

// FeedConfig holds settings for the AMFI NAV feed. The host has moved
// before, so the URL is configurable.
type FeedConfig struct {
	URL          string `toml:"url"`
	Timeout      string `toml:"timeout"`
	RateLimit    int    `toml:"rate_limit"`
	MaxAttempts  int    `toml:"max_attempts"`
	RetryBackoff string `toml:"retry_backoff"`
	MaxBodyMB    int    `toml:"max_body_mb"`
}

// GetTimeout parses and returns the timeout duration
func (c *FeedConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// GetRetryBackoff parses and returns the base delay between fetch attempts.
func (c *FeedConfig) GetRetryBackoff() time.Duration {
	d, err := time.ParseDuration(c.RetryBackoff)
	if err != nil {
		return 2 * time.Second
	}
	return d
}

// ScheduleConfig holds the daily trigger settings.
type ScheduleConfig struct {
	Enabled  bool   `toml:"enabled"`
	Cron     string `toml:"cron"`     // standard 5-field cron expression
	Timezone string `toml:"timezone"` // IANA zone the cron expression is evaluated in
}

// LockConfig holds the run lock settings.
type LockConfig struct {
	Enabled       bool   `toml:"enabled"`
	Backend       string `toml:"backend"` // "surrealdb" or "redis"
	TTL           string `toml:"ttl"`
	RedisAddress  string `toml:"redis_address"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
}

// GetTTL parses and returns the lock TTL.
func (c *LockConfig) GetTTL() time.Duration {
	d, err := time.ParseDuration(c.TTL)
	if err != nil || d <= 0 {
		return 10 * time.Minute
	}
	return d
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level    string   `toml:"level"`
	Format   string   `toml:"format"`
	Outputs  []string `toml:"outputs"`
	FilePath string   `toml:"file_path"`
}

// Lock backend constants.
const (
	LockBackendSurrealDB = "surrealdb"
	LockBackendRedis     = "redis"
)

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Storage: StorageConfig{
			Address:   "ws://localhost:8000/rpc",
			Namespace: "navsync",
			Database:  "navsync",
			Username:  "root",
			Password:  "root",
		},
		Feed: FeedConfig{
			URL:          "https://portal.amfiindia.com/spages/NAVAll.txt",
			Timeout:      "60s",
			RateLimit:    1,
			MaxAttempts:  2,
			RetryBackoff: "2s",
			MaxBodyMB:    64,
		},
		Schedule: ScheduleConfig{
			Enabled:  true,
			Cron:     "0 18 * * 1-5",
			Timezone: "Asia/Kolkata",
		},
		Lock: LockConfig{
			Enabled: true,
			Backend: LockBackendSurrealDB,
			TTL:     "10m",
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "text",
			Outputs:  []string{"console"},
			FilePath: "./logs/navsync.log",
		},
	}
}

// LoadConfig loads configuration from files with environment overrides
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Later files override earlier ones
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("NAVSYNC_ENV"); env != "" {
		config.Environment = env
	}

	if host := os.Getenv("NAVSYNC_HOST"); host != "" {
		config.Server.Host = host
	}

	if port := os.Getenv("NAVSYNC_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if level := os.Getenv("NAVSYNC_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if v := os.Getenv("NAVSYNC_FEED_URL"); v != "" {
		config.Feed.URL = v
	}

	// Storage overrides
	if v := os.Getenv("NAVSYNC_STORAGE_ADDRESS"); v != "" {
		config.Storage.Address = v
	}
	if v := os.Getenv("NAVSYNC_STORAGE_USERNAME"); v != "" {
		config.Storage.Username = v
	}
	if v := os.Getenv("NAVSYNC_STORAGE_PASSWORD"); v != "" {
		config.Storage.Password = v
	}

	if v := os.Getenv("NAVSYNC_SCHEDULE_TIMEZONE"); v != "" {
		config.Schedule.Timezone = v
	}

	if v := os.Getenv("NAVSYNC_LOCK_BACKEND"); v != "" {
		config.Lock.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("NAVSYNC_REDIS_ADDRESS"); v != "" {
		config.Lock.RedisAddress = v
	}
}

// Validate checks settings that would otherwise fail late at runtime.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Feed.URL) == "" {
		return fmt.Errorf("feed.url must not be empty")
	}
	if c.Lock.Enabled {
		switch c.Lock.Backend {
		case LockBackendSurrealDB:
		case LockBackendRedis:
			if c.Lock.RedisAddress == "" {
				return fmt.Errorf("lock.redis_address is required when lock.backend is %q", LockBackendRedis)
			}
		default:
			return fmt.Errorf("unknown lock backend: %s (supported: surrealdb, redis)", c.Lock.Backend)
		}
	}
	if c.Schedule.Enabled {
		if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
			return fmt.Errorf("invalid schedule.timezone %q: %w", c.Schedule.Timezone, err)
		}
	}
	return nil
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
