// Package config provides configuration management.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/warp/quota-simulator/internal/logging"
)

// Storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config is the main application configuration
type Config struct {
	Server  ServerConfig   `json:"server"`
	Storage StorageConfig  `json:"storage"`
	Cache   CacheConfig    `json:"cache"`
	Catalog CatalogConfig  `json:"catalog"`
	Logging logging.Config `json:"logging"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port                int      `json:"port"`
	AllowedOrigins      []string `json:"allowed_origins"`
	ReadTimeoutSeconds  int      `json:"read_timeout_seconds"`
	WriteTimeoutSeconds int      `json:"write_timeout_seconds"`
}

// StorageConfig selects and configures the persistence backend
type StorageConfig struct {
	// Driver is one of sqlite, postgres, memory
	Driver      string `json:"driver"`
	SQLitePath  string `json:"sqlite_path"`
	PostgresDSN string `json:"postgres_dsn,omitempty"`

	// RetentionDays is how long simulation history is kept; 0 keeps it forever
	RetentionDays int `json:"retention_days"`

	// PruneIntervalMinutes is how often the retention job runs
	PruneIntervalMinutes int `json:"prune_interval_minutes"`
}

// CacheConfig contains result cache settings
type CacheConfig struct {
	Enabled bool `json:"enabled"`

	// RedisAddr selects the Redis cache; empty means in-memory
	RedisAddr  string `json:"redis_addr,omitempty"`
	TTLSeconds int    `json:"ttl_seconds"`
}

// CatalogConfig points at an optional JSON file replacing the built-in tables
type CatalogConfig struct {
	Path string `json:"path,omitempty"`
}

// Default returns a default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:                8080,
			AllowedOrigins:      []string{"http://localhost:*", "http://127.0.0.1:*"},
			ReadTimeoutSeconds:  15,
			WriteTimeoutSeconds: 15,
		},
		Storage: StorageConfig{
			Driver:               DriverSQLite,
			SQLitePath:           "./quota.db",
			RetentionDays:        90,
			PruneIntervalMinutes: 60,
		},
		Cache: CacheConfig{
			Enabled:    true,
			TTLSeconds: 3600,
		},
		Logging: logging.DefaultConfig(),
	}
}

// Load loads configuration from a file. A missing file yields Default().
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks the values a running server depends on.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverSQLite, DriverMemory:
	case DriverPostgres:
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("storage.postgres_dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Storage.RetentionDays < 0 {
		return fmt.Errorf("storage.retention_days cannot be negative")
	}
	return nil
}

// Save saves configuration to a file
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

func (c *Config) Retention() time.Duration {
	return time.Duration(c.Storage.RetentionDays) * 24 * time.Hour
}

func (c *Config) PruneInterval() time.Duration {
	if c.Storage.PruneIntervalMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(c.Storage.PruneIntervalMinutes) * time.Minute
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}

// Global configuration instance
var globalConfig = Default()

// Get returns the global configuration
func Get() *Config {
	return globalConfig
}

// Set sets the global configuration
func Set(config *Config) {
	globalConfig = config
}
