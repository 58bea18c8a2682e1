// Package config provides configuration loading for the FAQ engine.
// Supports YAML files, .env files, environment variables and programmatic overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultConfidenceThreshold is the canonical minimum score for auto-answering.
const DefaultConfidenceThreshold = 0.15

// Config holds all configuration for the FAQ engine.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Cache         CacheConfig         `yaml:"cache"`
	Matching      MatchingConfig      `yaml:"matching"`
	Escalation    EscalationConfig    `yaml:"escalation"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
	AllowedOrigins   []string      `yaml:"allowed_origins"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver   string         `yaml:"driver"` // sqlite or postgres
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// SQLiteConfig holds SQLite-specific settings.
type SQLiteConfig struct {
	Path         string `yaml:"path"`
	JournalMode  string `yaml:"journal_mode"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// PostgresConfig holds Postgres-specific settings.
type PostgresConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// CacheConfig holds cache settings.
type CacheConfig struct {
	Driver     string      `yaml:"driver"` // memory or redis
	MaxEntries int         `yaml:"max_entries"`
	Redis      RedisConfig `yaml:"redis"`
}

// RedisConfig holds Redis-specific settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
	Prefix   string `yaml:"prefix"`
}

// MatchingConfig holds FAQ matching settings.
type MatchingConfig struct {
	ConfidenceThreshold float64       `yaml:"confidence_threshold"`
	SearchLimit         int           `yaml:"search_limit"`
	Workers             int           `yaml:"workers"`
	Timeout             time.Duration `yaml:"timeout"`
	CacheResults        bool          `yaml:"cache_results"`
	CacheTTL            time.Duration `yaml:"cache_ttl"`
}

// EscalationConfig holds escalation settings.
type EscalationConfig struct {
	PublishEvents bool   `yaml:"publish_events"`
	Channel       string `yaml:"channel"`
}

// ObservabilityConfig holds logging and metrics settings.
type ObservabilityConfig struct {
	LogLevel       string `yaml:"log_level"`
	LogFormat      string `yaml:"log_format"`
	ServiceName    string `yaml:"service_name"`
	MetricsEnabled bool   `yaml:"metrics_enabled"`
}

// Load reads configuration from an optional YAML file, .env files and the environment.
func Load(path string) (*Config, error) {
	// .env is optional; missing files are not an error.
	_ = godotenv.Load()

	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("apply env overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with development defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8090,
			ReadTimeout:      15 * time.Second,
			WriteTimeout:     15 * time.Second,
			IdleTimeout:      60 * time.Second,
			GracefulShutdown: 10 * time.Second,
			AllowedOrigins:   []string{"*"},
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			SQLite: SQLiteConfig{
				Path:         "/tmp/faq-engine.db",
				JournalMode:  "WAL",
				MaxOpenConns: 1,
			},
			Postgres: PostgresConfig{
				MaxOpenConns:    25,
				MaxIdleConns:    5,
				ConnMaxLifetime: 5 * time.Minute,
			},
		},
		Cache: CacheConfig{
			Driver:     "memory",
			MaxEntries: 5000,
			Redis: RedisConfig{
				Addr:     "localhost:6379",
				PoolSize: 10,
				Prefix:   "faq:",
			},
		},
		Matching: MatchingConfig{
			ConfidenceThreshold: DefaultConfidenceThreshold,
			SearchLimit:         10,
			Workers:             8,
			Timeout:             2 * time.Second,
			CacheResults:        true,
			CacheTTL:            30 * time.Second,
		},
		Escalation: EscalationConfig{
			PublishEvents: true,
			Channel:       "escalations.created",
		},
		Observability: ObservabilityConfig{
			LogLevel:       "info",
			LogFormat:      "json",
			ServiceName:    "faq-engine",
			MetricsEnabled: true,
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Driver != "sqlite" && c.Database.Driver != "postgres" {
		return fmt.Errorf("invalid database driver: %s", c.Database.Driver)
	}

	if c.Database.Driver == "postgres" && c.Database.Postgres.DSN == "" {
		return fmt.Errorf("postgres driver requires a dsn")
	}

	if c.Cache.Driver != "memory" && c.Cache.Driver != "redis" {
		return fmt.Errorf("invalid cache driver: %s", c.Cache.Driver)
	}

	if c.Matching.ConfidenceThreshold < 0 {
		return fmt.Errorf("confidence_threshold must be non-negative, got %v", c.Matching.ConfidenceThreshold)
	}

	if c.Matching.SearchLimit < 1 || c.Matching.SearchLimit > 100 {
		return fmt.Errorf("search_limit must be between 1 and 100")
	}

	if c.Matching.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}

	if c.Matching.Timeout <= 0 {
		return fmt.Errorf("matching timeout must be positive")
	}

	return nil
}

// DatabaseDSN returns the connection string for the configured driver.
func (c *Config) DatabaseDSN() string {
	if c.Database.Driver == "sqlite" {
		return c.Database.SQLite.Path
	}
	return c.Database.Postgres.DSN
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("SERVER_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SERVER_PORT: %w", err)
		}
		cfg.Server.Port = port
	}

	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		if strings.HasPrefix(v, "sqlite:") {
			cfg.Database.Driver = "sqlite"
			cfg.Database.SQLite.Path = strings.TrimPrefix(v, "sqlite:")
		} else if strings.HasPrefix(v, "postgres") {
			cfg.Database.Driver = "postgres"
			cfg.Database.Postgres.DSN = v
		}
	}

	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Cache.Driver = "redis"
		cfg.Cache.Redis.Addr = strings.TrimPrefix(v, "redis://")
	}

	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Cache.Redis.Password = v
	}

	if v := os.Getenv("FAQ_CONFIDENCE_THRESHOLD"); v != "" {
		threshold, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("FAQ_CONFIDENCE_THRESHOLD: %w", err)
		}
		cfg.Matching.ConfidenceThreshold = threshold
	}

	if v := os.Getenv("FAQ_MATCH_WORKERS"); v != "" {
		workers, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("FAQ_MATCH_WORKERS: %w", err)
		}
		cfg.Matching.Workers = workers
	}

	if v := os.Getenv("FAQ_MATCH_TIMEOUT"); v != "" {
		timeout, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("FAQ_MATCH_TIMEOUT: %w", err)
		}
		cfg.Matching.Timeout = timeout
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}

	return nil
}
