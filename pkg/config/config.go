package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ekaya-inc/ekaya-pgquery/pkg/query"
)

// DefaultPath is the configuration file Load reads when no path is given.
const DefaultPath = "config.yaml"

// Config holds all configuration for pgquery.
// Configuration can come from a YAML file or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords) must only come from environment variables.
type Config struct {
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Database configuration (PostgreSQL)
	Database DatabaseConfig `yaml:"database"`

	// Query compilation settings
	Query QueryConfig `yaml:"query"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"postgres"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"postgres"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"10"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// QueryConfig holds query compiler settings.
type QueryConfig struct {
	// CacheSize bounds the placeholder cache; 0 means unbounded.
	CacheSize int `yaml:"cache_size" env:"QUERY_CACHE_SIZE" env-default:"128"`
	// Dialect is the placeholder syntax: "raw" ($1) or "template" ({{name}}).
	Dialect string `yaml:"dialect" env:"QUERY_DIALECT" env-default:"raw"`
	// InjectionGuard rejects string parameters that look like SQL injection.
	InjectionGuard bool `yaml:"injection_guard" env:"QUERY_INJECTION_GUARD" env-default:"false"`
}

// Load reads configuration from the YAML file at path with environment
// variable overrides. An empty path means DefaultPath; when that file does
// not exist, configuration comes from the environment alone. The version
// parameter is injected at build time and set on the returned Config.
func Load(version, path string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	_, statErr := os.Stat(path)
	switch {
	case statErr == nil:
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	case errors.Is(statErr, os.ErrNotExist) && !explicit:
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	default:
		return nil, fmt.Errorf("failed to read %s: %w", path, statErr)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}

	if _, err := query.ParseDialect(c.Query.Dialect); err != nil {
		return fmt.Errorf("query.dialect: %w", err)
	}

	if c.Query.CacheSize < 0 {
		return fmt.Errorf("query.cache_size must not be negative, got %d", c.Query.CacheSize)
	}

	return nil
}

// NewLogger builds the process logger: JSON production output, or the
// console development format when Env is "local".
func (c *Config) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}

	zc := zap.NewProductionConfig()
	if c.Env == "local" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	return zc.Build(zap.Fields(zap.String("version", c.Version)))
}
