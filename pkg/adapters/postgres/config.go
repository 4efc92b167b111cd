package postgres

import (
	"fmt"
	"net/url"

	"github.com/ekaya-inc/ekaya-pgquery/pkg/config"
)

// Config contains PostgreSQL connection options.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string // "disable", "require", "verify-ca", "verify-full"

	MaxConnections int32 // 0 means the pool default
}

// DefaultPort returns the default PostgreSQL port.
func DefaultPort() int {
	return 5432
}

// DefaultSSLMode returns the default SSL mode.
func DefaultSSLMode() string {
	return "require"
}

// FromDatabaseConfig converts the loaded application configuration.
func FromDatabaseConfig(c config.DatabaseConfig) *Config {
	return &Config{
		Host:     c.Host,
		Port:     c.Port,
		User:     c.User,
		Password: c.Password,
		Database: c.Database,
		SSLMode:  c.SSLMode,

		MaxConnections: c.MaxConnections,
	}
}

// ConnString builds a PostgreSQL URL with proper escaping.
// All user-provided fields are URL-escaped so that passwords containing
// @, /, # or ? survive URL parsing. When running in Docker, localhost is
// resolved to host.docker.internal to reach databases on the host machine.
func (c *Config) ConnString() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = DefaultSSLMode()
	}
	port := c.Port
	if port == 0 {
		port = DefaultPort()
	}

	host := config.ResolveHostForDocker(c.Host)

	return fmt.Sprintf(
		"postgresql://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		host,
		port,
		url.QueryEscape(c.Database),
		sslMode,
	)
}
