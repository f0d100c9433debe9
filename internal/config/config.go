// Package config loads server settings from environment variables. Every
// field has a default; Validate reports all problems at once so a bad
// deployment fails on start.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all server configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Load     LoadConfig
	Session  SessionConfig
	Filter   FilterConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`
	Port int    `env:"SERVER_PORT" envAlt:"PORT" default:"8080"`

	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"30s"`

	// WriteTimeout stays 0 so the live websocket is not cut off.
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout applies to every route except the live channel.
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig selects PostgreSQL session storage. With no URL sessions
// are kept in memory.
type DatabaseConfig struct {
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"10"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"0"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// Enabled reports whether a database URL was configured.
func (c DatabaseConfig) Enabled() bool {
	return c.URL != ""
}

// LoadConfig bounds file decoding.
type LoadConfig struct {
	MaxFileSize   int64         `env:"LOAD_MAX_FILE_SIZE" default:"52428800"` // 50MB
	MaxConcurrent int           `env:"LOAD_MAX_CONCURRENT" default:"4"`
	MaxWait       time.Duration `env:"LOAD_MAX_WAIT" default:"30s"`
	Timeout       time.Duration `env:"LOAD_TIMEOUT" default:"2m"`

	// LegacyCSV switches to the line-splitting CSV reader.
	LegacyCSV bool `env:"LOAD_LEGACY_CSV" default:"false"`
}

// SessionConfig controls session lifetime.
type SessionConfig struct {
	TTL           time.Duration `env:"SESSION_TTL" default:"24h"`
	SweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL" default:"10m"`
	MaxSessions   int           `env:"SESSION_MAX" default:"0"` // 0 = unlimited
}

// FilterConfig holds live search settings.
type FilterConfig struct {
	// Debounce is the quiet period after the last keystroke before the
	// view is recomputed.
	Debounce time.Duration `env:"FILTER_DEBOUNCE" default:"200ms"`
}

// RateLimitConfig holds per-IP request limits.
type RateLimitConfig struct {
	Enabled           bool `env:"RATE_LIMIT_ENABLED" default:"true"`
	RequestsPerMinute int  `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"300"`

	// LoadLimit is the per-minute allowance for the upload endpoint.
	LoadLimit int `env:"RATE_LIMIT_LOAD" default:"20"`
}

// SecurityConfig holds proxy trust and header settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of proxy CIDRs whose
	// X-Real-IP / X-Forwarded-For headers are honoured.
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`

	// APIKeys, when RequireAPIKey is set, gate the /api routes.
	RequireAPIKey bool     `env:"REQUIRE_API_KEY" default:"false"`
	APIKeys       []string `env:"API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL" default:"info"`
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the listen address in host:port form.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
