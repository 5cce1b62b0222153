// Package config provides centralized configuration management for the
// test-set service and CLI. It loads configuration from environment variables
// with sensible defaults and validates all settings on startup.
//
// Store credentials are deliberately not required here: a missing URL or key
// is reported per submission as a store configuration error.
package config

import "time"

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Store    StoreConfig
	Retry    RetryConfig
	Ingest   IngestConfig
	Security SecurityConfig
	Logging  LoggingConfig
	Metrics  MetricsConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading the request (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing the response (default: 11m)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"11m"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout bounds graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 11m)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"11m"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string.
	// Supports both DATABASE_URL and DB_URL env vars.
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of connections to keep open (default: 1)
	MinConns int `env:"DB_MIN_CONNS" default:"1"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// StoreConfig selects where test sets are written.
type StoreConfig struct {
	// Driver is one of postgres, sqlite, supabase, memory (default: postgres)
	Driver string `env:"STORE_DRIVER" default:"postgres"`

	// SQLitePath is the database file for the sqlite driver (default: testsets.db)
	SQLitePath string `env:"SQLITE_PATH" default:"testsets.db"`

	// SupabaseURL is the project URL for the supabase driver
	SupabaseURL string `env:"SUPABASE_URL"`

	// SupabaseAPIKey is the service key for the supabase driver
	SupabaseAPIKey string `env:"SUPABASE_API_KEY"`

	// SupabaseSchema overrides the PostgREST schema (default: project default)
	SupabaseSchema string `env:"SUPABASE_SCHEMA"`

	// AutoMigrate creates tables on first connection for SQL drivers (default: false)
	AutoMigrate bool `env:"STORE_AUTO_MIGRATE" default:"false"`

	// RequestTimeout bounds one remote upsert request (default: 30s)
	RequestTimeout time.Duration `env:"STORE_REQUEST_TIMEOUT" default:"30s"`
}

// RetryConfig controls retries of transient store failures.
type RetryConfig struct {
	// MaxRetries is the number of retries after the first attempt (default: 3)
	MaxRetries int `env:"RETRY_MAX_RETRIES" default:"3"`

	// BaseDelay is the delay before the first retry (default: 1s)
	BaseDelay time.Duration `env:"RETRY_BASE_DELAY" default:"1s"`

	// MaxDelay caps the exponential delay (default: 60s)
	MaxDelay time.Duration `env:"RETRY_MAX_DELAY" default:"60s"`

	// Jitter adds up to 25% random delay (default: true)
	Jitter bool `env:"RETRY_JITTER" default:"true"`
}

// IngestConfig holds submission processing settings.
type IngestConfig struct {
	// Timeout bounds a whole submission including retries (default: 10m)
	Timeout time.Duration `env:"INGEST_TIMEOUT" default:"10m"`

	// MaxConcurrent is the number of submissions processed at once (default: 1)
	MaxConcurrent int `env:"INGEST_MAX_CONCURRENT" default:"1"`

	// MaxWaitTime is how long a submission waits for a slot (default: 30s)
	MaxWaitTime time.Duration `env:"INGEST_MAX_WAIT_TIME" default:"30s"`

	// MaxBodySize is the largest accepted document in bytes (default: 10MB)
	MaxBodySize int64 `env:"INGEST_MAX_BODY_SIZE" default:"10485760"`
}

// SecurityConfig holds API authentication settings.
type SecurityConfig struct {
	// RequireAPIKey enables X-API-Key authentication (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted keys
	APIKeys []string `env:"API_KEYS"`

	// TrustedProxies lists CIDRs whose X-Real-IP and X-Forwarded-For are honored
	TrustedProxies []string `env:"TRUSTED_PROXIES"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// MetricsConfig holds Prometheus exposition settings.
type MetricsConfig struct {
	// Enabled serves metrics on Path (default: true)
	Enabled bool `env:"METRICS_ENABLED" default:"true"`

	// Path is the metrics endpoint (default: /metrics)
	Path string `env:"METRICS_PATH" default:"/metrics"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	if c.Host == "" {
		return ":" + itoa(c.Port)
	}
	return c.Host + ":" + itoa(c.Port)
}

// itoa converts an int to string without importing strconv in this file.
func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var b [20]byte
	n := len(b)
	neg := i < 0
	if neg {
		i = -i
	}
	for i > 0 {
		n--
		b[n] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		n--
		b[n] = '-'
	}
	return string(b[n:])
}
