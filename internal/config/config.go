// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Upload   UploadConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Auth     AuthConfig
	Storage  StorageConfig
	Redis    RedisConfig
	Events   EventsConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" envAlt:"PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 30s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"30s"`

	// WriteTimeout is the maximum duration for writing response (default: 60s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"60s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string (required)
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	// MaxConns is the maximum number of connections in the pool (default: 20)
	MaxConns int `env:"DB_MAX_CONNS" default:"20"`

	// MinConns is the minimum number of connections to keep open (default: 2)
	MinConns int `env:"DB_MIN_CONNS" default:"2"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// AutoMigrate applies pending schema migrations at startup (default: true)
	AutoMigrate bool `env:"DB_AUTO_MIGRATE" default:"true"`
}

// UploadConfig holds CSV upload processing settings.
type UploadConfig struct {
	// MaxFileSize is the maximum allowed file size in bytes (default: 10MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"10485760"`

	// MaxConcurrent is the maximum number of parallel ingestions (default: 5)
	MaxConcurrent int `env:"UPLOAD_MAX_CONCURRENT" default:"5"`

	// MaxWaitTime is how long to wait for an ingestion slot (default: 30s)
	MaxWaitTime time.Duration `env:"UPLOAD_MAX_WAIT_TIME" default:"30s"`

	// SkipHeader drops the first row of every file after it has fixed the
	// column count (default: false, every row is data)
	SkipHeader bool `env:"UPLOAD_SKIP_HEADER" default:"false"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// UploadLimit is requests per minute for upload endpoints (default: 10)
	UploadLimit int `env:"RATE_LIMIT_UPLOAD" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// SessionSecret signs session tokens; at least 32 bytes (required)
	SessionSecret string `env:"SESSION_SECRET" envAlt:"SECRET_KEY_BASE" required:"true"`

	// SessionTTL is how long a login stays valid (default: 24h)
	SessionTTL time.Duration `env:"SESSION_TTL" default:"24h"`

	// SecureCookies sets the Secure flag on session cookies (default: true)
	SecureCookies bool `env:"SECURE_COOKIES" default:"true"`

	// AdminEmails is a comma-separated list of emails granted admin on first login
	AdminEmails []string `env:"ADMIN_EMAILS"`
}

// AuthConfig holds the Google OAuth client settings.
type AuthConfig struct {
	// GoogleClientID is the OAuth client id (required)
	GoogleClientID string `env:"GOOGLE_CLIENT_ID" required:"true"`

	// GoogleClientSecret is the OAuth client secret (required)
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET" required:"true"`

	// RedirectURL is the registered OAuth callback
	RedirectURL string `env:"GOOGLE_REDIRECT_URL" default:"http://localhost:8080/auth/google_oauth2/callback"`
}

// StorageConfig holds blob storage settings for raw uploaded files.
type StorageConfig struct {
	// Driver selects the blob store: minio or memory (default: minio)
	Driver string `env:"STORAGE_DRIVER" default:"minio"`

	// Endpoint is the S3-compatible host:port (default: localhost:9000)
	Endpoint string `env:"STORAGE_ENDPOINT" envAlt:"MINIO_ENDPOINT" default:"localhost:9000"`

	// AccessKey is the S3 access key id
	AccessKey string `env:"STORAGE_ACCESS_KEY" envAlt:"MINIO_ACCESS_KEY"`

	// SecretKey is the S3 secret access key
	SecretKey string `env:"STORAGE_SECRET_KEY" envAlt:"MINIO_SECRET_KEY"`

	// Bucket holds every uploaded file (default: csv-uploads)
	Bucket string `env:"STORAGE_BUCKET" default:"csv-uploads"`

	// UseSSL connects to the endpoint over TLS (default: false)
	UseSSL bool `env:"STORAGE_USE_SSL" default:"false"`

	// Region is passed to bucket creation (default: us-east-1)
	Region string `env:"STORAGE_REGION" default:"us-east-1"`
}

// RedisConfig holds the session revocation store settings.
type RedisConfig struct {
	// Addr is host:port of the Redis server; empty disables logout revocation
	Addr string `env:"REDIS_ADDR"`

	// Password authenticates to Redis
	Password string `env:"REDIS_PASSWORD"`

	// DB selects the Redis logical database (default: 0)
	DB int `env:"REDIS_DB" default:"0"`
}

// EventsConfig holds upload event publishing settings.
type EventsConfig struct {
	// Brokers is a comma-separated list of Kafka brokers; empty disables events
	Brokers []string `env:"KAFKA_BROKERS"`

	// Topic receives upload.created and upload.deleted events (default: upload-events)
	Topic string `env:"KAFKA_TOPIC" default:"upload-events"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// IsAdminEmail reports whether email is listed in ADMIN_EMAILS.
func (c *SecurityConfig) IsAdminEmail(email string) bool {
	for _, e := range c.AdminEmails {
		if e == email {
			return true
		}
	}
	return false
}
