// Package config loads the frontend's settings from environment variables.
// Every field has a default except where marked required, and the whole
// configuration is validated at startup so misconfiguration fails fast.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Upstream UpstreamConfig
	Upload   UploadConfig
	Results  ResultsConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
	Breaker  BreakerConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout bounds reading the request, including uploaded files (default: 60s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"60s"`

	// WriteTimeout bounds writing the response (default: 0, the upstream call has its own timeout)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum wait for in-flight submissions on shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// UpstreamConfig points at the matching service.
type UpstreamConfig struct {
	// URL is the matching service base URL
	URL string `env:"UPSTREAM_URL" envAlt:"MATCHER_URL" default:"http://localhost:8000"`

	// UploadPath is the multipart POST endpoint (default: /upload)
	UploadPath string `env:"UPSTREAM_UPLOAD_PATH" default:"/upload"`

	// DownloadPath prefixes resume document downloads (default: /download)
	DownloadPath string `env:"UPSTREAM_DOWNLOAD_PATH" default:"/download"`

	// Timeout bounds a single upstream call; 0 disables it (default: 0)
	Timeout time.Duration `env:"UPSTREAM_TIMEOUT" default:"0s"`
}

// UploadConfig limits what a submission may carry and how many run at once.
type UploadConfig struct {
	// MaxFileSize caps the whole multipart request body in bytes (default: 50MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"52428800"`

	// MaxConcurrent is the number of submissions forwarded at once (default: 5)
	MaxConcurrent int `env:"UPLOAD_MAX_CONCURRENT" default:"5"`

	// MaxWaitTime is how long a submission waits for a slot (default: 30s)
	MaxWaitTime time.Duration `env:"UPLOAD_MAX_WAIT_TIME" default:"30s"`
}

// ResultsConfig controls how long displayed result sets stay downloadable.
type ResultsConfig struct {
	// TTL is the lifetime of a stored result set (default: 30m)
	TTL time.Duration `env:"RESULTS_TTL" default:"30m"`
}

// RateLimitConfig holds per-IP rate limiting settings.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the general per-IP limit (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// SubmitLimit is the per-IP limit for submissions (default: 10)
	SubmitLimit int `env:"RATE_LIMIT_SUBMIT" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// BreakerConfig configures the circuit breaker around the matching service.
type BreakerConfig struct {
	// Failures is the consecutive transport failures that open the breaker; 0 disables it (default: 5)
	Failures int `env:"BREAKER_FAILURES" default:"5"`

	// Cooldown is how long the breaker stays open before probing (default: 30s)
	Cooldown time.Duration `env:"BREAKER_COOLDOWN" default:"30s"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
