// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Paths    PathsConfig
	Publish  PublishConfig
	Geocoder GeocoderConfig
	Database DatabaseConfig
	Server   ServerConfig
	Schedule ScheduleConfig
	Logging  LoggingConfig
}

// PathsConfig locates the source tree and the publication tree.
type PathsConfig struct {
	// SourceDir holds <service>/<CC>/<CC>.csv and the raw national extracts (required)
	SourceDir string `env:"FACILITY_SOURCE_DIR" required:"true"`

	// OutputDir receives the published datasets (required)
	OutputDir string `env:"FACILITY_OUTPUT_DIR" required:"true"`
}

// PublishConfig holds publication settings.
type PublishConfig struct {
	// HealthcareCountries overrides the default healthcare country list
	HealthcareCountries []string `env:"PUBLISH_HEALTHCARE_COUNTRIES"`

	// EducationCountries overrides the default education country list
	EducationCountries []string `env:"PUBLISH_EDUCATION_COUNTRIES"`

	// Validate runs the validation battery on each published country (default: true)
	Validate bool `env:"PUBLISH_VALIDATE" default:"true"`

	// Force republishes every country regardless of file times (default: false)
	Force bool `env:"PUBLISH_FORCE" default:"false"`

	// MaxWait is how long a trigger waits for a running publication (default: 5s)
	MaxWait time.Duration `env:"PUBLISH_MAX_WAIT" default:"5s"`

	// HistoryLimit is the number of runs kept in memory without a database (default: 100)
	HistoryLimit int `env:"PUBLISH_HISTORY_LIMIT" default:"100"`
}

// GeocoderConfig holds the Nominatim client settings.
type GeocoderConfig struct {
	// URL is the Nominatim base URL; empty disables geocoding
	URL string `env:"GEOCODER_URL" default:"https://nominatim.openstreetmap.org"`

	// UserAgent identifies the client to the provider (required by its usage policy)
	UserAgent string `env:"GEOCODER_USER_AGENT" default:"facility-etl/1.0"`

	// Proxy is an optional HTTP proxy URL
	Proxy string `env:"GEOCODER_PROXY" envAlt:"HTTPS_PROXY"`

	// Timeout bounds a single request (default: 20s)
	Timeout time.Duration `env:"GEOCODER_TIMEOUT" default:"20s"`

	// MinInterval spaces requests to the provider (default: 1s)
	MinInterval time.Duration `env:"GEOCODER_MIN_INTERVAL" default:"1s"`

	// CacheTTL keeps results per address; 0 disables the cache (default: 24h)
	CacheTTL time.Duration `env:"GEOCODER_CACHE_TTL" default:"24h"`

	// UsePostcode includes postcodes in requests (default: false)
	UsePostcode bool `env:"GEOCODER_USE_POSTCODE" default:"false"`

	// RetryUnknown geocodes rows of unknown quality again (default: false)
	RetryUnknown bool `env:"GEOCODER_RETRY_UNKNOWN" default:"false"`
}

// DatabaseConfig holds the run history connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string; empty keeps history in memory
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 5)
	MaxConns int `env:"DB_MAX_CONNS" default:"5"`

	// MinConns is the minimum number of connections to keep open (default: 1)
	MinConns int `env:"DB_MIN_CONNS" default:"1"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 0, publications can be long)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// AllowedOrigins are the CORS origins of the map front-end (default: *)
	AllowedOrigins []string `env:"SERVER_ALLOWED_ORIGINS" default:"*"`
}

// ScheduleConfig holds the serve-mode triggers.
type ScheduleConfig struct {
	// Cron is the publication schedule; empty disables it (default: nightly)
	Cron string `env:"SCHEDULE_CRON" default:"0 3 * * *"`

	// Watch republishes when a country table changes (default: false)
	Watch bool `env:"SCHEDULE_WATCH" default:"false"`

	// Debounce groups file events before a run (default: 10s)
	Debounce time.Duration `env:"SCHEDULE_DEBOUNCE" default:"10s"`
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
	return c.Host + ":" + strconv.Itoa(c.Port)
}
