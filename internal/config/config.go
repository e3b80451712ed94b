// Package config provides centralized configuration management for the dashboard.
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
	Server   ServerConfig
	Backend  BackendConfig
	Realtime RealtimeConfig
	Table    TableConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
	Views    ViewsConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 0, websocket relay)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// BackendConfig holds settings for the fleet REST API.
type BackendConfig struct {
	// BaseURL is the root of the fleet API (required)
	// Supports both FLEET_API_URL and API_URL env vars
	BaseURL string `env:"FLEET_API_URL" envAlt:"API_URL" required:"true"`

	// Token is an optional bearer token stored at startup
	Token string `env:"FLEET_API_TOKEN"`

	// Timeout bounds each backend call (default: 10s)
	Timeout time.Duration `env:"FLEET_API_TIMEOUT" default:"10s"`

	// RequestsPerSecond caps outbound calls (default: 20)
	RequestsPerSecond int `env:"FLEET_API_RPS" default:"20"`

	// Burst is the outbound limiter burst (default: 10)
	Burst int `env:"FLEET_API_BURST" default:"10"`
}

// RealtimeConfig holds the notification topic subscription settings.
type RealtimeConfig struct {
	// Enabled controls whether the notification subscriber runs (default: true)
	Enabled bool `env:"REALTIME_ENABLED" default:"true"`

	// URL is the websocket endpoint of the notification topic
	URL string `env:"REALTIME_URL" envAlt:"FLEET_WS_URL"`

	// ReconnectDelay is the wait between reconnect attempts (default: 5s)
	ReconnectDelay time.Duration `env:"REALTIME_RECONNECT_DELAY" default:"5s"`

	// PingInterval is how often browser sockets are pinged (default: 30s)
	PingInterval time.Duration `env:"REALTIME_PING_INTERVAL" default:"30s"`
}

// TableConfig holds defaults for mounted table views.
type TableConfig struct {
	// RowsPerPage is the initial page size (default: 10)
	RowsPerPage int `env:"TABLE_ROWS_PER_PAGE" default:"10"`

	// RowsPerPageOptions lists the selectable page sizes (default: 10,25,50)
	RowsPerPageOptions []int `env:"TABLE_ROWS_PER_PAGE_OPTIONS" default:"10,25,50"`

	// Breakpoint is the mobile viewport width threshold in pixels (default: 1024)
	Breakpoint int `env:"TABLE_MOBILE_BREAKPOINT" default:"1024"`

	// Locale is used for number and date formatting (default: es-ES)
	Locale string `env:"TABLE_LOCALE" default:"es-ES"`

	// ViewTTL is how long an idle view is kept (default: 30m)
	ViewTTL time.Duration `env:"VIEW_TTL" default:"30m"`

	// SweepInterval is how often idle views are swept (default: 1m)
	SweepInterval time.Duration `env:"VIEW_SWEEP_INTERVAL" default:"1m"`

	// MaxViews caps the number of mounted views (default: 500)
	MaxViews int `env:"VIEW_MAX" default:"500"`
}

// RateLimitConfig holds rate limiting settings per client IP.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 300)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"300"`

	// ActionLimit is requests per minute for row action endpoints (default: 30)
	ActionLimit int `env:"RATE_LIMIT_ACTIONS" default:"30"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`

	// RequireAPIKey enables X-API-Key authentication on /api routes (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted API keys
	APIKeys []string `env:"API_KEYS"`

	// AllowedOrigins lists origins accepted on the notification websocket
	AllowedOrigins []string `env:"WS_ALLOWED_ORIGINS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// ViewsConfig controls where screen column layouts come from.
type ViewsConfig struct {
	// Dir overrides the embedded layouts with *.yaml files from a directory
	Dir string `env:"VIEWS_DIR"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
