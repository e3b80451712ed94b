package config

import (
	"fmt"
	"net/url"
	"os"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
)

// Load reads configuration from environment variables.
// It applies defaults for unset values and validates the result.
// Returns an error if required values are missing or validation fails.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := loadStruct(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration and panics on error.
// Use this only in main() where early termination is desired.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// loadStruct recursively populates struct fields from environment variables.
func loadStruct(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)

		// Skip unexported fields
		if !fieldVal.CanSet() {
			continue
		}

		// Recurse into nested structs
		if field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Time{}) {
			if err := loadStruct(fieldVal); err != nil {
				return err
			}
			continue
		}

		// Get tags
		envName := field.Tag.Get("env")
		envAlt := field.Tag.Get("envAlt")
		defaultVal := field.Tag.Get("default")
		required := field.Tag.Get("required") == "true"

		if envName == "" {
			continue
		}

		// Try primary env var, then alternate
		value := os.Getenv(envName)
		if value == "" && envAlt != "" {
			value = os.Getenv(envAlt)
		}

		// Apply default if not set
		if value == "" {
			if required {
				return fmt.Errorf("required environment variable %s is not set", envName)
			}
			value = defaultVal
		}

		if value == "" {
			continue
		}

		// Set the field value
		if err := setField(fieldVal, value); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", envName, value, err)
		}
	}

	return nil
}

// setField sets a reflect.Value from a string based on its type.
func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int64:
		// Handle time.Duration specially
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			field.Set(reflect.ValueOf(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer: %w", err)
			}
			field.SetInt(i)
		}

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	case reflect.Slice:
		// Comma-separated values, blanks dropped
		parts := splitList(value)
		switch field.Type().Elem().Kind() {
		case reflect.String:
			field.Set(reflect.ValueOf(parts))
		case reflect.Int:
			ints := make([]int, 0, len(parts))
			for _, p := range parts {
				n, err := strconv.Atoi(p)
				if err != nil {
					return fmt.Errorf("invalid integer list: %w", err)
				}
				ints = append(ints, n)
			}
			field.Set(reflect.ValueOf(ints))
		default:
			return fmt.Errorf("unsupported slice type: %s", field.Type().Elem().Kind())
		}

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// splitList splits a comma-separated value, trimming blanks.
func splitList(value string) []string {
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	// Backend validation
	if c.Backend.BaseURL == "" {
		errs = append(errs, "FLEET_API_URL is required")
	} else if u, err := url.Parse(c.Backend.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Sprintf("FLEET_API_URL (%q) must be an absolute URL", c.Backend.BaseURL))
	}
	if c.Backend.Timeout <= 0 {
		errs = append(errs, "FLEET_API_TIMEOUT must be positive")
	}
	if c.Backend.RequestsPerSecond <= 0 {
		errs = append(errs, "FLEET_API_RPS must be positive")
	}
	if c.Backend.Burst <= 0 {
		errs = append(errs, "FLEET_API_BURST must be positive")
	}

	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}

	// Realtime validation
	if c.Realtime.Enabled {
		if c.Realtime.URL == "" {
			errs = append(errs, "REALTIME_URL is required when REALTIME_ENABLED is true")
		} else if u, err := url.Parse(c.Realtime.URL); err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
			errs = append(errs, fmt.Sprintf("REALTIME_URL (%q) must be a ws:// or wss:// URL", c.Realtime.URL))
		}
		if c.Realtime.ReconnectDelay <= 0 {
			errs = append(errs, "REALTIME_RECONNECT_DELAY must be positive")
		}
	}
	if c.Realtime.PingInterval <= 0 {
		errs = append(errs, "REALTIME_PING_INTERVAL must be positive")
	}

	// Table validation
	if len(c.Table.RowsPerPageOptions) == 0 {
		errs = append(errs, "TABLE_ROWS_PER_PAGE_OPTIONS must list at least one page size")
	}
	for _, n := range c.Table.RowsPerPageOptions {
		if n <= 0 {
			errs = append(errs, fmt.Sprintf("TABLE_ROWS_PER_PAGE_OPTIONS entry %d must be positive", n))
		}
	}
	if len(c.Table.RowsPerPageOptions) > 0 && !slices.Contains(c.Table.RowsPerPageOptions, c.Table.RowsPerPage) {
		errs = append(errs, fmt.Sprintf("TABLE_ROWS_PER_PAGE (%d) must be one of TABLE_ROWS_PER_PAGE_OPTIONS %v",
			c.Table.RowsPerPage, c.Table.RowsPerPageOptions))
	}
	if c.Table.Breakpoint <= 0 {
		errs = append(errs, "TABLE_MOBILE_BREAKPOINT must be positive")
	}
	if _, err := language.Parse(c.Table.Locale); err != nil {
		errs = append(errs, fmt.Sprintf("TABLE_LOCALE (%q) is not a BCP 47 language tag", c.Table.Locale))
	}
	if c.Table.ViewTTL <= 0 {
		errs = append(errs, "VIEW_TTL must be positive")
	}
	if c.Table.SweepInterval <= 0 {
		errs = append(errs, "VIEW_SWEEP_INTERVAL must be positive")
	}
	if c.Table.MaxViews <= 0 {
		errs = append(errs, "VIEW_MAX must be positive")
	}

	// Rate limit validation
	if c.Rate.Enabled && c.Rate.RequestsPerMinute <= 0 {
		errs = append(errs, "RATE_LIMIT_REQUESTS_PER_MINUTE must be positive when rate limiting is enabled")
	}
	if c.Rate.Enabled && c.Rate.ActionLimit <= 0 {
		errs = append(errs, "RATE_LIMIT_ACTIONS must be positive when rate limiting is enabled")
	}

	// Security validation
	if c.Security.RequireAPIKey && len(c.Security.APIKeys) == 0 {
		errs = append(errs, "REQUIRE_API_KEY is true but API_KEYS is empty; configure at least one API key or disable auth")
	}

	// Views validation
	if c.Views.Dir != "" {
		if info, err := os.Stat(c.Views.Dir); err != nil || !info.IsDir() {
			errs = append(errs, fmt.Sprintf("VIEWS_DIR (%q) must be an existing directory", c.Views.Dir))
		}
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// String returns a safe string representation of the config for logging.
// The backend token and API keys are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	b.WriteString(fmt.Sprintf("Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port))
	b.WriteString(fmt.Sprintf("Backend: {BaseURL: %q, Token: %s, Timeout: %s, RPS: %d}, ",
		c.Backend.BaseURL, mask(c.Backend.Token), c.Backend.Timeout, c.Backend.RequestsPerSecond))
	b.WriteString(fmt.Sprintf("Realtime: {Enabled: %v, URL: %q}, ", c.Realtime.Enabled, c.Realtime.URL))
	b.WriteString(fmt.Sprintf("Table: {RowsPerPage: %d, Options: %v, Locale: %q, ViewTTL: %s}, ",
		c.Table.RowsPerPage, c.Table.RowsPerPageOptions, c.Table.Locale, c.Table.ViewTTL))
	b.WriteString(fmt.Sprintf("Rate: {Enabled: %v, RequestsPerMinute: %d}, ",
		c.Rate.Enabled, c.Rate.RequestsPerMinute))
	b.WriteString(fmt.Sprintf("Security: {RequireAPIKey: %v, APIKeys: %d configured}, ",
		c.Security.RequireAPIKey, len(c.Security.APIKeys)))
	b.WriteString(fmt.Sprintf("Logging: {Level: %q, Format: %q}",
		c.Logging.Level, c.Logging.Format))
	b.WriteString("}")
	return b.String()
}

func mask(secret string) string {
	if secret == "" {
		return "[unset]"
	}
	return "[MASKED]"
}
