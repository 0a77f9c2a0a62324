// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Admin    AdminConfig    `yaml:"admin"`
	Content  ContentConfig  `yaml:"content"`
	Webhooks WebhookConfig  `yaml:"webhooks"`
	Email    EmailConfig    `yaml:"email"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// DatabaseConfig configures the database.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "sqlite" or "memory"
	DSN    string `yaml:"dsn"`
}

// AuthConfig configures authentication.
type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	KeyPrefix string        `yaml:"key_prefix"` // API key prefix (default: sk_)
	Header    string        `yaml:"header"`     // Header name for API key (default: X-API-Key)
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

// AdminConfig configures first-run admin bootstrap.
// When no users exist at startup, an admin account is created from these.
type AdminConfig struct {
	Email    string `yaml:"email,omitempty"`
	Password string `yaml:"password,omitempty"`
}

// ContentConfig configures content API behavior.
type ContentConfig struct {
	DefaultPerPage int `yaml:"default_per_page"`
	MaxPerPage     int `yaml:"max_per_page"`
}

// WebhookConfig configures outbound webhook delivery.
type WebhookConfig struct {
	Timeout         time.Duration `yaml:"timeout"`
	MaxResponseSize int64         `yaml:"max_response_size"` // bytes of response body kept in the call log
}

// EmailConfig configures outbound email.
// Use "none" to disable, "smtp" for a real server, or "mock" for testing.
type EmailConfig struct {
	Provider string     `yaml:"provider"` // "none", "smtp", "mock"
	SMTP     SMTPConfig `yaml:"smtp,omitempty"`
}

// SMTPConfig configures the SMTP provider.
type SMTPConfig struct {
	Host       string        `yaml:"host"`
	Port       int           `yaml:"port"`
	Username   string        `yaml:"username,omitempty"`
	Password   string        `yaml:"password,omitempty"`
	From       string        `yaml:"from"`
	FromName   string        `yaml:"from_name"`
	UseTLS     bool          `yaml:"use_tls"`
	SkipVerify bool          `yaml:"skip_verify"`
	Timeout    time.Duration `yaml:"timeout"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // Enable /metrics endpoint
	Path    string `yaml:"path"`    // Custom path (default: /metrics)
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(&cfg)

	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadFromEnv creates configuration entirely from environment variables.
// This is useful for Docker deployments where no config file is needed.
//
// Environment variables:
//
//	STENCIL_AUTH_JWT_SECRET  - JWT signing secret (required)
//	STENCIL_DATABASE_DSN     - Database path (default: stencil.db)
//	STENCIL_SERVER_HOST      - Server host (default: 0.0.0.0)
//	STENCIL_SERVER_PORT      - Server port (default: 8080)
//	STENCIL_ADMIN_EMAIL      - Admin email for first-run bootstrap
//	STENCIL_ADMIN_PASSWORD   - Admin password for first-run bootstrap
//	STENCIL_LOG_LEVEL        - Log level: debug, info, warn, error (default: info)
//	STENCIL_LOG_FORMAT       - Log format: json or console (default: json)
//	STENCIL_METRICS_ENABLED  - Enable /metrics endpoint (default: true)
func LoadFromEnv() (*Config, error) {
	var cfg Config

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadWithFallback tries to load from file, falls back to environment variables.
// This is the recommended method for Docker deployments.
func LoadWithFallback(path string) (*Config, error) {
	// Try loading from file first
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}

	// Check if we have enough env vars to run
	if os.Getenv("STENCIL_AUTH_JWT_SECRET") != "" {
		return LoadFromEnv()
	}

	// No config available
	return nil, fmt.Errorf("no configuration found: provide config file or set STENCIL_AUTH_JWT_SECRET")
}

// HasEnvConfig returns true if essential environment variables are set.
func HasEnvConfig() bool {
	return os.Getenv("STENCIL_AUTH_JWT_SECRET") != ""
}

// applyEnvOverrides applies STENCIL_* environment variables to the config.
// Environment variables always override file-based configuration.
func applyEnvOverrides(cfg *Config) {
	// Server configuration
	if v := os.Getenv("STENCIL_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("STENCIL_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("STENCIL_SERVER_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if v := os.Getenv("STENCIL_SERVER_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}

	// Database configuration
	if v := os.Getenv("STENCIL_DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("STENCIL_DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}

	// Auth configuration
	if v := os.Getenv("STENCIL_AUTH_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("STENCIL_AUTH_KEY_PREFIX"); v != "" {
		cfg.Auth.KeyPrefix = v
	}
	if v := os.Getenv("STENCIL_AUTH_HEADER"); v != "" {
		cfg.Auth.Header = v
	}
	if v := os.Getenv("STENCIL_AUTH_TOKEN_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Auth.TokenTTL = d
		}
	}

	// Admin bootstrap
	if v := os.Getenv("STENCIL_ADMIN_EMAIL"); v != "" {
		cfg.Admin.Email = v
	}
	if v := os.Getenv("STENCIL_ADMIN_PASSWORD"); v != "" {
		cfg.Admin.Password = v
	}

	// Content configuration
	if v := os.Getenv("STENCIL_CONTENT_DEFAULT_PER_PAGE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Content.DefaultPerPage = n
		}
	}
	if v := os.Getenv("STENCIL_CONTENT_MAX_PER_PAGE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Content.MaxPerPage = n
		}
	}

	// Webhook configuration
	if v := os.Getenv("STENCIL_WEBHOOK_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Webhooks.Timeout = d
		}
	}

	// Email configuration
	if v := os.Getenv("STENCIL_EMAIL_PROVIDER"); v != "" {
		cfg.Email.Provider = v
	}
	if v := os.Getenv("STENCIL_SMTP_HOST"); v != "" {
		cfg.Email.SMTP.Host = v
	}
	if v := os.Getenv("STENCIL_SMTP_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Email.SMTP.Port = n
		}
	}
	if v := os.Getenv("STENCIL_SMTP_USERNAME"); v != "" {
		cfg.Email.SMTP.Username = v
	}
	if v := os.Getenv("STENCIL_SMTP_PASSWORD"); v != "" {
		cfg.Email.SMTP.Password = v
	}
	if v := os.Getenv("STENCIL_SMTP_FROM"); v != "" {
		cfg.Email.SMTP.From = v
	}
	if v := os.Getenv("STENCIL_SMTP_FROM_NAME"); v != "" {
		cfg.Email.SMTP.FromName = v
	}
	if v := os.Getenv("STENCIL_SMTP_USE_TLS"); v != "" {
		cfg.Email.SMTP.UseTLS = parseBool(v)
	}

	// Logging configuration
	if v := os.Getenv("STENCIL_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("STENCIL_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	// Metrics configuration
	if v := os.Getenv("STENCIL_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
	if v := os.Getenv("STENCIL_METRICS_PATH"); v != "" {
		cfg.Metrics.Path = v
	}
}

// parseBool parses a boolean from common string values.
func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "stencil.db"
	}

	if cfg.Auth.KeyPrefix == "" {
		cfg.Auth.KeyPrefix = "sk_"
	}
	if cfg.Auth.Header == "" {
		cfg.Auth.Header = "X-API-Key"
	}
	if cfg.Auth.TokenTTL == 0 {
		cfg.Auth.TokenTTL = 24 * time.Hour
	}

	if cfg.Content.DefaultPerPage == 0 {
		cfg.Content.DefaultPerPage = 20
	}
	if cfg.Content.MaxPerPage == 0 {
		cfg.Content.MaxPerPage = 100
	}

	if cfg.Webhooks.Timeout == 0 {
		cfg.Webhooks.Timeout = 30 * time.Second
	}
	if cfg.Webhooks.MaxResponseSize == 0 {
		cfg.Webhooks.MaxResponseSize = 4096
	}

	if cfg.Email.Provider == "" {
		cfg.Email.Provider = "none"
	}
	if cfg.Email.SMTP.Port == 0 {
		cfg.Email.SMTP.Port = 587
	}
	if cfg.Email.SMTP.Timeout == 0 {
		cfg.Email.SMTP.Timeout = 30 * time.Second
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

func validate(cfg *Config) error {
	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}

	validDrivers := map[string]bool{"sqlite": true, "memory": true}
	if !validDrivers[cfg.Database.Driver] {
		return fmt.Errorf("database.driver must be 'sqlite' or 'memory', got %q", cfg.Database.Driver)
	}

	validProviders := map[string]bool{"none": true, "smtp": true, "mock": true}
	if !validProviders[cfg.Email.Provider] {
		return fmt.Errorf("email.provider must be one of: none, smtp, mock, got %q", cfg.Email.Provider)
	}
	if cfg.Email.Provider == "smtp" {
		if cfg.Email.SMTP.Host == "" {
			return fmt.Errorf("email.smtp.host is required when email.provider is 'smtp'")
		}
		if cfg.Email.SMTP.From == "" {
			return fmt.Errorf("email.smtp.from is required when email.provider is 'smtp'")
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error, got %q", cfg.Logging.Level)
	}

	if cfg.Content.DefaultPerPage > cfg.Content.MaxPerPage {
		return fmt.Errorf("content.default_per_page (%d) exceeds content.max_per_page (%d)",
			cfg.Content.DefaultPerPage, cfg.Content.MaxPerPage)
	}

	if cfg.Admin.Email != "" && cfg.Admin.Password == "" {
		return fmt.Errorf("admin.password is required when admin.email is set")
	}

	return nil
}
