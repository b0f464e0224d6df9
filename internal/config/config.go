package config

import (
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

// Environment represents different deployment environments
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvProduction  Environment = "production"
)

// Config holds the configuration for the messenger service
// Environment variables are automatically parsed from MESSENGER_ prefix
type Config struct {
	Environment Environment `envconfig:"ENVIRONMENT" default:"development"`

	// HTTP Configuration
	HTTPPort int `envconfig:"HTTP_PORT" default:"3000"`

	// Storage: postgres | sqlite | memory
	DBDriver    string `envconfig:"DB_DRIVER" default:"auto"`
	PostgresDSN string `envconfig:"POSTGRES_DSN" default:""`
	SQLitePath  string `envconfig:"SQLITE_PATH" default:"data/messenger.db"`

	// Session credentials
	JWTSecret string `envconfig:"JWT_SECRET" default:""`

	// Browser origin of the web client; drives CORS and cookie SameSite policy
	ClientURL string `envconfig:"CLIENT_URL" default:"http://localhost:5173"`

	// Image hosting collaborator (unsigned upload endpoint)
	UploadURL    string `envconfig:"UPLOAD_URL" default:""`
	UploadPreset string `envconfig:"UPLOAD_PRESET" default:""`

	// Welcome mail via the Resend HTTP API; disabled when the key is empty
	ResendAPIKey  string `envconfig:"RESEND_API_KEY" default:""`
	ResendURL     string `envconfig:"RESEND_URL" default:"https://api.resend.com"`
	EmailFrom     string `envconfig:"EMAIL_FROM" default:""`
	EmailFromName string `envconfig:"EMAIL_FROM_NAME" default:"Messenger"`

	// Health checking
	HealthIntervalSeconds     int `envconfig:"HEALTH_INTERVAL_SECONDS" default:"30"`
	HealthProbeTimeoutSeconds int `envconfig:"HEALTH_PROBE_TIMEOUT_SECONDS" default:"2"`

	// Websocket handshake rate limit per identity
	HandshakeRPS   float64 `envconfig:"HANDSHAKE_RPS" default:"1"`
	HandshakeBurst int     `envconfig:"HANDSHAKE_BURST" default:"5"`
}

// ResolveDefaults validates the driver selection and derives DBDriver when set to "auto" or empty.
func (c *Config) ResolveDefaults() error {
	if c.DBDriver == "" || c.DBDriver == "auto" {
		if c.PostgresDSN != "" {
			c.DBDriver = "postgres"
		} else {
			c.DBDriver = "sqlite"
		}
	}

	allowedDB := map[string]bool{"postgres": true, "sqlite": true, "memory": true}
	if !allowedDB[c.DBDriver] {
		return fmt.Errorf("unsupported DB_DRIVER: %s", c.DBDriver)
	}
	if c.DBDriver == "postgres" && c.PostgresDSN == "" {
		return fmt.Errorf("DB_DRIVER=postgres requires POSTGRES_DSN")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is not defined")
	}
	c.ClientURL = strings.TrimSpace(c.ClientURL)
	return nil
}

// New creates a new Config by parsing environment variables
// Environment variables should be prefixed with MESSENGER_
// Example: MESSENGER_JWT_SECRET, MESSENGER_HTTP_PORT
func New() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("MESSENGER", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}

	log.Info().
		Str("environment", string(cfg.Environment)).
		Str("db_driver", cfg.DBDriver).
		Int("port", cfg.HTTPPort).
		Str("client_url", cfg.ClientURL).
		Bool("cross_site", cfg.CrossSite()).
		Str("postgres_dsn_present", func() string {
			if cfg.PostgresDSN != "" {
				return "true"
			}
			return "false"
		}()).
		Bool("uploads_enabled", cfg.UploadURL != "").
		Bool("welcome_mail_enabled", cfg.ResendAPIKey != "").
		Msg("Configuration loaded")

	return &cfg, nil
}

// NewForTesting creates a config specifically for testing
func NewForTesting() *Config {
	return &Config{
		Environment:               EnvTesting,
		HTTPPort:                  3000,
		DBDriver:                  "memory",
		JWTSecret:                 "test-secret",
		ClientURL:                 "http://localhost:5173",
		HealthIntervalSeconds:     1,
		HealthProbeTimeoutSeconds: 1,
		HandshakeRPS:              100,
		HandshakeBurst:            100,
	}
}

// IsTesting returns true if the environment is set to testing
func (c *Config) IsTesting() bool {
	return c.Environment == EnvTesting
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// CrossSite reports whether the web client is served from another site, in
// which case the session cookie needs SameSite=None and Secure.
func (c *Config) CrossSite() bool {
	if c.IsProduction() {
		return true
	}
	u := strings.ToLower(c.ClientURL)
	return strings.Contains(u, "vercel") || strings.Contains(u, "render")
}

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}
