// ABOUTME: Configuration loading and parsing for auth-gateway
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Default public paths: the three auth flows every client must reach
// before it holds a token.
var defaultPublicPaths = []string{"/login", "/logout", "/refresh"}

// Config represents the complete auth-gateway configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Provider ProviderConfig `yaml:"provider"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds token validation configuration
type AuthConfig struct {
	// JWTSecret is the shared secret the provider signs HS256 tokens
	// with. Required; the gateway refuses to start without it.
	JWTSecret string `yaml:"jwt_secret"`

	// PublicPaths are exempt from the request gate. Defaults to
	// /login, /logout and /refresh.
	PublicPaths []string `yaml:"public_paths"`
}

// ProviderConfig holds the upstream identity provider connection.
// Only the refresh flow needs it; a gateway without it still serves
// login and logout.
type ProviderConfig struct {
	URL     string        `yaml:"url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	TimeoutRaw string `yaml:"timeout"`
}

// Enabled reports whether the provider connection is configured.
func (p ProviderConfig) Enabled() bool {
	return p.URL != "" && p.APIKey != ""
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// parseDurations converts raw duration strings into time.Duration values.
func parseDurations(cfg *Config) error {
	if cfg.Provider.TimeoutRaw != "" {
		d, err := time.ParseDuration(cfg.Provider.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("provider.timeout: %w", err)
		}
		cfg.Provider.Timeout = d
	}
	return nil
}

// applyDefaults fills unset optional fields.
func (c *Config) applyDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = ":8080"
	}
	if c.Database.Path == "" {
		c.Database.Path = "auth-gateway.db"
	}
	if len(c.Auth.PublicPaths) == 0 {
		c.Auth.PublicPaths = append([]string(nil), defaultPublicPaths...)
	}
	if c.Provider.Timeout == 0 {
		c.Provider.Timeout = 10 * time.Second
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate checks required fields. The JWT secret is a hard startup
// requirement; the provider connection is required only as a pair.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}
	if (c.Provider.URL == "") != (c.Provider.APIKey == "") {
		return errors.New("provider.url and provider.api_key must be set together")
	}
	if c.Provider.Timeout < 0 {
		return errors.New("provider.timeout must not be negative")
	}
	return nil
}
