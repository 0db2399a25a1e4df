// Package config loads the host process configuration.
//
// Configuration is read from YAML, then overridden by SQLBRIDGE_* environment
// variables, then validated.
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
	Executor ExecutorConfig `yaml:"executor"`
	HTTP     HTTPConfig     `yaml:"http"`
	Auth     AuthConfig     `yaml:"auth"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ExecutorConfig contains store settings.
type ExecutorConfig struct {
	StoreDir    string `yaml:"store_dir"`
	StoreName   string `yaml:"store_name"`
	BusyTimeout int    `yaml:"busy_timeout"` // seconds
	// Journal is the path of the command journal database. Empty disables it.
	Journal string `yaml:"journal"`
}

// HTTPConfig contains bridge server settings.
type HTTPConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	ReadTimeout  int    `yaml:"read_timeout"`  // seconds
	WriteTimeout int    `yaml:"write_timeout"` // seconds
}

// AuthConfig contains bearer token settings.
type AuthConfig struct {
	// JWTSecret enables token auth when set.
	JWTSecret string `yaml:"jwt_secret"`
	TokenTTL  int    `yaml:"token_ttl"` // minutes
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Addr is the listen address of the bridge server.
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// TokenDuration is the lifetime of issued tokens.
func (c AuthConfig) TokenDuration() time.Duration {
	return time.Duration(c.TokenTTL) * time.Minute
}

// Load reads the YAML file at path. An empty path yields the defaults (with
// environment overrides applied).
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Executor: ExecutorConfig{
			StoreDir:    "./data",
			StoreName:   "sqlbridge.db",
			BusyTimeout: 5,
		},
		HTTP: HTTPConfig{
			Host:         "127.0.0.1",
			Port:         8765,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Auth: AuthConfig{
			TokenTTL: 60,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: SQLBRIDGE_SECTION_KEY
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("SQLBRIDGE_EXECUTOR_STORE_DIR"); v != "" {
		cfg.Executor.StoreDir = v
	}
	if v := os.Getenv("SQLBRIDGE_EXECUTOR_JOURNAL"); v != "" {
		cfg.Executor.Journal = v
	}
	if v := os.Getenv("SQLBRIDGE_HTTP_HOST"); v != "" {
		cfg.HTTP.Host = v
	}
	if v := os.Getenv("SQLBRIDGE_HTTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SQLBRIDGE_HTTP_PORT: %w", err)
		}
		cfg.HTTP.Port = port
	}
	if v := os.Getenv("SQLBRIDGE_AUTH_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("SQLBRIDGE_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	return nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Executor.StoreDir == "" {
		errs = append(errs, "executor.store_dir is required")
	}
	if c.Executor.BusyTimeout < 0 {
		errs = append(errs, "executor.busy_timeout must not be negative")
	}
	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		errs = append(errs, fmt.Sprintf("http.port %d is out of range", c.HTTP.Port))
	}
	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < 32 {
		errs = append(errs, "auth.jwt_secret must be at least 32 characters")
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, "auth.token_ttl must be positive")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		errs = append(errs, fmt.Sprintf("logging.format %q must be json or console", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}
