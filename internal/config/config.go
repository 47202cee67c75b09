// ABOUTME: Configuration loading and parsing for the crucible server.
// ABOUTME: Supports YAML files with environment variable expansion and defaults.

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete crucible configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Sandbox  SandboxConfig  `yaml:"sandbox"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
	Oracle   OracleConfig   `yaml:"oracle"`
	Dedupe   DedupeConfig   `yaml:"dedupe"`
}

// ServerConfig holds the listen address.
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// SandboxConfig holds the filesystem sandbox location. Every file tool and
// resource read resolves inside Root.
type SandboxConfig struct {
	Root string `yaml:"root"`
}

// DatabaseConfig holds the audit database location. Empty disables auditing.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// OracleConfig configures the model used by the chat loop.
type OracleConfig struct {
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	APIKeyEnv string `yaml:"api_key_env"`
	MaxRounds int    `yaml:"max_rounds"`
}

// DedupeConfig tunes the request-id replay cache.
type DedupeConfig struct {
	TTL     time.Duration `yaml:"-"`
	MaxSize int           `yaml:"max_size"`

	TTLRaw string `yaml:"ttl"`
}

// Load reads a configuration file from the given path and returns a parsed
// Config. Environment variables in the format ${VAR_NAME} are expanded
// before parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.parseDurations(); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding
// environment variable values. Unset variables expand to the empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func (c *Config) applyDefaults() {
	if c.Oracle.MaxRounds == 0 {
		c.Oracle.MaxRounds = 8
	}
	if c.Oracle.APIKeyEnv == "" {
		c.Oracle.APIKeyEnv = "OPENAI_API_KEY"
	}
	if c.Dedupe.TTL == 0 {
		c.Dedupe.TTL = 5 * time.Minute
	}
	if c.Dedupe.MaxSize == 0 {
		c.Dedupe.MaxSize = 100_000
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks that all required configuration fields are present and
// valid. Returns an error describing the first failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}
	if c.Sandbox.Root == "" {
		return fmt.Errorf("sandbox.root is required")
	}
	if c.Oracle.MaxRounds < 0 {
		return fmt.Errorf("oracle.max_rounds must not be negative")
	}
	return nil
}

func (c *Config) parseDurations() error {
	if c.Dedupe.TTLRaw != "" {
		ttl, err := time.ParseDuration(c.Dedupe.TTLRaw)
		if err != nil {
			return fmt.Errorf("parsing dedupe.ttl %q: %w", c.Dedupe.TTLRaw, err)
		}
		c.Dedupe.TTL = ttl
	}
	return nil
}
