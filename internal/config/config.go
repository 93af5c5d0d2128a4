// Package config loads the calc command configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/zephyrtronium/calculator"
)

// Config is the calc configuration file.
type Config struct {
	Format  Format      `yaml:"format"`
	Parse   ParseConfig `yaml:"parse"`
	History History     `yaml:"history"`
	Server  Server      `yaml:"server"`
	Log     Log         `yaml:"log"`
}

// Format controls how results are displayed.
type Format struct {
	MaxDigits      int `yaml:"max_digits"`
	RoundingDigits int `yaml:"rounding_digits"`
}

// ParseConfig controls expression compilation.
type ParseConfig struct {
	// MaxDepth is the nesting limit. Zero disables it.
	MaxDepth int `yaml:"max_depth"`
}

// History controls the result history file.
type History struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Server controls calc serve.
type Server struct {
	Addr         string `yaml:"addr"`
	MaxBodyBytes int64  `yaml:"max_body_bytes"`
}

// Log controls diagnostic logging.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Format: Format{
			MaxDigits:      calculator.MaxDigits,
			RoundingDigits: calculator.RoundingDigits,
		},
		Parse: ParseConfig{
			MaxDepth: calculator.DefaultMaxDepth,
		},
		History: History{
			Enabled: true,
			Path:    defaultHistoryPath(),
		},
		Server: Server{
			Addr:         "localhost:8080",
			MaxBodyBytes: 1 << 16,
		},
		Log: Log{
			Level:  "info",
			Format: "text",
		},
	}
}

// defaultHistoryPath returns calc/history.jsonl under the user's state or
// config directory, or a relative path if neither is known.
func defaultHistoryPath() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "calc", "history.jsonl")
	}
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "calc", "history.jsonl")
	}
	return ".calc_history.jsonl"
}

// Load reads a configuration file. Fields missing from the file keep their
// default values. An empty path gives the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(data)
}

// Parse parses configuration from YAML bytes over the defaults.
func Parse(data []byte) (*Config, error) {
	c := Default()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks that the configuration values are usable.
func (c *Config) Validate() error {
	if c.Format.MaxDigits < 0 {
		return fmt.Errorf("config: format.max_digits must not be negative, got %d", c.Format.MaxDigits)
	}
	if c.Format.RoundingDigits < 0 || c.Format.RoundingDigits > 13 {
		return fmt.Errorf("config: format.rounding_digits must be between 0 and 13, got %d", c.Format.RoundingDigits)
	}
	if c.Parse.MaxDepth < 0 {
		return fmt.Errorf("config: parse.max_depth must not be negative, got %d", c.Parse.MaxDepth)
	}
	if c.History.Enabled && c.History.Path == "" {
		return fmt.Errorf("config: history.path is required when history is enabled")
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("config: server.addr is required")
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("config: server.max_body_bytes must be positive, got %d", c.Server.MaxBodyBytes)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log.level %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("config: unknown log.format %q", c.Log.Format)
	}
	return nil
}

// ParseOptions returns the compile options the configuration selects.
func (c *Config) ParseOptions() []calculator.ParseOption {
	return []calculator.ParseOption{calculator.MaxDepth(c.Parse.MaxDepth)}
}

// Display formats a result according to the configuration.
func (c *Config) Display(x float64) string {
	return calculator.Format(x, c.Format.MaxDigits, c.Format.RoundingDigits)
}
