package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/l3aro/go-dominance/internal/log"
)

// Output formats understood by the report encoder.
const (
	FormatText    = "text"
	FormatJSON    = "json"
	FormatYAML    = "yaml"
	FormatMsgpack = "msgpack"
	FormatDOT     = "dot"
)

// Formats lists every valid output format.
var Formats = []string{FormatText, FormatJSON, FormatYAML, FormatMsgpack, FormatDOT}

// Config holds all configuration for gdom
type Config struct {
	// NamePrefix is prepended to the counter when naming unlabelled blocks
	NamePrefix string `yaml:"name_prefix" env:"GDOM_NAME_PREFIX"`

	// Parallelism is the number of functions analyzed concurrently
	Parallelism int `yaml:"parallelism" env:"GDOM_PARALLELISM"`

	// Verify cross-checks every dominator tree with Lengauer-Tarjan
	Verify bool `yaml:"verify" env:"GDOM_VERIFY"`

	// FailFast stops at the first function that fails
	FailFast bool `yaml:"fail_fast" env:"GDOM_FAIL_FAST"`

	// Format is the default output format
	Format string `yaml:"format" env:"GDOM_FORMAT"`

	// Logging. Verbose forces the debug level.
	LogLevel string `yaml:"log_level" env:"GDOM_LOG_LEVEL"`
	Verbose  bool   `yaml:"verbose" env:"GDOM_VERBOSE"`
	LogJSON  bool   `yaml:"log_json" env:"GDOM_LOG_JSON"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		NamePrefix:  "b",
		Parallelism: 1,
		Verify:      false,
		FailFast:    false,
		Format:      FormatText,
		LogLevel:    "info",
		Verbose:     false,
		LogJSON:     false,
	}
}

// GlobalConfigFilePath returns the global config file path (~/.gdom/config.yaml)
func GlobalConfigFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ProjectConfigFilePath()
	}
	return filepath.Join(home, ".gdom", "config.yaml")
}

// ProjectConfigFilePath returns the project-level config file path (./.gdom/config.yaml)
func ProjectConfigFilePath() string {
	return filepath.Join(".gdom", "config.yaml")
}

// Load reads configuration with the following priority (highest to lowest):
// 1. Environment variables
// 2. Project-level config (./.gdom/config.yaml)
// 3. Global config (~/.gdom/config.yaml)
// 4. Defaults
func Load() (*Config, error) {
	cfg := DefaultConfig()

	for _, path := range []string{GlobalConfigFilePath(), ProjectConfigFilePath()} {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromFile reads configuration from a specific YAML file path
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	if data, err := os.ReadFile(path); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration to the specified YAML file path.
// It creates parent directories if they don't exist.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("GDOM_NAME_PREFIX"); v != "" {
		cfg.NamePrefix = v
	}
	if v := os.Getenv("GDOM_PARALLELISM"); v != "" {
		i, err := parseInt(v)
		if err != nil {
			return fmt.Errorf("GDOM_PARALLELISM: %w", err)
		}
		cfg.Parallelism = i
	}
	if v := os.Getenv("GDOM_VERIFY"); v != "" {
		cfg.Verify = parseBool(v)
	}
	if v := os.Getenv("GDOM_FAIL_FAST"); v != "" {
		cfg.FailFast = parseBool(v)
	}
	if v := os.Getenv("GDOM_FORMAT"); v != "" {
		cfg.Format = strings.ToLower(v)
	}
	if v := os.Getenv("GDOM_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("GDOM_VERBOSE"); v != "" {
		cfg.Verbose = parseBool(v)
	}
	if v := os.Getenv("GDOM_LOG_JSON"); v != "" {
		cfg.LogJSON = parseBool(v)
	}
	return nil
}

// Validate checks that the configuration has valid required fields
func (c *Config) Validate() error {
	if c.NamePrefix == "" {
		return fmt.Errorf("name_prefix must not be empty")
	}
	if strings.ContainsAny(c.NamePrefix, " \t\n.") {
		return fmt.Errorf("name_prefix %q must not contain whitespace or dots", c.NamePrefix)
	}
	if c.Parallelism <= 0 {
		return fmt.Errorf("parallelism must be positive")
	}
	if !ValidFormat(c.Format) {
		return fmt.Errorf("invalid format: %s (must be one of %s)", c.Format, strings.Join(Formats, ", "))
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level: %w", err)
	}
	return nil
}

// Level returns the effective log level.
func (c *Config) Level() log.Level {
	if c.Verbose {
		return log.DebugLevel
	}
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.InfoLevel
	}
	return level
}

// ValidFormat reports whether f names a known output format.
func ValidFormat(f string) bool {
	for _, known := range Formats {
		if f == known {
			return true
		}
	}
	return false
}

func parseBool(s string) bool {
	switch strings.ToLower(s) {
	case "true", "1", "yes":
		return true
	}
	return false
}

// parseInt attempts to parse a string as int
func parseInt(s string) (int, error) {
	var i int
	if _, err := fmt.Sscanf(s, "%d", &i); err != nil {
		return 0, fmt.Errorf("invalid integer %q", s)
	}
	return i, nil
}
