// Package config provides configuration loading and validation for the CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jonathan/content-publisher/internal/logging"
)

// Blob storage backends
const (
	BlobBackendPostgres = "postgres"
	BlobBackendBolt     = "bolt"
)

// Defaults applied when neither the config file, the environment nor a flag sets a value
const (
	DefaultOutputDir   = "./publishing_manifests"
	DefaultLogLevel    = "info"
	DefaultBlobBackend = BlobBackendPostgres
	DefaultBoltPath    = "./published_content.db"
)

// Environment variables consulted by ApplyEnv
const (
	EnvDatabaseURL = "DATABASE_URL"
	EnvOutputDir   = "PUBLISH_OUTPUT_DIR"
	EnvLogLevel    = "PUBLISH_LOG_LEVEL"
)

// Config represents the CLI configuration that can be loaded from a JSON file.
// All fields are optional; missing values use defaults or must be provided via CLI flags.
type Config struct {
	// Connections
	DatabaseURL string `json:"database_url,omitempty"` // PostgreSQL connection URL
	BlobBackend string `json:"blob_backend,omitempty"` // "postgres" or "bolt"
	BoltPath    string `json:"bolt_path,omitempty"`    // bbolt file for the bolt backend

	// Paths
	OutputDir         string `json:"output_dir,omitempty"`         // Manifests, error log and page mirror
	FormattingOptions string `json:"formatting_options,omitempty"` // YAML file with CTA and hashtag options

	// Run defaults
	Section      string   `json:"section,omitempty"`
	Platforms    []string `json:"platforms,omitempty"`
	IncludeRetry bool     `json:"include_retry,omitempty"`

	// Behavior
	LogLevel string `json:"log_level,omitempty"`
	Verbose  bool   `json:"verbose,omitempty"` // Print boxed summaries
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the configuration has valid values.
// Required values are checked by the commands after flags are merged.
func (c *Config) Validate() error {
	switch c.BlobBackend {
	case "", BlobBackendPostgres, BlobBackendBolt:
	default:
		return fmt.Errorf("config error: 'blob_backend' must be %q or %q, got %q", BlobBackendPostgres, BlobBackendBolt, c.BlobBackend)
	}

	if c.LogLevel != "" && !logging.ValidLevel(c.LogLevel) {
		return fmt.Errorf("config error: invalid 'log_level' %q", c.LogLevel)
	}

	if c.FormattingOptions != "" {
		if _, err := os.Stat(c.FormattingOptions); os.IsNotExist(err) {
			return fmt.Errorf("config error: formatting options file not found: %s", c.FormattingOptions)
		}
	}

	for _, p := range c.Platforms {
		if p == "" {
			return fmt.Errorf("config error: 'platforms' contains an empty entry")
		}
	}

	return nil
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
// This is used to apply config file values as defaults for CLI flags.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.BlobBackend == "" {
		result.BlobBackend = defaults.BlobBackend
	}
	if result.BoltPath == "" {
		result.BoltPath = defaults.BoltPath
	}
	if result.OutputDir == "" {
		result.OutputDir = defaults.OutputDir
	}
	if result.FormattingOptions == "" {
		result.FormattingOptions = defaults.FormattingOptions
	}
	if result.Section == "" {
		result.Section = defaults.Section
	}
	if len(result.Platforms) == 0 {
		result.Platforms = defaults.Platforms
	}
	if result.LogLevel == "" {
		result.LogLevel = defaults.LogLevel
	}

	// Bool fields: cannot distinguish unset from false, so we don't merge
	// (CLI flags should always win for bools)

	return result
}

// ApplyEnv fills empty fields from the environment. lookup is os.LookupEnv
// outside tests.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if v, ok := lookup(EnvDatabaseURL); ok && c.DatabaseURL == "" {
		c.DatabaseURL = v
	}
	if v, ok := lookup(EnvOutputDir); ok && c.OutputDir == "" {
		c.OutputDir = v
	}
	if v, ok := lookup(EnvLogLevel); ok && c.LogLevel == "" {
		c.LogLevel = v
	}
}

// Defaults returns the built-in configuration
func Defaults() Config {
	return Config{
		OutputDir:   DefaultOutputDir,
		LogLevel:    DefaultLogLevel,
		BlobBackend: DefaultBlobBackend,
		BoltPath:    DefaultBoltPath,
	}
}

// Resolve layers a config file (if path is set), the environment and the
// built-in defaults, then validates the result.
func Resolve(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := &Config{}
	if path != "" {
		loaded, err := LoadConfig(path)
		if err != nil {
			return Config{}, err
		}
		cfg = loaded
	}
	cfg.ApplyEnv(lookup)
	merged := cfg.MergeWithDefaults(Defaults())
	if err := merged.Validate(); err != nil {
		return Config{}, err
	}
	return merged, nil
}
