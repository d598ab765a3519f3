// Package config provides configuration types and defaults for qcircuit.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/zjrosen/qcircuit/internal/log"
	"github.com/zjrosen/qcircuit/internal/tracing"
)

// Config holds all configuration options for qcircuit.
type Config struct {
	Log     LogConfig      `mapstructure:"log"`
	Tracing tracing.Config `mapstructure:"tracing"`
	Runtime RuntimeConfig  `mapstructure:"runtime"`
	Cache   CacheConfig    `mapstructure:"cache"`
	Store   StoreConfig    `mapstructure:"store"`
}

// LogConfig holds debug log settings.
type LogConfig struct {
	// Path is the debug log file. Empty disables file logging.
	Path  string `mapstructure:"path"`
	Level string `mapstructure:"level"` // debug, info (default), warn, error
}

// RuntimeConfig holds defaults for state-vector runs.
type RuntimeConfig struct {
	// Seed makes measurement outcomes reproducible. 0 picks a random seed.
	Seed  uint64 `mapstructure:"seed"`
	Shots int    `mapstructure:"shots"`
}

// CacheConfig controls dispatch match memoisation.
type CacheConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// StoreConfig holds run history settings.
type StoreConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Path is the sqlite database file.
	// Default: ~/.config/qcircuit/history.db
	Path string `mapstructure:"path"`
}

// DefaultStorePath returns the default path of the run history database.
// Returns an empty string if the home dir is unavailable.
func DefaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "qcircuit", "history.db")
}

// DefaultTracesFilePath returns the default path for trace file export.
func DefaultTracesFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "qcircuit", "traces", "traces.jsonl")
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	tc := tracing.DefaultConfig()
	tc.FilePath = DefaultTracesFilePath()
	return Config{
		Log: LogConfig{
			Level: "info",
		},
		Tracing: tc,
		Runtime: RuntimeConfig{
			Seed:  0,
			Shots: 1024,
		},
		Cache: CacheConfig{
			Enabled: true,
		},
		Store: StoreConfig{
			Enabled: true,
			Path:    DefaultStorePath(),
		},
	}
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := ValidateLog(c.Log); err != nil {
		return err
	}
	if err := ValidateTracing(c.Tracing); err != nil {
		return err
	}
	if err := ValidateRuntime(c.Runtime); err != nil {
		return err
	}
	return ValidateStore(c.Store)
}

// ValidateLog checks log configuration for errors.
func ValidateLog(l LogConfig) error {
	switch l.Level {
	case "", "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("log.level must be \"debug\", \"info\", \"warn\", or \"error\", got %q", l.Level)
	}
}

// ValidateTracing checks tracing configuration for errors.
// Returns nil if the configuration is valid (empty values use defaults).
func ValidateTracing(t tracing.Config) error {
	if t.SampleRate < 0.0 || t.SampleRate > 1.0 {
		return fmt.Errorf("tracing.sample_rate must be between 0.0 and 1.0, got %v", t.SampleRate)
	}

	if t.Exporter != "" {
		switch t.Exporter {
		case "none", "file", "stdout", "otlp":
		default:
			return fmt.Errorf("tracing.exporter must be \"none\", \"file\", \"stdout\", or \"otlp\", got %q", t.Exporter)
		}
	}

	// Only validate path requirements when tracing is enabled
	if t.Enabled {
		if t.Exporter == "file" && t.FilePath == "" {
			return fmt.Errorf("tracing.file_path is required when exporter is \"file\"")
		}
		if t.Exporter == "otlp" && t.OTLPEndpoint == "" {
			return fmt.Errorf("tracing.otlp_endpoint is required when exporter is \"otlp\"")
		}
	}
	return nil
}

// ValidateRuntime checks runtime configuration for errors.
func ValidateRuntime(r RuntimeConfig) error {
	if r.Shots < 0 {
		return fmt.Errorf("runtime.shots must not be negative, got %d", r.Shots)
	}
	return nil
}

// ValidateStore checks run history configuration for errors.
func ValidateStore(s StoreConfig) error {
	if s.Enabled && s.Path == "" {
		return fmt.Errorf("store.path is required when the store is enabled")
	}
	return nil
}

// DefaultConfigTemplate returns the default config as a YAML string with comments.
func DefaultConfigTemplate() string {
	return `# qcircuit configuration

# Debug logging (also enabled by --debug or QCIRCUIT_DEBUG=1)
log:
  # path: debug.log
  level: info   # debug, info, warn, error

# State-vector runs
runtime:
  seed: 0       # 0 picks a random seed for every run
  shots: 1024   # default number of shots for 'qcircuit run'

# Memoise dispatch matches per registry
cache:
  enabled: true

# Run history ('qcircuit run --record', 'qcircuit history')
store:
  enabled: true
  # path: ~/.config/qcircuit/history.db

# Distributed tracing of dispatch calls
tracing:
  enabled: false
  # Exporter: none, file, stdout, otlp
  exporter: file
  # file_path: ~/.config/qcircuit/traces/traces.jsonl
  otlp_endpoint: localhost:4317
  sample_rate: 1.0
  #
  # Example: Send traces to Jaeger via OTLP
  # tracing:
  #   enabled: true
  #   exporter: otlp
  #   otlp_endpoint: jaeger.internal:4317
  #   sample_rate: 0.1  # Sample 10% of traces
`
}

// WriteDefaultConfig creates a config file at the given path with default settings and comments.
// Creates the parent directory if it doesn't exist.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "Writing default config", "path", configPath)

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "Created default config", "path", configPath)
	return nil
}
