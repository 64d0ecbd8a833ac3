// Package config provides configuration types and defaults for componentry.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zjrosen/componentry/internal/log"
	"github.com/zjrosen/componentry/internal/observation"
	"github.com/zjrosen/componentry/internal/tracing"
)

// Config holds all configuration options for componentry.
type Config struct {
	Log         LogConfig         `mapstructure:"log"`
	Registry    RegistryConfig    `mapstructure:"registry"`
	Observation ObservationConfig `mapstructure:"observation"`
	Manifest    ManifestConfig    `mapstructure:"manifest"`
	Tracing     tracing.Config    `mapstructure:"tracing"`
}

// LogConfig controls the debug log.
type LogConfig struct {
	Path  string `mapstructure:"path"`  // empty disables file logging
	Level string `mapstructure:"level"` // debug, info (default), warn, error
}

// RegistryConfig holds component manager options.
type RegistryConfig struct {
	// Strict rejects registering a key that is already present instead of
	// replacing it.
	Strict bool `mapstructure:"strict"`
}

// ObservationConfig holds observation bus options.
type ObservationConfig struct {
	// DispatchErrors is "log" (default) or "aggregate".
	DispatchErrors string `mapstructure:"dispatch_errors"`
}

// ManifestConfig locates the component manifest.
type ManifestConfig struct {
	Path     string        `mapstructure:"path"`
	Debounce time.Duration `mapstructure:"debounce"`
}

// DispatchPolicy returns the parsed observation dispatch policy.
func (o ObservationConfig) DispatchPolicy() observation.DispatchPolicy {
	p, err := observation.ParseDispatchPolicy(o.DispatchErrors)
	if err != nil {
		return observation.PolicyLog
	}
	return p
}

// DefaultManifestPath is used when neither the flag nor the config names a
// manifest.
const DefaultManifestPath = "components.yaml"

// DefaultDebounce coalesces the burst of writes editors produce on save.
const DefaultDebounce = 200 * time.Millisecond

// DefaultTracesFilePath returns the default path for trace file export.
// Returns ~/.config/componentry/traces/traces.jsonl or empty string if home dir unavailable.
func DefaultTracesFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "componentry", "traces", "traces.jsonl")
}

// Defaults returns a Config with every field set to its default.
func Defaults() Config {
	tc := tracing.DefaultConfig()
	tc.FilePath = DefaultTracesFilePath()

	return Config{
		Log: LogConfig{
			Level: "info",
		},
		Observation: ObservationConfig{
			DispatchErrors: string(observation.PolicyLog),
		},
		Manifest: ManifestConfig{
			Path:     DefaultManifestPath,
			Debounce: DefaultDebounce,
		},
		Tracing: tc,
	}
}

// Validate checks every section and returns the first problem found.
func (c Config) Validate() error {
	if err := ValidateLog(c.Log); err != nil {
		return err
	}
	if _, err := observation.ParseDispatchPolicy(c.Observation.DispatchErrors); err != nil {
		return fmt.Errorf("observation.dispatch_errors: %w", err)
	}
	if c.Manifest.Debounce < 0 {
		return fmt.Errorf("manifest.debounce must not be negative, got %s", c.Manifest.Debounce)
	}
	if err := c.Tracing.Validate(); err != nil {
		return err
	}
	return nil
}

// ValidateLog checks the log level name.
func ValidateLog(l LogConfig) error {
	switch strings.ToLower(l.Level) {
	case "", "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("log.level must be \"debug\", \"info\", \"warn\" or \"error\", got %q", l.Level)
	}
}

// DefaultConfigTemplate returns the default config as a YAML string with comments.
func DefaultConfigTemplate() string {
	return `# Componentry Configuration

# Debug log
log:
  # path: componentry.log   # Write log entries here (disabled when empty)
  level: info               # debug, info, warn or error

# Component manager
registry:
  strict: false             # Reject duplicate role/hint registrations instead of replacing

# Observation bus
observation:
  dispatch_errors: log      # "log" keeps going silently, "aggregate" returns all listener errors

# Component manifest
manifest:
  path: components.yaml
  debounce: 200ms           # Quiet period before a changed manifest is reloaded

# Tracing
# tracing:
#   enabled: true
#   exporter: file          # none, file, stdout or otlp
#   file_path: ~/.config/componentry/traces/traces.jsonl
#   sample_rate: 1.0
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
