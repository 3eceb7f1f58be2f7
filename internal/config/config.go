// Package config provides configuration management for the price pipeline.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Configuration validation errors.
var (
	ErrMissingOutputDir     = errors.New("paths.output_dir is required")
	ErrMissingDataDir       = errors.New("paths.data_dir is required")
	ErrMissingSnapshotFile  = errors.New("paths.snapshot_file is required")
	ErrInvalidRawPattern    = errors.New("paths.raw_pattern must contain {store} and {day}")
	ErrStoreMissingName     = errors.New("store name is required")
	ErrDuplicateStore       = errors.New("store is configured more than once")
	ErrInvalidLogLevel      = errors.New("logging.level must be one of: debug, info, warn, error")
	ErrInvalidLogFormat     = errors.New("logging.format must be 'text' or 'json'")
	ErrInvalidConcurrency   = errors.New("publish.concurrency must be at least 1")
	ErrMissingNotifySubject = errors.New("notify.subject is required when notify.nats_url is set")
	ErrInvalidWatchDebounce = errors.New("watch.debounce_ms must be non-negative")
)

// Environment variables that override secrets from the config file.
const (
	EnvNATSURL     = "NATS_URL"
	EnvDatabaseURL = "DATABASE_URL"
)

// Config represents the complete pipeline configuration.
type Config struct {
	Paths    PathsConfig    `yaml:"paths"`
	Stores   []StoreConfig  `yaml:"stores"`
	Logging  LoggingConfig  `yaml:"logging"`
	Publish  PublishConfig  `yaml:"publish"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Notify   NotifyConfig   `yaml:"notify"`
	Database DatabaseConfig `yaml:"database"`
	Watch    WatchConfig    `yaml:"watch"`
}

// PathsConfig locates raw inputs, the durable snapshot and published slices.
type PathsConfig struct {
	OutputDir    string `yaml:"output_dir"`
	DataDir      string `yaml:"data_dir"`
	RawPattern   string `yaml:"raw_pattern"`
	SnapshotFile string `yaml:"snapshot_file"`
}

// StoreConfig toggles a registered store adapter.
type StoreConfig struct {
	Name    string `yaml:"name"`
	Enabled bool   `yaml:"enabled"`
}

// LoggingConfig defines logging behavior.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// PublishConfig defines how per-store slices are republished.
type PublishConfig struct {
	Concurrency int  `yaml:"concurrency"`
	Manifest    bool `yaml:"manifest"`
}

// MetricsConfig defines where run metrics are written.
type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

// NotifyConfig defines the NATS notification sent after a run.
type NotifyConfig struct {
	NATSURL string `yaml:"nats_url"`
	Subject string `yaml:"subject"`
}

// DatabaseConfig defines the optional Postgres price history mirror.
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// WatchConfig defines the raw directory watcher.
type WatchConfig struct {
	DebounceMs int `yaml:"debounce_ms"`
}

// DefaultConfig returns a configuration usable without a config file.
func DefaultConfig() *Config {
	return &Config{
		Paths: PathsConfig{
			OutputDir:    "output",
			DataDir:      filepath.Join("web", "data"),
			RawPattern:   "{store}/{day}*.json*",
			SnapshotFile: "latest-canonical.json.gz",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Publish: PublishConfig{
			Concurrency: 4,
			Manifest:    true,
		},
		Notify: NotifyConfig{
			Subject: "hotprices.snapshot.published",
		},
		Watch: WatchConfig{
			DebounceMs: 2000,
		},
	}
}

// LoadConfig loads configuration from a YAML file on top of DefaultConfig and validates it.
func LoadConfig(path string) (*Config, error) {
	cfg, err := ReadConfig(path)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// ReadConfig parses a YAML file on top of DefaultConfig and applies the
// environment without validating, so callers can layer overrides first.
func ReadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg.ApplyEnv()

	return cfg, nil
}

// SaveConfig saves configuration to a YAML file.
func (c *Config) SaveConfig(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv overrides connection strings from the environment.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvNATSURL); v != "" {
		c.Notify.NATSURL = v
	}

	if v := os.Getenv(EnvDatabaseURL); v != "" {
		c.Database.URL = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Paths.OutputDir == "" {
		return ErrMissingOutputDir
	}

	if c.Paths.DataDir == "" {
		return ErrMissingDataDir
	}

	if c.Paths.SnapshotFile == "" {
		return ErrMissingSnapshotFile
	}

	if !strings.Contains(c.Paths.RawPattern, "{store}") || !strings.Contains(c.Paths.RawPattern, "{day}") {
		return ErrInvalidRawPattern
	}

	seen := make(map[string]bool, len(c.Stores))

	for i, store := range c.Stores {
		if store.Name == "" {
			return fmt.Errorf("%w: stores[%d]", ErrStoreMissingName, i)
		}

		if seen[store.Name] {
			return fmt.Errorf("%w: %s", ErrDuplicateStore, store.Name)
		}

		seen[store.Name] = true
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return ErrInvalidLogLevel
	}

	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return ErrInvalidLogFormat
	}

	if c.Publish.Concurrency < 1 {
		return ErrInvalidConcurrency
	}

	if c.Notify.NATSURL != "" && c.Notify.Subject == "" {
		return ErrMissingNotifySubject
	}

	if c.Watch.DebounceMs < 0 {
		return ErrInvalidWatchDebounce
	}

	return nil
}

// StoreEnabled reports whether a store should be processed.
// Stores absent from the config are enabled; listing a store with enabled: false disables it.
func (c *Config) StoreEnabled(name string) bool {
	for _, store := range c.Stores {
		if store.Name == name {
			return store.Enabled
		}
	}

	return true
}

// SnapshotPath returns the full path of the durable snapshot.
func (c *Config) SnapshotPath() string {
	return filepath.Join(c.Paths.OutputDir, c.Paths.SnapshotFile)
}

// String returns a string representation of the config.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Output: %s, Data: %s, Stores: %d, Concurrency: %d}",
		c.Paths.OutputDir,
		c.Paths.DataDir,
		len(c.Stores),
		c.Publish.Concurrency,
	)
}
