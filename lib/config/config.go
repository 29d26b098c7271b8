// Copyright 2026 The FleetLink Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// Duration wraps time.Duration with YAML unmarshalling from the
// standard "5s" / "250ms" textual form.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the master configuration for the FleetLink broker service.
type Config struct {
	// Environment identifies the deployment type (development,
	// staging, production).
	Environment Environment `yaml:"environment"`

	// Listen configures the peer-facing stream listener.
	Listen ListenConfig `yaml:"listen"`

	// Database configures the persistent store.
	Database DatabaseConfig `yaml:"database"`

	// Broker configures the messaging broker core.
	Broker BrokerConfig `yaml:"broker"`

	// Log configures structured logging.
	Log LogConfig `yaml:"log"`

	// Per-environment overrides, applied after the base config loads.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	Listen   *ListenConfig   `yaml:"listen,omitempty"`
	Database *DatabaseConfig `yaml:"database,omitempty"`
	Broker   *BrokerConfig   `yaml:"broker,omitempty"`
	Log      *LogConfig      `yaml:"log,omitempty"`
}

// ListenConfig configures the peer-facing stream listener.
type ListenConfig struct {
	// Address is the TCP listen address in host:port form.
	// Default: ":9190". Use ":0" for a random port in tests.
	Address string `yaml:"address"`
}

// DatabaseConfig configures the persistent store.
type DatabaseConfig struct {
	// Path is the SQLite database file. The parent directory is
	// created on startup if missing.
	Path string `yaml:"path"`
}

// BrokerConfig configures the messaging broker core.
type BrokerConfig struct {
	// ChannelCapacity is the bound on each peer's outbound channel.
	// Producers that overflow it see a backpressure error. Default: 64.
	ChannelCapacity int `yaml:"channel_capacity"`

	// SendTimeout is the maximum time Send waits to enqueue onto a
	// full outbound channel before reporting backpressure. Default: 1s.
	SendTimeout Duration `yaml:"send_timeout"`

	// DrainTimeout is the maximum time a closing session spends
	// draining already-enqueued downstream frames. Default: 5s.
	DrainTimeout Duration `yaml:"drain_timeout"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	// Level is the minimum slog level: debug, info, warn, or error.
	// Default: info.
	Level string `yaml:"level"`
}

// Default returns the default configuration. These defaults are used
// as a base before loading the config file; every field has a usable
// zero-configuration value so tests can run without a file at all.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		Environment: Development,
		Listen: ListenConfig{
			Address: ":9190",
		},
		Database: DatabaseConfig{
			Path: filepath.Join(homeDir, ".cache", "fleetlink", "broker.db"),
		},
		Broker: BrokerConfig{
			ChannelCapacity: 64,
			SendTimeout:     Duration(time.Second),
			DrainTimeout:    Duration(5 * time.Second),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from the file named by the FLEETLINK_CONFIG
// environment variable.
//
// This is the only way to load configuration without an explicit path.
// If FLEETLINK_CONFIG is not set, this fails — there are no fallbacks,
// which keeps configuration deterministic and auditable.
func Load() (*Config, error) {
	configPath := os.Getenv("FLEETLINK_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("FLEETLINK_CONFIG environment variable not set; " +
			"set it to the path of your fleetlink.yaml config file, or use --config flag")
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// The config file is the single source of truth. Environment variables
// do not override config values. The only expansion performed is
// ${HOME} and similar path variables for portability.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()

	return cfg, nil
}

// applyEnvironmentOverrides applies the section matching
// Config.Environment on top of the base values.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
	}

	if overrides == nil {
		return
	}

	if overrides.Listen != nil && overrides.Listen.Address != "" {
		c.Listen.Address = overrides.Listen.Address
	}

	if overrides.Database != nil && overrides.Database.Path != "" {
		c.Database.Path = overrides.Database.Path
	}

	if overrides.Broker != nil {
		if overrides.Broker.ChannelCapacity != 0 {
			c.Broker.ChannelCapacity = overrides.Broker.ChannelCapacity
		}
		if overrides.Broker.SendTimeout != 0 {
			c.Broker.SendTimeout = overrides.Broker.SendTimeout
		}
		if overrides.Broker.DrainTimeout != 0 {
			c.Broker.DrainTimeout = overrides.Broker.DrainTimeout
		}
	}

	if overrides.Log != nil && overrides.Log.Level != "" {
		c.Log.Level = overrides.Log.Level
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in path
// fields.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.Database.Path = expandVars(c.Database.Path, vars)
}

// varPattern matches ${VAR} and ${VAR:-default}.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.Listen.Address == "" {
		errs = append(errs, fmt.Errorf("listen.address is required"))
	}

	if c.Database.Path == "" {
		errs = append(errs, fmt.Errorf("database.path is required"))
	}

	if c.Broker.ChannelCapacity <= 0 {
		errs = append(errs, fmt.Errorf("broker.channel_capacity must be positive"))
	}
	if c.Broker.SendTimeout <= 0 {
		errs = append(errs, fmt.Errorf("broker.send_timeout must be positive"))
	}
	if c.Broker.DrainTimeout <= 0 {
		errs = append(errs, fmt.Errorf("broker.drain_timeout must be positive"))
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level must be one of: debug, info, warn, error"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// EnsurePaths creates the database parent directory if it does not
// exist.
func (c *Config) EnsurePaths() error {
	dir := filepath.Dir(c.Database.Path)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	return nil
}
