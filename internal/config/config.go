// Package config provides configuration management for lanmon.
//
// Config file locations (priority order):
//  1. $LANMON_CONFIG
//  2. ./lanmon.yaml
//  3. $XDG_CONFIG_HOME/lanmon/config.yaml
//  4. ~/.config/lanmon/config.yaml
//  5. /etc/lanmon/config.yaml
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Listen   string         `yaml:"listen"`
	Database DatabaseConfig `yaml:"database"`
	Scan     ScanConfig     `yaml:"scan"`
	Enrich   EnrichConfig   `yaml:"enrich"`
	Log      LogConfig      `yaml:"log"`
}

// DatabaseConfig holds storage settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// ScanConfig controls the discovery pipeline.
type ScanConfig struct {
	// Interval between scan sessions, measured from the end of the
	// previous session.
	Interval Duration `yaml:"interval"`
	// Subnet in CIDR notation. Empty means auto-detect the local
	// segment from the default interface.
	Subnet string `yaml:"subnet"`
	// Strategies configures each probe strategy by name. Strategies
	// absent from the map run with defaults.
	Strategies map[string]StrategyConfig `yaml:"strategies"`
}

// StrategyConfig enables/disables one probe strategy and bounds it.
type StrategyConfig struct {
	Enabled *bool    `yaml:"enabled,omitempty"`
	Timeout Duration `yaml:"timeout,omitempty"`
}

// IsEnabled treats an absent flag as enabled.
func (s StrategyConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// EnrichConfig toggles the post-discovery enrichment passes.
type EnrichConfig struct {
	MDNS    *bool    `yaml:"mdns,omitempty"`
	RDNS    *bool    `yaml:"rdns,omitempty"`
	Ports   *bool    `yaml:"ports,omitempty"`
	Timeout Duration `yaml:"timeout,omitempty"`
}

// MDNSEnabled treats an absent flag as enabled.
func (e EnrichConfig) MDNSEnabled() bool { return e.MDNS == nil || *e.MDNS }

// RDNSEnabled treats an absent flag as enabled.
func (e EnrichConfig) RDNSEnabled() bool { return e.RDNS == nil || *e.RDNS }

// PortsEnabled treats an absent flag as enabled.
func (e EnrichConfig) PortsEnabled() bool { return e.Ports == nil || *e.Ports }

// LogConfig controls logging output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Load finds and loads the config file, or returns defaults if none found.
func Load() (*Config, string, error) {
	path := FindConfigPath()

	if path == "" {
		return DefaultConfig(), "", nil
	}

	return LoadFromPath(path)
}

// LoadFromPath loads config from a specific path.
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, path, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, path, nil
}

// Save writes config to the specified path.
func (c *Config) Save(path string) error {
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// DefaultConfig returns sensible defaults for a new installation.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills in missing values with defaults.
func (c *Config) applyDefaults() {
	if c.Listen == "" {
		c.Listen = ":8080"
	}
	if c.Database.Path == "" {
		c.Database.Path = "./lanmon.db"
	}
	if c.Scan.Interval == 0 {
		c.Scan.Interval = Duration(60 * time.Second)
	}
	if c.Scan.Strategies == nil {
		c.Scan.Strategies = map[string]StrategyConfig{}
	}
	if c.Enrich.Timeout == 0 {
		c.Enrich.Timeout = Duration(15 * time.Second)
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// StrategyTimeout returns the configured timeout for a strategy, or the
// given fallback when unset.
func (c *Config) StrategyTimeout(name string, fallback time.Duration) time.Duration {
	if sc, ok := c.Scan.Strategies[name]; ok && sc.Timeout != 0 {
		return time.Duration(sc.Timeout)
	}
	return fallback
}

// StrategyEnabled reports whether a strategy is enabled. Unconfigured
// strategies are enabled.
func (c *Config) StrategyEnabled(name string) bool {
	if sc, ok := c.Scan.Strategies[name]; ok {
		return sc.IsEnabled()
	}
	return true
}

// Duration is a time.Duration with yaml "1m30s" encoding.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}
