// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/Thermoquad/muart/pkg/bridge"
	"github.com/Thermoquad/muart/pkg/link"
	"github.com/Thermoquad/muart/pkg/statebus"
)

// DefaultConfigPath is read when --config is not given; it may be absent
const DefaultConfigPath = "muart.yaml"

// LinkConfig describes one side of the bridge: a local serial port or a
// remote WebSocket byte bridge
type LinkConfig struct {
	Port        string `yaml:"port,omitempty"`
	URL         string `yaml:"url,omitempty"`
	Baud        int    `yaml:"baud,omitempty"`
	Username    string `yaml:"username,omitempty"`
	NoSSLVerify bool   `yaml:"no_ssl_verify,omitempty"`
}

// Configured reports whether the link has a port or URL
func (l LinkConfig) Configured() bool {
	return l.Port != "" || l.URL != ""
}

// Describe returns a short human-readable description of the link
func (l LinkConfig) Describe() string {
	if l.URL != "" {
		return fmt.Sprintf("WebSocket: %s", l.URL)
	}
	return fmt.Sprintf("Serial: %s @ %d baud 8E1", l.Port, l.Baud)
}

// PublishConfig selects the state bus
type PublishConfig struct {
	URL   string `yaml:"url,omitempty"`
	Topic string `yaml:"topic,omitempty"`
}

// PreferencesConfig selects where the temperature source selection persists
type PreferencesConfig struct {
	File     string `yaml:"file,omitempty"`
	Redis    string `yaml:"redis,omitempty"`
	RedisKey string `yaml:"redis_key,omitempty"`
}

// Config is the on-disk configuration file
type Config struct {
	HeatPump   LinkConfig `yaml:"heatpump"`
	Thermostat LinkConfig `yaml:"thermostat,omitempty"`

	Forwarding bool `yaml:"forwarding"`
	Passive    bool `yaml:"passive"`

	UpdateInterval           time.Duration `yaml:"update_interval"`
	ResponseTimeout          time.Duration `yaml:"response_timeout"`
	MaxMissedUpdates         int           `yaml:"max_missed_updates"`
	TemperatureSources       []string      `yaml:"temperature_sources,omitempty"`
	TemperatureSourceTimeout time.Duration `yaml:"temperature_source_timeout"`

	LogLevel string `yaml:"log_level"`

	Publish     PublishConfig     `yaml:"publish,omitempty"`
	Preferences PreferencesConfig `yaml:"preferences,omitempty"`
}

// DefaultConfig returns a configuration with every default filled in
func DefaultConfig() *Config {
	return &Config{
		HeatPump:                 LinkConfig{Baud: link.DefaultBaudRate},
		Thermostat:               LinkConfig{Baud: link.DefaultBaudRate},
		Forwarding:               true,
		UpdateInterval:           bridge.DefaultUpdateInterval,
		ResponseTimeout:          bridge.DefaultResponseTimeout,
		MaxMissedUpdates:         bridge.DefaultMaxMissedUpdates,
		TemperatureSourceTimeout: bridge.DefaultSourceTimeout,
		LogLevel:                 "info",
		Publish:                  PublishConfig{Topic: statebus.DefaultPrefix},
	}
}

// LoadConfig reads path over the defaults. A missing file is only an error
// when required is set.
func LoadConfig(path string, required bool) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

// applyDefaults restores defaults for keys the file zeroed out
func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.HeatPump.Baud <= 0 {
		c.HeatPump.Baud = d.HeatPump.Baud
	}
	if c.Thermostat.Baud <= 0 {
		c.Thermostat.Baud = d.Thermostat.Baud
	}
	if c.ResponseTimeout <= 0 {
		c.ResponseTimeout = d.ResponseTimeout
	}
	if c.MaxMissedUpdates <= 0 {
		c.MaxMissedUpdates = d.MaxMissedUpdates
	}
	if c.TemperatureSourceTimeout <= 0 {
		c.TemperatureSourceTimeout = d.TemperatureSourceTimeout
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	if c.Publish.Topic == "" {
		c.Publish.Topic = d.Publish.Topic
	}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if !c.HeatPump.Configured() {
		return fmt.Errorf("heat pump link requires a port or url")
	}
	if c.HeatPump.Port != "" && c.HeatPump.URL != "" {
		return fmt.Errorf("heat pump link: port and url are mutually exclusive")
	}
	if c.Thermostat.Port != "" && c.Thermostat.URL != "" {
		return fmt.Errorf("thermostat link: port and url are mutually exclusive")
	}
	if c.UpdateInterval <= 0 {
		return fmt.Errorf("update_interval must be positive, got %s", c.UpdateInterval)
	}
	if c.Preferences.File != "" && c.Preferences.Redis != "" {
		return fmt.Errorf("preferences: file and redis are mutually exclusive")
	}
	seen := map[string]bool{bridge.TemperatureSourceInternal: true}
	for _, name := range c.TemperatureSources {
		if name == "" {
			return fmt.Errorf("temperature_sources: empty source name")
		}
		if seen[name] {
			return fmt.Errorf("temperature_sources: duplicate source %q", name)
		}
		seen[name] = true
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	return nil
}

// BridgeConfig converts the file configuration into the bridge's
func (c *Config) BridgeConfig() bridge.Config {
	return bridge.Config{
		Forwarding:         c.Forwarding,
		Passive:            c.Passive,
		UpdateInterval:     c.UpdateInterval,
		ResponseTimeout:    c.ResponseTimeout,
		MaxMissedUpdates:   c.MaxMissedUpdates,
		TemperatureSources: c.TemperatureSources,
		SourceTimeout:      c.TemperatureSourceTimeout,
	}
}
