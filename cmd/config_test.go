// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Thermoquad/muart/pkg/bridge"
	"github.com/Thermoquad/muart/pkg/link"
	"github.com/Thermoquad/muart/pkg/statebus"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "muart.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfig_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.yaml")

	c, err := LoadConfig(path, false)
	if err != nil {
		t.Fatalf("optional missing file: %v", err)
	}
	if c.HeatPump.Baud != link.DefaultBaudRate {
		t.Errorf("HeatPump.Baud = %d, want %d", c.HeatPump.Baud, link.DefaultBaudRate)
	}
	if !c.Forwarding {
		t.Error("Forwarding should default to true")
	}

	if _, err := LoadConfig(path, true); err == nil {
		t.Error("required missing file should fail")
	}
}

func TestLoadConfig_ParsesFile(t *testing.T) {
	path := writeConfig(t, `
heatpump:
  port: /dev/ttyUSB0
  baud: 9600
thermostat:
  url: ws://bridge.local/thermostat
  username: admin
forwarding: false
passive: true
update_interval: 2s
response_timeout: 750ms
temperature_sources: [bedroom, office]
temperature_source_timeout: 10m
log_level: debug
publish:
  url: mqtt://broker:1883
preferences:
  file: /var/lib/muart/prefs.cbor
`)

	c, err := LoadConfig(path, true)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if c.HeatPump.Port != "/dev/ttyUSB0" || c.HeatPump.Baud != 9600 {
		t.Errorf("HeatPump = %+v", c.HeatPump)
	}
	if c.Thermostat.URL != "ws://bridge.local/thermostat" || c.Thermostat.Username != "admin" {
		t.Errorf("Thermostat = %+v", c.Thermostat)
	}
	if c.Thermostat.Baud != link.DefaultBaudRate {
		t.Errorf("Thermostat.Baud = %d, want default", c.Thermostat.Baud)
	}
	if c.Forwarding || !c.Passive {
		t.Errorf("Forwarding = %t, Passive = %t", c.Forwarding, c.Passive)
	}
	if c.UpdateInterval != 2*time.Second {
		t.Errorf("UpdateInterval = %s", c.UpdateInterval)
	}
	if c.ResponseTimeout != 750*time.Millisecond {
		t.Errorf("ResponseTimeout = %s", c.ResponseTimeout)
	}
	if c.TemperatureSourceTimeout != 10*time.Minute {
		t.Errorf("TemperatureSourceTimeout = %s", c.TemperatureSourceTimeout)
	}
	if len(c.TemperatureSources) != 2 || c.TemperatureSources[1] != "office" {
		t.Errorf("TemperatureSources = %v", c.TemperatureSources)
	}
	if c.Publish.Topic != statebus.DefaultPrefix {
		t.Errorf("Publish.Topic = %q, want default", c.Publish.Topic)
	}
	if c.MaxMissedUpdates != bridge.DefaultMaxMissedUpdates {
		t.Errorf("MaxMissedUpdates = %d, want default", c.MaxMissedUpdates)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}

	bc := c.BridgeConfig()
	if bc.UpdateInterval != 2*time.Second || !bc.Passive || bc.SourceTimeout != 10*time.Minute {
		t.Errorf("BridgeConfig = %+v", bc)
	}
}

func TestLoadConfig_BadYAML(t *testing.T) {
	path := writeConfig(t, "update_interval: [not a duration\n")
	if _, err := LoadConfig(path, true); err == nil {
		t.Error("malformed YAML should fail")
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		c := DefaultConfig()
		c.HeatPump.Port = "/dev/ttyUSB0"
		return c
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{"valid", func(c *Config) {}, ""},
		{"no heat pump", func(c *Config) { c.HeatPump.Port = "" }, "port or url"},
		{"heat pump port and url", func(c *Config) { c.HeatPump.URL = "ws://x" }, "heat pump link"},
		{"thermostat port and url", func(c *Config) {
			c.Thermostat.Port = "/dev/ttyUSB1"
			c.Thermostat.URL = "ws://x"
		}, "thermostat link"},
		{"zero update interval", func(c *Config) { c.UpdateInterval = 0 }, "update_interval"},
		{"prefs file and redis", func(c *Config) {
			c.Preferences.File = "prefs.cbor"
			c.Preferences.Redis = "redis://localhost:6379"
		}, "preferences"},
		{"empty source", func(c *Config) { c.TemperatureSources = []string{""} }, "empty source"},
		{"duplicate source", func(c *Config) { c.TemperatureSources = []string{"bedroom", "bedroom"} }, "duplicate"},
		{"internal listed", func(c *Config) { c.TemperatureSources = []string{bridge.TemperatureSourceInternal} }, "duplicate"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.errMsg == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q", tt.errMsg)
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("error %q does not contain %q", err, tt.errMsg)
			}
		})
	}
}

func TestLinkConfig_Describe(t *testing.T) {
	serial := LinkConfig{Port: "/dev/ttyUSB0", Baud: 2400}
	if got := serial.Describe(); got != "Serial: /dev/ttyUSB0 @ 2400 baud 8E1" {
		t.Errorf("serial Describe = %q", got)
	}
	ws := LinkConfig{URL: "ws://host/hp"}
	if got := ws.Describe(); got != "WebSocket: ws://host/hp" {
		t.Errorf("websocket Describe = %q", got)
	}
	if (LinkConfig{}).Configured() {
		t.Error("empty link should not be configured")
	}
}
