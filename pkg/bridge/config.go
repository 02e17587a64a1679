// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bridge

import (
	"time"

	"github.com/Thermoquad/muart/pkg/muart"
)

// Defaults
const (
	DefaultUpdateInterval   = 5 * time.Second
	DefaultResponseTimeout  = muart.DefaultReadTimeout
	DefaultReadPause        = muart.DefaultReadPause
	DefaultMaxMissedUpdates = 10
	DefaultSourceTimeout    = 7 * time.Minute
)

// Config controls polling and forwarding
type Config struct {
	// Forwarding relays traffic between the heat pump and thermostat links
	Forwarding bool
	// Passive disables polling; state is learned from overheard traffic only
	Passive bool

	UpdateInterval   time.Duration
	ResponseTimeout  time.Duration
	ReadPause        time.Duration
	MaxMissedUpdates int

	// TemperatureSources names the external sources that may be selected in
	// addition to the internal sensor
	TemperatureSources []string
	SourceTimeout      time.Duration
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		UpdateInterval:   DefaultUpdateInterval,
		ResponseTimeout:  DefaultResponseTimeout,
		ReadPause:        DefaultReadPause,
		MaxMissedUpdates: DefaultMaxMissedUpdates,
		SourceTimeout:    DefaultSourceTimeout,
	}
}

// withDefaults fills zero durations and counts from DefaultConfig
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.UpdateInterval <= 0 {
		c.UpdateInterval = d.UpdateInterval
	}
	if c.ResponseTimeout <= 0 {
		c.ResponseTimeout = d.ResponseTimeout
	}
	if c.ReadPause <= 0 {
		c.ReadPause = d.ReadPause
	}
	if c.MaxMissedUpdates <= 0 {
		c.MaxMissedUpdates = d.MaxMissedUpdates
	}
	if c.SourceTimeout <= 0 {
		c.SourceTimeout = d.SourceTimeout
	}
	return c
}
