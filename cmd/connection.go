// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/Thermoquad/muart/pkg/link"
)

// Link names as they appear in logs
const (
	heatPumpLinkName   = "heatpump"
	thermostatLinkName = "thermostat"
)

const wsDialTimeout = 15 * time.Second

// password is prompted at most once per process
var password *string

func linkPassword(lc LinkConfig) (string, error) {
	if lc.Username == "" {
		return "", nil
	}
	if password == nil {
		pw, err := link.GetPassword()
		if err != nil {
			return "", err
		}
		password = &pw
	}
	return *password, nil
}

// OpenLink opens the serial port or WebSocket described by lc
func OpenLink(ctx context.Context, name string, lc LinkConfig) (*link.Port, error) {
	logger := log.StandardLogger()

	if lc.URL != "" {
		pw, err := linkPassword(lc)
		if err != nil {
			return nil, err
		}

		dialCtx, cancel := context.WithTimeout(ctx, wsDialTimeout)
		defer cancel()

		return link.OpenWebSocket(dialCtx, name, lc.URL, link.WebSocketOptions{
			Username:      lc.Username,
			Password:      pw,
			SkipSSLVerify: lc.NoSSLVerify,
		}, logger)
	}

	if lc.Port != "" {
		return link.OpenSerial(name, lc.Port, lc.Baud, logger)
	}

	return nil, fmt.Errorf("%s link: either a port or a url must be specified", name)
}

// OpenHeatPump opens the heat pump link from the loaded configuration
func OpenHeatPump(ctx context.Context) (*link.Port, string, error) {
	if err := requireHeatPump(); err != nil {
		return nil, "", err
	}
	p, err := OpenLink(ctx, heatPumpLinkName, cfg.HeatPump)
	if err != nil {
		return nil, "", err
	}
	return p, cfg.HeatPump.Describe(), nil
}

// OpenThermostat opens the thermostat link, or returns nil when none is
// configured
func OpenThermostat(ctx context.Context) (*link.Port, error) {
	if !cfg.Thermostat.Configured() {
		return nil, nil
	}
	return OpenLink(ctx, thermostatLinkName, cfg.Thermostat)
}
