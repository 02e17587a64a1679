// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/muart/pkg/link"
)

var (
	configPath string
	logLevel   string

	// Heat pump link flags
	portName string
	baudRate int
	wsURL    string

	// Thermostat link flags
	thermostatPort string
	thermostatBaud int
	thermostatURL  string

	// WebSocket authentication flags (both links)
	wsUsername    string
	wsNoSSLVerify bool

	// cfg is loaded before any subcommand runs
	cfg *Config
)

var rootCmd = &cobra.Command{
	Use:   "muart",
	Short: "Mitsubishi heat pump serial protocol bridge",
	Long: `muart - A bridge and analyzer for the serial protocol spoken between a
Mitsubishi heat pump and its wired thermostat.

The bridge polls the heat pump for its settings, room temperature, and
operating status, keeps the thermostat working by relaying traffic between
the two links, and publishes the decoded state over MQTT or NATS.

Connection modes (per link):
  Serial:    --port /dev/ttyUSB0 [--baud 2400]        (always 8E1)
  WebSocket: --url ws://host/path [--username user]

The thermostat link is optional and uses --thermostat-port / --thermostat-url.
Values given on the command line override the configuration file.

For WebSocket authentication, the password is read from the MUART_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version:           "1.0.0",
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", DefaultConfigPath, "Configuration file (YAML)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (trace, debug, info, warn, error)")

	// Heat pump link flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Heat pump serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", link.DefaultBaudRate, "Heat pump baud rate (serial only)")
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "Heat pump WebSocket URL (ws:// or wss://)")

	// Thermostat link flags
	rootCmd.PersistentFlags().StringVar(&thermostatPort, "thermostat-port", "", "Thermostat serial port device")
	rootCmd.PersistentFlags().IntVar(&thermostatBaud, "thermostat-baud", link.DefaultBaudRate, "Thermostat baud rate (serial only)")
	rootCmd.PersistentFlags().StringVar(&thermostatURL, "thermostat-url", "", "Thermostat WebSocket URL (ws:// or wss://)")

	// WebSocket authentication flags
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")
}

// loadConfig reads the configuration file, applies flag overrides and
// sets up logging
func loadConfig(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()

	loaded, err := LoadConfig(configPath, flags.Changed("config"))
	if err != nil {
		return err
	}

	if flags.Changed("log-level") {
		loaded.LogLevel = logLevel
	}
	if flags.Changed("port") {
		loaded.HeatPump.Port = portName
		loaded.HeatPump.URL = ""
	}
	if flags.Changed("url") {
		loaded.HeatPump.URL = wsURL
		loaded.HeatPump.Port = ""
	}
	if flags.Changed("baud") {
		loaded.HeatPump.Baud = baudRate
	}
	if flags.Changed("thermostat-port") {
		loaded.Thermostat.Port = thermostatPort
		loaded.Thermostat.URL = ""
	}
	if flags.Changed("thermostat-url") {
		loaded.Thermostat.URL = thermostatURL
		loaded.Thermostat.Port = ""
	}
	if flags.Changed("thermostat-baud") {
		loaded.Thermostat.Baud = thermostatBaud
	}
	if flags.Changed("username") {
		loaded.HeatPump.Username = wsUsername
		loaded.Thermostat.Username = wsUsername
	}
	if flags.Changed("no-ssl-verify") {
		loaded.HeatPump.NoSSLVerify = wsNoSSLVerify
		loaded.Thermostat.NoSSLVerify = wsNoSSLVerify
	}

	setupLogging(loaded.LogLevel)
	cfg = loaded
	return nil
}

func setupLogging(level string) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.Debugf("Log level set to: %s", lvl)
}

// requireHeatPump fails early for commands that need the heat pump link
func requireHeatPump() error {
	if !cfg.HeatPump.Configured() {
		return fmt.Errorf("either --port or --url must be specified")
	}
	return nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
