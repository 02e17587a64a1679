// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/muart/pkg/bridge"
	"github.com/Thermoquad/muart/pkg/prefs"
	"github.com/Thermoquad/muart/pkg/statebus"
)

var (
	bridgeForwarding bool
	bridgePassive    bool
	bridgePublishURL string
	bridgeTopic      string
	bridgePrefsFile  string
	bridgeRedisURL   string
	bridgeStatsEvery time.Duration
)

var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Run the heat pump bridge",
	Long: `Run the bridge between the heat pump and an optional thermostat.

The bridge connects to the heat pump, polls its room temperature, settings,
operating status and standby stage every update interval, and relays traffic
between the heat pump and the thermostat so both keep working.

Decoded state is published as JSON to <topic>/state on an MQTT or NATS
broker (--publish mqtt://host:1883 or nats://host:4222). Commands are
accepted on <topic>/set/<field> and temperature readings on
<topic>/report/<source>.

The selected temperature source is persisted in a file (--prefs-file) or
in Redis (--redis) and restored on start.`,
	RunE: runBridge,
}

func init() {
	bridgeCmd.Flags().BoolVar(&bridgeForwarding, "forwarding", true, "Relay traffic between the heat pump and thermostat")
	bridgeCmd.Flags().BoolVar(&bridgePassive, "passive", false, "Never send; learn state from overheard traffic only")
	bridgeCmd.Flags().StringVar(&bridgePublishURL, "publish", "", "State bus URL (mqtt://, mqtts://, ws://, nats://)")
	bridgeCmd.Flags().StringVar(&bridgeTopic, "topic", statebus.DefaultPrefix, "State bus topic prefix")
	bridgeCmd.Flags().StringVar(&bridgePrefsFile, "prefs-file", "", "File to persist preferences in")
	bridgeCmd.Flags().StringVar(&bridgeRedisURL, "redis", "", "Redis address or URL to persist preferences in")
	bridgeCmd.Flags().DurationVar(&bridgeStatsEvery, "stats-interval", 0, "Log bridge statistics at this interval (0 disables)")
	rootCmd.AddCommand(bridgeCmd)
}

// applyBridgeFlags overrides configuration values given on the command line
func applyBridgeFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("forwarding") {
		cfg.Forwarding = bridgeForwarding
	}
	if flags.Changed("passive") {
		cfg.Passive = bridgePassive
	}
	if flags.Changed("publish") {
		cfg.Publish.URL = bridgePublishURL
	}
	if flags.Changed("topic") {
		cfg.Publish.Topic = bridgeTopic
	}
	if flags.Changed("prefs-file") {
		cfg.Preferences.File = bridgePrefsFile
		cfg.Preferences.Redis = ""
	}
	if flags.Changed("redis") {
		cfg.Preferences.Redis = bridgeRedisURL
		cfg.Preferences.File = ""
	}
}

// openPreferences returns the configured preference store, or nil. The
// returned closer is never nil.
func openPreferences(ctx context.Context) (prefs.Store, io.Closer, error) {
	switch {
	case cfg.Preferences.Redis != "":
		store, err := prefs.OpenRedisStore(ctx, cfg.Preferences.Redis, cfg.Preferences.RedisKey)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	case cfg.Preferences.File != "":
		return prefs.NewFileStore(cfg.Preferences.File), io.NopCloser(nil), nil
	}
	return nil, io.NopCloser(nil), nil
}

func runBridge(cmd *cobra.Command, args []string) error {
	applyBridgeFlags(cmd)
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	heatPump, connInfo, err := OpenHeatPump(ctx)
	if err != nil {
		return err
	}
	defer heatPump.Close()
	log.WithField("link", heatPumpLinkName).Infof("Opened %s", connInfo)

	opts := []bridge.Option{bridge.WithLogger(log.StandardLogger())}

	var thermostat bridge.Link
	tsPort, err := OpenThermostat(ctx)
	if err != nil {
		return err
	}
	if tsPort != nil {
		defer tsPort.Close()
		thermostat = tsPort
		log.WithField("link", thermostatLinkName).Infof("Opened %s", cfg.Thermostat.Describe())
	}

	store, storeCloser, err := openPreferences(ctx)
	if err != nil {
		return err
	}
	defer storeCloser.Close()
	if store != nil {
		opts = append(opts, bridge.WithPreferences(store))
	}

	var intents <-chan bridge.Intent
	if cfg.Publish.URL != "" {
		bus, err := statebus.Open(cfg.Publish.URL, cfg.Publish.Topic, log.StandardLogger())
		if err != nil {
			return err
		}
		defer bus.Close()
		opts = append(opts, bridge.WithPublisher(bus))
		intents = bus.Intents()
	}

	b := bridge.New(heatPump, thermostat, cfg.BridgeConfig(), opts...)
	if err := b.RestorePreferences(ctx); err != nil {
		log.WithError(err).Warn("Failed to restore preferences")
	}

	if bridgeStatsEvery > 0 {
		intents = withStatsLogging(ctx, intents, bridgeStatsEvery)
	}

	log.Infof("Bridge running (forwarding=%t, passive=%t)", cfg.Forwarding, cfg.Passive)

	runErr := make(chan error, 1)
	go func() { runErr <- b.Run(ctx, intents) }()

	select {
	case err = <-runErr:
	case <-heatPump.Done():
		stop()
		<-runErr
		err = fmt.Errorf("heat pump link closed: %w", heatPump.Err())
	}

	if errors.Is(err, context.Canceled) {
		log.Info("Bridge stopped")
		return nil
	}
	return err
}

// withStatsLogging merges a periodic snapshot query into the intent stream
// and logs each reply
func withStatsLogging(ctx context.Context, in <-chan bridge.Intent, every time.Duration) <-chan bridge.Intent {
	out := make(chan bridge.Intent)
	replies := make(chan bridge.Snapshot, 1)

	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case snap := <-replies:
				log.Infof("Connection: %s\n%s", snap.Session.State, snap.Statistics)
			case <-ticker.C:
				select {
				case out <- bridge.QuerySnapshot{Reply: replies}:
				case <-ctx.Done():
					return
				}
			case intent, ok := <-in:
				if !ok {
					in = nil
					continue
				}
				select {
				case out <- intent:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}
