// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/muart/pkg/bridge"
	"github.com/Thermoquad/muart/pkg/link"
	"github.com/Thermoquad/muart/pkg/prefs"
)

var controlCmd = &cobra.Command{
	Use:   "control",
	Short: "Interactive TUI for monitoring and controlling the heat pump",
	Long: `Run the bridge behind an interactive terminal UI.

The TUI shows the heat pump state as the bridge decodes it, the bridge
statistics, and recent events. It can:
  - Select the temperature source (internal sensor or a named source)
  - Send a remote room temperature, or switch back to the internal sensor
  - Toggle power, cycle mode and fan speed, and adjust the target temperature
  - Reconnect automatically when the heat pump link is lost

Tab cycles focus between the source list, the temperature input and the
buttons. Enter activates the focused item. Outside the temperature input,
p toggles power, m cycles mode, f cycles fan speed and +/- adjust the target.

Supports both serial and WebSocket connections.`,
	RunE: runControl,
}

func init() {
	rootCmd.AddCommand(controlCmd)
}

const (
	reconnectInitialBackoff = 1 * time.Second
	reconnectMaxBackoff     = 30 * time.Second
)

// connectionManager handles the bridge lifecycle and heat pump reconnection
type connectionManager struct {
	heatPump   *link.Port
	thermostat *link.Port
	connInfo   string
	store      prefs.Store
	intents    chan bridge.Intent
	logger     *log.Logger

	mu sync.RWMutex
	p  *tea.Program
	wg sync.WaitGroup
}

func (cm *connectionManager) getHeatPump() *link.Port {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.heatPump
}

func (cm *connectionManager) setHeatPump(p *link.Port, connInfo string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.heatPump = p
	cm.connInfo = connInfo
}

// Publish forwards state changes to the TUI
func (cm *connectionManager) Publish(state bridge.DeviceState) error {
	cm.p.Send(stateMsg{state: state})
	return nil
}

// tuiHook routes bridge log entries into the TUI event log
type tuiHook struct {
	cm *connectionManager
}

func (h tuiHook) Levels() []log.Level {
	return []log.Level{log.PanicLevel, log.FatalLevel, log.ErrorLevel, log.WarnLevel, log.InfoLevel}
}

func (h tuiHook) Fire(entry *log.Entry) error {
	h.cm.p.Send(eventMsg{
		message: entry.Message,
		isError: entry.Level <= log.WarnLevel,
	})
	return nil
}

func runControl(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	heatPump, connInfo, err := OpenHeatPump(ctx)
	if err != nil {
		return err
	}

	thermostat, err := OpenThermostat(ctx)
	if err != nil {
		heatPump.Close()
		return err
	}

	store, storeCloser, err := openPreferences(ctx)
	if err != nil {
		heatPump.Close()
		if thermostat != nil {
			thermostat.Close()
		}
		return err
	}
	defer storeCloser.Close()
	if store == nil {
		store = prefs.NewMemoryStore()
	}

	// The alt screen owns the terminal; log lines go to the event log instead
	logger := log.New()
	logger.SetOutput(io.Discard)
	logger.SetLevel(log.GetLevel())

	cm := &connectionManager{
		heatPump:   heatPump,
		thermostat: thermostat,
		connInfo:   connInfo,
		store:      store,
		intents:    make(chan bridge.Intent, 8),
		logger:     logger,
	}
	logger.AddHook(tuiHook{cm: cm})

	m := initialControlModel(cm, connInfo)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	cm.p = p

	cm.wg.Add(1)
	go cm.bridgeLoop(ctx)

	go func() {
		<-ctx.Done()
		p.Quit()
	}()

	_, runErr := p.Run()

	stop()
	cm.wg.Wait()
	cm.getHeatPump().Close()
	if thermostat != nil {
		thermostat.Close()
	}

	if runErr != nil {
		return fmt.Errorf("TUI error: %v", runErr)
	}
	return nil
}

// bridgeLoop runs a bridge over the current heat pump link, replacing it
// whenever the link is lost
func (cm *connectionManager) bridgeLoop(ctx context.Context) {
	defer cm.wg.Done()

	var thermostat bridge.Link
	if cm.thermostat != nil {
		thermostat = cm.thermostat
	}

	for {
		heatPump := cm.getHeatPump()

		b := bridge.New(heatPump, thermostat, cfg.BridgeConfig(),
			bridge.WithLogger(cm.logger),
			bridge.WithPublisher(cm),
			bridge.WithPreferences(cm.store),
		)
		if err := b.RestorePreferences(ctx); err != nil {
			cm.logger.WithError(err).Warn("Failed to restore preferences")
		}

		runCtx, cancel := context.WithCancel(ctx)
		runErr := make(chan error, 1)
		go func() { runErr <- b.Run(runCtx, cm.intents) }()

		select {
		case <-ctx.Done():
			cancel()
			<-runErr
			return
		case <-heatPump.Done():
			cancel()
			<-runErr
		}

		cm.p.Send(connectionLostMsg{err: heatPump.Err()})

		if !cm.reconnect(ctx) {
			return // Shutdown requested during reconnect
		}
	}
}

// reconnect attempts to reopen the heat pump link with exponential backoff.
// Returns false if shutdown was requested during reconnection.
func (cm *connectionManager) reconnect(ctx context.Context) bool {
	cm.getHeatPump().Close()

	backoff := reconnectInitialBackoff

	for {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(backoff):
		}

		heatPump, err := OpenLink(ctx, heatPumpLinkName, cfg.HeatPump)
		if err == nil {
			connInfo := cfg.HeatPump.Describe()
			cm.setHeatPump(heatPump, connInfo)
			cm.p.Send(reconnectedMsg{connInfo: connInfo})
			return true
		}

		backoff *= 2
		if backoff > reconnectMaxBackoff {
			backoff = reconnectMaxBackoff
		}
	}
}

// sendIntent returns a command that queues in for the bridge goroutine
func (cm *connectionManager) sendIntent(in bridge.Intent, description string) tea.Cmd {
	return func() tea.Msg {
		select {
		case cm.intents <- in:
			return eventMsg{message: description}
		case <-time.After(2 * time.Second):
			return eventMsg{message: "Bridge busy, dropped: " + description, isError: true}
		}
	}
}

// querySnapshot returns a command that asks the bridge for a snapshot
func (cm *connectionManager) querySnapshot() tea.Cmd {
	return func() tea.Msg {
		reply := make(chan bridge.Snapshot, 1)
		select {
		case cm.intents <- bridge.QuerySnapshot{Reply: reply}:
		case <-time.After(time.Second):
			return nil
		}
		select {
		case snap := <-reply:
			return snapshotMsg{snapshot: snap}
		case <-time.After(2 * time.Second):
			return nil
		}
	}
}
