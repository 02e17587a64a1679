// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bridge

import (
	"context"
	"fmt"
	"time"

	"github.com/Thermoquad/muart/pkg/muart"
)

// Intent is a request from outside the bridge. Intents are applied on the
// bridge goroutine by Run or Apply.
type Intent interface {
	intent()
}

// SelectSource selects a temperature source by name
type SelectSource struct {
	Source string
}

// ReportTemperature reports a reading from a named source
type ReportTemperature struct {
	Source  string
	Celsius float64
}

// SetRemoteTemperature reports a temperature regardless of the selected source
type SetRemoteTemperature struct {
	Celsius float64
}

// UseInternalTemperature switches the heat pump back to its own sensor
type UseInternalTemperature struct{}

// ChangeSettings sends a set settings request
type ChangeSettings struct {
	Change muart.SettingsChange
}

// QuerySnapshot asks the running bridge for a Snapshot. Reply should be
// buffered; the snapshot is dropped if it cannot be delivered immediately.
type QuerySnapshot struct {
	Reply chan<- Snapshot
}

func (SelectSource) intent()           {}
func (ReportTemperature) intent()      {}
func (SetRemoteTemperature) intent()   {}
func (UseInternalTemperature) intent() {}
func (ChangeSettings) intent()         {}
func (QuerySnapshot) intent()          {}

// Snapshot is a consistent copy of everything observable about a bridge
type Snapshot struct {
	State      DeviceState
	Session    Session
	Statistics Statistics
	Sources    []string
	Selected   string
}

// Snapshot returns the current state, session, counters and sources
func (b *Bridge) Snapshot() Snapshot {
	return Snapshot{
		State:      b.State(),
		Session:    b.Session(),
		Statistics: b.Statistics(),
		Sources:    b.TemperatureSources(),
		Selected:   b.SelectedTemperatureSource(),
	}
}

// Apply performs one intent
func (b *Bridge) Apply(ctx context.Context, in Intent) error {
	switch v := in.(type) {
	case SelectSource:
		return b.SelectTemperatureSource(ctx, v.Source)
	case ReportTemperature:
		b.ReportTemperature(v.Source, v.Celsius)
		return nil
	case SetRemoteTemperature:
		b.SetRemoteTemperature(v.Celsius)
		return nil
	case UseInternalTemperature:
		b.UseInternalTemperature()
		return nil
	case ChangeSettings:
		return b.SetSettings(v.Change)
	case QuerySnapshot:
		select {
		case v.Reply <- b.Snapshot():
		default:
		}
		return nil
	}
	return fmt.Errorf("unsupported intent %T", in)
}

// readyNow is a closed channel, always ready to receive
var readyNow = func() <-chan time.Time {
	c := make(chan time.Time)
	close(c)
	return c
}()

// Run drives the bridge until ctx is cancelled: Poll every update interval,
// Loop as fast as frames arrive, and intents in between. A nil intents
// channel is allowed.
func (b *Bridge) Run(ctx context.Context, intents <-chan Intent) error {
	ticker := time.NewTicker(b.cfg.UpdateInterval)
	defer ticker.Stop()

	b.Poll()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		// While frames keep arriving only take ticks and intents that are ready
		pause := readyNow
		if !b.Loop() {
			pause = time.After(b.cfg.ReadPause)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			b.Poll()
		case in, ok := <-intents:
			if !ok {
				intents = nil
				continue
			}
			if err := b.Apply(ctx, in); err != nil {
				b.log.WithError(err).Warnf("Failed to apply %T", in)
			}
		case <-pause:
		}
	}
}
