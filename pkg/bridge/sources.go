// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bridge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Thermoquad/muart/pkg/muart"
	"github.com/Thermoquad/muart/pkg/prefs"
)

// TemperatureSourceInternal selects the heat pump's own sensor. It is always available.
const TemperatureSourceInternal = "internal"

// ErrUnknownSource is returned when selecting a source that is not configured
var ErrUnknownSource = errors.New("unknown temperature source")

// sourceTracker follows the selected temperature source and when it last reported
type sourceTracker struct {
	available  []string
	selected   string
	lastReport time.Time
}

func newSourceTracker(configured []string, now time.Time) sourceTracker {
	available := []string{TemperatureSourceInternal}
	for _, name := range configured {
		if name != "" && name != TemperatureSourceInternal {
			available = append(available, name)
		}
	}
	return sourceTracker{available: available, selected: TemperatureSourceInternal, lastReport: now}
}

func (t *sourceTracker) has(name string) bool {
	for _, s := range t.available {
		if s == name {
			return true
		}
	}
	return false
}

// TemperatureSources returns the selectable sources, internal first
func (b *Bridge) TemperatureSources() []string {
	return append([]string(nil), b.sources.available...)
}

// SelectedTemperatureSource returns the selected source, which may differ
// from DeviceState.TemperatureSource while the selection is timed out
func (b *Bridge) SelectedTemperatureSource() string {
	return b.sources.selected
}

// RestorePreferences loads the saved temperature source. A missing or no
// longer configured source falls back to internal.
func (b *Bridge) RestorePreferences(ctx context.Context) error {
	b.sources.selected = TemperatureSourceInternal
	b.state.TemperatureSource = TemperatureSourceInternal
	if b.prefs == nil {
		return nil
	}

	p, err := b.prefs.Load(ctx)
	if errors.Is(err, prefs.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to restore preferences: %w", err)
	}

	if !b.sources.has(p.TemperatureSource) {
		if p.TemperatureSource != "" {
			b.log.WithField("source", p.TemperatureSource).Info("Saved temperature source no longer configured, using internal")
		}
		return nil
	}
	b.sources.selected = p.TemperatureSource
	b.sources.lastReport = b.now()
	b.state.TemperatureSource = p.TemperatureSource
	b.log.WithField("source", p.TemperatureSource).Info("Restored temperature source")
	return nil
}

// SelectTemperatureSource changes the selected source and saves it.
// Selecting internal tells the heat pump to use its own sensor right away;
// any other source takes effect with its first report.
func (b *Bridge) SelectTemperatureSource(ctx context.Context, name string) error {
	if !b.sources.has(name) {
		return fmt.Errorf("%w: %q", ErrUnknownSource, name)
	}

	b.log.WithFields(logrus.Fields{"from": b.sources.selected, "to": name}).Info("Temperature source selected")
	b.sources.selected = name
	b.sources.lastReport = b.now()
	b.state.TemperatureSource = name

	if name == TemperatureSourceInternal {
		b.SendAndWait(b.heatPump, muart.NewInternalTemperatureRequest())
	}

	b.publish()

	if b.prefs != nil {
		if err := b.prefs.Save(ctx, prefs.Preferences{TemperatureSource: name}); err != nil {
			return fmt.Errorf("failed to save temperature source: %w", err)
		}
	}
	return nil
}

// ReportTemperature passes a reading from a named source to the heat pump.
// Readings from sources other than the selected one are ignored. It reports
// whether the reading was used.
func (b *Bridge) ReportTemperature(source string, celsius float64) bool {
	log := b.log.WithFields(logrus.Fields{"source": source, "celsius": celsius})
	if source != b.sources.selected || source == TemperatureSourceInternal {
		log.Debug("Ignoring temperature from unselected source")
		return false
	}

	log.Info("Received temperature")
	b.sources.lastReport = b.now()
	b.SendAndWait(b.heatPump, muart.NewRemoteTemperatureRequest(celsius))

	if b.state.TemperatureSource != source {
		log.Info("Temperature source restored")
		b.state.TemperatureSource = source
	}
	b.publish()
	return true
}

// SetRemoteTemperature reports a temperature directly, regardless of the
// selected source
func (b *Bridge) SetRemoteTemperature(celsius float64) bool {
	return b.SendAndWait(b.heatPump, muart.NewRemoteTemperatureRequest(celsius))
}

// UseInternalTemperature tells the heat pump to use its own sensor without
// changing the selected source
func (b *Bridge) UseInternalTemperature() bool {
	return b.SendAndWait(b.heatPump, muart.NewInternalTemperatureRequest())
}

// SetSettings sends a set settings request
func (b *Bridge) SetSettings(change muart.SettingsChange) error {
	if change.Empty() {
		return errors.New("no settings to change")
	}
	if !b.SendAndWait(b.heatPump, muart.NewSetSettingsRequest(change)) {
		return errors.New("no reply to set settings request")
	}
	return nil
}

// checkSourceTimeout reverts to the internal sensor when the selected
// source has not reported in time. The selection itself is kept.
func (b *Bridge) checkSourceTimeout() {
	selected := b.sources.selected
	if selected == TemperatureSourceInternal || b.state.TemperatureSource == TemperatureSourceInternal {
		return
	}
	if b.now().Sub(b.sources.lastReport) <= b.cfg.SourceTimeout {
		return
	}

	b.log.WithFields(logrus.Fields{"source": selected, "timeout": b.cfg.SourceTimeout}).
		Warn("No temperature received, reverting to internal source")
	b.state.TemperatureSource = TemperatureSourceInternal
	b.SendAndWait(b.heatPump, muart.NewInternalTemperatureRequest())
}
