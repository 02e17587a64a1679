// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bridge

import (
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/Thermoquad/muart/pkg/muart"
)

// Handle dispatches one received frame.
//
// Responses are assumed to come from the heat pump and requests from the
// thermostat; origin is only consulted to relay packet types outside the
// protocol back across the bridge. Frames with a bad checksum never change
// DeviceState but may still be relayed opaquely.
func (b *Bridge) Handle(f *muart.Frame, origin Link) {
	if origin == b.heatPump {
		b.stats.HeatPumpFrames++
	} else {
		b.stats.ThermostatFrames++
	}

	log := b.log.WithFields(logrus.Fields{"link": b.linkName(origin), "type": muart.FormatFrameName(f)})
	log.Debugf("RX %s", f)
	if b.trace != nil {
		b.trace(Received, b.linkName(origin), f)
	}

	if !f.IsChecksumValid() {
		b.stats.ChecksumErrors++
		log.Warnf("Checksum mismatch, ignoring contents: %s", f)
		b.forwardOpaque(f, origin)
		return
	}

	p, err := muart.Decode(f)
	if err != nil {
		if errors.Is(err, muart.ErrUnknownPacket) {
			b.stats.UnknownFrames++
		}
		log.WithError(err).Info("Relaying undecoded frame")
		b.forwardOpaque(f, origin)
		return
	}

	switch v := p.(type) {
	case muart.ConnectResponse, muart.ExtendedConnectResponse:
		b.responseReceived()
		b.setConnection(Connected)
		b.forwardToThermostat(f)

	case muart.SettingsResponse:
		b.responseReceived()
		b.applySettings(v)
		b.forwardToThermostat(f)

	case muart.RoomTempResponse:
		b.responseReceived()
		b.state.RoomTemperature = v.RoomTemperature()
		b.state.Action = deriveAction(b.state)
		b.forwardToThermostat(f)

	case muart.StatusResponse:
		b.responseReceived()
		b.state.CompressorFrequency = v.CompressorFrequency()
		b.state.Operating = v.Operating()
		b.state.Action = deriveAction(b.state)
		b.forwardToThermostat(f)

	case muart.StandbyResponse:
		b.responseReceived()
		b.state.LoopStatus = v.LoopStatus()
		b.state.Stage = v.Stage()
		b.forwardToThermostat(f)

	case muart.GetResponse:
		b.responseReceived()
		log.Debugf("Relaying get response command 0x%02X", uint8(v.Command()))
		b.forwardToThermostat(f)

	case muart.SetResponse:
		b.responseReceived()
		b.forwardToThermostat(f)

	case muart.ConnectRequest, muart.ExtendedConnectRequest, muart.GetRequest,
		muart.SetRequest, muart.SetSettingsRequest, muart.RemoteTemperatureRequest:
		b.forwardToHeatPump(f)
	}
}

func (b *Bridge) applySettings(p muart.SettingsResponse) {
	b.state.Power = p.Power()
	b.state.Mode = p.Mode()
	b.state.TargetTemperature = p.TargetTemperature()
	b.state.Fan = p.Fan()
	b.state.Vane = p.Vane()
	b.state.HorizontalVane = p.HorizontalVane()
	b.state.Action = deriveAction(b.state)
}

// responseReceived resets the liveness counter
func (b *Bridge) responseReceived() {
	b.session.MissedPolls = 0
	b.heard = true
}

// forwardToThermostat relays a heat pump response without waiting
func (b *Bridge) forwardToThermostat(f *muart.Frame) {
	if !b.cfg.Forwarding || b.thermostat == nil {
		return
	}
	if b.Send(b.thermostat, f) {
		b.stats.Forwarded++
	}
}

// forwardToHeatPump relays a thermostat request and waits for the reply,
// which Handle then relays back
func (b *Bridge) forwardToHeatPump(f *muart.Frame) {
	if !b.cfg.Forwarding || b.thermostat == nil {
		return
	}
	b.stats.Forwarded++
	b.SendAndWait(b.heatPump, f)
}

// forwardOpaque relays a frame to the link it did not arrive on
func (b *Bridge) forwardOpaque(f *muart.Frame, origin Link) {
	if !b.cfg.Forwarding || b.thermostat == nil {
		return
	}
	if b.Send(b.otherLink(origin), f) {
		b.stats.Forwarded++
	}
}
