// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bridge

import (
	"fmt"
	"math"

	"github.com/Thermoquad/muart/pkg/muart"
)

// ConnectionState is the handshake state of the heat pump link
type ConnectionState int

// Connection states
const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
)

// String returns the state name
func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "DISCONNECTED"
	case Connecting:
		return "CONNECTING"
	case Connected:
		return "CONNECTED"
	}
	return fmt.Sprintf("UNKNOWN(%d)", int(s))
}

// Session holds the connection state machine and its liveness counter
type Session struct {
	State       ConnectionState
	MissedPolls int
}

// Action is what the unit is doing right now, derived from settings and status
type Action int

// Actions
const (
	ActionOff Action = iota
	ActionIdle
	ActionHeating
	ActionCooling
	ActionDrying
	ActionFan
)

// String returns the action name
func (a Action) String() string {
	switch a {
	case ActionOff:
		return "off"
	case ActionIdle:
		return "idle"
	case ActionHeating:
		return "heating"
	case ActionCooling:
		return "cooling"
	case ActionDrying:
		return "drying"
	case ActionFan:
		return "fan"
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// DeviceState is the state learned from heat pump responses.
// Temperatures are NaN until first reported.
type DeviceState struct {
	Connection ConnectionState

	Power             bool
	Mode              muart.Mode
	TargetTemperature float64
	Fan               muart.Fan
	Vane              muart.Vane
	HorizontalVane    muart.HorizontalVane

	RoomTemperature float64

	Operating           bool
	CompressorFrequency uint8
	Action              Action

	LoopStatus uint8
	Stage      uint8

	// TemperatureSource is the source currently in effect, which falls back
	// to TemperatureSourceInternal when the selected source goes quiet.
	TemperatureSource string
}

// NewDeviceState returns a state with unknown temperatures
func NewDeviceState() DeviceState {
	return DeviceState{
		TargetTemperature: math.NaN(),
		RoomTemperature:   math.NaN(),
		TemperatureSource: TemperatureSourceInternal,
	}
}

// Equal compares two states, treating NaN temperatures as equal
func (s DeviceState) Equal(o DeviceState) bool {
	a, b := s, o
	if math.IsNaN(a.TargetTemperature) && math.IsNaN(b.TargetTemperature) {
		a.TargetTemperature, b.TargetTemperature = 0, 0
	}
	if math.IsNaN(a.RoomTemperature) && math.IsNaN(b.RoomTemperature) {
		a.RoomTemperature, b.RoomTemperature = 0, 0
	}
	return a == b
}

// deriveAction works out the current action. Status is interpreted against
// the mode from the last settings response.
func deriveAction(s DeviceState) Action {
	if !s.Power {
		return ActionOff
	}
	if !s.Operating {
		return ActionIdle
	}
	switch s.Mode {
	case muart.ModeHeat:
		return ActionHeating
	case muart.ModeCool:
		return ActionCooling
	case muart.ModeDry:
		return ActionDrying
	case muart.ModeFan:
		return ActionFan
	case muart.ModeAuto:
		if !math.IsNaN(s.RoomTemperature) && !math.IsNaN(s.TargetTemperature) &&
			s.RoomTemperature > s.TargetTemperature {
			return ActionCooling
		}
		return ActionHeating
	}
	return ActionIdle
}
