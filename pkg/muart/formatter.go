// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package muart

import (
	"fmt"
	"strings"
)

// FormatFrame formats a frame into a human-readable string
func FormatFrame(f *Frame) string {
	timestamp := f.timestamp.Format("15:04:05.000")
	result := fmt.Sprintf("[%s] %s len=%d", timestamp, FormatFrameName(f), f.PayloadSize())
	if !f.IsChecksumValid() {
		result += fmt.Sprintf(" CHECKSUM MISMATCH (got 0x%02X, want 0x%02X)",
			f.Checksum(), CalculateChecksum(f.raw[:len(f.raw)-1]))
	}
	result += "\n"

	p, err := Decode(f)
	if err != nil {
		return result + formatHexDump(f.Payload())
	}
	return result + FormatPacket(p)
}

// FormatFrameName returns "TYPE (0xNN)" plus the command name for get/set frames
func FormatFrameName(f *Frame) string {
	name := fmt.Sprintf("%s (0x%02X)", FormatPacketType(f.Type()), uint8(f.Type()))
	if cmd, ok := f.Command(); ok {
		if cmdName := FormatCommand(f.Type(), cmd); cmdName != "" {
			name += fmt.Sprintf(" %s (0x%02X)", cmdName, cmd)
		}
	}
	return name
}

// FormatPacketType returns the human-readable name for a packet type
func FormatPacketType(t PacketType) string {
	switch t {
	case PacketConnectRequest:
		return "CONNECT_REQUEST"
	case PacketConnectResponse:
		return "CONNECT_RESPONSE"
	case PacketExtendedConnectRequest:
		return "EXTENDED_CONNECT_REQUEST"
	case PacketExtendedConnectResponse:
		return "EXTENDED_CONNECT_RESPONSE"
	case PacketGetRequest:
		return "GET_REQUEST"
	case PacketGetResponse:
		return "GET_RESPONSE"
	case PacketSetRequest:
		return "SET_REQUEST"
	case PacketSetResponse:
		return "SET_RESPONSE"
	default:
		return "UNKNOWN"
	}
}

// FormatCommand returns the command name for get/set frames, or "" for
// packet types that carry no command.
func FormatCommand(t PacketType, cmd uint8) string {
	switch t {
	case PacketGetRequest, PacketGetResponse:
		switch GetCommand(cmd) {
		case GetSettings:
			return "SETTINGS"
		case GetRoomTemp:
			return "ROOM_TEMP"
		case GetFour:
			return "FOUR"
		case GetStatus:
			return "STATUS"
		case GetStandby:
			return "STANDBY"
		}
		return "UNKNOWN"
	case PacketSetRequest, PacketSetResponse:
		switch SetCommand(cmd) {
		case SetSettings:
			return "SETTINGS"
		case SetRemoteTemperature:
			return "REMOTE_TEMPERATURE"
		}
		return "UNKNOWN"
	}
	return ""
}

// String returns the kind name
func (k Kind) String() string {
	switch k {
	case KindConnectRequest:
		return "connect_request"
	case KindConnectResponse:
		return "connect_response"
	case KindExtendedConnectRequest:
		return "extended_connect_request"
	case KindExtendedConnectResponse:
		return "extended_connect_response"
	case KindGetRequest:
		return "get_request"
	case KindGetResponse:
		return "get_response"
	case KindSettingsResponse:
		return "settings_response"
	case KindRoomTempResponse:
		return "room_temp_response"
	case KindStatusResponse:
		return "status_response"
	case KindStandbyResponse:
		return "standby_response"
	case KindSetRequest:
		return "set_request"
	case KindSetSettingsRequest:
		return "set_settings_request"
	case KindRemoteTemperatureRequest:
		return "remote_temperature_request"
	case KindSetResponse:
		return "set_response"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// FormatPacket formats the decoded fields of a typed packet
func FormatPacket(p Packet) string {
	switch v := p.(type) {
	case SettingsResponse:
		power := "Off"
		if v.Power() {
			power = "On"
		}
		return fmt.Sprintf("  Power: %s, Mode: %s, Target: %.1f°C, Fan: %s, Vane: %s, H-Vane: %s\n",
			power, v.Mode(), v.TargetTemperature(), v.Fan(), v.Vane(), v.HorizontalVane())

	case RoomTempResponse:
		return fmt.Sprintf("  Room: %.1f°C\n", v.RoomTemperature())

	case StatusResponse:
		operating := "No"
		if v.Operating() {
			operating = "Yes"
		}
		return fmt.Sprintf("  Operating: %s, Compressor: %d Hz\n", operating, v.CompressorFrequency())

	case StandbyResponse:
		return fmt.Sprintf("  Loop Status: 0x%02X, Stage: %s (%d)\n", v.LoopStatus(), FormatStage(v.Stage()), v.Stage())

	case RemoteTemperatureRequest:
		if v.UsesInternal() {
			return "  Source: internal sensor\n"
		}
		return fmt.Sprintf("  Remote: %.1f°C\n", v.RemoteTemperature())

	case SetSettingsRequest:
		var parts []string
		if on, ok := v.Power(); ok {
			parts = append(parts, fmt.Sprintf("Power=%t", on))
		}
		if m, ok := v.Mode(); ok {
			parts = append(parts, fmt.Sprintf("Mode=%s", m))
		}
		if t, ok := v.TargetTemperature(); ok {
			parts = append(parts, fmt.Sprintf("Target=%.1f°C", t))
		}
		if fan, ok := v.Fan(); ok {
			parts = append(parts, fmt.Sprintf("Fan=%s", fan))
		}
		if vane, ok := v.Vane(); ok {
			parts = append(parts, fmt.Sprintf("Vane=%s", vane))
		}
		if h, ok := v.HorizontalVane(); ok {
			parts = append(parts, fmt.Sprintf("H-Vane=%s", h))
		}
		if len(parts) == 0 {
			return "  (no changes)\n"
		}
		return "  " + strings.Join(parts, ", ") + "\n"

	case GetRequest, ConnectRequest, ExtendedConnectRequest, ConnectResponse,
		ExtendedConnectResponse, SetResponse:
		payload := p.Frame().Payload()
		if len(payload) == 0 {
			return "  (no payload)\n"
		}
		return formatHexDump(payload)
	}

	// Default: hex dump
	return formatHexDump(p.Frame().Payload())
}

func formatHexDump(payload []byte) string {
	result := "  Payload: "
	for i, b := range payload {
		if i > 0 && i%16 == 0 {
			result += "\n           "
		}
		result += fmt.Sprintf("%02X ", b)
	}
	return result + "\n"
}

// String returns the mode name
func (m Mode) String() string {
	switch m {
	case ModeHeat:
		return "HEAT"
	case ModeDry:
		return "DRY"
	case ModeCool:
		return "COOL"
	case ModeFan:
		return "FAN_ONLY"
	case ModeAuto:
		return "AUTO"
	}
	return fmt.Sprintf("UNKNOWN(0x%02X)", uint8(m))
}

// String returns the fan speed name
func (f Fan) String() string {
	switch f {
	case FanAuto:
		return "AUTO"
	case FanQuiet:
		return "QUIET"
	case FanLow:
		return "LOW"
	case FanMedium:
		return "MEDIUM"
	case FanHigh:
		return "HIGH"
	case FanVeryHigh:
		return "VERYHIGH"
	}
	return fmt.Sprintf("UNKNOWN(0x%02X)", uint8(f))
}

// String returns the vane position name
func (v Vane) String() string {
	switch v {
	case VaneAuto:
		return "AUTO"
	case Vane1, Vane2, Vane3, Vane4, Vane5:
		return fmt.Sprintf("%d", uint8(v))
	case VaneSwing:
		return "SWING"
	}
	return fmt.Sprintf("UNKNOWN(0x%02X)", uint8(v))
}

// String returns the horizontal vane position name
func (h HorizontalVane) String() string {
	switch h {
	case HVaneFarLeft:
		return "<<"
	case HVaneLeft:
		return "<"
	case HVaneCenter:
		return "|"
	case HVaneRight:
		return ">"
	case HVaneFarRight:
		return ">>"
	case HVaneSplit:
		return "<>"
	case HVaneSwing:
		return "SWING"
	}
	return fmt.Sprintf("UNKNOWN(0x%02X)", uint8(h))
}

// FormatStage returns the name for a standby response stage byte
func FormatStage(stage uint8) string {
	stageNames := []string{"IDLE", "LOW", "GENTLE", "MEDIUM", "MODERATE", "HIGH", "DIFFUSE"}
	if int(stage) < len(stageNames) {
		return stageNames[stage]
	}
	return "UNKNOWN"
}

// ParseMode converts a mode name back to a Mode
func ParseMode(name string) (Mode, bool) {
	for _, m := range []Mode{ModeHeat, ModeDry, ModeCool, ModeFan, ModeAuto} {
		if strings.EqualFold(m.String(), name) {
			return m, true
		}
	}
	return 0, false
}

// ParseFan converts a fan name back to a Fan
func ParseFan(name string) (Fan, bool) {
	for _, f := range []Fan{FanAuto, FanQuiet, FanLow, FanMedium, FanHigh, FanVeryHigh} {
		if strings.EqualFold(f.String(), name) {
			return f, true
		}
	}
	return 0, false
}

// ParseVane converts a vane name back to a Vane
func ParseVane(name string) (Vane, bool) {
	for _, v := range []Vane{VaneAuto, Vane1, Vane2, Vane3, Vane4, Vane5, VaneSwing} {
		if strings.EqualFold(v.String(), name) {
			return v, true
		}
	}
	return 0, false
}

// ParseGetCommand converts a get command name (case-insensitive) to a GetCommand
func ParseGetCommand(name string) (GetCommand, bool) {
	for _, c := range []GetCommand{GetSettings, GetRoomTemp, GetFour, GetStatus, GetStandby} {
		if strings.EqualFold(FormatCommand(PacketGetRequest, uint8(c)), name) {
			return c, true
		}
	}
	return 0, false
}
