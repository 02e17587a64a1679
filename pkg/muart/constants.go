// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package muart implements the serial protocol spoken between a Mitsubishi
// heat pump and its wired thermostat (the CN105 / "MUART" protocol).
//
// Frames are fixed-header, variable-payload, with a one byte additive
// checksum. This package provides frame encoding/decoding, checksum
// validation, typed packet views, a frame reader for unstructured byte
// streams, and human-readable formatting.
package muart

// Protocol framing bytes
const (
	SyncByte = 0xFC

	// Reserved header bytes written on every constructed frame
	HeaderReserved1 = 0x01
	HeaderReserved2 = 0x30
)

// Frame size limits
const (
	HeaderSize     = 5
	ChecksumSize   = 1
	MaxFrameSize   = 22
	MaxPayloadSize = MaxFrameSize - HeaderSize - ChecksumSize
)

// Header field positions
const (
	headerIndexSync        = 0
	headerIndexPacketType  = 1
	headerIndexReserved1   = 2
	headerIndexReserved2   = 3
	headerIndexPayloadSize = 4
)

// checksumConstant is the value header+payload+checksum sums to, modulo 256.
const checksumConstant = 0xFC

// PacketType is the packet type carried in header byte 1
type PacketType uint8

// Packet type values
const (
	PacketConnectRequest          PacketType = 0x5A
	PacketConnectResponse         PacketType = 0x7A
	PacketExtendedConnectRequest  PacketType = 0x5B
	PacketExtendedConnectResponse PacketType = 0x7B
	PacketGetRequest              PacketType = 0x42
	PacketGetResponse             PacketType = 0x62
	PacketSetRequest              PacketType = 0x41
	PacketSetResponse             PacketType = 0x61
)

// IsResponse reports whether the type is one the heat pump sends.
func (t PacketType) IsResponse() bool {
	switch t {
	case PacketConnectResponse, PacketExtendedConnectResponse, PacketGetResponse, PacketSetResponse:
		return true
	}
	return false
}

// IsRequest reports whether the type is one a thermostat (or this bridge) sends.
func (t PacketType) IsRequest() bool {
	switch t {
	case PacketConnectRequest, PacketExtendedConnectRequest, PacketGetRequest, PacketSetRequest:
		return true
	}
	return false
}

// GetCommand is the first payload byte of get requests and responses
type GetCommand uint8

// Get command values
const (
	GetSettings GetCommand = 0x02
	GetRoomTemp GetCommand = 0x03
	GetFour     GetCommand = 0x04 // purpose unknown, relayed opaquely
	GetStatus   GetCommand = 0x06
	GetStandby  GetCommand = 0x09
)

// SetCommand is the first payload byte of set requests and responses
type SetCommand uint8

// Set command values
const (
	SetSettings          SetCommand = 0x01
	SetRemoteTemperature SetCommand = 0x07
)

// Payload offsets (payload-relative; absolute offset is HeaderSize+n)
const (
	payloadIndexCommand = 0

	// Settings response
	settingsIndexPower      = 3
	settingsIndexMode       = 4
	settingsIndexFan        = 6
	settingsIndexVane       = 7
	settingsIndexHVane      = 10
	settingsIndexTargetTemp = 11

	// Room temperature response
	roomTempIndexTemp = 6

	// Status response
	statusIndexCompressorFrequency = 3
	statusIndexOperating           = 4

	// Standby response
	standbyIndexLoopStatus = 3
	standbyIndexStage      = 4

	// Set settings request
	setSettingsIndexFlags      = 1
	setSettingsIndexFlags2     = 2
	setSettingsIndexPower      = 3
	setSettingsIndexMode       = 4
	setSettingsIndexLegacyTemp = 5
	setSettingsIndexFan        = 6
	setSettingsIndexVane       = 7
	setSettingsIndexHVane      = 13
	setSettingsIndexTargetTemp = 14

	// Remote temperature set request
	remoteTempIndexFlags = 1
	remoteTempIndexTemp  = 3
)

// Payload sizes for the frames this package builds
const (
	connectPayloadSize     = 2
	getRequestPayloadSize  = 1
	setSettingsPayloadSize = 16
	remoteTempPayloadSize  = 4
)

// Set settings flag bits
const (
	SettingsFlagPower = 0x01
	SettingsFlagMode  = 0x02
	SettingsFlagTemp  = 0x04
	SettingsFlagFan   = 0x08
	SettingsFlagVane  = 0x10

	SettingsFlag2HVane = 0x01
)

// Remote temperature flag values
const (
	remoteTempFlagInternal = 0x00
	remoteTempFlagRemote   = 0x01
)

// Mode is the operating mode reported in the settings response
type Mode uint8

// Mode values
const (
	ModeHeat Mode = 0x01
	ModeDry  Mode = 0x02
	ModeCool Mode = 0x03
	ModeFan  Mode = 0x07
	ModeAuto Mode = 0x08
)

// Fan is the fan speed reported in the settings response
type Fan uint8

// Fan values
const (
	FanAuto     Fan = 0x00
	FanQuiet    Fan = 0x01
	FanLow      Fan = 0x02
	FanMedium   Fan = 0x03
	FanHigh     Fan = 0x05
	FanVeryHigh Fan = 0x06
)

// Vane is the vertical vane position
type Vane uint8

// Vane values
const (
	VaneAuto  Vane = 0x00
	Vane1     Vane = 0x01
	Vane2     Vane = 0x02
	Vane3     Vane = 0x03
	Vane4     Vane = 0x04
	Vane5     Vane = 0x05
	VaneSwing Vane = 0x07
)

// HorizontalVane is the horizontal vane position
type HorizontalVane uint8

// Horizontal vane values
const (
	HVaneFarLeft  HorizontalVane = 0x01
	HVaneLeft     HorizontalVane = 0x02
	HVaneCenter   HorizontalVane = 0x03
	HVaneRight    HorizontalVane = 0x04
	HVaneFarRight HorizontalVane = 0x05
	HVaneSplit    HorizontalVane = 0x08
	HVaneSwing    HorizontalVane = 0x0C
)
