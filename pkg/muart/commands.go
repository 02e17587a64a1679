// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package muart

// Request builder functions create frames ready for transmission.

// connectPayload is the fixed handshake payload observed from thermostats
var connectPayload = []byte{0xCA, 0x01}

// NewConnectRequest creates a CONNECT_REQUEST frame (0x5A)
func NewConnectRequest() *Frame {
	return MustNewFrame(PacketConnectRequest, connectPayload)
}

// NewExtendedConnectRequest creates an EXTENDED_CONNECT_REQUEST frame (0x5B)
func NewExtendedConnectRequest() *Frame {
	return MustNewFrame(PacketExtendedConnectRequest, connectPayload)
}

// NewGetRequest creates a GET_REQUEST frame (0x42) for one state block
func NewGetRequest(cmd GetCommand) *Frame {
	return MustNewFrame(PacketGetRequest, []byte{byte(cmd)})
}

// NewRemoteTemperatureRequest creates a SET_REQUEST frame (0x41, command
// 0x07) telling the unit to regulate against an external temperature.
func NewRemoteTemperatureRequest(celsius float64) *Frame {
	payload := make([]byte, remoteTempPayloadSize)
	payload[payloadIndexCommand] = byte(SetRemoteTemperature)
	payload[remoteTempIndexFlags] = remoteTempFlagRemote
	payload[remoteTempIndexTemp] = EncodeTemperature(celsius)
	return MustNewFrame(PacketSetRequest, payload)
}

// NewInternalTemperatureRequest creates the remote temperature request that
// switches the unit back to its own sensor.
func NewInternalTemperatureRequest() *Frame {
	payload := make([]byte, remoteTempPayloadSize)
	payload[payloadIndexCommand] = byte(SetRemoteTemperature)
	payload[remoteTempIndexFlags] = remoteTempFlagInternal
	payload[remoteTempIndexTemp] = EncodeTemperature(0)
	return MustNewFrame(PacketSetRequest, payload)
}

// SettingsChange lists the settings to change. Nil fields are left as they are.
type SettingsChange struct {
	Power             *bool
	Mode              *Mode
	TargetTemperature *float64
	Fan               *Fan
	Vane              *Vane
	HorizontalVane    *HorizontalVane
}

// Empty reports whether no field is set
func (c SettingsChange) Empty() bool {
	return c.Power == nil && c.Mode == nil && c.TargetTemperature == nil &&
		c.Fan == nil && c.Vane == nil && c.HorizontalVane == nil
}

// NewSetSettingsRequest creates a SET_REQUEST frame (0x41, command 0x01)
// carrying the fields present in change and their flag bits.
func NewSetSettingsRequest(change SettingsChange) *Frame {
	payload := make([]byte, setSettingsPayloadSize)
	payload[payloadIndexCommand] = byte(SetSettings)

	var flags, flags2 uint8
	if change.Power != nil {
		flags |= SettingsFlagPower
		if *change.Power {
			payload[setSettingsIndexPower] = 0x01
		}
	}
	if change.Mode != nil {
		flags |= SettingsFlagMode
		payload[setSettingsIndexMode] = byte(*change.Mode)
	}
	if change.TargetTemperature != nil {
		flags |= SettingsFlagTemp
		payload[setSettingsIndexLegacyTemp] = encodeLegacyTemperature(*change.TargetTemperature)
		payload[setSettingsIndexTargetTemp] = EncodeTemperature(*change.TargetTemperature)
	}
	if change.Fan != nil {
		flags |= SettingsFlagFan
		payload[setSettingsIndexFan] = byte(*change.Fan)
	}
	if change.Vane != nil {
		flags |= SettingsFlagVane
		payload[setSettingsIndexVane] = byte(*change.Vane)
	}
	if change.HorizontalVane != nil {
		flags2 |= SettingsFlag2HVane
		payload[setSettingsIndexHVane] = byte(*change.HorizontalVane)
	}
	payload[setSettingsIndexFlags] = flags
	payload[setSettingsIndexFlags2] = flags2

	return MustNewFrame(PacketSetRequest, payload)
}
