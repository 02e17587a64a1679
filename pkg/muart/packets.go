// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package muart

import "fmt"

// Kind identifies which typed view a frame decodes to
type Kind int

// Packet kinds
const (
	KindConnectRequest Kind = iota
	KindConnectResponse
	KindExtendedConnectRequest
	KindExtendedConnectResponse
	KindGetRequest
	KindGetResponse // get response with a command this package does not interpret
	KindSettingsResponse
	KindRoomTempResponse
	KindStatusResponse
	KindStandbyResponse
	KindSetRequest // set request with a command this package does not interpret
	KindSetSettingsRequest
	KindRemoteTemperatureRequest
	KindSetResponse
)

// Packet is a typed, read-only view over one Frame.
// Views never copy the frame; accessors read fixed payload offsets.
type Packet interface {
	Kind() Kind
	Frame() *Frame
}

type view struct {
	frame *Frame
}

// Frame returns the underlying frame
func (v view) Frame() *Frame { return v.frame }

func (v view) byteAt(index int) uint8 {
	b, _ := v.frame.payloadByte(index)
	return b
}

// ConnectRequest is the handshake a thermostat (or this bridge) opens with
type ConnectRequest struct{ view }

// Kind implements Packet
func (ConnectRequest) Kind() Kind { return KindConnectRequest }

// ConnectResponse acknowledges a ConnectRequest
type ConnectResponse struct{ view }

// Kind implements Packet
func (ConnectResponse) Kind() Kind { return KindConnectResponse }

// ExtendedConnectRequest is the extended handshake used by newer thermostats
type ExtendedConnectRequest struct{ view }

// Kind implements Packet
func (ExtendedConnectRequest) Kind() Kind { return KindExtendedConnectRequest }

// ExtendedConnectResponse acknowledges an ExtendedConnectRequest
type ExtendedConnectResponse struct{ view }

// Kind implements Packet
func (ExtendedConnectResponse) Kind() Kind { return KindExtendedConnectResponse }

// GetRequest asks the heat pump for one block of state
type GetRequest struct{ view }

// Kind implements Packet
func (GetRequest) Kind() Kind { return KindGetRequest }

// Command returns the requested block
func (p GetRequest) Command() GetCommand { return GetCommand(p.byteAt(payloadIndexCommand)) }

// GetResponse is a get response whose command is relayed but not decoded
type GetResponse struct{ view }

// Kind implements Packet
func (GetResponse) Kind() Kind { return KindGetResponse }

// Command returns the response command byte
func (p GetResponse) Command() GetCommand { return GetCommand(p.byteAt(payloadIndexCommand)) }

// SettingsResponse carries power, mode, setpoint, fan and vane settings
type SettingsResponse struct{ view }

// Kind implements Packet
func (SettingsResponse) Kind() Kind { return KindSettingsResponse }

// Power reports whether the unit is switched on
func (p SettingsResponse) Power() bool { return p.byteAt(settingsIndexPower) != 0 }

// Mode returns the operating mode
func (p SettingsResponse) Mode() Mode { return Mode(p.byteAt(settingsIndexMode)) }

// Fan returns the fan speed
func (p SettingsResponse) Fan() Fan { return Fan(p.byteAt(settingsIndexFan)) }

// Vane returns the vertical vane position
func (p SettingsResponse) Vane() Vane { return Vane(p.byteAt(settingsIndexVane)) }

// HorizontalVane returns the horizontal vane position
func (p SettingsResponse) HorizontalVane() HorizontalVane {
	return HorizontalVane(p.byteAt(settingsIndexHVane))
}

// TargetTemperature returns the setpoint in °C
func (p SettingsResponse) TargetTemperature() float64 {
	return DecodeTemperature(p.byteAt(settingsIndexTargetTemp))
}

// RoomTempResponse carries the room temperature measured by the unit
type RoomTempResponse struct{ view }

// Kind implements Packet
func (RoomTempResponse) Kind() Kind { return KindRoomTempResponse }

// RoomTemperature returns the room temperature in °C
func (p RoomTempResponse) RoomTemperature() float64 {
	return DecodeTemperature(p.byteAt(roomTempIndexTemp))
}

// StatusResponse carries compressor state
type StatusResponse struct{ view }

// Kind implements Packet
func (StatusResponse) Kind() Kind { return KindStatusResponse }

// CompressorFrequency returns the compressor frequency in Hz
func (p StatusResponse) CompressorFrequency() uint8 {
	return p.byteAt(statusIndexCompressorFrequency)
}

// Operating reports whether the unit is actively conditioning
func (p StatusResponse) Operating() bool { return p.byteAt(statusIndexOperating) != 0 }

// StandbyResponse carries loop status and operating stage
type StandbyResponse struct{ view }

// Kind implements Packet
func (StandbyResponse) Kind() Kind { return KindStandbyResponse }

// LoopStatus returns the raw loop status byte
func (p StandbyResponse) LoopStatus() uint8 { return p.byteAt(standbyIndexLoopStatus) }

// Stage returns the raw operating stage byte
func (p StandbyResponse) Stage() uint8 { return p.byteAt(standbyIndexStage) }

// SetRequest is a set request whose command is relayed but not decoded
type SetRequest struct{ view }

// Kind implements Packet
func (SetRequest) Kind() Kind { return KindSetRequest }

// Command returns the set command byte
func (p SetRequest) Command() SetCommand { return SetCommand(p.byteAt(payloadIndexCommand)) }

// SetSettingsRequest changes one or more settings on the unit
type SetSettingsRequest struct{ view }

// Kind implements Packet
func (SetSettingsRequest) Kind() Kind { return KindSetSettingsRequest }

// Flags returns the two change-flag bytes
func (p SetSettingsRequest) Flags() (uint8, uint8) {
	return p.byteAt(setSettingsIndexFlags), p.byteAt(setSettingsIndexFlags2)
}

// Power returns the requested power state and whether it is being changed
func (p SetSettingsRequest) Power() (bool, bool) {
	f, _ := p.Flags()
	return p.byteAt(setSettingsIndexPower) != 0, f&SettingsFlagPower != 0
}

// Mode returns the requested mode and whether it is being changed
func (p SetSettingsRequest) Mode() (Mode, bool) {
	f, _ := p.Flags()
	return Mode(p.byteAt(setSettingsIndexMode)), f&SettingsFlagMode != 0
}

// TargetTemperature returns the requested setpoint and whether it is being changed
func (p SetSettingsRequest) TargetTemperature() (float64, bool) {
	f, _ := p.Flags()
	return DecodeTemperature(p.byteAt(setSettingsIndexTargetTemp)), f&SettingsFlagTemp != 0
}

// Fan returns the requested fan speed and whether it is being changed
func (p SetSettingsRequest) Fan() (Fan, bool) {
	f, _ := p.Flags()
	return Fan(p.byteAt(setSettingsIndexFan)), f&SettingsFlagFan != 0
}

// Vane returns the requested vane position and whether it is being changed
func (p SetSettingsRequest) Vane() (Vane, bool) {
	f, _ := p.Flags()
	return Vane(p.byteAt(setSettingsIndexVane)), f&SettingsFlagVane != 0
}

// HorizontalVane returns the requested horizontal vane and whether it is being changed
func (p SetSettingsRequest) HorizontalVane() (HorizontalVane, bool) {
	_, f2 := p.Flags()
	return HorizontalVane(p.byteAt(setSettingsIndexHVane)), f2&SettingsFlag2HVane != 0
}

// RemoteTemperatureRequest reports an external temperature to the unit
type RemoteTemperatureRequest struct{ view }

// Kind implements Packet
func (RemoteTemperatureRequest) Kind() Kind { return KindRemoteTemperatureRequest }

// UsesInternal reports whether the request switches back to the unit's own sensor
func (p RemoteTemperatureRequest) UsesInternal() bool {
	return p.byteAt(remoteTempIndexFlags) == remoteTempFlagInternal
}

// RemoteTemperature returns the reported temperature in °C
func (p RemoteTemperatureRequest) RemoteTemperature() float64 {
	return DecodeTemperature(p.byteAt(remoteTempIndexTemp))
}

// SetResponse acknowledges a set request
type SetResponse struct{ view }

// Kind implements Packet
func (SetResponse) Kind() Kind { return KindSetResponse }

// minimum payload sizes for the typed views
var minPayload = map[Kind]int{
	KindGetRequest:               getRequestPayloadSize,
	KindGetResponse:              1,
	KindSettingsResponse:         settingsIndexTargetTemp + 1,
	KindRoomTempResponse:         roomTempIndexTemp + 1,
	KindStatusResponse:           statusIndexOperating + 1,
	KindStandbyResponse:          standbyIndexStage + 1,
	KindSetRequest:               1,
	KindSetSettingsRequest:       setSettingsIndexTargetTemp + 1,
	KindRemoteTemperatureRequest: remoteTempIndexTemp + 1,
}

// KindOf classifies a frame by packet type and command byte without checking
// payload length. ok is false for packet types outside the protocol.
func KindOf(f *Frame) (kind Kind, ok bool) {
	cmd, _ := f.Command()
	switch f.Type() {
	case PacketConnectRequest:
		return KindConnectRequest, true
	case PacketConnectResponse:
		return KindConnectResponse, true
	case PacketExtendedConnectRequest:
		return KindExtendedConnectRequest, true
	case PacketExtendedConnectResponse:
		return KindExtendedConnectResponse, true
	case PacketGetRequest:
		return KindGetRequest, true
	case PacketGetResponse:
		switch GetCommand(cmd) {
		case GetSettings:
			return KindSettingsResponse, true
		case GetRoomTemp:
			return KindRoomTempResponse, true
		case GetStatus:
			return KindStatusResponse, true
		case GetStandby:
			return KindStandbyResponse, true
		}
		return KindGetResponse, true
	case PacketSetRequest:
		switch SetCommand(cmd) {
		case SetSettings:
			return KindSetSettingsRequest, true
		case SetRemoteTemperature:
			return KindRemoteTemperatureRequest, true
		}
		return KindSetRequest, true
	case PacketSetResponse:
		return KindSetResponse, true
	}
	return 0, false
}

// Decode returns the typed view for a frame. It does not verify the
// checksum; callers that act on payload contents must check
// Frame.IsChecksumValid first.
func Decode(f *Frame) (Packet, error) {
	cmd, _ := f.Command()
	kind, ok := KindOf(f)
	if !ok {
		return nil, &DecodeError{Type: f.Type(), Command: cmd, Err: ErrUnknownPacket}
	}
	if need, ok := minPayload[kind]; ok && f.PayloadSize() < need {
		return nil, &DecodeError{
			Type:    f.Type(),
			Command: cmd,
			Err:     fmt.Errorf("%w: %d bytes (need %d)", ErrShortPayload, f.PayloadSize(), need),
		}
	}

	v := view{frame: f}
	switch kind {
	case KindConnectRequest:
		return ConnectRequest{v}, nil
	case KindConnectResponse:
		return ConnectResponse{v}, nil
	case KindExtendedConnectRequest:
		return ExtendedConnectRequest{v}, nil
	case KindExtendedConnectResponse:
		return ExtendedConnectResponse{v}, nil
	case KindGetRequest:
		return GetRequest{v}, nil
	case KindSettingsResponse:
		return SettingsResponse{v}, nil
	case KindRoomTempResponse:
		return RoomTempResponse{v}, nil
	case KindStatusResponse:
		return StatusResponse{v}, nil
	case KindStandbyResponse:
		return StandbyResponse{v}, nil
	case KindGetResponse:
		return GetResponse{v}, nil
	case KindSetSettingsRequest:
		return SetSettingsRequest{v}, nil
	case KindRemoteTemperatureRequest:
		return RemoteTemperatureRequest{v}, nil
	case KindSetRequest:
		return SetRequest{v}, nil
	default:
		return SetResponse{v}, nil
	}
}
