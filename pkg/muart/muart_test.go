// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package muart

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"
)

// ============================================================
// Checksum Tests
// ============================================================

func TestCalculateChecksum_KnownCapture(t *testing.T) {
	// Connect request captured from a wired thermostat
	captured := []byte{0xFC, 0x5A, 0x01, 0x30, 0x02, 0xCA, 0x01, 0xA8}

	got := CalculateChecksum(captured[:len(captured)-1])
	if got != captured[len(captured)-1] {
		t.Errorf("Checksum mismatch: expected 0x%02X, got 0x%02X", captured[len(captured)-1], got)
	}

	f := NewConnectRequest()
	if !bytes.Equal(f.Bytes(), captured) {
		t.Errorf("NewConnectRequest() = % X, want % X", f.Bytes(), captured)
	}
}

func TestCalculateChecksum_SumsToConstant(t *testing.T) {
	tests := [][]byte{
		{},
		{0xFC},
		{0xFC, 0x42, 0x01, 0x30, 0x01, 0x02},
		{0xFF, 0xFF, 0xFF, 0xFF},
	}

	for _, data := range tests {
		var sum byte
		for _, b := range data {
			sum += b
		}
		sum += CalculateChecksum(data)
		if sum != checksumConstant {
			t.Errorf("data % X: total sum 0x%02X, want 0x%02X", data, sum, checksumConstant)
		}
	}
}

// ============================================================
// Frame Codec Tests
// ============================================================

func TestNewFrame_Header(t *testing.T) {
	f, err := NewFrame(PacketGetRequest, []byte{byte(GetSettings)})
	if err != nil {
		t.Fatalf("NewFrame error: %v", err)
	}

	raw := f.Bytes()
	if len(raw) != HeaderSize+1+ChecksumSize {
		t.Fatalf("Frame length %d, want %d", len(raw), HeaderSize+1+ChecksumSize)
	}
	if raw[0] != SyncByte || raw[1] != byte(PacketGetRequest) || raw[2] != 0x01 || raw[3] != 0x30 || raw[4] != 1 {
		t.Errorf("Unexpected header % X", raw[:HeaderSize])
	}
	if !f.IsChecksumValid() {
		t.Error("Built frame should have a valid checksum")
	}
	if cmd, ok := f.Command(); !ok || GetCommand(cmd) != GetSettings {
		t.Errorf("Command() = 0x%02X, %v; want GetSettings", cmd, ok)
	}
}

func TestNewFrame_PayloadTooLarge(t *testing.T) {
	_, err := NewFrame(PacketSetRequest, make([]byte, MaxPayloadSize+1))
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Errorf("Expected ErrPayloadTooLarge, got %v", err)
	}

	f, err := NewFrame(PacketSetRequest, make([]byte, MaxPayloadSize))
	if err != nil {
		t.Fatalf("Max payload should encode: %v", err)
	}
	if f.Len() != MaxFrameSize {
		t.Errorf("Max frame length %d, want %d", f.Len(), MaxFrameSize)
	}
	if MaxPayloadSize != 16 {
		t.Errorf("MaxPayloadSize = %d, want 16", MaxPayloadSize)
	}
}

func TestDecodeFrame_PayloadTooLarge(t *testing.T) {
	header := []byte{SyncByte, byte(PacketSetRequest), HeaderReserved1, HeaderReserved2, MaxPayloadSize + 1}
	_, err := DecodeFrame(header, make([]byte, MaxPayloadSize+1), 0x00)
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Errorf("Expected ErrPayloadTooLarge for a %d byte frame, got %v", MaxFrameSize+1, err)
	}
}

func TestFrame_RoundTrip(t *testing.T) {
	types := []PacketType{
		PacketConnectRequest, PacketConnectResponse,
		PacketExtendedConnectRequest, PacketExtendedConnectResponse,
		PacketGetRequest, PacketGetResponse,
		PacketSetRequest, PacketSetResponse,
	}

	for _, pt := range types {
		for size := 0; size <= MaxPayloadSize; size++ {
			payload := make([]byte, size)
			for i := range payload {
				payload[i] = byte(i*37 + int(pt))
			}

			encoded, err := NewFrame(pt, payload)
			if err != nil {
				t.Fatalf("%s len=%d: encode error: %v", FormatPacketType(pt), size, err)
			}
			raw := encoded.Bytes()

			decoded, err := DecodeFrame(raw[:HeaderSize], raw[HeaderSize:len(raw)-1], raw[len(raw)-1])
			if err != nil {
				t.Fatalf("%s len=%d: decode error: %v", FormatPacketType(pt), size, err)
			}
			if !bytes.Equal(decoded.Bytes(), raw) {
				t.Errorf("%s len=%d: round trip % X != % X", FormatPacketType(pt), size, decoded.Bytes(), raw)
			}
			if !bytes.Equal(decoded.Payload(), payload) {
				t.Errorf("%s len=%d: payload mismatch", FormatPacketType(pt), size)
			}
			if !decoded.IsChecksumValid() {
				t.Errorf("%s len=%d: checksum should be valid", FormatPacketType(pt), size)
			}
		}
	}
}

func TestDecodeFrame_KeepsBadChecksum(t *testing.T) {
	raw := NewConnectRequest().Bytes()
	f, err := DecodeFrame(raw[:HeaderSize], raw[HeaderSize:len(raw)-1], raw[len(raw)-1]^0xFF)
	if err != nil {
		t.Fatalf("Bad checksum must still decode: %v", err)
	}
	if f.IsChecksumValid() {
		t.Error("Expected checksum to be invalid")
	}
	if f.Checksum() != raw[len(raw)-1]^0xFF {
		t.Error("Checksum byte must be kept as received")
	}
}

func TestDecodeFrame_Malformed(t *testing.T) {
	header := []byte{SyncByte, byte(PacketGetResponse), 0x01, 0x30, 0x03}

	if _, err := DecodeFrame(header[:4], nil, 0); !errors.Is(err, ErrMalformedFrame) {
		t.Errorf("Short header: expected ErrMalformedFrame, got %v", err)
	}
	if _, err := DecodeFrame(header, []byte{0x01}, 0); !errors.Is(err, ErrMalformedFrame) {
		t.Errorf("Length mismatch: expected ErrMalformedFrame, got %v", err)
	}
}

func TestParseFrame(t *testing.T) {
	raw := NewGetRequest(GetStatus).Bytes()
	f, err := ParseFrame(raw)
	if err != nil {
		t.Fatalf("ParseFrame error: %v", err)
	}
	if !bytes.Equal(f.Bytes(), raw) {
		t.Errorf("ParseFrame round trip mismatch")
	}

	if _, err := ParseFrame(raw[:len(raw)-1]); err == nil {
		t.Error("Expected error for truncated frame")
	}
	bad := append([]byte{}, raw...)
	bad[0] = 0x00
	if _, err := ParseFrame(bad); err == nil {
		t.Error("Expected error for missing sync byte")
	}
}

func TestFrame_Immutable(t *testing.T) {
	f := NewGetRequest(GetSettings)
	raw := f.Bytes()
	raw[HeaderSize] = 0xEE
	payload := f.Payload()
	payload[0] = 0xEE

	if cmd, _ := f.Command(); GetCommand(cmd) != GetSettings {
		t.Error("Mutating returned slices must not change the frame")
	}
}

func TestFrame_String(t *testing.T) {
	if got := NewConnectRequest().String(); got != "FC 5A 01 30 02 CA 01 A8" {
		t.Errorf("String() = %q", got)
	}
}

// ============================================================
// Temperature Codec Tests
// ============================================================

func TestTemperature_KnownValue(t *testing.T) {
	if b := EncodeTemperature(21.5); b != 171 {
		t.Errorf("EncodeTemperature(21.5) = %d, want 171", b)
	}
	if c := DecodeTemperature(171); c != 21.5 {
		t.Errorf("DecodeTemperature(171) = %v, want 21.5", c)
	}
}

func TestTemperature_RoundTrip(t *testing.T) {
	for half := int(MinTemperature * 2); half <= int(MaxTemperature*2); half++ {
		x := float64(half) / 2.0
		if got := DecodeTemperature(EncodeTemperature(x)); got != x {
			t.Errorf("DecodeTemperature(EncodeTemperature(%v)) = %v", x, got)
		}
	}
	for b := 0; b <= 255; b++ {
		if got := EncodeTemperature(DecodeTemperature(uint8(b))); got != uint8(b) {
			t.Errorf("EncodeTemperature(DecodeTemperature(%d)) = %d", b, got)
		}
	}
}

func TestTemperature_Clamp(t *testing.T) {
	if b := EncodeTemperature(100); b != 255 {
		t.Errorf("EncodeTemperature(100) = %d, want 255", b)
	}
	if b := EncodeTemperature(-100); b != 0 {
		t.Errorf("EncodeTemperature(-100) = %d, want 0", b)
	}
	if b := EncodeTemperature(math.NaN()); b != 128 {
		t.Errorf("EncodeTemperature(NaN) = %d, want 128", b)
	}
}

// ============================================================
// Packet Variant Tests
// ============================================================

// settingsPayload builds a settings response payload
func settingsPayload(power bool, mode Mode, fan Fan, vane Vane, hvane HorizontalVane, target float64) []byte {
	p := make([]byte, 16)
	p[0] = byte(GetSettings)
	if power {
		p[3] = 0x01
	}
	p[4] = byte(mode)
	p[6] = byte(fan)
	p[7] = byte(vane)
	p[10] = byte(hvane)
	p[11] = EncodeTemperature(target)
	return p
}

func TestDecode_SettingsResponse(t *testing.T) {
	f := MustNewFrame(PacketGetResponse, settingsPayload(true, ModeCool, FanHigh, VaneSwing, HVaneCenter, 23.5))
	p, err := Decode(f)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	s, ok := p.(SettingsResponse)
	if !ok {
		t.Fatalf("Expected SettingsResponse, got %T", p)
	}
	if !s.Power() || s.Mode() != ModeCool || s.Fan() != FanHigh || s.Vane() != VaneSwing ||
		s.HorizontalVane() != HVaneCenter || s.TargetTemperature() != 23.5 {
		t.Errorf("Unexpected settings: %s", FormatPacket(s))
	}
	if s.Frame() != f {
		t.Error("View must wrap the original frame")
	}
}

func TestDecode_Kinds(t *testing.T) {
	payload := func(cmd byte, n int) []byte {
		p := make([]byte, n)
		p[0] = cmd
		return p
	}

	tests := []struct {
		name    string
		frame   *Frame
		kind    Kind
		wantErr error
	}{
		{"connect request", NewConnectRequest(), KindConnectRequest, nil},
		{"connect response", MustNewFrame(PacketConnectResponse, []byte{0x00}), KindConnectResponse, nil},
		{"extended connect request", NewExtendedConnectRequest(), KindExtendedConnectRequest, nil},
		{"extended connect response", MustNewFrame(PacketExtendedConnectResponse, nil), KindExtendedConnectResponse, nil},
		{"get request", NewGetRequest(GetStandby), KindGetRequest, nil},
		{"room temp", MustNewFrame(PacketGetResponse, payload(0x03, 16)), KindRoomTempResponse, nil},
		{"status", MustNewFrame(PacketGetResponse, payload(0x06, 16)), KindStatusResponse, nil},
		{"standby", MustNewFrame(PacketGetResponse, payload(0x09, 16)), KindStandbyResponse, nil},
		{"four", MustNewFrame(PacketGetResponse, payload(0x04, 16)), KindGetResponse, nil},
		{"unknown get command", MustNewFrame(PacketGetResponse, payload(0x42, 16)), KindGetResponse, nil},
		{"set settings", NewSetSettingsRequest(SettingsChange{}), KindSetSettingsRequest, nil},
		{"remote temp", NewRemoteTemperatureRequest(20), KindRemoteTemperatureRequest, nil},
		{"unknown set command", MustNewFrame(PacketSetRequest, payload(0x20, 4)), KindSetRequest, nil},
		{"set response", MustNewFrame(PacketSetResponse, payload(0x07, 16)), KindSetResponse, nil},
		{"short settings", MustNewFrame(PacketGetResponse, payload(0x02, 4)), 0, ErrShortPayload},
		{"empty get request", MustNewFrame(PacketGetRequest, nil), 0, ErrShortPayload},
		{"unknown type", MustNewFrame(PacketType(0x15), []byte{0x01}), 0, ErrUnknownPacket},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Decode(tt.frame)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Expected %v, got %v", tt.wantErr, err)
				}
				var de *DecodeError
				if !errors.As(err, &de) || de.Type != tt.frame.Type() {
					t.Errorf("Expected DecodeError for type 0x%02X, got %v", uint8(tt.frame.Type()), err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode error: %v", err)
			}
			if p.Kind() != tt.kind {
				t.Errorf("Kind = %s, want %s", p.Kind(), tt.kind)
			}
		})
	}
}

func TestDecode_RoomTempStatusStandby(t *testing.T) {
	room := make([]byte, 16)
	room[0] = byte(GetRoomTemp)
	room[6] = EncodeTemperature(19.5)
	rp, _ := Decode(MustNewFrame(PacketGetResponse, room))
	if got := rp.(RoomTempResponse).RoomTemperature(); got != 19.5 {
		t.Errorf("RoomTemperature() = %v, want 19.5", got)
	}

	status := make([]byte, 16)
	status[0] = byte(GetStatus)
	status[3] = 42
	status[4] = 0x01
	sp, _ := Decode(MustNewFrame(PacketGetResponse, status))
	s := sp.(StatusResponse)
	if s.CompressorFrequency() != 42 || !s.Operating() {
		t.Errorf("Status = %d Hz operating=%v", s.CompressorFrequency(), s.Operating())
	}

	standby := make([]byte, 16)
	standby[0] = byte(GetStandby)
	standby[3] = 0x04
	standby[4] = 0x02
	bp, _ := Decode(MustNewFrame(PacketGetResponse, standby))
	b := bp.(StandbyResponse)
	if b.LoopStatus() != 0x04 || b.Stage() != 0x02 {
		t.Errorf("Standby loop=0x%02X stage=%d", b.LoopStatus(), b.Stage())
	}
}

// ============================================================
// Request Builder Tests
// ============================================================

func TestNewRemoteTemperatureRequest(t *testing.T) {
	f := NewRemoteTemperatureRequest(21.5)
	p, err := Decode(f)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	r := p.(RemoteTemperatureRequest)
	if r.UsesInternal() {
		t.Error("Remote request should not use internal sensor")
	}
	if r.RemoteTemperature() != 21.5 {
		t.Errorf("RemoteTemperature() = %v, want 21.5", r.RemoteTemperature())
	}
	if payload := f.Payload(); payload[3] != 171 || payload[1] != 0x01 {
		t.Errorf("Unexpected payload % X", payload)
	}

	internal, _ := Decode(NewInternalTemperatureRequest())
	if !internal.(RemoteTemperatureRequest).UsesInternal() {
		t.Error("Internal request should flag internal sensor")
	}
}

func TestNewSetSettingsRequest(t *testing.T) {
	power := true
	mode := ModeHeat
	temp := 22.0
	hvane := HVaneSwing

	f := NewSetSettingsRequest(SettingsChange{Power: &power, Mode: &mode, TargetTemperature: &temp, HorizontalVane: &hvane})
	if f.PayloadSize() != 16 {
		t.Fatalf("Payload size %d, want 16", f.PayloadSize())
	}

	p, _ := Decode(f)
	s := p.(SetSettingsRequest)
	flags, flags2 := s.Flags()
	if flags != SettingsFlagPower|SettingsFlagMode|SettingsFlagTemp || flags2 != SettingsFlag2HVane {
		t.Errorf("Flags = 0x%02X 0x%02X", flags, flags2)
	}
	if on, ok := s.Power(); !ok || !on {
		t.Error("Power should be set on")
	}
	if m, ok := s.Mode(); !ok || m != ModeHeat {
		t.Errorf("Mode = %s, %v", m, ok)
	}
	if tt, ok := s.TargetTemperature(); !ok || tt != 22.0 {
		t.Errorf("TargetTemperature = %v, %v", tt, ok)
	}
	if _, ok := s.Fan(); ok {
		t.Error("Fan should not be flagged")
	}
	if h, ok := s.HorizontalVane(); !ok || h != HVaneSwing {
		t.Errorf("HorizontalVane = %s, %v", h, ok)
	}
	if legacy := f.Payload()[5]; legacy != 31-22 {
		t.Errorf("Legacy temperature byte = %d, want %d", legacy, 31-22)
	}
}

// ============================================================
// Formatter / Validator Tests
// ============================================================

func TestFormatFrame(t *testing.T) {
	out := FormatFrame(MustNewFrame(PacketGetResponse, settingsPayload(true, ModeHeat, FanAuto, VaneAuto, HVaneCenter, 21.0)))
	for _, want := range []string{"GET_RESPONSE", "SETTINGS", "Mode: HEAT", "Target: 21.0°C"} {
		if !strings.Contains(out, want) {
			t.Errorf("FormatFrame output missing %q:\n%s", want, out)
		}
	}

	raw := NewConnectRequest().Bytes()
	bad, _ := DecodeFrame(raw[:HeaderSize], raw[HeaderSize:len(raw)-1], 0x00)
	if !strings.Contains(FormatFrame(bad), "CHECKSUM MISMATCH") {
		t.Error("FormatFrame should flag checksum mismatch")
	}
}

func TestParseNames(t *testing.T) {
	if m, ok := ParseMode("cool"); !ok || m != ModeCool {
		t.Errorf("ParseMode(cool) = %v, %v", m, ok)
	}
	if f, ok := ParseFan("VeryHigh"); !ok || f != FanVeryHigh {
		t.Errorf("ParseFan(VeryHigh) = %v, %v", f, ok)
	}
	if v, ok := ParseVane("swing"); !ok || v != VaneSwing {
		t.Errorf("ParseVane(swing) = %v, %v", v, ok)
	}
	if c, ok := ParseGetCommand("room_temp"); !ok || c != GetRoomTemp {
		t.Errorf("ParseGetCommand(room_temp) = %v, %v", c, ok)
	}
	if _, ok := ParseMode("turbo"); ok {
		t.Error("ParseMode should reject unknown names")
	}
}

func TestValidateFrame(t *testing.T) {
	good := MustNewFrame(PacketGetResponse, settingsPayload(true, ModeHeat, FanAuto, VaneAuto, HVaneCenter, 21.0))
	if errs := ValidateFrame(good); len(errs) != 0 {
		t.Errorf("Expected no errors, got %v", errs)
	}

	raw := good.Bytes()
	corrupt, _ := DecodeFrame(raw[:HeaderSize], raw[HeaderSize:len(raw)-1], raw[len(raw)-1]+1)
	errs := ValidateFrame(corrupt)
	if len(errs) == 0 || errs[0].Type != AnomalyChecksumError {
		t.Errorf("Expected checksum anomaly, got %v", errs)
	}

	hot := MustNewFrame(PacketGetResponse, settingsPayload(true, Mode(0x55), FanAuto, VaneAuto, HVaneCenter, 60.0))
	errs = ValidateFrame(hot)
	var sawTemp, sawMode bool
	for _, e := range errs {
		sawTemp = sawTemp || e.Type == AnomalyInvalidTemp
		sawMode = sawMode || e.Type == AnomalyInvalidValue
	}
	if !sawTemp || !sawMode {
		t.Errorf("Expected temperature and mode anomalies, got %v", errs)
	}

	unknown := MustNewFrame(PacketType(0x99), nil)
	errs = ValidateFrame(unknown)
	if len(errs) != 1 || errs[0].Type != AnomalyUnknownType {
		t.Errorf("Expected unknown type anomaly, got %v", errs)
	}
}

func TestStatistics(t *testing.T) {
	s := NewStatistics()
	s.Update(nil)
	s.Update([]ValidationError{{Type: AnomalyChecksumError}})
	s.Update([]ValidationError{{Type: AnomalyUnknownType}})
	s.AddNoise(3)

	if s.TotalFrames != 3 || s.ValidFrames != 1 || s.ChecksumErrors != 1 || s.UnknownFrames != 1 || s.NoiseBytes != 3 {
		t.Errorf("Unexpected counters: %+v", s)
	}
	if !strings.Contains(s.String(), "Checksum Errors") {
		t.Error("String() should list checksum errors")
	}

	s.Reset()
	if s.TotalFrames != 0 || s.NoiseBytes != 0 {
		t.Error("Reset should clear counters")
	}
}
