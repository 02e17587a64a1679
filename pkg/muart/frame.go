// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package muart

import (
	"fmt"
	"strings"
	"time"
)

// Frame is one complete wire message: header, payload and checksum.
// A Frame is immutable once built and owns its byte buffer.
type Frame struct {
	raw       []byte
	timestamp time.Time
}

// NewFrame encodes a frame of the given type around payload, filling in the
// reserved header bytes, the payload length and the checksum.
func NewFrame(packetType PacketType, payload []byte) (*Frame, error) {
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrPayloadTooLarge, len(payload), MaxPayloadSize)
	}

	raw := make([]byte, HeaderSize+len(payload)+ChecksumSize)
	raw[headerIndexSync] = SyncByte
	raw[headerIndexPacketType] = byte(packetType)
	raw[headerIndexReserved1] = HeaderReserved1
	raw[headerIndexReserved2] = HeaderReserved2
	raw[headerIndexPayloadSize] = uint8(len(payload))
	copy(raw[HeaderSize:], payload)
	raw[len(raw)-1] = CalculateChecksum(raw[:len(raw)-1])

	return &Frame{raw: raw, timestamp: time.Now()}, nil
}

// MustNewFrame is NewFrame for payloads known to fit.
// Panics on encoding error (use NewFrame for error handling).
func MustNewFrame(packetType PacketType, payload []byte) *Frame {
	f, err := NewFrame(packetType, payload)
	if err != nil {
		panic(fmt.Sprintf("muart: encode error: %v", err))
	}
	return f
}

// DecodeFrame wraps bytes read off the wire without recomputing anything.
// The checksum is not verified here; see IsChecksumValid.
func DecodeFrame(header, payload []byte, checksum byte) (*Frame, error) {
	if len(header) != HeaderSize {
		return nil, fmt.Errorf("%w: header is %d bytes (want %d)", ErrMalformedFrame, len(header), HeaderSize)
	}
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrPayloadTooLarge, len(payload), MaxPayloadSize)
	}
	if int(header[headerIndexPayloadSize]) != len(payload) {
		return nil, fmt.Errorf("%w: header declares %d payload bytes, got %d",
			ErrMalformedFrame, header[headerIndexPayloadSize], len(payload))
	}

	raw := make([]byte, 0, HeaderSize+len(payload)+ChecksumSize)
	raw = append(raw, header...)
	raw = append(raw, payload...)
	raw = append(raw, checksum)

	return &Frame{raw: raw, timestamp: time.Now()}, nil
}

// ParseFrame decodes a complete frame held in one buffer.
func ParseFrame(data []byte) (*Frame, error) {
	if len(data) < HeaderSize+ChecksumSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrMalformedFrame, len(data))
	}
	if data[headerIndexSync] != SyncByte {
		return nil, fmt.Errorf("%w: sync byte 0x%02X", ErrMalformedFrame, data[headerIndexSync])
	}
	size := int(data[headerIndexPayloadSize])
	if len(data) != HeaderSize+size+ChecksumSize {
		return nil, fmt.Errorf("%w: %d bytes for payload length %d", ErrMalformedFrame, len(data), size)
	}
	return DecodeFrame(data[:HeaderSize], data[HeaderSize:HeaderSize+size], data[len(data)-1])
}

// Bytes returns a copy of the wire bytes
func (f *Frame) Bytes() []byte {
	out := make([]byte, len(f.raw))
	copy(out, f.raw)
	return out
}

// Len returns the total frame length in bytes
func (f *Frame) Len() int {
	return len(f.raw)
}

// Type returns the packet type byte
func (f *Frame) Type() PacketType {
	return PacketType(f.raw[headerIndexPacketType])
}

// Header returns a copy of the header bytes
func (f *Frame) Header() []byte {
	out := make([]byte, HeaderSize)
	copy(out, f.raw[:HeaderSize])
	return out
}

// PayloadSize returns the payload length field
func (f *Frame) PayloadSize() int {
	return int(f.raw[headerIndexPayloadSize])
}

// Payload returns a copy of the payload bytes
func (f *Frame) Payload() []byte {
	out := make([]byte, f.PayloadSize())
	copy(out, f.raw[HeaderSize:HeaderSize+f.PayloadSize()])
	return out
}

// Command returns the command byte (payload offset 0), if the payload has one
func (f *Frame) Command() (uint8, bool) {
	return f.payloadByte(payloadIndexCommand)
}

// Checksum returns the trailing checksum byte as received or built
func (f *Frame) Checksum() byte {
	return f.raw[len(f.raw)-1]
}

// IsChecksumValid recomputes the checksum over header and payload
func (f *Frame) IsChecksumValid() bool {
	return CalculateChecksum(f.raw[:len(f.raw)-1]) == f.Checksum()
}

// Timestamp returns when the frame was built or read
func (f *Frame) Timestamp() time.Time {
	return f.timestamp
}

// String returns the frame as space separated hex
func (f *Frame) String() string {
	var sb strings.Builder
	for i, b := range f.raw {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02X", b)
	}
	return sb.String()
}

// payloadByte returns the payload byte at index, if present
func (f *Frame) payloadByte(index int) (uint8, bool) {
	if index < 0 || index >= f.PayloadSize() {
		return 0, false
	}
	return f.raw[HeaderSize+index], true
}
