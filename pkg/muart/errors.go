// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package muart

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the codec and variant decoder
var (
	ErrPayloadTooLarge  = errors.New("payload too large")
	ErrMalformedFrame   = errors.New("malformed frame")
	ErrChecksumMismatch = errors.New("checksum mismatch")
	ErrShortPayload     = errors.New("payload too short")
	ErrUnknownPacket    = errors.New("unknown packet")
	ErrNoFrame          = errors.New("no frame")
)

// DecodeError describes why a frame could not be viewed as a typed packet
type DecodeError struct {
	Type    PacketType
	Command uint8
	Err     error
}

// Error implements the error interface
func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s (0x%02X) command 0x%02X: %v", FormatPacketType(e.Type), uint8(e.Type), e.Command, e.Err)
}

// Unwrap returns the underlying sentinel
func (e *DecodeError) Unwrap() error {
	return e.Err
}
