// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package muart

import (
	"errors"
	"fmt"
)

// AnomalyType represents different types of frame anomalies
type AnomalyType int

const (
	AnomalyChecksumError AnomalyType = iota
	AnomalyLengthMismatch
	AnomalyUnknownType
	AnomalyUnknownCommand
	AnomalyInvalidTemp
	AnomalyInvalidValue
	AnomalyReservedBytes
)

// Plausible range for temperatures reported by the unit
const (
	minPlausibleTemp = -20.0
	maxPlausibleTemp = 50.0
)

// ValidationError represents a frame validation failure
type ValidationError struct {
	Type    AnomalyType
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// ValidateFrame checks frame structure and decoded values.
// Returns a slice of validation errors (empty if the frame is valid).
func ValidateFrame(f *Frame) []ValidationError {
	errs := []ValidationError{}

	if !f.IsChecksumValid() {
		errs = append(errs, ValidationError{
			Type:    AnomalyChecksumError,
			Message: fmt.Sprintf("Checksum mismatch (got 0x%02X, want 0x%02X)", f.Checksum(), CalculateChecksum(f.raw[:len(f.raw)-1])),
			Details: map[string]interface{}{"received": f.Checksum(), "calculated": CalculateChecksum(f.raw[:len(f.raw)-1])},
		})
	}

	if f.raw[headerIndexReserved1] != HeaderReserved1 || f.raw[headerIndexReserved2] != HeaderReserved2 {
		errs = append(errs, ValidationError{
			Type:    AnomalyReservedBytes,
			Message: fmt.Sprintf("Unexpected reserved header bytes %02X %02X", f.raw[headerIndexReserved1], f.raw[headerIndexReserved2]),
			Details: map[string]interface{}{"reserved": []byte{f.raw[headerIndexReserved1], f.raw[headerIndexReserved2]}},
		})
	}

	p, err := Decode(f)
	if err != nil {
		switch {
		case errors.Is(err, ErrUnknownPacket):
			errs = append(errs, ValidationError{
				Type:    AnomalyUnknownType,
				Message: fmt.Sprintf("Unknown packet type 0x%02X", uint8(f.Type())),
				Details: map[string]interface{}{"type": uint8(f.Type())},
			})
		case errors.Is(err, ErrShortPayload):
			errs = append(errs, ValidationError{
				Type:    AnomalyLengthMismatch,
				Message: err.Error(),
				Details: map[string]interface{}{"length": f.PayloadSize()},
			})
		}
		return errs
	}

	switch v := p.(type) {
	case GetResponse:
		if v.Command() != GetFour {
			errs = append(errs, ValidationError{
				Type:    AnomalyUnknownCommand,
				Message: fmt.Sprintf("Unknown get response command 0x%02X", uint8(v.Command())),
				Details: map[string]interface{}{"command": uint8(v.Command())},
			})
		}
	case SetRequest:
		errs = append(errs, ValidationError{
			Type:    AnomalyUnknownCommand,
			Message: fmt.Sprintf("Unknown set request command 0x%02X", uint8(v.Command())),
			Details: map[string]interface{}{"command": uint8(v.Command())},
		})
	case SettingsResponse:
		errs = append(errs, validateSettings(v)...)
	case RoomTempResponse:
		errs = append(errs, validateTemperature("Room temperature", v.RoomTemperature())...)
	}

	return errs
}

// validateSettings validates a settings response
func validateSettings(p SettingsResponse) []ValidationError {
	errs := validateTemperature("Target temperature", p.TargetTemperature())

	if _, ok := ParseMode(p.Mode().String()); !ok {
		errs = append(errs, ValidationError{
			Type:    AnomalyInvalidValue,
			Message: fmt.Sprintf("Invalid mode=0x%02X", uint8(p.Mode())),
			Details: map[string]interface{}{"mode": uint8(p.Mode())},
		})
	}
	if _, ok := ParseFan(p.Fan().String()); !ok {
		errs = append(errs, ValidationError{
			Type:    AnomalyInvalidValue,
			Message: fmt.Sprintf("Invalid fan=0x%02X", uint8(p.Fan())),
			Details: map[string]interface{}{"fan": uint8(p.Fan())},
		})
	}

	return errs
}

func validateTemperature(label string, temp float64) []ValidationError {
	if temp < minPlausibleTemp || temp > maxPlausibleTemp {
		return []ValidationError{{
			Type:    AnomalyInvalidTemp,
			Message: fmt.Sprintf("%s out of range (%.1f°C, valid: %.0f to %.0f°C)", label, temp, minPlausibleTemp, maxPlausibleTemp),
			Details: map[string]interface{}{"value": temp, "min": minPlausibleTemp, "max": maxPlausibleTemp},
		}}
	}
	return nil
}
