// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package prefs persists bridge settings that the heat pump itself does not
// remember, such as the selected temperature source.
package prefs

import (
	"context"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// ErrNotFound is returned by Load when nothing has been saved yet
var ErrNotFound = errors.New("preferences not found")

// Preferences is the persisted record
type Preferences struct {
	TemperatureSource string `cbor:"1,keyasint,omitempty"`
}

// Store loads and saves Preferences
type Store interface {
	Load(ctx context.Context) (Preferences, error)
	Save(ctx context.Context, p Preferences) error
}

// Encode serializes preferences as CBOR
func Encode(p Preferences) ([]byte, error) {
	data, err := cbor.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode preferences: %w", err)
	}
	return data, nil
}

// Decode parses CBOR-encoded preferences
func Decode(data []byte) (Preferences, error) {
	var p Preferences
	if len(data) == 0 {
		return p, ErrNotFound
	}
	if err := cbor.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("failed to decode preferences: %w", err)
	}
	return p, nil
}
