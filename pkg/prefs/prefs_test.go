// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package prefs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFileStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(filepath.Join(t.TempDir(), "prefs.cbor"))

	if _, err := store.Load(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound before first save, got %v", err)
	}

	if err := store.Save(ctx, Preferences{TemperatureSource: "bedroom"}); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	p, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if p.TemperatureSource != "bedroom" {
		t.Errorf("TemperatureSource = %q, want bedroom", p.TemperatureSource)
	}

	if err := store.Save(ctx, Preferences{TemperatureSource: "internal"}); err != nil {
		t.Fatalf("Second save error: %v", err)
	}
	p, _ = store.Load(ctx)
	if p.TemperatureSource != "internal" {
		t.Errorf("TemperatureSource = %q after overwrite", p.TemperatureSource)
	}
}

func TestFileStore_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.cbor")
	if err := os.WriteFile(path, []byte{0xFF, 0x00, 0x13}, 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := NewFileStore(path).Load(context.Background())
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("Expected decode error, got %v", err)
	}
}

func TestEncodeDecode(t *testing.T) {
	data, err := Encode(Preferences{TemperatureSource: "lounge"})
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}
	p, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if p.TemperatureSource != "lounge" {
		t.Errorf("TemperatureSource = %q", p.TemperatureSource)
	}

	if _, err := Decode(nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("Decode(nil) = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	if _, err := store.Load(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound from empty store, got %v", err)
	}
	if err := store.Save(ctx, Preferences{TemperatureSource: "lounge"}); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	p, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if p.TemperatureSource != "lounge" {
		t.Errorf("TemperatureSource = %q, want lounge", p.TemperatureSource)
	}
}
