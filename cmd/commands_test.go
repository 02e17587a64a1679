// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"math"
	"testing"
	"time"

	"github.com/Thermoquad/muart/pkg/muart"
)

func TestFormatUptime(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0 seconds"},
		{time.Second, "1 second"},
		{90 * time.Second, "1 minute and 30 seconds"},
		{time.Hour + 2*time.Minute + 3*time.Second, "1 hour, 2 minutes, and 3 seconds"},
		{2 * time.Hour, "2 hours"},
		{26*time.Hour + 5*time.Second, "1 day, 2 hours, and 5 seconds"},
	}
	for _, tt := range tests {
		if got := formatUptime(tt.in); got != tt.want {
			t.Errorf("formatUptime(%s) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseRemoteTemperature(t *testing.T) {
	good := map[string]float64{
		"21.5":  21.5,
		" 18 ":  18,
		"-20":   -20,
		"50":    50,
		"23.25": 23.25,
	}
	for in, want := range good {
		got, err := parseRemoteTemperature(in)
		if err != nil {
			t.Errorf("parseRemoteTemperature(%q) error: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("parseRemoteTemperature(%q) = %v, want %v", in, got, want)
		}
	}

	for _, in := range []string{"", "   ", "warm", "NaN", "-20.5", "51"} {
		if _, err := parseRemoteTemperature(in); err == nil {
			t.Errorf("parseRemoteTemperature(%q) should fail", in)
		}
	}
}

func TestFormatTemperature(t *testing.T) {
	if got := formatTemperature(math.NaN()); got != "--.-°C" {
		t.Errorf("NaN = %q", got)
	}
	if got := formatTemperature(21.5); got != "21.5°C" {
		t.Errorf("21.5 = %q", got)
	}
}

func TestBuildRequest(t *testing.T) {
	f, err := buildRequest([]string{"connect"})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if f.Type() != muart.PacketConnectRequest {
		t.Errorf("connect type = 0x%02X", f.Type())
	}

	f, err = buildRequest([]string{"GET", "room_temp"})
	if err != nil {
		t.Fatalf("get room_temp: %v", err)
	}
	if f.Type() != muart.PacketGetRequest {
		t.Errorf("get type = 0x%02X", f.Type())
	}
	if cmd, ok := f.Command(); !ok || muart.GetCommand(cmd) != muart.GetRoomTemp {
		t.Errorf("get command = 0x%02X, %t", cmd, ok)
	}

	f, err = buildRequest([]string{"remote-temp", "21.5"})
	if err != nil {
		t.Fatalf("remote-temp: %v", err)
	}
	if f.Type() != muart.PacketSetRequest {
		t.Errorf("remote-temp type = 0x%02X", f.Type())
	}
	if got := f.Payload()[3]; got != muart.EncodeTemperature(21.5) {
		t.Errorf("remote-temp encoded = 0x%02X", got)
	}

	f, err = buildRequest([]string{"internal"})
	if err != nil {
		t.Fatalf("internal: %v", err)
	}
	if !f.IsChecksumValid() {
		t.Error("internal request has a bad checksum")
	}

	bad := [][]string{
		{"get"},
		{"get", "bogus"},
		{"remote-temp"},
		{"remote-temp", "hot"},
		{"reboot"},
	}
	for _, args := range bad {
		if _, err := buildRequest(args); err == nil {
			t.Errorf("buildRequest(%v) should fail", args)
		}
	}
}
