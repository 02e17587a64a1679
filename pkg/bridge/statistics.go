// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bridge

import (
	"fmt"
	"time"
)

// Statistics counts bridge traffic
type Statistics struct {
	HeatPumpFrames   uint64
	ThermostatFrames uint64
	FramesSent       uint64
	Forwarded        uint64
	ChecksumErrors   uint64
	UnknownFrames    uint64
	NoiseBytes       uint64
	Polls            uint64
	MissedPolls      uint64
	Reconnects       uint64
	StartTime        time.Time
}

// FrameRate returns received frames per second since StartTime
func (s Statistics) FrameRate(now time.Time) float64 {
	elapsed := now.Sub(s.StartTime).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(s.HeatPumpFrames+s.ThermostatFrames) / elapsed
}

// ErrorRate returns the percentage of received frames with a bad checksum
func (s Statistics) ErrorRate() float64 {
	total := s.HeatPumpFrames + s.ThermostatFrames
	if total == 0 {
		return 0
	}
	return float64(s.ChecksumErrors) / float64(total) * 100.0
}

// String returns a formatted statistics summary
func (s Statistics) String() string {
	return fmt.Sprintf(`Bridge Statistics:
  Frames (heat pump):  %d
  Frames (thermostat): %d
  Frames Sent:         %d
  Forwarded:           %d
  Checksum Errors:     %d (%.2f%%)
  Unknown Frames:      %d
  Noise Bytes:         %d
  Polls:               %d
  Missed Polls:        %d
  Reconnects:          %d`,
		s.HeatPumpFrames, s.ThermostatFrames, s.FramesSent, s.Forwarded,
		s.ChecksumErrors, s.ErrorRate(), s.UnknownFrames, s.NoiseBytes,
		s.Polls, s.MissedPolls, s.Reconnects)
}
