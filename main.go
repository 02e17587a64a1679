// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// muart - Mitsubishi heat pump serial protocol bridge
//
// Bridges a heat pump and its wired thermostat, publishes the decoded state,
// and provides tools for logging and analyzing the serial protocol.

package main

import (
	"os"

	"github.com/Thermoquad/muart/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
