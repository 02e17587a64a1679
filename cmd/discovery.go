// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/muart/pkg/link"
	"github.com/Thermoquad/muart/pkg/muart"
)

var discoveryTimeout int

var discoveryCmd = &cobra.Command{
	Use:   "discovery",
	Short: "Find serial ports with a heat pump attached",
	Long: `Probe every serial port for a heat pump.

Each port is opened at the configured baud rate (8E1) and sent a connect
request. Ports that answer with a connect response are reported.

A port that is already in use, such as one held by a running bridge, is
reported as unavailable.

Examples:
  muart discovery
  muart discovery --baud 9600 --timeout 2

Exit codes:
  0 - Discovery successful (at least one heat pump found)
  1 - Discovery failed (no heat pump answered)
  2 - Could not list serial ports`,
	RunE: runDiscovery,
}

func init() {
	rootCmd.AddCommand(discoveryCmd)
	discoveryCmd.Flags().IntVar(&discoveryTimeout, "timeout", 1, "Seconds to wait for an answer on each port")
}

// probeResult is the outcome of probing one port
type probeResult struct {
	port     string
	err      error
	answered bool
	reply    *muart.Frame
	noise    uint64
}

func runDiscovery(cmd *cobra.Command, args []string) error {
	ports, err := link.ListSerialPorts()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Port listing error: %v\n", err)
		os.Exit(2)
	}

	fmt.Printf("muart - Heat Pump Discovery\n")
	fmt.Printf("Ports: %d\n", len(ports))
	fmt.Printf("Baud rate: %d (8E1)\n", cfg.HeatPump.Baud)
	fmt.Printf("Timeout: %d seconds per port\n\n", discoveryTimeout)

	found := 0
	for _, name := range ports {
		result := probePort(cmd.Context(), name, cfg.HeatPump.Baud, time.Duration(discoveryTimeout)*time.Second)

		switch {
		case result.err != nil:
			fmt.Printf("%s: unavailable (%v)\n", name, result.err)
		case result.answered:
			found++
			fmt.Printf("%s: HEAT PUMP FOUND\n", name)
			fmt.Print(muart.FormatFrame(result.reply))
		case result.reply != nil:
			fmt.Printf("%s: unexpected reply %s\n", name, muart.FormatFrameName(result.reply))
		case result.noise > 0:
			fmt.Printf("%s: %d bytes of noise, no frame (check baud rate and parity)\n", name, result.noise)
		default:
			fmt.Printf("%s: no answer\n", name)
		}
	}

	// Summary
	fmt.Printf("\n--- Discovery summary ---\n")
	fmt.Printf("Heat pumps found: %d\n", found)

	if found == 0 {
		fmt.Printf("No heat pump answered. Check wiring, power and baud rate.\n")
		os.Exit(1)
	}

	return nil
}

// probePort sends a connect request on one port and waits for the reply
func probePort(ctx context.Context, name string, baud int, timeout time.Duration) probeResult {
	result := probeResult{port: name}

	port, err := link.OpenSerial(heatPumpLinkName, name, baud, nil)
	if err != nil {
		result.err = err
		return result
	}
	defer port.Close()

	if _, err := port.Write(muart.NewConnectRequest().Bytes()); err != nil {
		result.err = err
		return result
	}

	reader := muart.NewFrameReader(port, muart.WithReadTimeout(timeout))
	if ctx == nil {
		ctx = context.Background()
	}

	frame, ok := reader.ReadFrame(true)
	result.noise = reader.Discarded()
	if !ok || ctx.Err() != nil {
		return result
	}

	result.reply = frame
	t := frame.Type()
	result.answered = frame.IsChecksumValid() &&
		(t == muart.PacketConnectResponse || t == muart.PacketExtendedConnectResponse)
	return result
}
