// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/muart/pkg/muart"
)

var (
	frameTestTimeout int
	frameTestLink    string
	frameTestConnect bool
)

var frameTestCmd = &cobra.Command{
	Use:   "frame_test",
	Short: "Test a link by waiting for a valid frame",
	Long: `Wait for a valid frame on a link until timeout.

This command connects to a serial port or WebSocket and waits for any frame
with a valid checksum. Noise bytes and corrupt frames are skipped.

A heat pump on its own only speaks when spoken to; use --connect to send a
connect request first. A thermostat sends connect requests by itself.

Exit codes:
  0 - Frame received before timeout
  1 - Timeout reached without receiving a valid frame
  2 - Connection error

Useful for checking wiring, baud rate and parity.`,
	RunE: runFrameTest,
}

func init() {
	rootCmd.AddCommand(frameTestCmd)
	frameTestCmd.Flags().IntVar(&frameTestTimeout, "timeout", 10, "Timeout in seconds to wait for a frame")
	frameTestCmd.Flags().StringVar(&frameTestLink, "link", heatPumpLinkName, "Link to test (heatpump or thermostat)")
	frameTestCmd.Flags().BoolVar(&frameTestConnect, "connect", false, "Send a connect request before waiting")
}

func runFrameTest(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(frameTestTimeout)*time.Second)
	defer cancel()

	port, connInfo, err := openListenLink(ctx, frameTestLink)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer port.Close()

	fmt.Printf("muart - Frame Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n", frameTestTimeout)

	if frameTestConnect {
		if _, err := port.Write(muart.NewConnectRequest().Bytes()); err != nil {
			fmt.Fprintf(os.Stderr, "Write error: %v\n", err)
			os.Exit(2)
		}
		fmt.Printf("Sent CONNECT_REQUEST\n")
	}
	fmt.Printf("Waiting for valid frame...\n\n")

	reader := muart.NewFrameReader(port)
	corrupt := 0

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintf(os.Stderr, "TIMEOUT: No valid frame received within %d seconds", frameTestTimeout)
			if corrupt > 0 {
				fmt.Fprintf(os.Stderr, " (%d frames with bad checksum)", corrupt)
			}
			fmt.Fprintln(os.Stderr)
			os.Exit(1)
		case <-port.Done():
			fmt.Fprintf(os.Stderr, "Read error: %v\n", port.Err())
			os.Exit(2)
		default:
		}

		frame, ok := reader.ReadFrame(true)
		if !ok {
			continue
		}
		if !frame.IsChecksumValid() {
			corrupt++
			continue
		}

		// Got a valid frame!
		if skipped := reader.Discarded(); skipped > 0 {
			fmt.Printf("(skipped %d invalid bytes before sync)\n", skipped)
		}
		fmt.Printf("SUCCESS: Received valid frame\n")
		fmt.Printf("  Type: %s\n", muart.FormatFrameName(frame))
		fmt.Printf("  Length: %d bytes\n", frame.Len())
		fmt.Printf("  Checksum: 0x%02X\n", frame.Checksum())
		os.Exit(0)
	}
}
