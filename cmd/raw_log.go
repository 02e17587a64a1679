// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/muart/pkg/link"
	"github.com/Thermoquad/muart/pkg/muart"
)

var rawLogLink string

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display raw frame log in human-readable format",
	Long: `Continuously read and display frames as they arrive on one link.

Each frame is shown with timestamp, packet type, command and decoded payload.
Frames with a bad checksum are still shown and flagged. Bytes skipped while
searching for the next frame are reported as noise.

Nothing is sent; this command only listens. Use --link thermostat to watch
the thermostat side instead of the heat pump.

Supports both serial and WebSocket connections.`,
	RunE: runRawLog,
}

func init() {
	rawLogCmd.Flags().StringVar(&rawLogLink, "link", heatPumpLinkName, "Link to listen on (heatpump or thermostat)")
	rootCmd.AddCommand(rawLogCmd)
}

// openListenLink opens the link named by --link for the listen-only commands
func openListenLink(ctx context.Context, name string) (*link.Port, string, error) {
	switch name {
	case heatPumpLinkName:
		return OpenHeatPump(ctx)
	case thermostatLinkName:
		if !cfg.Thermostat.Configured() {
			return nil, "", fmt.Errorf("either --thermostat-port or --thermostat-url must be specified")
		}
		p, err := OpenLink(ctx, thermostatLinkName, cfg.Thermostat)
		if err != nil {
			return nil, "", err
		}
		return p, cfg.Thermostat.Describe(), nil
	}
	return nil, "", fmt.Errorf("unknown link %q (use heatpump or thermostat)", name)
}

func runRawLog(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	port, connInfo, err := openListenLink(ctx, rawLogLink)
	if err != nil {
		return err
	}
	defer port.Close()

	fmt.Printf("muart - Raw Frame Log\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	reader := muart.NewFrameReader(port)
	var reported uint64

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-port.Done():
			if err := port.Err(); err != nil {
				log.WithError(err).Info("Connection closed")
			}
			return nil
		default:
		}

		frame, ok := reader.ReadFrame(true)

		if discarded := reader.Discarded(); discarded > reported {
			fmt.Printf("[NOISE] %d bytes discarded\n", discarded-reported)
			reported = discarded
		}
		if ok {
			fmt.Print(muart.FormatFrame(frame))
		}
	}
}
