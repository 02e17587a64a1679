// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/muart/pkg/link"
	"github.com/Thermoquad/muart/pkg/muart"
)

var (
	showAll       bool
	statsInterval int
	useTUI        bool
	detectLink    string
)

var errorDetectionCmd = &cobra.Command{
	Use:   "error_detection",
	Short: "Detect and analyze malformed frames and errors",
	Long: `Track frame errors, malformed data, and anomalous values with statistics.

This command validates each frame and detects:
  - Checksum mismatches and unexpected reserved header bytes
  - Unknown packet types and commands
  - Payloads too short for their command
  - Anomalous values (implausible temperatures, unknown modes and fan speeds)
  - Statistics and trends (frame rate, error rate, noise bytes)

By default, only errors are displayed. Use --show-all to display valid frames too.

Frames are validated in real-time, with errors highlighted immediately and
periodic statistics summaries displayed at configurable intervals.`,
	RunE: runErrorDetection,
}

func init() {
	rootCmd.AddCommand(errorDetectionCmd)
	errorDetectionCmd.Flags().BoolVar(&showAll, "show-all", false, "Show all frames (not just errors)")
	errorDetectionCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics update interval (seconds)")
	errorDetectionCmd.Flags().BoolVar(&useTUI, "tui", true, "Use terminal UI (false for text mode)")
	errorDetectionCmd.Flags().StringVar(&detectLink, "link", heatPumpLinkName, "Link to listen on (heatpump or thermostat)")
}

func runErrorDetection(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	port, connInfo, err := openListenLink(ctx, detectLink)
	if err != nil {
		return err
	}
	defer port.Close()

	if useTUI {
		return runTUIMode(ctx, port, connInfo)
	}
	return runTextMode(ctx, port, connInfo)
}

// frameEvent is one reader result: a frame, skipped noise, or both
type frameEvent struct {
	frame  *muart.Frame
	errors []muart.ValidationError
	noise  uint64
}

// readFrames reads and validates frames from port until ctx is done or the
// link closes, then closes the returned channel
func readFrames(ctx context.Context, port *link.Port) <-chan frameEvent {
	events := make(chan frameEvent, 16)

	go func() {
		defer close(events)
		reader := muart.NewFrameReader(port)
		var reported uint64

		for {
			select {
			case <-ctx.Done():
				return
			case <-port.Done():
				return
			default:
			}

			frame, ok := reader.ReadFrame(true)

			var ev frameEvent
			if discarded := reader.Discarded(); discarded > reported {
				ev.noise = discarded - reported
				reported = discarded
			}
			if ok {
				ev.frame = frame
				ev.errors = muart.ValidateFrame(frame)
			}
			if ev.frame == nil && ev.noise == 0 {
				continue
			}

			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return events
}

// printValidationErrors prints validation errors for a frame
func printValidationErrors(f *muart.Frame, errors []muart.ValidationError) {
	timestamp := f.Timestamp().Format("15:04:05.000")

	fmt.Printf("[%s] \033[1;33mVALIDATION ERROR:\033[0m %s\n", timestamp, muart.FormatFrameName(f))
	if f.IsChecksumValid() {
		fmt.Printf("  Checksum: \033[1;32mOK\033[0m\n")
	}

	for i, err := range errors {
		switch err.Type {
		case muart.AnomalyChecksumError:
			fmt.Printf("  Issue %d: \033[1;31m%s\033[0m\n", i+1, err.Message)

		case muart.AnomalyLengthMismatch:
			fmt.Printf("  Issue %d: \033[1;31m%s\033[0m\n", i+1, err.Message)
			if length, ok := err.Details["length"].(int); ok {
				fmt.Printf("    Payload length=%d\n", length)
			}

		case muart.AnomalyInvalidTemp:
			fmt.Printf("  Issue %d: \033[1;33m%s\033[0m\n", i+1, err.Message)

		case muart.AnomalyUnknownType, muart.AnomalyUnknownCommand, muart.AnomalyInvalidValue, muart.AnomalyReservedBytes:
			fmt.Printf("  Issue %d: \033[1;33m%s\033[0m\n", i+1, err.Message)

		default:
			fmt.Printf("  Issue %d: %s\n", i+1, err.Message)
		}
	}

	fmt.Printf("  Raw: % X\n", f.Bytes())
	fmt.Printf("  >>> FRAME REJECTED <<<\n\n")
}

// runTUIMode runs error detection in TUI mode
func runTUIMode(ctx context.Context, port *link.Port, connInfo string) error {
	m := initialModel(connInfo, showAll)
	p := tea.NewProgram(m)

	go func() {
		for ev := range readFrames(ctx, port) {
			if ev.noise > 0 {
				p.Send(noiseMsg{bytes: ev.noise})
			}
			if ev.frame != nil {
				p.Send(frameMsg{frame: ev.frame, validationErrors: ev.errors})
			}
		}
		if ctx.Err() == nil {
			p.Send(linkClosedMsg{err: port.Err()})
		}
	}()

	go func() {
		<-ctx.Done()
		p.Quit()
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %v", err)
	}

	return nil
}

// runTextMode runs error detection in text mode
func runTextMode(ctx context.Context, port *link.Port, connInfo string) error {
	fmt.Printf("muart - Error Detection Mode\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Statistics interval: %d seconds\n", statsInterval)
	if showAll {
		fmt.Printf("Mode: All frames\n")
	} else {
		fmt.Printf("Mode: Errors only\n")
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	stats := muart.NewStatistics()
	synchronized := false

	// Statistics ticker
	statsTicker := time.NewTicker(time.Duration(statsInterval) * time.Second)
	defer statsTicker.Stop()

	events := readFrames(ctx, port)

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				fmt.Println()
				fmt.Print(stats.String())
				if err := port.Err(); err != nil && ctx.Err() == nil {
					return fmt.Errorf("connection closed: %w", err)
				}
				return nil
			}

			if ev.noise > 0 {
				stats.AddNoise(ev.noise)
				if synchronized {
					fmt.Printf("[NOISE] %d bytes discarded\n\n", ev.noise)
				}
			}
			if ev.frame == nil {
				continue
			}

			if !synchronized {
				synchronized = true
				if stats.NoiseBytes > 0 {
					fmt.Printf("[SYNC] Synchronized after skipping %d invalid bytes\n\n", stats.NoiseBytes)
				} else {
					fmt.Printf("[SYNC] Synchronized\n\n")
				}
			}

			stats.Update(ev.errors)

			if len(ev.errors) > 0 {
				printValidationErrors(ev.frame, ev.errors)
			} else if showAll {
				// Print valid frame (only if --show-all flag is set)
				fmt.Print(muart.FormatFrame(ev.frame))
			}

		case <-statsTicker.C:
			fmt.Println()
			fmt.Print(stats.String())
			fmt.Println()
		}
	}
}
