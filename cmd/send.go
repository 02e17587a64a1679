// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/muart/pkg/bridge"
	"github.com/Thermoquad/muart/pkg/muart"
)

var sendCmd = &cobra.Command{
	Use:   "send <request> [args]",
	Short: "Send one request to the heat pump and print the reply",
	Long: `Encode one request, send it to the heat pump and print the reply.

Requests:
  connect                  Connect request (handshake)
  get <command>            Get request: settings, room_temp, four, status, standby
  remote-temp <celsius>    Report a room temperature from a remote sensor
  internal                 Switch back to the heat pump's own sensor

Get and set requests are only answered after a successful handshake, so
every request other than connect is preceded by one.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)
}

// buildRequest encodes the request named by args
func buildRequest(args []string) (*muart.Frame, error) {
	name := strings.ToLower(args[0])
	switch name {
	case "connect":
		return muart.NewConnectRequest(), nil

	case "get":
		if len(args) != 2 {
			return nil, fmt.Errorf("get requires a command (settings, room_temp, four, status, standby)")
		}
		cmd, ok := muart.ParseGetCommand(args[1])
		if !ok {
			return nil, fmt.Errorf("unknown get command %q", args[1])
		}
		return muart.NewGetRequest(cmd), nil

	case "remote-temp":
		if len(args) != 2 {
			return nil, fmt.Errorf("remote-temp requires a temperature in °C")
		}
		celsius, err := strconv.ParseFloat(args[1], 64)
		if err != nil || math.IsNaN(celsius) {
			return nil, fmt.Errorf("invalid temperature %q", args[1])
		}
		return muart.NewRemoteTemperatureRequest(celsius), nil

	case "internal":
		return muart.NewInternalTemperatureRequest(), nil
	}
	return nil, fmt.Errorf("unknown request %q (use connect, get, remote-temp or internal)", args[0])
}

func runSend(cmd *cobra.Command, args []string) error {
	request, err := buildRequest(args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	heatPump, connInfo, err := OpenHeatPump(ctx)
	if err != nil {
		return err
	}
	defer heatPump.Close()

	fmt.Printf("muart - Send\n")
	fmt.Printf("Connection: %s\n\n", connInfo)

	trace := func(dir bridge.Direction, _ string, f *muart.Frame) {
		fmt.Printf("%s ", dir)
		fmt.Print(muart.FormatFrame(f))
		fmt.Printf("   Raw: % X\n\n", f.Bytes())
	}

	bcfg := cfg.BridgeConfig()
	bcfg.Forwarding = false
	bcfg.Passive = false
	b := bridge.New(heatPump, nil, bcfg,
		bridge.WithLogger(log.StandardLogger()),
		bridge.WithTrace(trace),
	)

	if request.Type() != muart.PacketConnectRequest {
		if !b.SendAndWait(heatPump, muart.NewConnectRequest()) {
			return fmt.Errorf("heat pump did not answer the connect request")
		}
	}

	if !b.SendAndWait(heatPump, request) {
		return fmt.Errorf("no valid reply within %s", cfg.ResponseTimeout)
	}

	if request.Type() == muart.PacketGetRequest {
		state := b.State()
		fmt.Printf("Power: %t  Mode: %s  Target: %s  Fan: %s\n",
			state.Power, state.Mode, formatTemperature(state.TargetTemperature), state.Fan)
		fmt.Printf("Room: %s  Operating: %t  Compressor: %d Hz  Action: %s\n",
			formatTemperature(state.RoomTemperature), state.Operating, state.CompressorFrequency, state.Action)
	}
	fmt.Printf("Connection: %s\n", b.Session().State)

	return nil
}
