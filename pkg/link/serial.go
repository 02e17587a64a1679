// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"go.bug.st/serial"
)

// DefaultBaudRate is the rate heat pumps and thermostats talk at
const DefaultBaudRate = 2400

// SerialMode returns the port settings for a heat pump or thermostat UART:
// 8 data bits, even parity, one stop bit
func SerialMode(baudRate int) *serial.Mode {
	if baudRate <= 0 {
		baudRate = DefaultBaudRate
	}
	return &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.EvenParity,
		StopBits: serial.OneStopBit,
	}
}

// OpenSerial opens a serial port as a link
func OpenSerial(name, portName string, baudRate int, log logrus.FieldLogger) (*Port, error) {
	port, err := serial.Open(portName, SerialMode(baudRate))
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}
	return New(name, port, log), nil
}

// ListSerialPorts returns the serial ports present on this machine
func ListSerialPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}
	return ports, nil
}
