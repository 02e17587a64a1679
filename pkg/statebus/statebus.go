// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package statebus publishes bridge state to a message broker and turns
// command messages from it into bridge intents. MQTT and NATS are supported.
//
// Topics are relative to a configurable prefix:
//
//	<prefix>/state                    state document (JSON, retained on MQTT)
//	<prefix>/set/power                ON | OFF
//	<prefix>/set/mode                 off | heat | dry | cool | fan_only | auto
//	<prefix>/set/target_temperature   °C
//	<prefix>/set/fan                  auto | quiet | low | medium | high | veryhigh
//	<prefix>/set/vane                 auto | 1-5 | swing
//	<prefix>/set/temperature_source   source name
//	<prefix>/set/remote_temperature   °C, or "internal"
//	<prefix>/report/<source>          °C reading from a named source
//
// NATS subjects use the same names with '.' separators.
package statebus

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Thermoquad/muart/pkg/bridge"
	"github.com/Thermoquad/muart/pkg/muart"
)

// DefaultPrefix is the topic prefix used when none is configured
const DefaultPrefix = "muart"

// ErrUnknownTopic is returned for command topics with no matching intent
var ErrUnknownTopic = errors.New("unknown command topic")

// Bus publishes state and delivers intents
type Bus interface {
	bridge.Publisher
	Intents() <-chan bridge.Intent
	Close() error
}

// Open connects to the broker named by rawURL. mqtt://, tcp://, ssl://,
// ws:// and wss:// select MQTT; nats:// selects NATS.
func Open(rawURL, prefix string, log logrus.FieldLogger) (Bus, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid broker URL: %w", err)
	}
	switch u.Scheme {
	case "mqtt", "tcp", "ssl", "mqtts", "ws", "wss":
		bus, err := OpenMQTT(u, prefix, log)
		if err != nil {
			return nil, err
		}
		return bus, nil
	case "nats", "tls":
		bus, err := OpenNATS(rawURL, prefix, log)
		if err != nil {
			return nil, err
		}
		return bus, nil
	}
	return nil, fmt.Errorf("unsupported broker scheme: %q (use mqtt:// or nats://)", u.Scheme)
}

// StateMessage is the published state document
type StateMessage struct {
	Connection          string   `json:"connection"`
	Power               string   `json:"power"`
	Mode                string   `json:"mode"`
	TargetTemperature   *float64 `json:"target_temperature,omitempty"`
	CurrentTemperature  *float64 `json:"current_temperature,omitempty"`
	Fan                 string   `json:"fan"`
	Vane                string   `json:"vane"`
	HorizontalVane      string   `json:"horizontal_vane"`
	Action              string   `json:"action"`
	Operating           bool     `json:"operating"`
	CompressorFrequency uint8    `json:"compressor_frequency"`
	LoopStatus          uint8    `json:"loop_status"`
	Stage               string   `json:"stage"`
	TemperatureSource   string   `json:"temperature_source"`
}

// NewStateMessage converts a device state. Unknown temperatures are omitted.
func NewStateMessage(s bridge.DeviceState) StateMessage {
	power := "OFF"
	if s.Power {
		power = "ON"
	}
	return StateMessage{
		Connection:          strings.ToLower(s.Connection.String()),
		Power:               power,
		Mode:                strings.ToLower(s.Mode.String()),
		TargetTemperature:   optionalTemperature(s.TargetTemperature),
		CurrentTemperature:  optionalTemperature(s.RoomTemperature),
		Fan:                 strings.ToLower(s.Fan.String()),
		Vane:                strings.ToLower(s.Vane.String()),
		HorizontalVane:      s.HorizontalVane.String(),
		Action:              s.Action.String(),
		Operating:           s.Operating,
		CompressorFrequency: s.CompressorFrequency,
		LoopStatus:          s.LoopStatus,
		Stage:               strings.ToLower(muart.FormatStage(s.Stage)),
		TemperatureSource:   s.TemperatureSource,
	}
}

func optionalTemperature(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

// EncodeState renders the state document
func EncodeState(s bridge.DeviceState) ([]byte, error) {
	data, err := json.Marshal(NewStateMessage(s))
	if err != nil {
		return nil, fmt.Errorf("failed to encode state: %w", err)
	}
	return data, nil
}

// ParseIntent maps a command topic, split into parts after the prefix, and
// its payload to an intent
func ParseIntent(parts []string, payload []byte) (bridge.Intent, error) {
	value := strings.TrimSpace(string(payload))
	if len(parts) != 2 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTopic, strings.Join(parts, "/"))
	}

	if parts[0] == "report" {
		celsius, err := parseCelsius(value)
		if err != nil {
			return nil, err
		}
		return bridge.ReportTemperature{Source: parts[1], Celsius: celsius}, nil
	}
	if parts[0] != "set" {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTopic, strings.Join(parts, "/"))
	}

	switch parts[1] {
	case "power":
		on, err := parseOnOff(value)
		if err != nil {
			return nil, err
		}
		return bridge.ChangeSettings{Change: muart.SettingsChange{Power: &on}}, nil

	case "mode":
		if strings.EqualFold(value, "off") {
			off := false
			return bridge.ChangeSettings{Change: muart.SettingsChange{Power: &off}}, nil
		}
		mode, ok := muart.ParseMode(value)
		if !ok {
			return nil, fmt.Errorf("invalid mode %q", value)
		}
		on := true
		return bridge.ChangeSettings{Change: muart.SettingsChange{Power: &on, Mode: &mode}}, nil

	case "target_temperature":
		celsius, err := parseCelsius(value)
		if err != nil {
			return nil, err
		}
		return bridge.ChangeSettings{Change: muart.SettingsChange{TargetTemperature: &celsius}}, nil

	case "fan":
		fan, ok := muart.ParseFan(value)
		if !ok {
			return nil, fmt.Errorf("invalid fan %q", value)
		}
		return bridge.ChangeSettings{Change: muart.SettingsChange{Fan: &fan}}, nil

	case "vane":
		vane, ok := muart.ParseVane(value)
		if !ok {
			return nil, fmt.Errorf("invalid vane %q", value)
		}
		return bridge.ChangeSettings{Change: muart.SettingsChange{Vane: &vane}}, nil

	case "temperature_source":
		if value == "" {
			return nil, errors.New("empty temperature source")
		}
		return bridge.SelectSource{Source: value}, nil

	case "remote_temperature":
		if strings.EqualFold(value, bridge.TemperatureSourceInternal) {
			return bridge.UseInternalTemperature{}, nil
		}
		celsius, err := parseCelsius(value)
		if err != nil {
			return nil, err
		}
		return bridge.SetRemoteTemperature{Celsius: celsius}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownTopic, strings.Join(parts, "/"))
}

func parseCelsius(value string) (float64, error) {
	celsius, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(celsius) || math.IsInf(celsius, 0) {
		return 0, fmt.Errorf("invalid temperature %q", value)
	}
	return celsius, nil
}

func parseOnOff(value string) (bool, error) {
	switch strings.ToUpper(value) {
	case "ON", "TRUE", "1":
		return true, nil
	case "OFF", "FALSE", "0":
		return false, nil
	}
	return false, fmt.Errorf("invalid power %q", value)
}

// intentQueue hands parsed intents to the bridge goroutine
type intentQueue struct {
	ch  chan bridge.Intent
	log logrus.FieldLogger
}

func newIntentQueue(log logrus.FieldLogger) intentQueue {
	return intentQueue{ch: make(chan bridge.Intent, 16), log: log}
}

// deliver parses and queues one command; a full queue drops it
func (q intentQueue) deliver(parts []string, payload []byte) {
	log := q.log.WithFields(logrus.Fields{"topic": strings.Join(parts, "/"), "payload": string(payload)})
	in, err := ParseIntent(parts, payload)
	if err != nil {
		log.WithError(err).Warn("Ignoring command")
		return
	}
	select {
	case q.ch <- in:
		log.Debug("Queued command")
	default:
		log.Warn("Command queue full, dropping command")
	}
}
