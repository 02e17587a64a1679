// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package statebus

import (
	"encoding/json"
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"github.com/Thermoquad/muart/pkg/bridge"
	"github.com/Thermoquad/muart/pkg/muart"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestParseIntent(t *testing.T) {
	on, off := true, false
	heat := muart.ModeHeat
	target := 22.5
	fan := muart.FanVeryHigh
	vane := muart.VaneSwing

	tests := []struct {
		topic   string
		payload string
		want    bridge.Intent
	}{
		{"set/power", "ON", bridge.ChangeSettings{Change: muart.SettingsChange{Power: &on}}},
		{"set/power", "off", bridge.ChangeSettings{Change: muart.SettingsChange{Power: &off}}},
		{"set/mode", "heat", bridge.ChangeSettings{Change: muart.SettingsChange{Power: &on, Mode: &heat}}},
		{"set/mode", "off", bridge.ChangeSettings{Change: muart.SettingsChange{Power: &off}}},
		{"set/target_temperature", "22.5", bridge.ChangeSettings{Change: muart.SettingsChange{TargetTemperature: &target}}},
		{"set/fan", "veryhigh", bridge.ChangeSettings{Change: muart.SettingsChange{Fan: &fan}}},
		{"set/vane", "swing", bridge.ChangeSettings{Change: muart.SettingsChange{Vane: &vane}}},
		{"set/temperature_source", "bedroom", bridge.SelectSource{Source: "bedroom"}},
		{"set/remote_temperature", "19.5", bridge.SetRemoteTemperature{Celsius: 19.5}},
		{"set/remote_temperature", "internal", bridge.UseInternalTemperature{}},
		{"report/bedroom", " 20.0\n", bridge.ReportTemperature{Source: "bedroom", Celsius: 20}},
	}

	for _, tt := range tests {
		t.Run(tt.topic+"="+strings.TrimSpace(tt.payload), func(t *testing.T) {
			got, err := ParseIntent(strings.Split(tt.topic, "/"), []byte(tt.payload))
			if err != nil {
				t.Fatalf("ParseIntent error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseIntent = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestParseIntent_Errors(t *testing.T) {
	tests := []struct {
		topic   string
		payload string
	}{
		{"set/mode", "turbo"},
		{"set/power", "maybe"},
		{"set/target_temperature", "warm"},
		{"set/remote_temperature", "NaN"},
		{"set/temperature_source", ""},
		{"set/unknown", "1"},
		{"get/state", ""},
		{"state", ""},
	}

	for _, tt := range tests {
		if _, err := ParseIntent(strings.Split(tt.topic, "/"), []byte(tt.payload)); err == nil {
			t.Errorf("%s=%q: expected error", tt.topic, tt.payload)
		}
	}

	_, err := ParseIntent([]string{"set", "unknown"}, nil)
	if !errors.Is(err, ErrUnknownTopic) {
		t.Errorf("Expected ErrUnknownTopic, got %v", err)
	}
}

func TestEncodeState(t *testing.T) {
	s := bridge.NewDeviceState()
	s.Connection = bridge.Connected
	s.Power = true
	s.Mode = muart.ModeCool
	s.TargetTemperature = 24
	s.Fan = muart.FanAuto
	s.Action = bridge.ActionCooling

	data, err := EncodeState(s)
	if err != nil {
		t.Fatalf("EncodeState error: %v", err)
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if doc["connection"] != "connected" || doc["power"] != "ON" || doc["mode"] != "cool" || doc["action"] != "cooling" {
		t.Errorf("Unexpected document: %s", data)
	}
	if doc["target_temperature"] != 24.0 {
		t.Errorf("target_temperature = %v", doc["target_temperature"])
	}
	if _, ok := doc["current_temperature"]; ok {
		t.Error("Unknown room temperature should be omitted")
	}
	if doc["temperature_source"] != bridge.TemperatureSourceInternal {
		t.Errorf("temperature_source = %v", doc["temperature_source"])
	}
}

func TestIntentQueue_Deliver(t *testing.T) {
	q := newIntentQueue(quietLogger())

	q.deliver([]string{"set", "temperature_source"}, []byte("lounge"))
	q.deliver([]string{"set", "bogus"}, []byte("1"))

	select {
	case in := <-q.ch:
		if in != (bridge.SelectSource{Source: "lounge"}) {
			t.Errorf("Unexpected intent %#v", in)
		}
	default:
		t.Fatal("Expected a queued intent")
	}
	if len(q.ch) != 0 {
		t.Errorf("Invalid command should not be queued")
	}

	for i := 0; i < cap(q.ch)+4; i++ {
		q.deliver([]string{"report", "lounge"}, []byte("20"))
	}
	if len(q.ch) != cap(q.ch) {
		t.Errorf("Queue holds %d, want %d", len(q.ch), cap(q.ch))
	}
}

func TestTopicHelpers(t *testing.T) {
	if got := topicParts("home/ac", "home/ac/report/bedroom"); !reflect.DeepEqual(got, []string{"report", "bedroom"}) {
		t.Errorf("topicParts = %v", got)
	}
	if got := subjectPrefix("/home/ac/"); got != "home.ac" {
		t.Errorf("subjectPrefix = %q", got)
	}
}

func TestOpen_RejectsScheme(t *testing.T) {
	if _, err := Open("http://localhost", "", quietLogger()); err == nil {
		t.Error("Expected error for unsupported scheme")
	}
}

// stalledToken never completes, like a publish to an unresponsive broker
type stalledToken struct {
	done chan struct{}
}

func (t stalledToken) Wait() bool { <-t.done; return true }
func (t stalledToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}
func (t stalledToken) Done() <-chan struct{} { return t.done }
func (t stalledToken) Error() error          { return nil }

// recordingClient captures publishes; other Client methods are not used
type recordingClient struct {
	mqtt.Client
	topics   []string
	retained []bool
	token    stalledToken
}

func (c *recordingClient) Publish(topic string, _ byte, retained bool, _ interface{}) mqtt.Token {
	c.topics = append(c.topics, topic)
	c.retained = append(c.retained, retained)
	return c.token
}

func TestMQTTBus_PublishDoesNotWaitForBroker(t *testing.T) {
	client := &recordingClient{token: stalledToken{done: make(chan struct{})}}
	defer close(client.token.done)

	b := &MQTTBus{client: client, prefix: "home/ac", queue: newIntentQueue(quietLogger()), log: quietLogger()}

	start := time.Now()
	if err := b.Publish(bridge.NewDeviceState()); err != nil {
		t.Fatalf("Publish error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Publish blocked for %s on a stalled broker", elapsed)
	}

	if !reflect.DeepEqual(client.topics, []string{"home/ac/state"}) {
		t.Errorf("Published to %v", client.topics)
	}
	if len(client.retained) != 1 || !client.retained[0] {
		t.Error("State should be published retained")
	}
}
