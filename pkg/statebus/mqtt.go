// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package statebus

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"github.com/Thermoquad/muart/pkg/bridge"
)

const mqttTimeout = 5 * time.Second

// MQTTBus publishes retained state and subscribes to command topics
type MQTTBus struct {
	client mqtt.Client
	prefix string
	queue  intentQueue
	log    logrus.FieldLogger
}

// OpenMQTT connects to an MQTT broker. Credentials are taken from the URL.
func OpenMQTT(u *url.URL, prefix string, log logrus.FieldLogger) (*MQTTBus, error) {
	b := &MQTTBus{
		prefix: strings.TrimSuffix(prefix, "/"),
		queue:  newIntentQueue(log),
		log:    log.WithField("bus", "mqtt"),
	}

	broker := *u
	broker.User = nil
	switch broker.Scheme {
	case "mqtt":
		broker.Scheme = "tcp"
	case "mqtts":
		broker.Scheme = "ssl"
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker.String())
	if u.User != nil {
		opts.SetUsername(u.User.Username())
		if pw, ok := u.User.Password(); ok {
			opts.SetPassword(pw)
		}
	}
	opts.SetClientID("muart_" + strings.ReplaceAll(b.prefix, "/", "_"))
	opts.SetAutoReconnect(true)
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		b.log.Info("Connected to MQTT broker")
		c.Subscribe(b.prefix+"/set/+", 0, b.handleMessage)
		c.Subscribe(b.prefix+"/report/+", 0, b.handleMessage)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		b.log.WithError(err).Warn("Lost connection to MQTT broker")
	})

	b.client = mqtt.NewClient(opts)
	token := b.client.Connect()
	if !token.WaitTimeout(mqttTimeout) {
		return nil, fmt.Errorf("timed out connecting to MQTT broker %s", broker.Host)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker %s: %w", broker.Host, err)
	}
	return b, nil
}

func (b *MQTTBus) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	b.queue.deliver(topicParts(b.prefix, msg.Topic()), msg.Payload())
}

// topicParts splits an MQTT topic below prefix
func topicParts(prefix, topic string) []string {
	return strings.Split(strings.TrimPrefix(topic, prefix+"/"), "/")
}

// Publish implements bridge.Publisher. It runs on the bridge goroutine, so
// it does not wait for the broker; delivery failures are logged.
func (b *MQTTBus) Publish(state bridge.DeviceState) error {
	payload, err := EncodeState(state)
	if err != nil {
		return err
	}
	token := b.client.Publish(b.prefix+"/state", 0, true, payload)
	go b.awaitPublish(token)
	return nil
}

func (b *MQTTBus) awaitPublish(token mqtt.Token) {
	if !token.WaitTimeout(mqttTimeout) {
		b.log.Warn("Timed out publishing state")
		return
	}
	if err := token.Error(); err != nil {
		b.log.WithError(err).Warn("Failed to publish state")
	}
}

// Intents returns parsed commands
func (b *MQTTBus) Intents() <-chan bridge.Intent {
	return b.queue.ch
}

// Close disconnects from the broker
func (b *MQTTBus) Close() error {
	b.client.Disconnect(250)
	return nil
}
