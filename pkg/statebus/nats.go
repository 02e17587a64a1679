// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package statebus

import (
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"github.com/Thermoquad/muart/pkg/bridge"
)

// NATSBus publishes state and subscribes to command subjects
type NATSBus struct {
	conn   *nats.Conn
	prefix string
	subs   []*nats.Subscription
	queue  intentQueue
	log    logrus.FieldLogger
}

// OpenNATS connects to a NATS server
func OpenNATS(natsURL, prefix string, log logrus.FieldLogger) (*NATSBus, error) {
	b := &NATSBus{
		prefix: subjectPrefix(prefix),
		queue:  newIntentQueue(log),
		log:    log.WithField("bus", "nats"),
	}

	conn, err := nats.Connect(natsURL, nats.Name("muart"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	b.conn = conn
	b.log.Info("Connected to NATS")

	for _, subject := range []string{b.prefix + ".set.*", b.prefix + ".report.*"} {
		sub, err := conn.Subscribe(subject, b.handleMessage)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to subscribe to %s: %w", subject, err)
		}
		b.subs = append(b.subs, sub)
	}
	return b, nil
}

// subjectPrefix converts a topic-style prefix to a NATS subject prefix
func subjectPrefix(prefix string) string {
	return strings.ReplaceAll(strings.Trim(prefix, "/"), "/", ".")
}

func (b *NATSBus) handleMessage(msg *nats.Msg) {
	parts := strings.Split(strings.TrimPrefix(msg.Subject, b.prefix+"."), ".")
	b.queue.deliver(parts, msg.Data)
}

// Publish implements bridge.Publisher
func (b *NATSBus) Publish(state bridge.DeviceState) error {
	payload, err := EncodeState(state)
	if err != nil {
		return err
	}
	return b.conn.Publish(b.prefix+".state", payload)
}

// Intents returns parsed commands
func (b *NATSBus) Intents() <-chan bridge.Intent {
	return b.queue.ch
}

// Close unsubscribes and closes the connection
func (b *NATSBus) Close() error {
	for _, sub := range b.subs {
		sub.Unsubscribe()
	}
	b.conn.Close()
	return nil
}
