// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package bridge sits between a heat pump and an optional thermostat. It
// drives the connect handshake and poll cycle on the heat pump link, decodes
// responses into DeviceState, and relays traffic between the two links.
//
// A Bridge is not safe for concurrent use. Poll, Loop, Handle and the intent
// methods must all be called from one goroutine; Run does this.
package bridge

import (
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Thermoquad/muart/pkg/muart"
	"github.com/Thermoquad/muart/pkg/prefs"
)

// Link is a byte stream endpoint. Reads never block; writes may.
type Link interface {
	muart.Stream
	io.Writer
}

// Publisher receives the device state whenever it changes
type Publisher interface {
	Publish(state DeviceState) error
}

// Frames reused by every poll cycle
var (
	connectRequest = muart.NewConnectRequest()
	pollSequence   = []*muart.Frame{
		muart.NewGetRequest(muart.GetRoomTemp),
		muart.NewGetRequest(muart.GetSettings),
		muart.NewGetRequest(muart.GetStatus),
		muart.NewGetRequest(muart.GetStandby),
	}
)

// Bridge owns the heat pump and thermostat links
type Bridge struct {
	cfg Config
	log logrus.FieldLogger

	heatPump   Link
	thermostat Link
	hpReader   *muart.FrameReader
	tsReader   *muart.FrameReader

	publisher Publisher
	prefs     prefs.Store

	now   func() time.Time
	sleep func(time.Duration)

	session   Session
	state     DeviceState
	published DeviceState
	hasPub    bool

	sources sourceTracker

	// waiting is set while SendAndWait reads a reply
	waiting bool
	// heard is set by any recognized response, cleared by Poll
	heard bool

	stats Statistics

	trace TraceFunc
}

// Direction tells a TraceFunc which way a frame went
type Direction int

// Directions
const (
	Received Direction = iota
	Sent
)

// String returns "RX" or "TX"
func (d Direction) String() string {
	if d == Sent {
		return "TX"
	}
	return "RX"
}

// TraceFunc observes every frame sent or received, on the bridge goroutine
type TraceFunc func(dir Direction, link string, f *muart.Frame)

// Option configures a Bridge
type Option func(*Bridge)

// WithLogger sets the logger
func WithLogger(log logrus.FieldLogger) Option {
	return func(b *Bridge) { b.log = log }
}

// WithPublisher sets where state changes are sent
func WithPublisher(p Publisher) Option {
	return func(b *Bridge) { b.publisher = p }
}

// WithPreferences sets the store used to persist the temperature source
func WithPreferences(s prefs.Store) Option {
	return func(b *Bridge) { b.prefs = s }
}

// WithClock replaces the clock and sleep used for response waits and
// source timeouts
func WithClock(now func() time.Time, sleep func(time.Duration)) Option {
	return func(b *Bridge) {
		b.now = now
		b.sleep = sleep
	}
}

// WithTrace sets a function called for every frame sent or received
func WithTrace(fn TraceFunc) Option {
	return func(b *Bridge) { b.trace = fn }
}

// New creates a bridge. heatPump is required; thermostat may be nil.
func New(heatPump, thermostat Link, cfg Config, opts ...Option) *Bridge {
	b := &Bridge{
		cfg:        cfg.withDefaults(),
		log:        logrus.StandardLogger(),
		heatPump:   heatPump,
		thermostat: thermostat,
		now:        time.Now,
		sleep:      time.Sleep,
		state:      NewDeviceState(),
	}
	for _, opt := range opts {
		opt(b)
	}

	readerOpts := []muart.ReaderOption{
		muart.WithReadTimeout(b.cfg.ResponseTimeout),
		muart.WithReadPause(b.cfg.ReadPause),
		muart.WithClock(b.now, b.sleep),
	}
	b.hpReader = muart.NewFrameReader(heatPump, readerOpts...)
	if thermostat != nil {
		b.tsReader = muart.NewFrameReader(thermostat, readerOpts...)
	}

	b.sources = newSourceTracker(b.cfg.TemperatureSources, b.now())
	b.stats.StartTime = b.now()

	if b.cfg.Forwarding && thermostat == nil {
		b.log.Info("Forwarding enabled without a thermostat link; heat pump traffic will not be relayed")
	}
	return b
}

// State returns the current device state
func (b *Bridge) State() DeviceState {
	return b.state
}

// Session returns the connection state machine
func (b *Bridge) Session() Session {
	return b.session
}

// Statistics returns a snapshot of the bridge counters
func (b *Bridge) Statistics() Statistics {
	s := b.stats
	s.NoiseBytes = b.hpReader.Discarded()
	if b.tsReader != nil {
		s.NoiseBytes += b.tsReader.Discarded()
	}
	return s
}

// Send writes a frame to link without waiting for a reply.
// It reports false when link is absent or the write fails.
func (b *Bridge) Send(link Link, f *muart.Frame) bool {
	if link == nil {
		return false
	}
	if _, err := link.Write(f.Bytes()); err != nil {
		b.log.WithFields(logrus.Fields{"link": b.linkName(link), "error": err}).
			Warn("Failed to write frame")
		return false
	}
	b.stats.FramesSent++
	b.log.WithFields(logrus.Fields{"link": b.linkName(link), "type": muart.FormatFrameName(f)}).
		Debugf("TX %s", f)
	if b.trace != nil {
		b.trace(Sent, b.linkName(link), f)
	}
	return true
}

// SendAndWait writes a frame to link and reads the reply from the same link,
// waiting up to the response timeout. The reply is dispatched through Handle.
// It reports whether a response with a valid checksum arrived.
//
// If called while another SendAndWait is waiting, the frame is sent without
// waiting.
func (b *Bridge) SendAndWait(link Link, f *muart.Frame) bool {
	reader, known := b.readerFor(link)
	if !known {
		return false
	}
	if !b.Send(link, f) {
		return false
	}
	if b.waiting {
		b.log.WithField("link", b.linkName(link)).Debug("Reply wait already in progress, not waiting")
		return false
	}

	b.waiting = true
	defer func() { b.waiting = false }()

	reply, ok := reader.ReadFrame(true)
	if !ok {
		b.log.WithFields(logrus.Fields{"link": b.linkName(link), "type": muart.FormatFrameName(f)}).
			Debug("No reply before timeout")
		return false
	}
	b.Handle(reply, link)
	return reply.IsChecksumValid() && reply.Type().IsResponse()
}

// Loop reads at most one frame from each link and dispatches it, then checks
// the temperature source timeout. It reports whether any frame was handled.
func (b *Bridge) Loop() bool {
	handled := false
	if f, ok := b.hpReader.ReadFrame(false); ok {
		b.Handle(f, b.heatPump)
		handled = true
	}
	if b.tsReader != nil {
		if f, ok := b.tsReader.ReadFrame(false); ok {
			b.Handle(f, b.thermostat)
			handled = true
		}
	}
	b.checkSourceTimeout()
	b.publish()
	return handled
}

// Poll runs one update cycle: a connect request while not connected,
// otherwise the get request sequence. In passive mode nothing is sent and
// liveness is judged from overheard responses.
func (b *Bridge) Poll() {
	b.stats.Polls++
	b.publish()

	if b.cfg.Passive {
		if b.heard {
			b.session.MissedPolls = 0
		} else if b.session.State == Connected {
			b.missedPoll()
		}
		b.heard = false
		return
	}
	b.heard = false

	if b.session.State != Connected {
		b.setConnection(Connecting)
		b.SendAndWait(b.heatPump, connectRequest)
		b.publish()
		return
	}

	reads := 0
	for _, f := range pollSequence {
		if b.SendAndWait(b.heatPump, f) {
			reads++
		}
	}
	if reads == 0 {
		b.missedPoll()
	} else {
		b.session.MissedPolls = 0
	}
	b.publish()
}

func (b *Bridge) missedPoll() {
	b.session.MissedPolls++
	b.stats.MissedPolls++
	if b.session.MissedPolls <= b.cfg.MaxMissedUpdates {
		return
	}
	b.log.WithField("missed", b.session.MissedPolls).Warn("Heat pump stopped responding")
	b.session.MissedPolls = 0
	b.stats.Reconnects++
	b.setConnection(Disconnected)
}

func (b *Bridge) setConnection(s ConnectionState) {
	if b.session.State == s {
		return
	}
	b.log.WithFields(logrus.Fields{"from": b.session.State, "to": s}).Info("Connection state changed")
	b.session.State = s
	b.state.Connection = s
}

// publish sends the state if it differs from what was last published
func (b *Bridge) publish() {
	if b.publisher == nil || (b.hasPub && b.state.Equal(b.published)) {
		return
	}
	if err := b.publisher.Publish(b.state); err != nil {
		b.log.WithError(err).Warn("Failed to publish state")
		return
	}
	b.published = b.state
	b.hasPub = true
}

// readerFor returns the reader of one of the bridge's own links. Absent and
// foreign links have none.
func (b *Bridge) readerFor(link Link) (*muart.FrameReader, bool) {
	switch {
	case link == nil:
		return nil, false
	case link == b.heatPump:
		return b.hpReader, true
	case link == b.thermostat && b.tsReader != nil:
		return b.tsReader, true
	}
	return nil, false
}

// otherLink returns the link a frame from origin should be relayed to
func (b *Bridge) otherLink(origin Link) Link {
	if origin == b.heatPump {
		return b.thermostat
	}
	return b.heatPump
}

func (b *Bridge) linkName(link Link) string {
	switch {
	case link == b.heatPump:
		return "heatpump"
	case link != nil && link == b.thermostat:
		return "thermostat"
	}
	return "unknown"
}
