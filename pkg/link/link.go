// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package link adapts blocking byte transports (serial ports, WebSocket
// bridges) into the non-blocking stream handle the bridge reads frames from.
package link

import (
	"errors"
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/Thermoquad/muart/pkg/muart"
)

// ErrClosed is returned by Write after the link has been closed
var ErrClosed = errors.New("link closed")

// Port buffers everything read from a transport on a background goroutine.
// Reads drain the buffer and never block; writes go straight to the transport.
type Port struct {
	name string
	conn io.ReadWriteCloser
	buf  *muart.Buffer
	log  logrus.FieldLogger

	writeMu sync.Mutex

	mu     sync.Mutex
	err    error
	closed bool
	done   chan struct{}
}

// New wraps conn and starts reading from it
func New(name string, conn io.ReadWriteCloser, log logrus.FieldLogger) *Port {
	if log == nil {
		log = logrus.StandardLogger()
	}
	p := &Port{
		name: name,
		conn: conn,
		buf:  muart.NewBuffer(),
		log:  log.WithField("link", name),
		done: make(chan struct{}),
	}
	go p.pump()
	return p
}

func (p *Port) pump() {
	defer close(p.done)
	chunk := make([]byte, 256)
	for {
		n, err := p.conn.Read(chunk)
		if n > 0 {
			p.buf.Feed(chunk[:n])
		}
		if err != nil {
			p.mu.Lock()
			closed := p.closed
			if p.err == nil {
				p.err = err
			}
			p.mu.Unlock()
			if !closed {
				p.log.WithError(err).Warn("Link read failed")
			}
			return
		}
	}
}

// Name returns the link name
func (p *Port) Name() string {
	return p.name
}

// Available implements muart.Stream
func (p *Port) Available() int {
	return p.buf.Available()
}

// Peek implements muart.Stream
func (p *Port) Peek(n int) ([]byte, error) {
	return p.buf.Peek(n)
}

// ReadByte implements muart.Stream
func (p *Port) ReadByte() (byte, error) {
	return p.buf.ReadByte()
}

// Read implements muart.Stream
func (p *Port) Read(b []byte) (int, error) {
	return p.buf.Read(b)
}

// Write sends bytes to the transport
func (p *Port) Write(b []byte) (int, error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return 0, ErrClosed
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	return p.conn.Write(b)
}

// Done is closed when the transport stops delivering data
func (p *Port) Done() <-chan struct{} {
	return p.done
}

// Err returns the error that stopped the reader, if any
func (p *Port) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Close closes the transport
func (p *Port) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()
	return p.conn.Close()
}
