// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package muart

import (
	"errors"
	"io"
	"sync"
)

// ErrNotBuffered is returned by Peek when fewer bytes are buffered than asked for
var ErrNotBuffered = errors.New("not enough buffered bytes")

// Stream is the non-blocking byte source the FrameReader scans.
// Peek never consumes; Read and ReadByte consume from the front.
type Stream interface {
	Available() int
	Peek(n int) ([]byte, error)
	ReadByte() (byte, error)
	Read(p []byte) (int, error)
}

// Buffer is a goroutine-safe byte FIFO implementing Stream.
// A transport feeds it from its own reader goroutine while the protocol
// side drains it without blocking.
type Buffer struct {
	mu   sync.Mutex
	data []byte
}

// NewBuffer creates a buffer pre-filled with data
func NewBuffer(data ...byte) *Buffer {
	b := &Buffer{}
	b.Feed(data)
	return b
}

// Feed appends bytes to the end of the buffer
func (b *Buffer) Feed(p []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = append(b.data, p...)
}

// Write implements io.Writer by feeding p
func (b *Buffer) Write(p []byte) (int, error) {
	b.Feed(p)
	return len(p), nil
}

// Available returns the number of unread bytes
func (b *Buffer) Available() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

// Peek returns a copy of the next n bytes without consuming them
func (b *Buffer) Peek(n int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n > len(b.data) {
		return nil, ErrNotBuffered
	}
	out := make([]byte, n)
	copy(out, b.data[:n])
	return out, nil
}

// ReadByte consumes one byte
func (b *Buffer) ReadByte() (byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.data) == 0 {
		return 0, io.EOF
	}
	c := b.data[0]
	b.data = b.data[1:]
	return c, nil
}

// Read consumes up to len(p) bytes
func (b *Buffer) Read(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.data) == 0 {
		return 0, io.EOF
	}
	n := copy(p, b.data)
	b.data = b.data[n:]
	if len(b.data) == 0 {
		// Release the backing array once drained
		b.data = nil
	}
	return n, nil
}
