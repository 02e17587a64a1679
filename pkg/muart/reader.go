// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package muart

import (
	"io"
	"time"
)

// Default FrameReader timing
const (
	DefaultReadTimeout = 300 * time.Millisecond
	DefaultReadPause   = 5 * time.Millisecond
)

// FrameReader recovers frames from a Stream that may hold noise, partial
// frames, or nothing at all.
//
// Leading bytes that are not the sync marker are discarded one at a time.
// A frame is consumed only once header, payload and checksum are all
// buffered; otherwise the stream is left untouched from the marker onward.
type FrameReader struct {
	stream  Stream
	timeout time.Duration
	pause   time.Duration
	now     func() time.Time
	sleep   func(time.Duration)

	discarded uint64
}

// ReaderOption configures a FrameReader
type ReaderOption func(*FrameReader)

// WithReadTimeout sets the overall wait bound for ReadFrame(true)
func WithReadTimeout(d time.Duration) ReaderOption {
	return func(r *FrameReader) { r.timeout = d }
}

// WithReadPause sets the pause between scans while waiting
func WithReadPause(d time.Duration) ReaderOption {
	return func(r *FrameReader) { r.pause = d }
}

// WithClock replaces the monotonic clock and sleep used while waiting
func WithClock(now func() time.Time, sleep func(time.Duration)) ReaderOption {
	return func(r *FrameReader) {
		r.now = now
		r.sleep = sleep
	}
}

// NewFrameReader creates a reader over stream
func NewFrameReader(stream Stream, opts ...ReaderOption) *FrameReader {
	r := &FrameReader{
		stream:  stream,
		timeout: DefaultReadTimeout,
		pause:   DefaultReadPause,
		now:     time.Now,
		sleep:   time.Sleep,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Discarded returns the total number of noise bytes skipped so far
func (r *FrameReader) Discarded() uint64 {
	return r.discarded
}

// ReadFrame returns the next complete frame. When wait is false it makes a
// single pass over what is buffered; when true it rescans until the read
// timeout elapses. The frame's checksum is not verified.
func (r *FrameReader) ReadFrame(wait bool) (*Frame, bool) {
	if !wait {
		return r.scan()
	}
	return r.ReadFrameBefore(r.now().Add(r.timeout))
}

// ReadFrameBefore rescans until a frame is found or deadline passes
func (r *FrameReader) ReadFrameBefore(deadline time.Time) (*Frame, bool) {
	for {
		if f, ok := r.scan(); ok {
			return f, true
		}
		if !r.now().Before(deadline) {
			return nil, false
		}
		r.sleep(r.pause)
	}
}

// scan discards noise up to the next marker and reads the frame behind it
// if it is fully buffered
func (r *FrameReader) scan() (*Frame, bool) {
	for r.stream.Available() > 0 {
		lead, err := r.stream.Peek(1)
		if err != nil {
			return nil, false
		}
		if lead[0] != SyncByte {
			r.skip()
			continue
		}

		header, err := r.stream.Peek(HeaderSize)
		if err != nil {
			// Marker seen, header not yet complete
			return nil, false
		}

		size := int(header[headerIndexPayloadSize])
		if size > MaxPayloadSize {
			// Marker byte was noise; move past it and keep scanning
			r.skip()
			continue
		}

		total := HeaderSize + size + ChecksumSize
		if r.stream.Available() < total {
			return nil, false
		}

		raw := make([]byte, total)
		if _, err := io.ReadFull(r.stream, raw); err != nil {
			return nil, false
		}
		f, err := DecodeFrame(raw[:HeaderSize], raw[HeaderSize:HeaderSize+size], raw[total-1])
		if err != nil {
			return nil, false
		}
		return f, true
	}
	return nil, false
}

func (r *FrameReader) skip() {
	if _, err := r.stream.ReadByte(); err == nil {
		r.discarded++
	}
}
