// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"go.bug.st/serial"

	"github.com/Thermoquad/muart/pkg/muart"
)

// pipeConn joins two pipes into a ReadWriteCloser
type pipeConn struct {
	r *io.PipeReader
	w *io.PipeWriter
}

func (c *pipeConn) Read(p []byte) (int, error)  { return c.r.Read(p) }
func (c *pipeConn) Write(p []byte) (int, error) { return c.w.Write(p) }
func (c *pipeConn) Close() error {
	c.r.Close()
	return c.w.Close()
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// waitAvailable polls until n bytes are buffered
func waitAvailable(t *testing.T, p *Port, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for p.Available() < n {
		if time.Now().After(deadline) {
			t.Fatalf("Timed out waiting for %d bytes, have %d", n, p.Available())
		}
		time.Sleep(time.Millisecond)
	}
}

func TestPort_BuffersReads(t *testing.T) {
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	p := New("heatpump", &pipeConn{r: inR, w: outW}, quietLogger())
	defer p.Close()

	frame := muart.NewConnectRequest().Bytes()
	go inW.Write(frame)
	waitAvailable(t, p, len(frame))

	f, ok := muart.NewFrameReader(p).ReadFrame(false)
	if !ok || !bytes.Equal(f.Bytes(), frame) {
		t.Fatalf("Expected connect request from link, got %v %v", f, ok)
	}

	written := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 64)
		n, _ := outR.Read(buf)
		written <- buf[:n]
	}()
	if _, err := p.Write(frame); err != nil {
		t.Fatalf("Write error: %v", err)
	}
	if got := <-written; !bytes.Equal(got, frame) {
		t.Errorf("Transport got % X, want % X", got, frame)
	}
}

func TestPort_CloseStopsReader(t *testing.T) {
	inR, _ := io.Pipe()
	_, outW := io.Pipe()
	p := New("thermostat", &pipeConn{r: inR, w: outW}, quietLogger())

	if err := p.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	select {
	case <-p.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Reader did not stop after Close")
	}
	if _, err := p.Write([]byte{0x00}); !errors.Is(err, ErrClosed) {
		t.Errorf("Write after close: expected ErrClosed, got %v", err)
	}
	if p.Err() == nil {
		t.Error("Err() should report why the reader stopped")
	}
}

func TestSerialMode(t *testing.T) {
	mode := SerialMode(0)
	if mode.BaudRate != DefaultBaudRate || mode.DataBits != 8 ||
		mode.Parity != serial.EvenParity || mode.StopBits != serial.OneStopBit {
		t.Errorf("Unexpected serial mode: %+v", mode)
	}
	if SerialMode(9600).BaudRate != 9600 {
		t.Error("Explicit baud rate should be kept")
	}
}

func TestDialWebSocket_RejectsScheme(t *testing.T) {
	_, err := DialWebSocket(context.Background(), "http://example.com/serial", WebSocketOptions{})
	if err == nil || !strings.Contains(err.Error(), "unsupported URL scheme") {
		t.Errorf("Expected scheme error, got %v", err)
	}
}

func TestWebSocket_BinaryStream(t *testing.T) {
	upgrader := websocket.Upgrader{}
	frame := muart.NewGetRequest(muart.GetSettings).Bytes()
	echoed := make(chan []byte, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user, pass, ok := r.BasicAuth(); !ok || user != "admin" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		conn.WriteMessage(websocket.TextMessage, []byte("hello"))
		conn.WriteMessage(websocket.BinaryMessage, frame[:3])
		conn.WriteMessage(websocket.BinaryMessage, frame[3:])

		_, data, err := conn.ReadMessage()
		if err == nil {
			echoed <- data
		}
		// Hold the connection open until the client closes it
		conn.ReadMessage()
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	p, err := OpenWebSocket(context.Background(), "heatpump", wsURL,
		WebSocketOptions{Username: "admin", Password: "secret"}, quietLogger())
	if err != nil {
		t.Fatalf("OpenWebSocket error: %v", err)
	}
	defer p.Close()

	waitAvailable(t, p, len(frame))
	f, ok := muart.NewFrameReader(p).ReadFrame(false)
	if !ok || !bytes.Equal(f.Bytes(), frame) {
		t.Fatalf("Expected frame reassembled from two messages, got %v %v", f, ok)
	}

	reply := muart.NewConnectRequest().Bytes()
	if _, err := p.Write(reply); err != nil {
		t.Fatalf("Write error: %v", err)
	}
	select {
	case got := <-echoed:
		if !bytes.Equal(got, reply) {
			t.Errorf("Server got % X, want % X", got, reply)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Server did not receive the write")
	}

	if _, err := OpenWebSocket(context.Background(), "heatpump", wsURL, WebSocketOptions{}, quietLogger()); err == nil {
		t.Error("Expected unauthorized dial to fail")
	}
}
