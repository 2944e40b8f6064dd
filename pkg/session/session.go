// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import (
	"io"
	"sync"

	"github.com/rs/zerolog"
)

// Transport is the byte stream underneath a session: a serial port, a
// WebSocket, a capture replay or a test fake
type Transport interface {
	io.Reader
	io.Writer
	io.Closer
}

// State is the lifecycle state of a session
type State int

const (
	StateClosed State = iota
	StateOpen
	StateFailed
)

// String returns the state name
func (s State) String() string {
	switch s {
	case StateClosed:
		return "Closed"
	case StateOpen:
		return "Open"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Session owns one open transport. Reads come from a single receive loop;
// writes may come from any goroutine and are serialized.
type Session struct {
	name string
	info string
	t    Transport
	log  zerolog.Logger

	mu      sync.Mutex
	state   State
	err     error
	tclosed bool

	wmu sync.Mutex
}

// New wraps an already open transport in an Open session. name identifies the
// port in errors, info is shown to the operator.
func New(name, info string, t Transport, log zerolog.Logger) *Session {
	return &Session{
		name:  name,
		info:  info,
		t:     t,
		log:   log.With().Str("port", name).Logger(),
		state: StateOpen,
	}
}

// Name returns the port identifier
func (s *Session) Name() string {
	return s.name
}

// Info returns a human readable description, e.g. "Serial: COM3 @ 9600 baud"
func (s *Session) Info() string {
	return s.info
}

// State returns the current state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsOpen reports whether the session accepts reads and writes
func (s *Session) IsOpen() bool {
	return s.State() == StateOpen
}

// Err returns the error that moved the session to Failed
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Read reads one chunk from the transport. A serial read timeout returns
// 0, nil. After Close it returns ErrClosed; a transport failure moves the
// session to Failed and every later call returns the same ConnectionError.
func (s *Session) Read(p []byte) (int, error) {
	if err := s.readable(); err != nil {
		return 0, err
	}

	n, err := s.t.Read(p)
	if err == nil {
		return n, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateClosed:
		// Close unblocked the read
		return n, ErrClosed
	case StateFailed:
		return n, s.err
	}
	s.fail("read", err)
	return n, s.err
}

// Write writes p to the transport as one call
func (s *Session) Write(p []byte) (int, error) {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	s.mu.Lock()
	if s.state != StateOpen {
		err := s.err
		if s.state == StateClosed || err == nil {
			err = &ConnectionError{Op: "write", Port: s.name, Err: ErrNotOpen}
		}
		s.mu.Unlock()
		return 0, err
	}
	s.mu.Unlock()

	n, err := s.t.Write(p)
	if err != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.state == StateOpen {
			s.fail("write", err)
			return n, s.err
		}
		return n, &ConnectionError{Op: "write", Port: s.name, Err: err}
	}
	return n, nil
}

// WriteString writes a text command as raw ASCII bytes
func (s *Session) WriteString(cmd string) (int, error) {
	return s.Write([]byte(cmd))
}

// Close closes the transport. Closing a Failed session releases the transport
// and leaves the state at Failed.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.tclosed {
		s.mu.Unlock()
		return nil
	}
	s.tclosed = true
	if s.state == StateOpen {
		s.state = StateClosed
	}
	s.mu.Unlock()

	s.log.Debug().Msg("closing session")
	if err := s.t.Close(); err != nil {
		return &ConnectionError{Op: "close", Port: s.name, Err: err}
	}
	return nil
}

func (s *Session) readable() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateClosed:
		return ErrClosed
	case StateFailed:
		return s.err
	}
	return nil
}

// fail must be called with mu held
func (s *Session) fail(op string, err error) {
	s.state = StateFailed
	s.err = &ConnectionError{Op: op, Port: s.name, Err: err}
	s.log.Error().Err(err).Str("op", op).Msg("session failed")
}
