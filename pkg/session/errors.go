// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned by Read once the session has been closed
	ErrClosed = errors.New("session closed")

	// ErrNotOpen is wrapped in a ConnectionError when writing to a session
	// that is not open
	ErrNotOpen = errors.New("session not open")

	// ErrUnsupportedBaud is returned for a baud rate outside SupportedBaudRates
	ErrUnsupportedBaud = errors.New("unsupported baud rate")
)

// ConnectionError reports a failed open, read, write or close on a port
type ConnectionError struct {
	Op   string
	Port string
	Err  error
}

// Error implements the error interface
func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Port, e.Err)
}

// Unwrap returns the underlying error
func (e *ConnectionError) Unwrap() error {
	return e.Err
}
