// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.bug.st/serial"
)

// SupportedBaudRates lists the baud rates the ground segment runs at
var SupportedBaudRates = []int{9600, 115200}

// DefaultReadTimeout bounds a single serial read
const DefaultReadTimeout = time.Second

// Config describes a serial port to open
type Config struct {
	Port        string
	Baud        int
	ReadTimeout time.Duration // zero means DefaultReadTimeout
}

// ValidateBaud checks baud against SupportedBaudRates
func ValidateBaud(baud int) error {
	for _, b := range SupportedBaudRates {
		if b == baud {
			return nil
		}
	}
	return fmt.Errorf("%w: %d (supported: %v)", ErrUnsupportedBaud, baud, SupportedBaudRates)
}

// OpenSerial opens a serial port 8N1 with a fixed read timeout
func OpenSerial(cfg Config, log zerolog.Logger) (*Session, error) {
	if cfg.Port == "" {
		return nil, &ConnectionError{Op: "open", Port: cfg.Port, Err: fmt.Errorf("no port specified")}
	}
	if err := ValidateBaud(cfg.Baud); err != nil {
		return nil, &ConnectionError{Op: "open", Port: cfg.Port, Err: err}
	}
	timeout := cfg.ReadTimeout
	if timeout <= 0 {
		timeout = DefaultReadTimeout
	}

	mode := &serial.Mode{
		BaudRate: cfg.Baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(cfg.Port, mode)
	if err != nil {
		return nil, &ConnectionError{Op: "open", Port: cfg.Port, Err: err}
	}
	if err := port.SetReadTimeout(timeout); err != nil {
		port.Close()
		return nil, &ConnectionError{Op: "open", Port: cfg.Port, Err: err}
	}

	info := fmt.Sprintf("Serial: %s @ %d baud", cfg.Port, cfg.Baud)
	log.Debug().Str("port", cfg.Port).Int("baud", cfg.Baud).Dur("read_timeout", timeout).Msg("serial port opened")
	return New(cfg.Port, info, port, log), nil
}
