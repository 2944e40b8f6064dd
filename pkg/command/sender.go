// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package command sends operator commands to the transmit port and keeps
// their history
package command

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Thermoquad/trackstation/pkg/export"
	"github.com/Thermoquad/trackstation/pkg/session"
	"github.com/rs/zerolog"
)

// PresetCommand is the default command offered to the operator
const PresetCommand = "FA F3 20 56 00 00 00 00 00 00 00 00 00 00 00 00 00 00 00 00 00 00 E7 49"

// ErrEmptyCommand is returned when the command text is blank
var ErrEmptyCommand = errors.New("command is empty")

// Port is the transmit side of a session
type Port interface {
	WriteString(cmd string) (int, error)
	IsOpen() bool
	Name() string
}

// Sender writes commands to a transmit port and records them in a history
type Sender struct {
	port    Port
	history *History
	log     zerolog.Logger
	now     func() time.Time
}

// NewSender creates a sender. A nil history keeps rows in memory only.
func NewSender(port Port, history *History, log zerolog.Logger) *Sender {
	if history == nil {
		history = NewHistory("")
	}
	return &Sender{
		port:    port,
		history: history,
		log:     log,
		now:     time.Now,
	}
}

// History returns the command history
func (s *Sender) History() *History {
	return s.history
}

// Send writes text to the port as raw ASCII and records it. A write failure
// returns a session.ConnectionError and nothing is recorded. A history save
// failure returns the recorded row together with an export.IOError.
func (s *Sender) Send(text string) (export.HistoryRow, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return export.HistoryRow{}, ErrEmptyCommand
	}
	if s.port == nil || !s.port.IsOpen() {
		name := ""
		if s.port != nil {
			name = s.port.Name()
		}
		return export.HistoryRow{}, &session.ConnectionError{Op: "write", Port: name, Err: session.ErrNotOpen}
	}

	if _, err := s.port.WriteString(text); err != nil {
		s.log.Error().Err(err).Str("command", text).Msg("command write failed")
		return export.HistoryRow{}, err
	}

	row, err := s.history.Record(text, s.now())
	if err != nil {
		s.log.Warn().Err(err).Int("serial", row.Serial).Msg("history save failed, row kept in memory")
		return row, fmt.Errorf("command sent but history not saved: %w", err)
	}
	s.log.Debug().Int("serial", row.Serial).Int("count", row.Count).Str("command", text).Msg("command sent")
	return row, nil
}
