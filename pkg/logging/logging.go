// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package logging builds the zerolog diagnostics logger. Operator-facing
// output stays on stdout/the TUI; diagnostics go wherever the logger points.
package logging

import (
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	EnvLogLevel   = "TRACKSTATION_LOG_LEVEL"
	EnvLogNoColor = "TRACKSTATION_LOG_NOCOLOR"
)

// Options configures a diagnostics logger
type Options struct {
	Level   string // trace, debug, info, warn, error, off
	NoColor bool
}

// New returns a console-formatted logger writing to w. Environment variables
// override opts.
func New(w io.Writer, opts Options) zerolog.Logger {
	applyEnvOverrides(&opts)

	level, ok := ParseLevel(opts.Level)
	if !ok {
		level = zerolog.InfoLevel
	}

	output := zerolog.ConsoleWriter{
		Out:        w,
		NoColor:    opts.NoColor,
		TimeFormat: time.RFC3339,
	}
	return zerolog.New(output).Level(level).With().Timestamp().Str("app", "trackstation").Logger()
}

// NewFile returns a logger appending plain text to path, for TUI sessions
// where stderr belongs to the terminal. The caller closes the returned file.
func NewFile(path string, opts Options) (zerolog.Logger, *os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return zerolog.Nop(), nil, err
	}
	opts.NoColor = true
	return New(f, opts), f, nil
}

// ParseLevel maps a level name to a zerolog level. The second result is false
// for an empty or unknown name.
func ParseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return zerolog.InfoLevel, false
	case "trace":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "off", "none":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}

func applyEnvOverrides(opts *Options) {
	if raw := os.Getenv(EnvLogLevel); raw != "" {
		if _, ok := ParseLevel(raw); ok {
			opts.Level = raw
		}
	}
	if v, ok := parseBool(os.Getenv(EnvLogNoColor)); ok {
		opts.NoColor = v
	}
}

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
