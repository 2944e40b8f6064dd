// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		raw      string
		expected zerolog.Level
		ok       bool
	}{
		{"debug", zerolog.DebugLevel, true},
		{" WARN ", zerolog.WarnLevel, true},
		{"warning", zerolog.WarnLevel, true},
		{"off", zerolog.Disabled, true},
		{"", zerolog.InfoLevel, false},
		{"loud", zerolog.InfoLevel, false},
	}
	for _, tt := range tests {
		level, ok := ParseLevel(tt.raw)
		if level != tt.expected || ok != tt.ok {
			t.Errorf("ParseLevel(%q): expected (%v, %v), got (%v, %v)", tt.raw, tt.expected, tt.ok, level, ok)
		}
	}
}

func TestNew_LevelFilters(t *testing.T) {
	t.Setenv(EnvLogLevel, "")
	var buf bytes.Buffer
	log := New(&buf, Options{Level: "warn", NoColor: true})

	log.Info().Msg("hidden")
	log.Warn().Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("expected info to be filtered, got %q", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("expected warn to be written, got %q", out)
	}
}

func TestNew_EnvOverride(t *testing.T) {
	t.Setenv(EnvLogLevel, "debug")
	var buf bytes.Buffer
	log := New(&buf, Options{Level: "error", NoColor: true})

	log.Debug().Msg("verbose")
	if !strings.Contains(buf.String(), "verbose") {
		t.Errorf("expected env level to win, got %q", buf.String())
	}
}

func TestNewFile(t *testing.T) {
	t.Setenv(EnvLogLevel, "")
	path := filepath.Join(t.TempDir(), "debug.log")
	log, f, err := NewFile(path, Options{Level: "info"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	log.Info().Msg("to file")
	f.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("unexpected read error: %v", err)
	}
	if !strings.Contains(string(data), "to file") {
		t.Errorf("expected message in file, got %q", string(data))
	}
}
