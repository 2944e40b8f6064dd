// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Thermoquad/trackstation/pkg/capture"
	"github.com/Thermoquad/trackstation/pkg/config"
)

// ============================================================
// Test Helpers
// ============================================================

const frameChunk = "00 01 02 03 04 05 AB 07 08 09 0A 07"

// useTestConfig points appCfg at a temporary output directory
func useTestConfig(t *testing.T) string {
	t.Helper()
	saved := appCfg
	t.Cleanup(func() { appCfg = saved })

	dir := t.TempDir()
	appCfg = config.Default()
	appCfg.Output.Dir = dir
	return dir
}

func globOne(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(pattern)
	if err != nil {
		t.Fatalf("bad pattern: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected one file matching %s, got %v", pattern, matches)
	}
	return matches[0]
}

// ============================================================
// Text Pipeline Tests
// ============================================================

func TestRunTextPipeline_PrintsFrames(t *testing.T) {
	dir := useTestConfig(t)

	var out bytes.Buffer
	err := runTextPipeline(context.Background(), &out, textRun{
		source:     strings.NewReader(frameChunk),
		sourceName: "test",
		receiveLog: true,
		export:     "-",
		showChunks: true,
		plot:       true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	text := out.String()
	for _, want := range []string{
		"RX " + frameChunk,
		"FRAME #1 len=12",
		"Sample: 7 V",
		"=== Statistics (",
		"Receive log:",
		"Received data exported to",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("expected output to contain %q\n%s", want, text)
		}
	}

	logPath := globOne(t, filepath.Join(dir, "serial_log_*.txt"))
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("unexpected read error: %v", err)
	}
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header and one entry, got %q", lines)
	}
	if !strings.HasPrefix(lines[0], "Log started at ") {
		t.Errorf("unexpected header %q", lines[0])
	}
	if !strings.HasSuffix(lines[1], "] "+frameChunk) {
		t.Errorf("unexpected entry %q", lines[1])
	}

	globOne(t, filepath.Join(dir, "RECEIVED_*.xlsx"))
}

func TestRunTextPipeline_NoReceiveLogWhenDisabled(t *testing.T) {
	dir := useTestConfig(t)
	appCfg.Output.ReceiveLog = false

	var out bytes.Buffer
	if err := runTextPipeline(context.Background(), &out, textRun{
		source:     strings.NewReader(frameChunk),
		receiveLog: true,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	matches, _ := filepath.Glob(filepath.Join(dir, "serial_log_*.txt"))
	if len(matches) != 0 {
		t.Errorf("expected no receive log, got %v", matches)
	}
}

func TestRunTextPipeline_ExportWithoutData(t *testing.T) {
	useTestConfig(t)

	var out bytes.Buffer
	if err := runTextPipeline(context.Background(), &out, textRun{
		source: strings.NewReader(""),
		export: "-",
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out.String(), "Export failed: no received data to export") {
		t.Errorf("expected export failure, got:\n%s", out.String())
	}
}

func TestRunTextPipeline_CaptureAndReplay(t *testing.T) {
	dir := useTestConfig(t)
	capturePath := filepath.Join(dir, "pass.cbor")

	var out bytes.Buffer
	if err := runTextPipeline(context.Background(), &out, textRun{
		source:  strings.NewReader(frameChunk),
		capture: capturePath,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out.String(), "(1 chunks)") {
		t.Errorf("expected capture summary, got:\n%s", out.String())
	}

	r, err := capture.Open(capturePath)
	if err != nil {
		t.Fatalf("unexpected open error: %v", err)
	}
	src := capture.NewReplayer(r, false, 1)
	defer src.Close()

	out.Reset()
	if err := runTextPipeline(context.Background(), &out, textRun{
		source: src,
		closer: src,
	}); err != nil {
		t.Fatalf("unexpected replay error: %v", err)
	}
	if !strings.Contains(out.String(), "Sample: 7 V") {
		t.Errorf("expected replayed frame, got:\n%s", out.String())
	}
}

func TestRunTextPipeline_Cancel(t *testing.T) {
	useTestConfig(t)

	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		var out bytes.Buffer
		done <- runTextPipeline(ctx, &out, textRun{
			source: pr,
			closer: pr,
		})
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected clean shutdown, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline did not stop on cancel")
	}
}

// ============================================================
// History Tests
// ============================================================

func TestOpenHistory_CreatesWorkbook(t *testing.T) {
	dir := useTestConfig(t)

	h, err := openHistory("", time.Date(2025, 3, 1, 12, 30, 0, 0, time.Local))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.Path() != filepath.Join(dir, "TRACK_20250301_123000.xlsx") {
		t.Errorf("unexpected history path %s", h.Path())
	}
}

func TestOpenHistory_ConfiguredPath(t *testing.T) {
	dir := useTestConfig(t)
	appCfg.Output.HistoryFile = filepath.Join(dir, "ops.xlsx")

	h, err := openHistory("", time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.Path() != appCfg.Output.HistoryFile {
		t.Errorf("expected configured path, got %s", h.Path())
	}

	explicit := filepath.Join(dir, "flag.xlsx")
	h, err = openHistory(explicit, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.Path() != explicit {
		t.Errorf("expected flag path to win, got %s", h.Path())
	}
}
