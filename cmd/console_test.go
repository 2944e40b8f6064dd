// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Thermoquad/trackstation/pkg/command"
	"github.com/Thermoquad/trackstation/pkg/plot"
	"github.com/Thermoquad/trackstation/pkg/session"
	"github.com/Thermoquad/trackstation/pkg/telemetry"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
)

// ============================================================
// Test Helpers
// ============================================================

// stubPort is a transmit transport that records writes
type stubPort struct {
	mu       sync.Mutex
	written  bytes.Buffer
	writeErr error
}

func (p *stubPort) Read([]byte) (int, error) { return 0, io.EOF }

func (p *stubPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writeErr != nil {
		return 0, p.writeErr
	}
	return p.written.Write(b)
}

func (p *stubPort) Close() error { return nil }

func (p *stubPort) String() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written.String()
}

func newTestConsole(t *testing.T, tx *session.Session, headers []string, rows [][]string) consoleModel {
	t.Helper()
	dir := t.TempDir()
	history := command.NewHistory(filepath.Join(dir, "history.xlsx"))

	var port command.Port
	if tx != nil {
		port = tx
	}
	return initialConsoleModel(consoleDeps{
		tx:         tx,
		rx:         tx,
		sender:     command.NewSender(port, history, zerolog.Nop()),
		stats:      telemetry.NewStatistics(),
		chart:      plot.NewChart(40, 8, "test"),
		transcript: telemetry.NewTranscript(),
		headers:    headers,
		rows:       rows,
		outputDir:  dir,
		started:    time.Now(),
	})
}

func newStubSession(p *stubPort) *session.Session {
	return session.New("COM3", "Serial: COM3 @ 9600 baud", p, zerolog.Nop())
}

func key(t tea.KeyType) tea.KeyMsg {
	return tea.KeyMsg{Type: t}
}

func update(t *testing.T, m consoleModel, msg tea.Msg) (consoleModel, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	cm, ok := next.(consoleModel)
	if !ok {
		t.Fatalf("expected consoleModel, got %T", next)
	}
	return cm, cmd
}

func lastEvent(t *testing.T, m consoleModel) errorLogEntry {
	t.Helper()
	if len(m.errorLog) == 0 {
		t.Fatal("expected an event log entry")
	}
	return m.errorLog[len(m.errorLog)-1]
}

// ============================================================
// Command Entry Tests
// ============================================================

func TestConsole_SendNotConnected(t *testing.T) {
	m := newTestConsole(t, nil, nil, nil)
	m.input.SetValue("FA F3")

	m, cmd := update(t, m, key(tea.KeyEnter))
	if cmd != nil {
		t.Error("expected no send when not connected")
	}
	if ev := lastEvent(t, m); ev.message != msgNotConnected || !ev.isError {
		t.Errorf("unexpected event %+v", ev)
	}
}

func TestConsole_SendEmpty(t *testing.T) {
	m := newTestConsole(t, newStubSession(&stubPort{}), nil, nil)
	m.input.SetValue("   ")

	m, cmd := update(t, m, key(tea.KeyEnter))
	if cmd != nil {
		t.Error("expected no send for blank input")
	}
	if ev := lastEvent(t, m); ev.message != msgEmptyCommand {
		t.Errorf("expected %q, got %q", msgEmptyCommand, ev.message)
	}
}

func TestConsole_SendWritesAndRecords(t *testing.T) {
	port := &stubPort{}
	m := newTestConsole(t, newStubSession(port), nil, nil)
	m.input.SetValue("FA F3 20 56")

	m, cmd := update(t, m, key(tea.KeyEnter))
	if cmd == nil {
		t.Fatal("expected a send command")
	}
	if !m.sending {
		t.Error("expected sending flag while the write is in flight")
	}

	msg := cmd()
	sent, ok := msg.(sentMsg)
	if !ok {
		t.Fatalf("expected sentMsg, got %T", msg)
	}
	if sent.err != nil {
		t.Fatalf("unexpected send error: %v", sent.err)
	}
	if port.String() != "FA F3 20 56" {
		t.Errorf("expected raw command on the port, got %q", port.String())
	}

	m, _ = update(t, m, sent)
	if m.sending {
		t.Error("expected sending flag cleared")
	}
	if m.lastSent != "FA F3 20 56" || m.sentCount != 1 {
		t.Errorf("unexpected last sent %q / count %d", m.lastSent, m.sentCount)
	}
	if ev := lastEvent(t, m); ev.isError || !strings.Contains(ev.message, "Sent #1: FA F3 20 56 (count 1)") {
		t.Errorf("unexpected event %+v", ev)
	}
}

func TestConsole_SendFailureSetsStatus(t *testing.T) {
	port := &stubPort{writeErr: errors.New("device unplugged")}
	m := newTestConsole(t, newStubSession(port), nil, nil)
	m.input.SetValue("FA F3")

	m, cmd := update(t, m, key(tea.KeyEnter))
	m, _ = update(t, m, cmd())

	if m.statusLine != "Connection Failed" || !m.statusIsError {
		t.Errorf("expected failed status, got %q (error=%v)", m.statusLine, m.statusIsError)
	}
	if ev := lastEvent(t, m); !strings.HasPrefix(ev.message, "Failed to send data:") {
		t.Errorf("unexpected event %q", ev.message)
	}
	if m.sentCount != 0 {
		t.Error("failed send must not count")
	}
}

func TestConsole_PresetKey(t *testing.T) {
	m := newTestConsole(t, nil, nil, nil)
	m, _ = update(t, m, key(tea.KeyCtrlD))
	if m.input.Value() != command.PresetCommand {
		t.Errorf("expected preset in input, got %q", m.input.Value())
	}
}

func TestConsole_TableCopiesCell(t *testing.T) {
	headers := []string{"Name", "Command"}
	rows := [][]string{
		{"Ping", "AA BB"},
		{"Reset", "CC DD"},
	}
	m := newTestConsole(t, nil, headers, rows)

	m, _ = update(t, m, key(tea.KeyTab))
	if m.focused != focusTable {
		t.Fatal("expected table focus after tab")
	}
	m, _ = update(t, m, key(tea.KeyDown))
	m, _ = update(t, m, key(tea.KeyRight))
	if m.tableCol != 1 {
		t.Fatalf("expected column 1, got %d", m.tableCol)
	}
	m, _ = update(t, m, key(tea.KeyRight))
	if m.tableCol != 1 {
		t.Errorf("column must stay within the table, got %d", m.tableCol)
	}

	m, _ = update(t, m, key(tea.KeyEnter))
	if m.input.Value() != "CC DD" {
		t.Errorf("expected copied cell, got %q", m.input.Value())
	}
	if m.focused != focusInput {
		t.Error("expected focus back on the input after copying")
	}
}

func TestConsole_TabWithoutTable(t *testing.T) {
	m := newTestConsole(t, nil, nil, nil)
	m, _ = update(t, m, key(tea.KeyTab))
	if m.focused != focusInput {
		t.Error("focus must stay on the input without a command table")
	}
}

func TestConsole_CreateHistory(t *testing.T) {
	m := newTestConsole(t, nil, nil, nil)

	_, cmd := update(t, m, key(tea.KeyCtrlS))
	if cmd == nil {
		t.Fatal("expected history command")
	}
	created, ok := cmd().(historyCreatedMsg)
	if !ok {
		t.Fatal("expected historyCreatedMsg")
	}
	if created.err != nil {
		t.Fatalf("unexpected error: %v", created.err)
	}
	if filepath.Dir(created.path) != m.deps.outputDir {
		t.Errorf("expected workbook in %s, got %s", m.deps.outputDir, created.path)
	}
	if _, err := os.Stat(created.path); err != nil {
		t.Errorf("expected workbook on disk: %v", err)
	}
	if m.deps.sender.History().Path() != created.path {
		t.Error("expected history redirected to the new workbook")
	}

	m, _ = update(t, m, created)
	if ev := lastEvent(t, m); ev.isError {
		t.Errorf("unexpected error event %q", ev.message)
	}
}

func TestConsole_Quit(t *testing.T) {
	m := newTestConsole(t, nil, nil, nil)
	m, cmd := update(t, m, key(tea.KeyCtrlC))
	if !m.quitting || cmd == nil {
		t.Error("expected quit")
	}
	if m.View() != "Shutting down...\n" {
		t.Errorf("unexpected view %q", m.View())
	}
}

// ============================================================
// Receive Side Tests
// ============================================================

func TestConsole_Batch(t *testing.T) {
	m := newTestConsole(t, nil, nil, nil)
	m.deps.transcript.Append("00 01 02")

	m, _ = update(t, m, consoleBatchMsg{
		sample:    "7 V",
		hasSample: true,
		chunks:    1,
		events: []errorLogEntry{
			{timestamp: time.Now(), message: "Skipped malformed hex pair", isError: true},
		},
	})

	if m.latest != "7 V" {
		t.Errorf("expected latest sample, got %q", m.latest)
	}
	if len(m.received) != 1 || m.received[0] != "00 01 02" {
		t.Errorf("unexpected received tail %v", m.received)
	}
	if ev := lastEvent(t, m); !ev.isError {
		t.Error("expected error event from batch")
	}
}

func TestConsole_ReceiverStopped(t *testing.T) {
	m := newTestConsole(t, nil, nil, nil)

	m, _ = update(t, m, receiverStoppedMsg{err: errors.New("port vanished")})
	if m.statusLine != "Receive Error: port vanished" || !m.statusIsError {
		t.Errorf("unexpected status %q", m.statusLine)
	}

	m, _ = update(t, m, receiverStoppedMsg{})
	if ev := lastEvent(t, m); ev.message != "Receive port closed" {
		t.Errorf("unexpected event %q", ev.message)
	}
}

func TestConsole_EventLogBounded(t *testing.T) {
	m := newTestConsole(t, nil, nil, nil)
	for i := 0; i < maxLogEntries+50; i++ {
		m.addLogEntry("event", false)
	}
	if len(m.errorLog) != maxLogEntries {
		t.Errorf("expected %d entries, got %d", maxLogEntries, len(m.errorLog))
	}
}

func TestConsole_View(t *testing.T) {
	m := newTestConsole(t, newStubSession(&stubPort{}), []string{"Command"}, [][]string{{"AA"}})
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})

	view := m.View()
	for _, want := range []string{"TRACKSTATION", "Status:", "Connected to COM3", "PLOT", "COMMANDS", "EVENTS"} {
		if !strings.Contains(view, want) {
			t.Errorf("expected view to contain %q", want)
		}
	}
}

// ============================================================
// Bridge Tests
// ============================================================

func TestUIBridge_Drain(t *testing.T) {
	b := newUIBridge()

	b.ShowSample("3 V")
	b.ShowSample("9 V")
	b.Report("one", false)
	b.Report("two", true)
	b.chunk(telemetry.CycleResult{})
	b.chunk(telemetry.CycleResult{})

	batch := b.drain()
	if !batch.hasSample || batch.sample != "9 V" {
		t.Errorf("expected latest sample only, got %+v", batch)
	}
	if batch.chunks != 2 {
		t.Errorf("expected 2 chunks, got %d", batch.chunks)
	}
	if len(batch.events) != 2 || batch.events[1].message != "two" || !batch.events[1].isError {
		t.Errorf("unexpected events %+v", batch.events)
	}

	empty := b.drain()
	if empty.hasSample || empty.chunks != 0 || len(empty.events) != 0 {
		t.Errorf("expected empty second drain, got %+v", empty)
	}
}

func TestUIBridge_ReportDropsWhenFull(t *testing.T) {
	b := newUIBridge()
	for i := 0; i < 150; i++ {
		b.Report("flood", true)
	}
	if n := len(b.drain().events); n != 100 {
		t.Errorf("expected queue capacity of events, got %d", n)
	}
}

func TestUIBridge_SendAfterStop(t *testing.T) {
	b := newUIBridge()
	b.stop()
	b.stop()
	// no program attached and stopped: must not block or panic
	b.send(receiverStoppedMsg{})
}

// ============================================================
// Helper Tests
// ============================================================

func TestConnectionStatus(t *testing.T) {
	tx := session.New("COM3", "", &stubPort{}, zerolog.Nop())
	rx := session.New("COM4", "", &stubPort{}, zerolog.Nop())

	tests := []struct {
		name   string
		tx, rx *session.Session
		want   string
	}{
		{"none", nil, nil, "Not Connected"},
		{"shared", tx, tx, "Connected to COM3"},
		{"receive only", nil, rx, "Connected to Receive Port COM4"},
		{"split", tx, rx, "Connected to COM3, Receive Port COM4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := connectionStatus(tt.tx, tt.rx); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestFormatUptime(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0s"},
		{1500 * time.Millisecond, "1s"},
		{61 * time.Second, "1m 01s"},
		{time.Hour + 2*time.Minute + 3*time.Second, "1h 02m 03s"},
	}
	for _, tt := range tests {
		if got := formatUptime(tt.d); got != tt.want {
			t.Errorf("formatUptime(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
