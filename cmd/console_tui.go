// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Thermoquad/trackstation/pkg/command"
	"github.com/Thermoquad/trackstation/pkg/export"
	"github.com/Thermoquad/trackstation/pkg/plot"
	"github.com/Thermoquad/trackstation/pkg/session"
	"github.com/Thermoquad/trackstation/pkg/telemetry"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

//////////////////////////////////////////////////////////////
// Constants
//////////////////////////////////////////////////////////////

const (
	msgNotConnected = "No COM port connected."
	msgEmptyCommand = "Please enter a command to send."

	maxLogEntries   = 100
	eventLogHeight  = 8
	receivedHeight  = 6
	tableHeight     = 6
	tableCellWidth  = 24
	minPanelWidth   = 20
	sampleBoxWidth  = 24
	commandMaxChars = 256
)

// Focus states
const (
	focusInput = iota
	focusTable
)

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// errorLogEntry is one line of the event log
type errorLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for notices
}

// consoleDeps is everything the console model works with
type consoleDeps struct {
	tx         *session.Session // nil when only a receive port is open
	rx         *session.Session
	sender     *command.Sender
	stats      *telemetry.Statistics
	chart      *plot.Chart
	transcript *telemetry.Transcript
	export     func(now time.Time) (string, error)
	headers    []string
	rows       [][]string
	outputDir  string
	started    time.Time
}

// consoleModel is the Bubble Tea model for the console TUI
type consoleModel struct {
	deps consoleDeps

	// Command entry
	input     textinput.Model
	table     table.Model
	hasTable  bool
	tableCol  int
	focused   int
	sending   bool
	lastSent  string
	sentCount int

	// Telemetry
	latest   string
	received []string

	// Status
	statusLine    string
	statusIsError bool
	errorLog      []errorLogEntry

	// UI state
	width    int
	height   int
	quitting bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type consoleTickMsg time.Time

type consoleBatchMsg struct {
	sample    string
	hasSample bool
	chunks    int
	events    []errorLogEntry
}

type sentMsg struct {
	text string
	row  export.HistoryRow
	err  error
}

type historyCreatedMsg struct {
	path string
	err  error
}

type receivedExportMsg struct {
	path string
	err  error
}

type receiverStoppedMsg struct {
	err error
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialConsoleModel(deps consoleDeps) consoleModel {
	ti := textinput.New()
	ti.Placeholder = command.PresetCommand
	ti.CharLimit = commandMaxChars
	ti.Width = 72
	ti.Prompt = "> "
	ti.Focus()

	m := consoleModel{
		deps:     deps,
		input:    ti,
		focused:  focusInput,
		latest:   "--",
		errorLog: make([]errorLogEntry, 0),
		width:    80,
		height:   24,
	}

	if len(deps.headers) > 0 {
		m.table = newCommandTable(deps.headers, deps.rows)
		m.hasTable = true
	}

	m.statusLine = connectionStatus(deps.tx, deps.rx)
	return m
}

// newCommandTable builds the command table from a loaded workbook
func newCommandTable(headers []string, rows [][]string) table.Model {
	columns := make([]table.Column, len(headers))
	for i, h := range headers {
		columns[i] = table.Column{Title: h, Width: tableCellWidth}
	}
	tableRows := make([]table.Row, len(rows))
	for i, r := range rows {
		tableRows[i] = table.Row(r)
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithRows(tableRows),
		table.WithHeight(tableHeight),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Bold(true)
	t.SetStyles(s)
	return t
}

// connectionStatus describes the open ports for the status line
func connectionStatus(tx, rx *session.Session) string {
	switch {
	case tx == nil && rx == nil:
		return "Not Connected"
	case tx == nil:
		return fmt.Sprintf("Connected to Receive Port %s", rx.Name())
	case rx == nil || rx == tx:
		return fmt.Sprintf("Connected to %s", tx.Name())
	default:
		return fmt.Sprintf("Connected to %s, Receive Port %s", tx.Name(), rx.Name())
	}
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m consoleModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, consoleTickCmd())
}

func consoleTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return consoleTickMsg(t)
	})
}

func (m consoleModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeChart()
		return m, nil

	case consoleTickMsg:
		return m, consoleTickCmd()

	case consoleBatchMsg:
		if msg.hasSample {
			m.latest = msg.sample
		}
		for _, ev := range msg.events {
			m.appendLogEntry(ev)
		}
		if msg.chunks > 0 && m.deps.transcript != nil {
			m.received = m.deps.transcript.Tail(receivedHeight)
		}
		return m, nil

	case sentMsg:
		m.sending = false
		m.handleSent(msg)
		return m, nil

	case historyCreatedMsg:
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("Failed to create history file: %v", msg.err), true)
			return m, nil
		}
		m.addLogEntry(fmt.Sprintf("History file initialized: %s", msg.path), false)
		return m, nil

	case receivedExportMsg:
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("Failed to save data: %v", msg.err), true)
			return m, nil
		}
		m.addLogEntry(fmt.Sprintf("Received data saved to %s", msg.path), false)
		return m, nil

	case receiverStoppedMsg:
		if msg.err != nil {
			m.setStatus(fmt.Sprintf("Receive Error: %v", msg.err), true)
		} else {
			m.addLogEntry("Receive port closed", false)
		}
		return m, nil
	}

	// Pass through to focused component (cursor blink)
	var cmd tea.Cmd
	if m.focused == focusInput {
		m.input, cmd = m.input.Update(msg)
	}
	return m, cmd
}

func (m consoleModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		m.quitting = true
		return m, tea.Quit

	case "tab", "shift+tab":
		m.toggleFocus()
		return m, nil

	case "enter":
		if m.focused == focusTable {
			m.copySelectedCell()
			return m, nil
		}
		return m.sendCommand()

	case "ctrl+d":
		m.input.SetValue(command.PresetCommand)
		m.input.CursorEnd()
		return m, nil

	case "ctrl+s":
		return m, m.createHistoryCmd()

	case "ctrl+e":
		return m, m.exportReceivedCmd()
	}

	if m.focused == focusTable {
		switch msg.String() {
		case "left", "h":
			if m.tableCol > 0 {
				m.tableCol--
			}
			return m, nil
		case "right", "l":
			if m.tableCol < len(m.deps.headers)-1 {
				m.tableCol++
			}
			return m, nil
		}
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *consoleModel) toggleFocus() {
	if !m.hasTable {
		return
	}
	if m.focused == focusInput {
		m.focused = focusTable
		m.input.Blur()
		m.table.Focus()
		return
	}
	m.focused = focusInput
	m.table.Blur()
	m.input.Focus()
}

// copySelectedCell puts the selected table cell into the command input
func (m *consoleModel) copySelectedCell() {
	row := m.table.SelectedRow()
	if row == nil || m.tableCol >= len(row) {
		return
	}
	m.input.SetValue(row[m.tableCol])
	m.input.CursorEnd()
	m.toggleFocus()
}

// sendCommand validates the input and writes it off the update loop
func (m consoleModel) sendCommand() (tea.Model, tea.Cmd) {
	if m.deps.tx == nil || !m.deps.tx.IsOpen() {
		m.addLogEntry(msgNotConnected, true)
		return m, nil
	}
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		m.addLogEntry(msgEmptyCommand, true)
		return m, nil
	}
	if m.sending {
		return m, nil
	}
	m.sending = true

	sender := m.deps.sender
	return m, func() tea.Msg {
		row, err := sender.Send(text)
		return sentMsg{text: text, row: row, err: err}
	}
}

func (m *consoleModel) handleSent(msg sentMsg) {
	var ioErr *export.IOError
	switch {
	case msg.err == nil:
	case errors.As(msg.err, &ioErr):
		m.addLogEntry(fmt.Sprintf("History not saved: %v", msg.err), true)
	case errors.Is(msg.err, command.ErrEmptyCommand):
		m.addLogEntry(msgEmptyCommand, true)
		return
	default:
		if m.deps.tx != nil && m.deps.tx.State() == session.StateFailed {
			m.setStatus("Connection Failed", true)
		}
		m.addLogEntry(fmt.Sprintf("Failed to send data: %v", msg.err), true)
		return
	}

	m.lastSent = msg.row.SentData
	m.sentCount++
	m.addLogEntry(fmt.Sprintf("Sent #%d: %s (count %d)", msg.row.Serial, msg.row.SentData, msg.row.Count), false)
}

func (m consoleModel) createHistoryCmd() tea.Cmd {
	history := m.deps.sender.History()
	dir := m.deps.outputDir
	return func() tea.Msg {
		path, err := export.CreateHistory(dir, time.Now())
		if err == nil {
			err = history.SetPath(path)
		}
		return historyCreatedMsg{path: path, err: err}
	}
}

func (m consoleModel) exportReceivedCmd() tea.Cmd {
	exportFn := m.deps.export
	if exportFn == nil {
		return nil
	}
	return func() tea.Msg {
		path, err := exportFn(time.Now())
		return receivedExportMsg{path: path, err: err}
	}
}

func (m *consoleModel) resizeChart() {
	if m.deps.chart == nil {
		return
	}
	width := m.width - sampleBoxWidth - 20
	if width < minPanelWidth {
		width = minPanelWidth
	}
	m.deps.chart.Resize(width, -1)
}

//////////////////////////////////////////////////////////////
// View
//////////////////////////////////////////////////////////////

// consoleStyles are the lipgloss styles shared by the view helpers
type consoleStyles struct {
	title      lipgloss.Style
	header     lipgloss.Style
	statsLabel lipgloss.Style
	statsValue lipgloss.Style
	err        lipgloss.Style
	warning    lipgloss.Style
	box        lipgloss.Style
	focusedBox lipgloss.Style
	sample     lipgloss.Style
}

func newConsoleStyles() consoleStyles {
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	return consoleStyles{
		title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			Background(lipgloss.Color("235")).
			Padding(0, 1),
		header: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")),
		statsLabel: lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")).
			Bold(true),
		statsValue: lipgloss.NewStyle().
			Foreground(lipgloss.Color("10")),
		err: lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true),
		warning: lipgloss.NewStyle().
			Foreground(lipgloss.Color("11")),
		box:        box,
		focusedBox: box.BorderForeground(lipgloss.Color("12")),
		sample: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("10")),
	}
}

func (m consoleModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	st := newConsoleStyles()
	var s strings.Builder

	// Header
	s.WriteString(st.title.Render("TRACKSTATION"))
	s.WriteString(" ")
	s.WriteString(st.header.Render(fmt.Sprintf("| %s | ctrl+c=quit tab=switch ctrl+d=preset ctrl+s=new history ctrl+e=export", m.linkInfo())))
	s.WriteString("\n")

	// Status line
	status := st.statsValue.Render(m.statusLine)
	if m.statusIsError {
		status = st.err.Render(m.statusLine)
	}
	s.WriteString(fmt.Sprintf(" %s %s", st.statsLabel.Render("Status:"), status))
	s.WriteString("\n\n")

	// Plot | latest sample
	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, m.renderPlot(st), " ", m.renderLatest(st)))
	s.WriteString("\n")

	// Command table
	if m.hasTable {
		s.WriteString(m.renderTable(st))
		s.WriteString("\n")
	}

	// Command input
	s.WriteString(m.renderInput(st))
	s.WriteString("\n")

	// Received text
	s.WriteString(m.renderReceived(st))
	s.WriteString("\n")

	// Statistics bar
	s.WriteString(m.renderStatisticsBar(st))
	s.WriteString("\n")

	// Event log
	s.WriteString(m.renderEventLog(st))

	return s.String()
}

//////////////////////////////////////////////////////////////
// View Helpers
//////////////////////////////////////////////////////////////

func (m consoleModel) linkInfo() string {
	var parts []string
	if m.deps.tx != nil {
		parts = append(parts, "TX "+m.deps.tx.Info())
	}
	if m.deps.rx != nil && m.deps.rx != m.deps.tx {
		parts = append(parts, "RX "+m.deps.rx.Info())
	}
	if len(parts) == 0 {
		return "no connection"
	}
	return strings.Join(parts, " | ")
}

func (m consoleModel) contentWidth() int {
	w := m.width - 4
	if w < minPanelWidth {
		w = minPanelWidth
	}
	return w
}

func (m consoleModel) renderPlot(st consoleStyles) string {
	var content strings.Builder
	content.WriteString(st.statsLabel.Render("PLOT"))
	content.WriteString("\n")
	if m.deps.chart != nil {
		content.WriteString(m.deps.chart.View())
	}
	width := m.contentWidth() - sampleBoxWidth - 3
	if width < minPanelWidth {
		width = minPanelWidth
	}
	return st.box.Width(width).Render(content.String())
}

func (m consoleModel) renderLatest(st consoleStyles) string {
	var content strings.Builder
	content.WriteString(st.statsLabel.Render("LATEST"))
	content.WriteString("\n\n")
	content.WriteString(st.sample.Render(m.latest))
	content.WriteString("\n\n")
	if m.deps.stats != nil {
		snap := m.deps.stats.Snapshot()
		content.WriteString(fmt.Sprintf("%s %s",
			st.statsLabel.Render("Samples:"),
			st.statsValue.Render(fmt.Sprintf("%d", snap.Samples))))
	}
	return st.box.Width(sampleBoxWidth).Render(content.String())
}

func (m consoleModel) renderTable(st consoleStyles) string {
	var content strings.Builder
	content.WriteString(st.statsLabel.Render("COMMANDS"))
	if m.tableCol < len(m.deps.headers) {
		content.WriteString(st.header.Render(fmt.Sprintf("  copy column: %s", m.deps.headers[m.tableCol])))
	}
	content.WriteString("\n")
	content.WriteString(m.table.View())

	style := st.box
	if m.focused == focusTable {
		style = st.focusedBox
	}
	return style.Width(m.contentWidth()).Render(content.String())
}

func (m consoleModel) renderInput(st consoleStyles) string {
	var content strings.Builder
	content.WriteString(st.statsLabel.Render("COMMAND"))
	if m.sending {
		content.WriteString(st.warning.Render("  sending..."))
	} else if m.lastSent != "" {
		content.WriteString(st.header.Render(fmt.Sprintf("  last: %s", m.lastSent)))
	}
	content.WriteString("\n")
	content.WriteString(m.input.View())

	style := st.box
	if m.focused == focusInput {
		style = st.focusedBox
	}
	return style.Width(m.contentWidth()).Render(content.String())
}

func (m consoleModel) renderReceived(st consoleStyles) string {
	var content strings.Builder
	content.WriteString(st.statsLabel.Render("RECEIVED"))
	content.WriteString("\n")
	if len(m.received) == 0 {
		content.WriteString(st.header.Render("  (nothing received yet)"))
	} else {
		content.WriteString(strings.Join(m.received, "\n"))
	}
	return st.box.Width(m.contentWidth()).Render(content.String())
}

func (m consoleModel) renderStatisticsBar(st consoleStyles) string {
	if m.deps.stats == nil {
		return ""
	}
	snap := m.deps.stats.Snapshot()

	faults := st.statsValue.Render("0")
	if n := snap.TotalFaults(); n > 0 {
		faults = st.err.Render(fmt.Sprintf("%d", n))
	}

	content := fmt.Sprintf("%s %s  %s %s  %s %s  %s %s  %s %s  %s %s",
		st.statsLabel.Render("Chunks:"), st.statsValue.Render(fmt.Sprintf("%d", snap.Chunks)),
		st.statsLabel.Render("Frames:"), st.statsValue.Render(fmt.Sprintf("%d", snap.Frames)),
		st.statsLabel.Render("Faults:"), faults,
		st.statsLabel.Render("Rate:"), st.statsValue.Render(fmt.Sprintf("%.1f chunk/s", snap.ChunkRate)),
		st.statsLabel.Render("Sent:"), st.statsValue.Render(fmt.Sprintf("%d", m.sentCount)),
		st.statsLabel.Render("Uptime:"), st.statsValue.Render(formatUptime(time.Since(m.deps.started))),
	)
	return st.box.Width(m.contentWidth()).Render(content)
}

func (m consoleModel) renderEventLog(st consoleStyles) string {
	var s strings.Builder
	s.WriteString(st.statsLabel.Render("EVENTS"))
	s.WriteString("\n")

	if len(m.errorLog) == 0 {
		s.WriteString(st.header.Render("  (no events yet)"))
		return st.box.Width(m.contentWidth()).Render(s.String())
	}

	startIdx := len(m.errorLog) - eventLogHeight
	if startIdx < 0 {
		startIdx = 0
	}
	for i := startIdx; i < len(m.errorLog); i++ {
		entry := m.errorLog[i]
		icon := "i"
		style := st.warning
		if entry.isError {
			icon = "x"
			style = st.err
		}
		s.WriteString(fmt.Sprintf("%s %s %s\n",
			st.header.Render(entry.timestamp.Format("15:04:05.000")),
			style.Render(icon),
			entry.message))
	}
	return st.box.Width(m.contentWidth()).Render(s.String())
}

//////////////////////////////////////////////////////////////
// Helpers
//////////////////////////////////////////////////////////////

func (m *consoleModel) addLogEntry(message string, isError bool) {
	m.appendLogEntry(errorLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})
}

func (m *consoleModel) appendLogEntry(entry errorLogEntry) {
	m.errorLog = append(m.errorLog, entry)
	if len(m.errorLog) > maxLogEntries {
		m.errorLog = m.errorLog[len(m.errorLog)-maxLogEntries:]
	}
}

func (m *consoleModel) setStatus(message string, isError bool) {
	m.statusLine = message
	m.statusIsError = isError
	m.addLogEntry(message, isError)
}

// formatUptime formats a duration as "1h 02m 03s"
func formatUptime(d time.Duration) string {
	d = d.Truncate(time.Second)
	h := int(d / time.Hour)
	mins := int(d/time.Minute) % 60
	secs := int(d/time.Second) % 60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %02dm %02ds", h, mins, secs)
	case mins > 0:
		return fmt.Sprintf("%dm %02ds", mins, secs)
	default:
		return fmt.Sprintf("%ds", secs)
	}
}
