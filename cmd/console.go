// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/Thermoquad/trackstation/pkg/command"
	"github.com/Thermoquad/trackstation/pkg/export"
	"github.com/Thermoquad/trackstation/pkg/telemetry"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	consoleCommands string
	consoleHistory  string
	consoleCapture  string
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Interactive ground-station console",
	Long: `Operate the telemetry link from an interactive terminal UI.

The console sends hex commands on the transmit port while the receive port is
decoded, plotted and logged in the background.

Features:
  - Command input with history workbook (every send is recorded)
  - Command table loaded from a workbook (--commands)
  - Live sample plot and latest value
  - Received text, statistics and event log
  - Receive log, optional raw capture and MQTT relay

Keys:
  enter    send the command, or copy the selected table cell into the input
  tab      switch between command input and command table
  left/right  choose the table column to copy
  ctrl+d   insert the default command
  ctrl+s   start a new history workbook
  ctrl+e   export received text to a workbook
  ctrl+c   quit

Supports both serial and WebSocket connections.`,
	RunE: runConsole,
}

func init() {
	rootCmd.AddCommand(consoleCmd)
	consoleCmd.Flags().StringVar(&consoleCommands, "commands", "", "Workbook of commands to show in a table")
	consoleCmd.Flags().StringVar(&consoleHistory, "history", "", "Command history workbook")
	consoleCmd.Flags().StringVar(&consoleCapture, "capture", "", "Record raw chunks to this capture file")
}

func runConsole(cmd *cobra.Command, args []string) error {
	start := time.Now()

	// Diagnostics on stderr would tear the alt screen
	if diagFile == nil {
		diag = zerolog.Nop()
	}

	history, err := openHistory(consoleHistory, start)
	if err != nil {
		return err
	}

	commandsPath := consoleCommands
	if commandsPath == "" {
		commandsPath = appCfg.Output.Commands
	}
	var headers []string
	var rows [][]string
	if commandsPath != "" {
		headers, rows, err = export.ReadTable(commandsPath)
		if err != nil {
			return err
		}
	}

	tx, rx, err := OpenSessions()
	if err != nil {
		return err
	}

	bridge := newUIBridge()
	pipe, err := newPipeline(pipelineOptions{
		Source:      rx,
		SourceName:  rx.Name(),
		Display:     bridge,
		Status:      bridge,
		OnChunk:     bridge.chunk,
		CapturePath: consoleCapture,
		ReceiveLog:  true,
		Relay:       true,
		ChartWidth:  60,
		ChartHeight: 10,
		Poll:        appCfg.PollInterval(),
	}, start)
	if err != nil {
		closeSessions(tx, rx)
		return err
	}

	var port command.Port
	if tx != nil {
		port = tx
	}

	m := initialConsoleModel(consoleDeps{
		tx:         tx,
		rx:         rx,
		sender:     command.NewSender(port, history, diag),
		stats:      pipe.stats,
		chart:      pipe.chart,
		transcript: pipe.receiver.Transcript(),
		export: func(now time.Time) (string, error) {
			return pipe.ExportReceived("", now)
		},
		headers:   headers,
		rows:      rows,
		outputDir: appCfg.Output.Dir,
		started:   start,
	})
	if pipe.rxlog != nil {
		m.addLogEntry(fmt.Sprintf("Receive log: %s", pipe.rxlog.Path()), false)
	}
	m.addLogEntry(fmt.Sprintf("History: %s", history.Path()), false)

	// Create TUI program with alt screen
	p := tea.NewProgram(m, tea.WithAltScreen())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bridge.start(p)

	// Receive loop
	rxDone := make(chan struct{})
	go func() {
		defer close(rxDone)
		err := pipe.receiver.Run(ctx)
		bridge.send(receiverStoppedMsg{err: err})
	}()

	_, runErr := p.Run()

	bridge.stop()
	cancel()
	closeSessions(tx, rx)
	<-rxDone

	var errs []error
	if runErr != nil {
		errs = append(errs, fmt.Errorf("TUI error: %v", runErr))
	}
	if err := pipe.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := history.Flush(); err != nil {
		errs = append(errs, fmt.Errorf("history not saved: %w", err))
	}
	if pipe.rxlog != nil {
		fmt.Fprintf(os.Stderr, "Receive log: %s (%d lines)\n", pipe.rxlog.Path(), pipe.rxlog.Lines())
	}
	fmt.Fprintf(os.Stderr, "History: %s (%d rows)\n", history.Path(), len(history.Rows()))
	return errors.Join(errs...)
}

//////////////////////////////////////////////////////////////
// UI Bridge
//////////////////////////////////////////////////////////////

// uiBridge collects sink callbacks from the receive goroutines and hands them
// to the TUI in batches at a fixed rate
type uiBridge struct {
	mu        sync.Mutex
	sample    string
	hasSample bool
	chunks    int

	events chan errorLogEntry

	p        *tea.Program
	done     chan struct{}
	stopOnce sync.Once
}

func newUIBridge() *uiBridge {
	return &uiBridge{
		events: make(chan errorLogEntry, 100),
		done:   make(chan struct{}),
	}
}

// ShowSample keeps the latest sample text; older unsent samples are replaced
func (b *uiBridge) ShowSample(text string) {
	b.mu.Lock()
	b.sample = text
	b.hasSample = true
	b.mu.Unlock()
}

// Report queues an event; events are dropped while the queue is full
func (b *uiBridge) Report(message string, isError bool) {
	select {
	case b.events <- errorLogEntry{timestamp: time.Now(), message: message, isError: isError}:
	default:
	}
}

func (b *uiBridge) chunk(res telemetry.CycleResult) {
	b.mu.Lock()
	b.chunks++
	b.mu.Unlock()
}

// drain takes everything collected since the last call
func (b *uiBridge) drain() consoleBatchMsg {
	var batch consoleBatchMsg

	b.mu.Lock()
	batch.sample, batch.hasSample = b.sample, b.hasSample
	batch.chunks = b.chunks
	b.hasSample = false
	b.chunks = 0
	b.mu.Unlock()

	// Drain all available events
drainLoop:
	for {
		select {
		case ev := <-b.events:
			batch.events = append(batch.events, ev)
		default:
			break drainLoop
		}
	}
	return batch
}

// start runs the batch sender for p
func (b *uiBridge) start(p *tea.Program) {
	b.p = p
	go func() {
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-b.done:
				return
			case <-ticker.C:
				batch := b.drain()
				// Send batch if we have anything
				if batch.hasSample || batch.chunks > 0 || len(batch.events) > 0 {
					b.send(batch)
				}
			}
		}
	}()
}

// send delivers msg unless the bridge is stopped
func (b *uiBridge) send(msg tea.Msg) {
	select {
	case <-b.done:
		return
	default:
	}
	if b.p != nil {
		b.p.Send(msg)
	}
}

func (b *uiBridge) stop() {
	b.stopOnce.Do(func() { close(b.done) })
}
