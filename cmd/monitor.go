// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/Thermoquad/trackstation/pkg/telemetry"
	"github.com/spf13/cobra"
)

var (
	monitorCapture       string
	monitorExport        string
	monitorShowChunks    bool
	monitorPlot          bool
	monitorStatsInterval int
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Decode and display telemetry in text mode",
	Long: `Continuously decode the ASCII hex stream on the receive port and print every
detected frame and its telemetry sample as it arrives.

Every read is appended to the receive log in the output directory unless
disabled in the configuration. Use --capture to record raw chunks for replay,
and --export to write the received text to a workbook on exit ("-" picks a
timestamped name in the output directory).

Supports both serial and WebSocket connections.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().StringVar(&monitorCapture, "capture", "", "Record raw chunks to this capture file")
	monitorCmd.Flags().StringVar(&monitorExport, "export", "", "Export received text to this workbook on exit")
	monitorCmd.Flags().BoolVar(&monitorShowChunks, "show-chunks", false, "Print every received chunk")
	monitorCmd.Flags().BoolVar(&monitorPlot, "plot", false, "Print the sample chart with each statistics summary")
	monitorCmd.Flags().IntVar(&monitorStatsInterval, "stats-interval", 0, "Statistics update interval in seconds (0 prints on exit only)")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	// Open connection (serial or WebSocket)
	conn, err := OpenReceive()
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("Trackstation - Telemetry Monitor\n")
	fmt.Printf("Connection: %s\n", conn.Info())
	fmt.Printf("Press Ctrl+C to exit\n\n")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runTextPipeline(ctx, os.Stdout, textRun{
		source:     conn,
		sourceName: conn.Name(),
		capture:    monitorCapture,
		receiveLog: true,
		relay:      true,
		poll:       appCfg.PollInterval(),
		export:     monitorExport,
		showChunks: monitorShowChunks,
		plot:       monitorPlot,
		statsEvery: time.Duration(monitorStatsInterval) * time.Second,
		closer:     conn,
	})
}

// textRun is one text-mode run of the receive pipeline
type textRun struct {
	source     io.Reader
	sourceName string
	capture    string
	receiveLog bool
	relay      bool
	poll       time.Duration
	export     string // "-" for a timestamped name
	showChunks bool
	plot       bool
	statsEvery time.Duration
	closer     io.Closer // closed on cancellation to unblock a pending read
}

// runTextPipeline runs the receive pipeline until the source ends or ctx is
// cancelled, printing frames, samples and notifications to out
func runTextPipeline(ctx context.Context, out io.Writer, run textRun) error {
	var outMu sync.Mutex
	printf := func(format string, a ...interface{}) {
		outMu.Lock()
		fmt.Fprintf(out, format, a...)
		outMu.Unlock()
	}

	status := telemetry.StatusFunc(func(msg string, isError bool) {
		timestamp := time.Now().Format("15:04:05.000")
		if isError {
			printf("[%s] [ERROR] %s\n", timestamp, msg)
			return
		}
		printf("[%s] %s\n", timestamp, msg)
	})

	start := time.Now()
	p, err := newPipeline(pipelineOptions{
		Source:      run.source,
		SourceName:  run.sourceName,
		Status:      status,
		CapturePath: run.capture,
		ReceiveLog:  run.receiveLog,
		Relay:       run.relay,
		ChartWidth:  72,
		ChartHeight: 12,
		Poll:        run.poll,
		OnChunk: func(res telemetry.CycleResult) {
			if run.showChunks {
				printf("[%s] RX %s\n", res.Received.Format("15:04:05.000"), res.Text)
			}
			if res.Frame != nil {
				printf("%s", telemetry.FormatFrame(res.Frame, appCfg.Layout()))
			}
		},
	}, start)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- p.receiver.Run(runCtx)
	}()

	var tick <-chan time.Time
	if run.statsEvery > 0 {
		ticker := time.NewTicker(run.statsEvery)
		defer ticker.Stop()
		tick = ticker.C
	}

	var runErr error
loop:
	for {
		select {
		case runErr = <-done:
			break loop
		case <-ctx.Done():
			if run.closer != nil {
				run.closer.Close()
			}
			runErr = <-done
			break loop
		case <-tick:
			printf("\n%s", p.stats.String())
			if run.plot {
				printf("%s\n\n", p.chart.View())
			}
		}
	}

	closeErr := p.Close()

	printf("\n%s", p.stats.String())
	if run.plot {
		printf("%s\n", p.chart.View())
	}
	if p.rxlog != nil {
		printf("Receive log: %s (%d lines)\n", p.rxlog.Path(), p.rxlog.Lines())
	}
	if p.capture != nil {
		printf("Capture: %s (%d chunks)\n", run.capture, p.capture.Count())
	}
	if run.export != "" {
		path := run.export
		if path == "-" {
			path = ""
		}
		path, err := p.ExportReceived(path, time.Now())
		if err != nil {
			printf("Export failed: %v\n", err)
		} else {
			printf("Received data exported to %s\n", path)
		}
	}

	if runErr != nil {
		return runErr
	}
	return closeErr
}
