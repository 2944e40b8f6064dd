// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/Thermoquad/trackstation/pkg/capture"
	"github.com/Thermoquad/trackstation/pkg/export"
	"github.com/Thermoquad/trackstation/pkg/plot"
	"github.com/Thermoquad/trackstation/pkg/relay"
	"github.com/Thermoquad/trackstation/pkg/rxlog"
	"github.com/Thermoquad/trackstation/pkg/telemetry"
)

// pipelineOptions selects the sinks wired around one receive source
type pipelineOptions struct {
	Source      io.Reader
	SourceName  string
	Display     telemetry.DisplaySink
	Status      telemetry.StatusSink
	OnChunk     func(telemetry.CycleResult)
	CapturePath string // empty disables capture
	ReceiveLog  bool
	Relay       bool
	ChartWidth  int
	ChartHeight int
	Poll        time.Duration
}

// pipeline is a receive source wired to every sink the session uses
type pipeline struct {
	stats     *telemetry.Statistics
	chart     *plot.Chart
	processor *telemetry.Processor
	receiver  *telemetry.Receiver
	rxlog     *rxlog.Log
	capture   *capture.Writer
	relay     *relay.Publisher
}

// newPipeline builds the receive pipeline from appCfg and opts. Anything
// opened before a failure is closed again.
func newPipeline(opts pipelineOptions, start time.Time) (_ *pipeline, err error) {
	layout := appCfg.Layout()
	p := &pipeline{
		stats: telemetry.NewStatistics(),
		chart: plot.NewChart(opts.ChartWidth, opts.ChartHeight, "Telemetry ("+telemetry.SampleUnit+")"),
	}
	defer func() {
		if err != nil {
			p.Close()
		}
	}()

	var forwarders []telemetry.SampleForwarder
	if opts.Relay && appCfg.MQTT.Enabled {
		p.relay, err = relay.Connect(relay.Config{
			Broker:   appCfg.MQTT.Broker,
			Topic:    appCfg.MQTT.Topic,
			ClientID: appCfg.MQTT.ClientID,
			Username: appCfg.MQTT.Username,
			Password: appCfg.MQTT.Password,
			QoS:      byte(appCfg.MQTT.QoS),
			Source:   opts.SourceName,
		}, opts.Status, diag)
		if err != nil {
			return nil, err
		}
		forwarders = append(forwarders, p.relay)
	}

	var chunkLog telemetry.ChunkSink
	if opts.ReceiveLog && appCfg.Output.ReceiveLog {
		p.rxlog, err = rxlog.Create(appCfg.Output.Dir, start)
		if err != nil {
			return nil, fmt.Errorf("failed to create receive log: %w", err)
		}
		chunkLog = p.rxlog
		diag.Info().Str("path", p.rxlog.Path()).Msg("receive log opened")
	}

	var recorder telemetry.ChunkRecorder
	if opts.CapturePath != "" {
		p.capture, err = capture.Create(opts.CapturePath)
		if err != nil {
			return nil, err
		}
		recorder = p.capture
		diag.Info().Str("path", opts.CapturePath).Msg("capture opened")
	}

	p.processor = telemetry.NewProcessor(telemetry.ProcessorConfig{
		Layout:     layout,
		Series:     telemetry.NewSeries(appCfg.Series.Window),
		Plot:       p.chart,
		Display:    opts.Display,
		Status:     opts.Status,
		Forwarders: forwarders,
		Stats:      p.stats,
		Logger:     diag,
	})

	p.receiver = telemetry.NewReceiver(telemetry.ReceiverConfig{
		Source:       opts.Source,
		Layout:       layout,
		Reassembler:  telemetry.NewReassembler(appCfg.Receive.AccumulationLimit),
		Processor:    p.processor,
		Stats:        p.stats,
		Log:          chunkLog,
		Capture:      recorder,
		Status:       opts.Status,
		OnChunk:      opts.OnChunk,
		ChunkSize:    appCfg.Receive.ChunkSize,
		PollInterval: opts.Poll,
		Logger:       diag,
	})

	return p, nil
}

// Close waits for in-flight payload processing, then closes every sink
func (p *pipeline) Close() error {
	if p.processor != nil {
		p.processor.Wait()
	}
	var errs []error
	if p.relay != nil {
		p.relay.Close()
	}
	if p.capture != nil {
		errs = append(errs, p.capture.Close())
	}
	if p.rxlog != nil {
		errs = append(errs, p.rxlog.Close())
	}
	return errors.Join(errs...)
}

// ExportReceived writes the received text to path, or to a fresh timestamped
// workbook in the output directory when path is empty, and returns the path
func (p *pipeline) ExportReceived(path string, now time.Time) (string, error) {
	lines := p.receiver.Transcript().Lines()
	if len(lines) == 0 {
		return "", errors.New("no received data to export")
	}
	if path == "" {
		var err error
		path, err = export.UniquePath(filepath.Join(appCfg.Output.Dir, export.ReceivedFileName(now)))
		if err != nil {
			return "", err
		}
	}
	if err := export.WriteReceived(path, lines); err != nil {
		return "", err
	}
	return path, nil
}
