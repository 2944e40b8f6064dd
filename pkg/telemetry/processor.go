// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telemetry

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// ProcessorConfig wires a Processor to its sinks. Series is required, every
// sink is optional.
type ProcessorConfig struct {
	Layout     FrameLayout
	Series     *Series
	Plot       PlotSink
	Display    DisplaySink
	Status     StatusSink
	Forwarders []SampleForwarder
	Stats      *Statistics
	Logger     zerolog.Logger
}

// Result is what a single payload processing run produced
type Result struct {
	Sample     *Sample
	FirstHalf  []byte
	SecondHalf []byte
}

// Processor extracts telemetry samples from sentinel-matched frames and fans
// them out to the plot and display sinks. Every detection runs on its own
// goroutine; the series append, plot redraw and display update for one
// sample happen under a single lock so concurrent runs never interleave.
type Processor struct {
	layout     FrameLayout
	series     *Series
	plot       PlotSink
	display    DisplaySink
	status     StatusSink
	forwarders []SampleForwarder
	stats      *Statistics
	log        zerolog.Logger

	mu sync.Mutex // serializes series append + sink fan-out
	wg sync.WaitGroup
}

// NewProcessor creates a payload processor
func NewProcessor(cfg ProcessorConfig) *Processor {
	series := cfg.Series
	if series == nil {
		series = NewSeries(0)
	}
	status := cfg.Status
	if status == nil {
		status = nopStatus{}
	}
	stats := cfg.Stats
	if stats == nil {
		stats = NewStatistics()
	}
	return &Processor{
		layout:     cfg.Layout,
		series:     series,
		plot:       cfg.Plot,
		display:    cfg.Display,
		status:     status,
		forwarders: cfg.Forwarders,
		stats:      stats,
		log:        cfg.Logger,
	}
}

// Series returns the sample series the processor appends to
func (p *Processor) Series() *Series {
	return p.series
}

// Dispatch processes a frame on a new goroutine and returns immediately
func (p *Processor) Dispatch(f *Frame) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.Process(f)
	}()
}

// Wait blocks until every dispatched frame has been processed
func (p *Processor) Wait() {
	p.wg.Wait()
}

// Process runs payload processing synchronously. Faults, including panics
// raised by a sink, are reported to the status sink and returned.
func (p *Processor) Process(f *Frame) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("payload processing of frame #%d failed: %v", f.Sequence(), r)
			p.stats.RecordProcessFault()
			p.status.Report(err.Error(), true)
			p.log.Error().Uint64("frame", f.Sequence()).Interface("panic", r).Msg("payload processing failed")
		}
	}()

	values := f.Values()
	if v, ok := p.layout.Payload(values); ok {
		sample := p.store(v, f)
		res.Sample = &sample
		for _, fw := range p.forwarders {
			fw.Forward(sample)
		}
	}

	res.FirstHalf, res.SecondHalf = Split(values)
	p.log.Debug().
		Uint64("frame", f.Sequence()).
		Str("first", FormatHex(res.FirstHalf)).
		Str("second", FormatHex(res.SecondHalf)).
		Msg("frame halves")

	return res, nil
}

func (p *Processor) store(v byte, f *Frame) Sample {
	p.mu.Lock()
	defer p.mu.Unlock()

	sample := p.series.Append(v, f.Sequence(), f.Timestamp())
	p.stats.RecordSample()
	if p.plot != nil {
		p.plot.Redraw(p.series.Values())
	}
	if p.display != nil {
		p.display.ShowSample(FormatSample(v))
	}
	p.log.Debug().Uint64("frame", f.Sequence()).Uint8("value", v).Uint64("index", sample.Index).Msg("sample stored")
	return sample
}
