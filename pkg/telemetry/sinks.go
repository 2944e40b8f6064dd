// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telemetry

import "time"

// PlotSink redraws a time series; called once per new sample
type PlotSink interface {
	Redraw(values []float64)
}

// DisplaySink shows the latest sample as text, e.g. "7 V"
type DisplaySink interface {
	ShowSample(text string)
}

// StatusSink receives operator-visible notifications
type StatusSink interface {
	Report(message string, isError bool)
}

// SampleForwarder receives every extracted sample after it is stored
type SampleForwarder interface {
	Forward(sample Sample)
}

// ChunkSink receives the text of each read cycle
type ChunkSink interface {
	LogChunk(received time.Time, text string) error
}

// ChunkRecorder stores raw chunks for later replay
type ChunkRecorder interface {
	Record(received time.Time, chunk []byte) error
}

// DisplayFunc adapts a function to DisplaySink
type DisplayFunc func(text string)

// ShowSample implements DisplaySink
func (f DisplayFunc) ShowSample(text string) { f(text) }

// StatusFunc adapts a function to StatusSink
type StatusFunc func(message string, isError bool)

// Report implements StatusSink
func (f StatusFunc) Report(message string, isError bool) { f(message, isError) }

// ForwardFunc adapts a function to SampleForwarder
type ForwardFunc func(sample Sample)

// Forward implements SampleForwarder
func (f ForwardFunc) Forward(sample Sample) { f(sample) }

type nopStatus struct{}

func (nopStatus) Report(string, bool) {}
