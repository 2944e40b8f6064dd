// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telemetry

import (
	"sync"
	"time"
)

// Sample is one telemetry value extracted from a frame
type Sample struct {
	Index     uint64 // position in the series, starting at 0, never reused
	Value     byte
	Frame     uint64 // sequence number of the source frame
	Timestamp time.Time
}

// Series is the ordered, append-only list of samples for a session.
// With a window greater than zero only the newest window samples are kept.
type Series struct {
	mu      sync.RWMutex
	samples []Sample
	window  int
	next    uint64
}

// NewSeries creates a series; window 0 keeps every sample
func NewSeries(window int) *Series {
	if window < 0 {
		window = 0
	}
	return &Series{window: window}
}

// Append adds a value and returns the stored sample
func (s *Series) Append(value byte, frame uint64, ts time.Time) Sample {
	s.mu.Lock()
	defer s.mu.Unlock()

	sample := Sample{Index: s.next, Value: value, Frame: frame, Timestamp: ts}
	s.next++
	s.samples = append(s.samples, sample)
	if s.window > 0 && len(s.samples) > s.window {
		// shift rather than reslice so the backing array does not grow forever
		n := copy(s.samples, s.samples[len(s.samples)-s.window:])
		s.samples = s.samples[:n]
	}
	return sample
}

// Len returns the number of retained samples
func (s *Series) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.samples)
}

// Total returns the number of samples ever appended
func (s *Series) Total() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.next
}

// Values returns the retained sample values for plotting
func (s *Series) Values() []float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]float64, len(s.samples))
	for i, sample := range s.samples {
		out[i] = float64(sample.Value)
	}
	return out
}

// Snapshot returns a copy of the retained samples
func (s *Series) Snapshot() []Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Sample, len(s.samples))
	copy(out, s.samples)
	return out
}

// Last returns the newest sample
func (s *Series) Last() (Sample, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.samples) == 0 {
		return Sample{}, false
	}
	return s.samples[len(s.samples)-1], true
}
