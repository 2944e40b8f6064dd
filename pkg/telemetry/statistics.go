// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telemetry

import (
	"fmt"
	"sync"
	"time"
)

// Statistics tracks receive pipeline counters and rates. It is shared by the
// receive loop and payload processors.
type Statistics struct {
	mu sync.Mutex

	startTime      time.Time
	lastUpdateTime time.Time

	chunks        uint64
	bytes         uint64
	values        uint64
	decodeFaults  uint64
	bufferResets  uint64
	frames        uint64
	samples       uint64
	processFaults uint64
	logFaults     uint64
	captureFaults uint64
}

// StatsSnapshot is a point-in-time copy of the statistics
type StatsSnapshot struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	Chunks        uint64
	Bytes         uint64
	Values        uint64
	DecodeFaults  uint64
	BufferResets  uint64
	Frames        uint64
	Samples       uint64
	ProcessFaults uint64
	LogFaults     uint64
	CaptureFaults uint64

	// Rates (calculated)
	ChunkRate float64 // chunks/sec
	FrameRate float64 // frames/sec
	FaultRate float64 // faults/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		startTime:      now,
		lastUpdateTime: now,
	}
}

// RecordChunk counts one read cycle
func (s *Statistics) RecordChunk(bytes, values, faults int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks++
	s.bytes += uint64(bytes)
	s.values += uint64(values)
	s.decodeFaults += uint64(faults)
	s.lastUpdateTime = time.Now()
}

// RecordBufferReset counts an accumulation buffer reset
func (s *Statistics) RecordBufferReset() {
	s.mu.Lock()
	s.bufferResets++
	s.mu.Unlock()
}

// RecordFrame counts a sentinel match
func (s *Statistics) RecordFrame() {
	s.mu.Lock()
	s.frames++
	s.mu.Unlock()
}

// RecordSample counts an extracted telemetry sample
func (s *Statistics) RecordSample() {
	s.mu.Lock()
	s.samples++
	s.mu.Unlock()
}

// RecordProcessFault counts a failed payload processor
func (s *Statistics) RecordProcessFault() {
	s.mu.Lock()
	s.processFaults++
	s.mu.Unlock()
}

// RecordLogFault counts a failed receive log write
func (s *Statistics) RecordLogFault() {
	s.mu.Lock()
	s.logFaults++
	s.mu.Unlock()
}

// RecordCaptureFault counts a failed capture write
func (s *Statistics) RecordCaptureFault() {
	s.mu.Lock()
	s.captureFaults++
	s.mu.Unlock()
}

// Snapshot returns the counters with rates calculated
func (s *Statistics) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := StatsSnapshot{
		StartTime:      s.startTime,
		LastUpdateTime: s.lastUpdateTime,
		Chunks:         s.chunks,
		Bytes:          s.bytes,
		Values:         s.values,
		DecodeFaults:   s.decodeFaults,
		BufferResets:   s.bufferResets,
		Frames:         s.frames,
		Samples:        s.samples,
		ProcessFaults:  s.processFaults,
		LogFaults:      s.logFaults,
		CaptureFaults:  s.captureFaults,
	}

	elapsed := time.Since(s.startTime).Seconds()
	if elapsed > 0 {
		snap.ChunkRate = float64(s.chunks) / elapsed
		snap.FrameRate = float64(s.frames) / elapsed
		snap.FaultRate = float64(snap.TotalFaults()) / elapsed
	}
	return snap
}

// TotalFaults sums every fault counter
func (s StatsSnapshot) TotalFaults() uint64 {
	return s.DecodeFaults + s.ProcessFaults + s.LogFaults + s.CaptureFaults
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	snap := s.Snapshot()

	var framePercent float64
	if snap.Chunks > 0 {
		framePercent = float64(snap.Frames) * 100.0 / float64(snap.Chunks)
	}

	elapsed := time.Since(snap.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Chunks:          %8d (%d bytes)\n", snap.Chunks, snap.Bytes)
	result += fmt.Sprintf("Decoded Values:  %8d\n", snap.Values)
	result += fmt.Sprintf("Frames:          %8d (%.1f%% of chunks)\n", snap.Frames, framePercent)
	result += fmt.Sprintf("Samples:         %8d\n", snap.Samples)
	result += fmt.Sprintf("Buffer Resets:   %8d\n", snap.BufferResets)

	if snap.DecodeFaults > 0 {
		result += fmt.Sprintf("Decode Faults:   %8d\n", snap.DecodeFaults)
	}
	if snap.ProcessFaults > 0 {
		result += fmt.Sprintf("Process Faults:  %8d\n", snap.ProcessFaults)
	}
	if snap.LogFaults > 0 {
		result += fmt.Sprintf("Log Faults:      %8d\n", snap.LogFaults)
	}
	if snap.CaptureFaults > 0 {
		result += fmt.Sprintf("Capture Faults:  %8d\n", snap.CaptureFaults)
	}

	result += fmt.Sprintf("Chunk Rate:      %8.1f chunks/sec\n", snap.ChunkRate)
	result += fmt.Sprintf("Frame Rate:      %8.1f frames/sec\n", snap.FrameRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.startTime = now
	s.lastUpdateTime = now
	s.chunks = 0
	s.bytes = 0
	s.values = 0
	s.decodeFaults = 0
	s.bufferResets = 0
	s.frames = 0
	s.samples = 0
	s.processFaults = 0
	s.logFaults = 0
	s.captureFaults = 0
}
