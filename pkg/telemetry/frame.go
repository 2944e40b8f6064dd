// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telemetry

import "time"

// Frame is a sentinel-matched frame candidate
type Frame struct {
	seq       uint64
	values    []byte
	timestamp time.Time
}

// NewFrame creates a frame from a copy of values, so later changes to the
// caller's slice are never observed by a running processor
func NewFrame(seq uint64, values []byte, received time.Time) *Frame {
	cp := make([]byte, len(values))
	copy(cp, values)
	return &Frame{
		seq:       seq,
		values:    cp,
		timestamp: received,
	}
}

// Sequence returns the read cycle number the frame was detected in
func (f *Frame) Sequence() uint64 {
	return f.seq
}

// Values returns the decoded values of the frame
func (f *Frame) Values() []byte {
	return f.values
}

// Len returns the number of decoded values
func (f *Frame) Len() int {
	return len(f.values)
}

// Timestamp returns the time the chunk was received
func (f *Frame) Timestamp() time.Time {
	return f.timestamp
}

// Split divides values at floor(len/2)
func Split(values []byte) (first, second []byte) {
	mid := len(values) / 2
	return values[:mid], values[mid:]
}
