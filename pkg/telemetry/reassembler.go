// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telemetry

import "sync"

// Reassembler accumulates decoded values across reads. It is a bounded
// scratch buffer: once it holds limit or more values it is cleared. Frame
// detection never looks at it.
type Reassembler struct {
	mu     sync.Mutex
	buf    []byte
	limit  int
	resets uint64
}

// NewReassembler creates a reassembler that clears itself at limit values
func NewReassembler(limit int) *Reassembler {
	if limit <= 0 {
		limit = DefaultAccumulationLimit
	}
	return &Reassembler{
		buf:   make([]byte, 0, limit),
		limit: limit,
	}
}

// Append adds values and applies the reset policy. It returns the buffer
// length after the call and whether it was cleared.
func (r *Reassembler) Append(values []byte) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.buf = append(r.buf, values...)
	if len(r.buf) >= r.limit {
		r.buf = r.buf[:0]
		r.resets++
		return 0, true
	}
	return len(r.buf), false
}

// Len returns the current buffer length
func (r *Reassembler) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buf)
}

// Resets returns how many times the buffer was cleared
func (r *Reassembler) Resets() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resets
}

// Snapshot returns a copy of the buffered values
func (r *Reassembler) Snapshot() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := make([]byte, len(r.buf))
	copy(cp, r.buf)
	return cp
}

// Limit returns the reset threshold
func (r *Reassembler) Limit() int {
	return r.limit
}
