// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package capture

import (
	"io"
	"sync"
	"time"
)

// Replayer plays a capture back as a byte stream. Each Read returns at most
// one recorded chunk, so chunk boundaries survive the replay. With realtime
// set the recorded gaps between chunks are reproduced, divided by speed.
type Replayer struct {
	r        *Reader
	realtime bool
	speed    float64

	mu       sync.Mutex
	pending  []byte
	last     time.Time
	received time.Time
	closed   bool
	done     chan struct{}
}

// NewReplayer creates a replayer. speed <= 0 means 1.
func NewReplayer(r *Reader, realtime bool, speed float64) *Replayer {
	if speed <= 0 {
		speed = 1
	}
	return &Replayer{
		r:        r,
		realtime: realtime,
		speed:    speed,
		done:     make(chan struct{}),
	}
}

// Read returns the next chunk, io.EOF at the end of the capture or io.EOF
// once closed
func (p *Replayer) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return 0, io.EOF
	}
	if len(p.pending) > 0 {
		n := copy(b, p.pending)
		p.pending = p.pending[n:]
		return n, nil
	}

	rec, err := p.r.Next()
	if err != nil {
		return 0, err
	}

	if p.realtime && !p.last.IsZero() {
		gap := time.Duration(float64(rec.Time().Sub(p.last)) / p.speed)
		if gap > 0 {
			p.mu.Unlock()
			timer := time.NewTimer(gap)
			select {
			case <-timer.C:
			case <-p.done:
				timer.Stop()
			}
			p.mu.Lock()
			if p.closed {
				return 0, io.EOF
			}
		}
	}
	p.last = rec.Time()
	p.received = rec.Time()

	n := copy(b, rec.Chunk)
	p.pending = rec.Chunk[n:]
	return n, nil
}

// Received returns the recorded receive time of the chunk last returned
func (p *Replayer) Received() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.received
}

// Write discards p; a capture has no transmit side
func (p *Replayer) Write(b []byte) (int, error) {
	return len(b), nil
}

// Close stops the replay and closes the capture
func (p *Replayer) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.done)
	p.mu.Unlock()
	return p.r.Close()
}
