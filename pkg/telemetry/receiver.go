// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/Thermoquad/trackstation/pkg/session"
	"github.com/rs/zerolog"
)

// ReceiverConfig wires the receive loop. Source and Processor are required.
type ReceiverConfig struct {
	Source       io.Reader
	Layout       FrameLayout
	Reassembler  *Reassembler
	Processor    *Processor
	Stats        *Statistics
	Transcript   *Transcript
	Log          ChunkSink
	Capture      ChunkRecorder
	Status       StatusSink
	OnChunk      func(CycleResult)
	ChunkSize    int
	PollInterval time.Duration
	Logger       zerolog.Logger
}

// CycleResult describes one read → decode → reassemble → detect cycle
type CycleResult struct {
	Seq         uint64
	Received    time.Time
	Text        string
	Values      []byte
	Faults      []DecodeFault
	BufferLen   int
	BufferReset bool
	Frame       *Frame // non-nil when the sentinel matched
}

// timedSource is a source that knows when its last chunk was originally
// received, such as a capture replay
type timedSource interface {
	Received() time.Time
}

// Receiver runs the receive pipeline for one source
type Receiver struct {
	src          io.Reader
	layout       FrameLayout
	reasm        *Reassembler
	proc         *Processor
	stats        *Statistics
	transcript   *Transcript
	rxlog        ChunkSink
	capture      ChunkRecorder
	status       StatusSink
	onChunk      func(CycleResult)
	chunkSize    int
	pollInterval time.Duration
	log          zerolog.Logger

	seq uint64
}

// NewReceiver creates a receiver
func NewReceiver(cfg ReceiverConfig) *Receiver {
	r := &Receiver{
		src:          cfg.Source,
		layout:       cfg.Layout,
		reasm:        cfg.Reassembler,
		proc:         cfg.Processor,
		stats:        cfg.Stats,
		transcript:   cfg.Transcript,
		rxlog:        cfg.Log,
		capture:      cfg.Capture,
		status:       cfg.Status,
		onChunk:      cfg.OnChunk,
		chunkSize:    cfg.ChunkSize,
		pollInterval: cfg.PollInterval,
		log:          cfg.Logger,
	}
	if r.reasm == nil {
		r.reasm = NewReassembler(DefaultAccumulationLimit)
	}
	if r.stats == nil {
		r.stats = NewStatistics()
	}
	if r.transcript == nil {
		r.transcript = NewTranscript()
	}
	if r.status == nil {
		r.status = nopStatus{}
	}
	if r.chunkSize <= 0 {
		r.chunkSize = DefaultChunkSize
	}
	return r
}

// Reassembler returns the accumulation buffer, for diagnostics
func (r *Receiver) Reassembler() *Reassembler {
	return r.reasm
}

// Transcript returns the received text
func (r *Receiver) Transcript() *Transcript {
	return r.transcript
}

// Run reads from the source until the context is cancelled, the source is
// closed or exhausted, or a read fails. Only a failed read is returned as an
// error. In-flight payload processors are not waited for.
func (r *Receiver) Run(ctx context.Context) error {
	buf := make([]byte, r.chunkSize)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		n, err := r.src.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			received := time.Now()
			if ts, ok := r.src.(timedSource); ok {
				received = ts.Received()
			}
			r.Cycle(received, chunk)
		}
		if err != nil {
			if errors.Is(err, session.ErrClosed) || errors.Is(err, io.EOF) {
				r.log.Debug().Err(err).Msg("receive loop stopped")
				return nil
			}
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			r.status.Report(fmt.Sprintf("Receive Error: %v", err), true)
			r.log.Error().Err(err).Msg("receive loop failed")
			return err
		}

		if r.pollInterval > 0 {
			timer := time.NewTimer(r.pollInterval)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil
			case <-timer.C:
			}
		}
	}
}

// Cycle processes one raw chunk. A sentinel match is handed to the payload
// processor on its own goroutine; everything else happens inline.
func (r *Receiver) Cycle(received time.Time, chunk []byte) CycleResult {
	r.seq++
	res := CycleResult{
		Seq:      r.seq,
		Received: received,
		Text:     DecodeASCII(chunk),
	}

	if r.capture != nil {
		if err := r.capture.Record(received, chunk); err != nil {
			r.stats.RecordCaptureFault()
			r.status.Report(fmt.Sprintf("Capture write failed: %v", err), true)
		}
	}

	res.Values, res.Faults = DecodePairs(chunk)
	r.stats.RecordChunk(len(chunk), len(res.Values), len(res.Faults))
	if len(res.Faults) > 0 {
		r.status.Report(SummarizeFaults(res.Faults), true)
		r.log.Warn().Uint64("seq", res.Seq).Int("faults", len(res.Faults)).Msg("decode faults")
	}

	res.BufferLen, res.BufferReset = r.reasm.Append(res.Values)
	if res.BufferReset {
		r.stats.RecordBufferReset()
		r.log.Debug().Uint64("seq", res.Seq).Msg("accumulation buffer reset")
	}

	r.transcript.Append(res.Text)

	if frame, ok := r.layout.Detect(res.Seq, res.Values, received); ok {
		res.Frame = frame
		r.stats.RecordFrame()
		r.log.Debug().Uint64("seq", res.Seq).Int("len", frame.Len()).Msg("sentinel matched")
		r.proc.Dispatch(frame)
	}

	if r.rxlog != nil {
		if err := r.rxlog.LogChunk(received, res.Text); err != nil {
			r.stats.RecordLogFault()
			r.status.Report(fmt.Sprintf("Log write failed: %v", err), true)
		}
	}

	if r.onChunk != nil {
		r.onChunk(res)
	}

	return res
}
