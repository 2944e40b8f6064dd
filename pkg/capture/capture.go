// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package capture records raw receive chunks to a file and plays them back.
// A capture file is a CBOR sequence of {1: unix nanos, 2: chunk bytes} maps.
package capture

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Record is one captured read
type Record struct {
	UnixNano int64  `cbor:"1,keyasint"`
	Chunk    []byte `cbor:"2,keyasint"`
}

// Time returns the receive time of the record
func (r Record) Time() time.Time {
	return time.Unix(0, r.UnixNano)
}

// Writer appends records to a capture stream
type Writer struct {
	mu    sync.Mutex
	buf   *bufio.Writer
	enc   *cbor.Encoder
	c     io.Closer
	count uint64
}

// NewWriter writes records to w
func NewWriter(w io.Writer) *Writer {
	buf := bufio.NewWriter(w)
	cw := &Writer{buf: buf, enc: cbor.NewEncoder(buf)}
	if c, ok := w.(io.Closer); ok {
		cw.c = c
	}
	return cw
}

// Create creates a capture file at path, truncating an existing one
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create capture file: %w", err)
	}
	return NewWriter(f), nil
}

// Record appends one chunk received at received
func (w *Writer) Record(received time.Time, chunk []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.enc == nil {
		return errors.New("capture writer closed")
	}
	if err := w.enc.Encode(Record{UnixNano: received.UnixNano(), Chunk: chunk}); err != nil {
		return fmt.Errorf("failed to encode capture record: %w", err)
	}
	w.count++
	return nil
}

// Count returns the number of records written
func (w *Writer) Count() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Flush writes buffered records to the underlying writer
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Flush()
}

// Close flushes and closes the underlying writer if it is a Closer
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.enc == nil {
		return nil
	}
	w.enc = nil
	err := w.buf.Flush()
	if w.c != nil {
		if cerr := w.c.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Reader reads records from a capture stream
type Reader struct {
	dec *cbor.Decoder
	c   io.Closer
}

// NewReader reads records from r
func NewReader(r io.Reader) *Reader {
	cr := &Reader{dec: cbor.NewDecoder(bufio.NewReader(r))}
	if c, ok := r.(io.Closer); ok {
		cr.c = c
	}
	return cr
}

// Open opens a capture file
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture file: %w", err)
	}
	return NewReader(f), nil
}

// Next returns the next record, or io.EOF after the last one
func (r *Reader) Next() (Record, error) {
	var rec Record
	if err := r.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Record{}, fmt.Errorf("truncated capture record: %w", err)
		}
		return Record{}, fmt.Errorf("failed to decode capture record: %w", err)
	}
	return rec, nil
}

// Close closes the underlying reader if it is a Closer
func (r *Reader) Close() error {
	if r.c == nil {
		return nil
	}
	return r.c.Close()
}
