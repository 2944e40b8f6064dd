// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package rxlog writes the append-only receive log: one line per read cycle
package rxlog

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Thermoquad/trackstation/pkg/export"
)

const (
	fileLayout  = "2006-01-02_15-04-05"
	entryLayout = "2006-01-02 15:04:05"
)

// FileName returns the log file name for a session started at start
func FileName(start time.Time) string {
	return "serial_log_" + start.Format(fileLayout) + ".txt"
}

// Log is the receive log. It has a single writer, the receive loop.
type Log struct {
	mu    sync.Mutex
	path  string
	f     *os.File
	lines uint64
}

// Create creates the log in dir for a session started at start and writes the
// header line. A name collision picks a " (n)" suffix.
func Create(dir string, start time.Time) (*Log, error) {
	path, err := export.UniquePath(filepath.Join(dir, FileName(start)))
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, &export.IOError{Op: "create log", Path: path, Err: err}
	}
	if _, err := fmt.Fprintf(f, "Log started at %s\n", start.Format(fileLayout)); err != nil {
		f.Close()
		return nil, &export.IOError{Op: "write log", Path: path, Err: err}
	}
	return &Log{path: path, f: f}, nil
}

// Path returns the log file path
func (l *Log) Path() string {
	return l.path
}

// Lines returns the number of entries written
func (l *Log) Lines() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lines
}

// LogChunk appends "[<date> <time>] <text>" for one read cycle
func (l *Log) LogChunk(received time.Time, text string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return &export.IOError{Op: "write log", Path: l.path, Err: os.ErrClosed}
	}
	if _, err := fmt.Fprintf(l.f, "[%s] %s\n", received.Format(entryLayout), text); err != nil {
		return &export.IOError{Op: "write log", Path: l.path, Err: err}
	}
	l.lines++
	return nil
}

// Close closes the log file
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f = nil
	if err != nil {
		return &export.IOError{Op: "close log", Path: l.path, Err: err}
	}
	return nil
}
