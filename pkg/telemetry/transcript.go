// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telemetry

import (
	"strings"
	"sync"
)

// Transcript keeps the decoded ASCII text of every read cycle so it can be
// exported as received data
type Transcript struct {
	mu     sync.RWMutex
	chunks []string
}

// NewTranscript creates an empty transcript
func NewTranscript() *Transcript {
	return &Transcript{}
}

// Append stores the text of one read cycle
func (t *Transcript) Append(text string) {
	t.mu.Lock()
	t.chunks = append(t.chunks, text)
	t.mu.Unlock()
}

// Len returns the number of stored read cycles
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.chunks)
}

// Lines returns the transcript split into lines, one cycle starting a new line
func (t *Transcript) Lines() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var lines []string
	for _, chunk := range t.chunks {
		chunk = strings.ReplaceAll(chunk, "\r\n", "\n")
		chunk = strings.ReplaceAll(chunk, "\r", "\n")
		chunk = strings.TrimSuffix(chunk, "\n")
		lines = append(lines, strings.Split(chunk, "\n")...)
	}
	return lines
}

// Tail returns at most n of the newest lines
func (t *Transcript) Tail(n int) []string {
	lines := t.Lines()
	if n <= 0 || len(lines) <= n {
		return lines
	}
	return lines[len(lines)-n:]
}
