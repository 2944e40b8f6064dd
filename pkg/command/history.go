// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package command

import (
	"errors"
	"io/fs"
	"sync"
	"time"

	"github.com/Thermoquad/trackstation/pkg/export"
)

// History is the record of sent commands, persisted to an xlsx workbook after
// every send. With an empty path it is kept in memory only.
type History struct {
	mu    sync.Mutex
	path  string
	rows  []export.HistoryRow
	saved int // rows[:saved] are in the workbook
}

// NewHistory creates a history backed by path. Call Load to pick up rows
// already in the workbook.
func NewHistory(path string) *History {
	return &History{path: path}
}

// Load replaces the in-memory rows with the workbook contents. A missing
// workbook is an empty history.
func (h *History) Load() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.loadLocked()
}

// SetPath directs the history to another workbook and loads it. Rows that
// never reached the old workbook are carried over and saved to the new one.
func (h *History) SetPath(path string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	unsaved := append([]export.HistoryRow(nil), h.rows[h.saved:]...)
	old := h.path
	h.path = path
	if err := h.loadLocked(); err != nil {
		h.path = old
		return err
	}
	if len(unsaved) == 0 {
		return nil
	}
	for _, r := range unsaved {
		h.appendLocked(r.SentData, r.Date, r.Time)
	}
	return h.saveLocked()
}

// Path returns the backing workbook
func (h *History) Path() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.path
}

// Record appends a row for text sent at sent and saves the workbook. The
// count is the number of earlier rows with identical text plus one. When the
// save fails the row is still returned and kept for the next save.
func (h *History) Record(text string, sent time.Time) (export.HistoryRow, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	row := h.appendLocked(text, sent.Format(export.DateLayout), sent.Format(export.TimeLayout))
	return row, h.saveLocked()
}

// Count returns how many rows carry text
func (h *History) Count(text string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.countLocked(text)
}

// Rows returns a copy of the rows
func (h *History) Rows() []export.HistoryRow {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]export.HistoryRow, len(h.rows))
	copy(out, h.rows)
	return out
}

// Pending reports whether rows are waiting to be saved
func (h *History) Pending() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.saved < len(h.rows)
}

// Flush saves rows left over from a failed save
func (h *History) Flush() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.saved == len(h.rows) {
		return nil
	}
	return h.saveLocked()
}

func (h *History) appendLocked(text, date, clock string) export.HistoryRow {
	row := export.HistoryRow{
		Serial:   len(h.rows) + 1,
		Date:     date,
		Time:     clock,
		SentData: text,
		Count:    h.countLocked(text) + 1,
	}
	h.rows = append(h.rows, row)
	return row
}

func (h *History) countLocked(text string) int {
	n := 0
	for _, r := range h.rows {
		if r.SentData == text {
			n++
		}
	}
	return n
}

// loadLocked leaves the history untouched when the workbook cannot be read
func (h *History) loadLocked() error {
	var rows []export.HistoryRow
	if h.path != "" {
		var err error
		rows, err = export.ReadHistory(h.path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	h.rows = rows
	h.saved = len(rows)
	return nil
}

func (h *History) saveLocked() error {
	if h.path == "" {
		h.saved = len(h.rows)
		return nil
	}
	if err := export.WriteHistory(h.path, h.rows); err != nil {
		return err
	}
	h.saved = len(h.rows)
	return nil
}
