// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package export writes command history and received data to xlsx workbooks
package export

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

const (
	HistorySheet  = "History"
	ReceivedSheet = "Received"

	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05"
)

// HistoryHeaders is the header row of a history workbook
var HistoryHeaders = []string{"Serial", "Date", "Time", "Sent Data", "Count"}

// ReceivedHeader is the single column of a received-data workbook
const ReceivedHeader = "Received Data"

// IOError reports a failed export, history or log file operation
type IOError struct {
	Op   string
	Path string
	Err  error
}

// Error implements the error interface
func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error
func (e *IOError) Unwrap() error {
	return e.Err
}

// HistoryRow is one sent command
type HistoryRow struct {
	Serial   int
	Date     string
	Time     string
	SentData string
	Count    int
}

// NewHistoryRow stamps a row with the date and time of sent
func NewHistoryRow(serial int, sent time.Time, text string, count int) HistoryRow {
	return HistoryRow{
		Serial:   serial,
		Date:     sent.Format(DateLayout),
		Time:     sent.Format(TimeLayout),
		SentData: text,
		Count:    count,
	}
}

// HistoryFileName returns the default workbook name for a history started at now
func HistoryFileName(now time.Time) string {
	return "TRACK_" + now.Format("20060102_150405") + ".xlsx"
}

// ReceivedFileName returns the default workbook name for a received-data export
func ReceivedFileName(now time.Time) string {
	return "RECEIVED_" + now.Format("20060102_150405") + ".xlsx"
}

// UniquePath returns path if nothing exists there, otherwise the first free
// "name (n).ext" with n counting from 1
func UniquePath(path string) (string, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return path, nil
	} else if err != nil {
		return "", &IOError{Op: "stat", Path: path, Err: err}
	}

	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s (%d)%s", base, n, ext)
		_, err := os.Stat(candidate)
		if errors.Is(err, fs.ErrNotExist) {
			return candidate, nil
		}
		if err != nil {
			return "", &IOError{Op: "stat", Path: candidate, Err: err}
		}
	}
}

// CreateHistory creates an empty history workbook in dir with a collision-free
// timestamped name and returns its path
func CreateHistory(dir string, now time.Time) (string, error) {
	path, err := UniquePath(filepath.Join(dir, HistoryFileName(now)))
	if err != nil {
		return "", err
	}
	if err := WriteHistory(path, nil); err != nil {
		return "", err
	}
	return path, nil
}

// WriteHistory writes rows to path, replacing any existing workbook
func WriteHistory(path string, rows []HistoryRow) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), HistorySheet); err != nil {
		return &IOError{Op: "write history", Path: path, Err: err}
	}
	if err := setRow(f, HistorySheet, 1, stringsToCells(HistoryHeaders)); err != nil {
		return &IOError{Op: "write history", Path: path, Err: err}
	}
	for i, r := range rows {
		cells := []interface{}{r.Serial, r.Date, r.Time, r.SentData, r.Count}
		if err := setRow(f, HistorySheet, i+2, cells); err != nil {
			return &IOError{Op: "write history", Path: path, Err: err}
		}
	}
	_ = f.SetColWidth(HistorySheet, "B", "C", 12)
	_ = f.SetColWidth(HistorySheet, "D", "D", 60)

	if err := f.SaveAs(path); err != nil {
		return &IOError{Op: "write history", Path: path, Err: err}
	}
	return nil
}

// ReadHistory reads the rows of a history workbook. A missing file is
// reported as an IOError wrapping fs.ErrNotExist.
func ReadHistory(path string) ([]HistoryRow, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, &IOError{Op: "read history", Path: path, Err: err}
	}
	defer f.Close()

	sheet := HistorySheet
	if idx, _ := f.GetSheetIndex(sheet); idx < 0 {
		sheet = f.GetSheetName(0)
	}
	raw, err := f.GetRows(sheet)
	if err != nil {
		return nil, &IOError{Op: "read history", Path: path, Err: err}
	}

	var rows []HistoryRow
	for i, cells := range raw {
		if i == 0 || len(cells) == 0 {
			continue
		}
		for len(cells) < len(HistoryHeaders) {
			cells = append(cells, "")
		}
		serial, _ := strconv.Atoi(strings.TrimSpace(cells[0]))
		count, _ := strconv.Atoi(strings.TrimSpace(cells[4]))
		rows = append(rows, HistoryRow{
			Serial:   serial,
			Date:     cells[1],
			Time:     cells[2],
			SentData: cells[3],
			Count:    count,
		})
	}
	return rows, nil
}

// WriteReceived writes one row per line under a "Received Data" header
func WriteReceived(path string, lines []string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), ReceivedSheet); err != nil {
		return &IOError{Op: "export received", Path: path, Err: err}
	}
	if err := setRow(f, ReceivedSheet, 1, []interface{}{ReceivedHeader}); err != nil {
		return &IOError{Op: "export received", Path: path, Err: err}
	}
	for i, line := range lines {
		if err := setRow(f, ReceivedSheet, i+2, []interface{}{line}); err != nil {
			return &IOError{Op: "export received", Path: path, Err: err}
		}
	}
	_ = f.SetColWidth(ReceivedSheet, "A", "A", 80)

	if err := f.SaveAs(path); err != nil {
		return &IOError{Op: "export received", Path: path, Err: err}
	}
	return nil
}

// ReadTable reads the first sheet of a workbook as a header row and data rows.
// Rows are padded to the header width.
func ReadTable(path string) ([]string, [][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, &IOError{Op: "read table", Path: path, Err: err}
	}
	defer f.Close()

	raw, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, nil, &IOError{Op: "read table", Path: path, Err: err}
	}
	if len(raw) == 0 {
		return nil, nil, nil
	}

	headers := raw[0]
	width := len(headers)
	for _, r := range raw[1:] {
		if len(r) > width {
			width = len(r)
		}
	}
	for len(headers) < width {
		headers = append(headers, fmt.Sprintf("Column %d", len(headers)+1))
	}

	rows := make([][]string, 0, len(raw)-1)
	for _, r := range raw[1:] {
		if len(r) == 0 {
			continue
		}
		padded := make([]string, width)
		copy(padded, r)
		rows = append(rows, padded)
	}
	return headers, rows, nil
}

func setRow(f *excelize.File, sheet string, row int, cells []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &cells)
}

func stringsToCells(values []string) []interface{} {
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return cells
}
