// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telemetry

import (
	"fmt"
	"strconv"
	"strings"
)

// DecodeFault describes a character pair that is not a 2-digit hex number.
// The pair is skipped; decoding continues with the next one.
type DecodeFault struct {
	Offset int // index of the pair's first character after spaces are removed
	Pair   string
	Err    error
}

// Error implements the error interface
func (f *DecodeFault) Error() string {
	return fmt.Sprintf("malformed hex pair %q at offset %d", f.Pair, f.Offset)
}

// Unwrap returns the underlying parse error
func (f *DecodeFault) Unwrap() error {
	return f.Err
}

// DecodeASCII returns the chunk as text, dropping bytes outside 7-bit ASCII
func DecodeASCII(chunk []byte) string {
	var b strings.Builder
	b.Grow(len(chunk))
	for _, c := range chunk {
		if c < 0x80 {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// DecodePairs turns a raw chunk into decoded values. Every two non-space
// ASCII characters are parsed as one base-16 byte. A trailing unpaired
// character is dropped and malformed pairs are reported and skipped.
func DecodePairs(chunk []byte) ([]byte, []DecodeFault) {
	chars := make([]byte, 0, len(chunk))
	for _, c := range chunk {
		if c >= 0x80 || c == ' ' {
			continue
		}
		chars = append(chars, c)
	}

	values := make([]byte, 0, len(chars)/2)
	var faults []DecodeFault
	for i := 0; i+1 < len(chars); i += 2 {
		pair := string(chars[i : i+2])
		v, err := strconv.ParseUint(pair, 16, 8)
		if err != nil {
			faults = append(faults, DecodeFault{Offset: i, Pair: pair, Err: err})
			continue
		}
		values = append(values, byte(v))
	}
	return values, faults
}

// SummarizeFaults renders faults of one chunk as a single status line
func SummarizeFaults(faults []DecodeFault) string {
	if len(faults) == 0 {
		return ""
	}
	const shown = 4
	parts := make([]string, 0, shown)
	for i, f := range faults {
		if i == shown {
			parts = append(parts, fmt.Sprintf("+%d more", len(faults)-shown))
			break
		}
		parts = append(parts, fmt.Sprintf("%q@%d", f.Pair, f.Offset))
	}
	return fmt.Sprintf("skipped %d malformed hex pair(s): %s", len(faults), strings.Join(parts, ", "))
}
