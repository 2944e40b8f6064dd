// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telemetry

import (
	"fmt"
	"time"
)

// FrameLayout describes where the sentinel and the telemetry payload sit
// inside a decoded chunk
type FrameLayout struct {
	SentinelOffset int
	SentinelValue  byte
	PayloadOffset  int
}

// DefaultFrameLayout returns the layout used by the ground segment:
// sentinel 0xAB at index 6, sample at index 11
func DefaultFrameLayout() FrameLayout {
	return FrameLayout{
		SentinelOffset: DefaultSentinelOffset,
		SentinelValue:  DefaultSentinelValue,
		PayloadOffset:  DefaultPayloadOffset,
	}
}

// Validate checks the offsets are usable
func (l FrameLayout) Validate() error {
	if l.SentinelOffset < 0 {
		return fmt.Errorf("sentinel offset must not be negative, got %d", l.SentinelOffset)
	}
	if l.PayloadOffset < 0 {
		return fmt.Errorf("payload offset must not be negative, got %d", l.PayloadOffset)
	}
	return nil
}

// Matches reports whether a frame candidate carries the sentinel
func (l FrameLayout) Matches(values []byte) bool {
	return len(values) > l.SentinelOffset && values[l.SentinelOffset] == l.SentinelValue
}

// Payload returns the telemetry sample value if the candidate is long enough
func (l FrameLayout) Payload(values []byte) (byte, bool) {
	if len(values) <= l.PayloadOffset {
		return 0, false
	}
	return values[l.PayloadOffset], true
}

// Detect inspects a frame candidate and returns a Frame holding its own copy
// of the values when the sentinel matches
func (l FrameLayout) Detect(seq uint64, values []byte, received time.Time) (*Frame, bool) {
	if !l.Matches(values) {
		return nil, false
	}
	return NewFrame(seq, values, received), true
}

// String returns a short description for status lines
func (l FrameLayout) String() string {
	return fmt.Sprintf("sentinel 0x%02X@%d, sample@%d", l.SentinelValue, l.SentinelOffset, l.PayloadOffset)
}
