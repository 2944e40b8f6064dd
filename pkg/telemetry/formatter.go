// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telemetry

import (
	"fmt"
	"strings"
)

// FormatSample renders a sample value for the display sink
func FormatSample(value byte) string {
	return fmt.Sprintf("%d %s", value, SampleUnit)
}

// FormatHex renders values as space separated upper-case hex pairs
func FormatHex(values []byte) string {
	if len(values) == 0 {
		return ""
	}
	var b strings.Builder
	b.Grow(len(values) * 3)
	for i, v := range values {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%02X", v)
	}
	return b.String()
}

// FormatFrame formats a frame into a human-readable string
func FormatFrame(f *Frame, layout FrameLayout) string {
	timestamp := f.Timestamp().Format("15:04:05.000")
	result := fmt.Sprintf("[%s] FRAME #%d len=%d\n", timestamp, f.Sequence(), f.Len())

	values := f.Values()
	if v, ok := layout.Payload(values); ok {
		result += fmt.Sprintf("  Sample: %s\n", FormatSample(v))
	} else {
		result += fmt.Sprintf("  Sample: (frame shorter than %d values)\n", layout.PayloadOffset+1)
	}

	first, second := Split(values)
	result += fmt.Sprintf("  First:  %s\n", FormatHex(first))
	result += fmt.Sprintf("  Second: %s\n", FormatHex(second))
	return result
}
