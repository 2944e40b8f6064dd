// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package telemetry

import "time"

// Frame layout defaults
const (
	DefaultSentinelOffset = 6
	DefaultSentinelValue  = 0xAB
	DefaultPayloadOffset  = 11
)

// Receive loop defaults
const (
	DefaultAccumulationLimit = 200
	DefaultChunkSize         = 1024
	DefaultPollInterval      = 500 * time.Millisecond
)

// SampleUnit is appended to every displayed sample value
const SampleUnit = "V"
