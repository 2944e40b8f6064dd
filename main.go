// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Trackstation - Ground-Station Telemetry Console
//
// A CLI tool for sending commands over a serial telemetry link and decoding,
// plotting and logging the telemetry that comes back.

package main

import (
	"fmt"
	"os"

	"github.com/Thermoquad/trackstation/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
