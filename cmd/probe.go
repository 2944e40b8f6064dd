// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/trackstation/pkg/telemetry"
	"github.com/spf13/cobra"
)

var (
	probeTimeout int
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Test the receive link by waiting for a telemetry frame",
	Long: `Wait for a chunk carrying the frame sentinel on the receive port until timeout.

Chunks without the sentinel and malformed hex pairs are counted and ignored.
Nothing is logged or recorded.

Exit codes:
  0 - Frame received before timeout
  1 - Timeout reached without receiving a frame
  2 - Connection error

Useful for checking wiring and baud rate before a session.`,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
	probeCmd.Flags().IntVar(&probeTimeout, "timeout", 10, "Timeout in seconds to wait for a frame")
}

func runProbe(cmd *cobra.Command, args []string) error {
	conn, err := OpenReceive()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	layout := appCfg.Layout()

	fmt.Printf("Trackstation - Link Probe\n")
	fmt.Printf("Connection: %s\n", conn.Info())
	fmt.Printf("Timeout: %d seconds\n", probeTimeout)
	fmt.Printf("Waiting for %s...\n\n", layout)

	frameChan := make(chan *telemetry.Frame, 1)
	errChan := make(chan error, 1)

	// Reader goroutine
	go func() {
		buf := make([]byte, appCfg.Receive.ChunkSize)
		var chunks, faults int
		var seq uint64
		for {
			n, err := conn.Read(buf)
			if err != nil {
				errChan <- err
				return
			}
			if n == 0 {
				continue
			}

			seq++
			values, decodeFaults := telemetry.DecodePairs(buf[:n])
			faults += len(decodeFaults)
			if frame, ok := layout.Detect(seq, values, time.Now()); ok {
				if chunks > 0 || faults > 0 {
					fmt.Printf("(skipped %d chunks, %d malformed pairs before the first frame)\n", chunks, faults)
				}
				frameChan <- frame
				return
			}
			chunks++
		}
	}()

	// Wait for a frame or timeout
	select {
	case frame := <-frameChan:
		fmt.Printf("SUCCESS: Received telemetry frame\n")
		fmt.Print(telemetry.FormatFrame(frame, layout))
		os.Exit(0)

	case err := <-errChan:
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		os.Exit(2)

	case <-time.After(time.Duration(probeTimeout) * time.Second):
		fmt.Fprintf(os.Stderr, "TIMEOUT: No frame received within %d seconds\n", probeTimeout)
		os.Exit(1)
	}

	return nil
}
