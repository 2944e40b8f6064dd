// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Thermoquad/trackstation/pkg/capture"
	"github.com/spf13/cobra"
)

var (
	replayRealtime   bool
	replaySpeed      float64
	replayPlot       bool
	replayShowChunks bool
	replayExport     string
)

var replayCmd = &cobra.Command{
	Use:   "replay <capture>",
	Short: "Run a capture file through the receive pipeline",
	Long: `Feed the raw chunks of a capture file (recorded with monitor --capture)
through the same decode, reassembly and frame detection as a live port.

Chunk boundaries and original receive times are preserved. With --realtime
the recorded gaps between chunks are reproduced, scaled by --speed.

Replays write no receive log and never publish to MQTT.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().BoolVar(&replayRealtime, "realtime", false, "Reproduce the recorded timing")
	replayCmd.Flags().Float64Var(&replaySpeed, "speed", 1, "Playback speed multiplier for --realtime")
	replayCmd.Flags().BoolVar(&replayPlot, "plot", true, "Print the sample chart when the replay ends")
	replayCmd.Flags().BoolVar(&replayShowChunks, "show-chunks", false, "Print every replayed chunk")
	replayCmd.Flags().StringVar(&replayExport, "export", "", "Export replayed text to this workbook (\"-\" for a timestamped name)")
}

func runReplay(cmd *cobra.Command, args []string) error {
	if replaySpeed <= 0 {
		return fmt.Errorf("--speed must be positive, got %g", replaySpeed)
	}

	r, err := capture.Open(args[0])
	if err != nil {
		return err
	}
	src := capture.NewReplayer(r, replayRealtime, replaySpeed)
	defer src.Close()

	fmt.Printf("Trackstation - Capture Replay\n")
	fmt.Printf("Capture: %s\n\n", args[0])

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runTextPipeline(ctx, os.Stdout, textRun{
		source:     src,
		sourceName: args[0],
		export:     replayExport,
		showChunks: replayShowChunks,
		plot:       replayPlot,
		closer:     src,
	})
}
