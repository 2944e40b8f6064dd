// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"

	"github.com/Thermoquad/trackstation/pkg/config"
	"github.com/Thermoquad/trackstation/pkg/logging"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	// Transmit (command) port flags
	portName string
	baudRate int

	// Receive (telemetry) port flags
	rxPortName string
	rxBaudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Runtime flags
	configPath   string
	logLevel     string
	debugLogPath string
	outputDir    string
)

var (
	// appCfg is the loaded configuration with explicit flags applied
	appCfg config.Config

	// diag is the diagnostics logger
	diag = zerolog.Nop()

	// diagFile is set when diagnostics go to --debug-log
	diagFile *os.File
)

var rootCmd = &cobra.Command{
	Use:   "trackstation",
	Short: "Ground-station console for serial telemetry links",
	Long: `Trackstation - A ground-station console for a serial telemetry link.

Sends hex command strings on a transmit port, continuously decodes the ASCII
hex stream arriving on a receive port into telemetry samples, plots them and
logs everything to text and spreadsheet files.

Connection modes:
  Serial:    --port COM3 [--baud 9600] [--rx-port COM4] [--rx-baud 9600]
  WebSocket: --url ws://host/path [--username user]

Without --rx-port the transmit port also carries telemetry. A WebSocket
connection carries both directions.

For WebSocket authentication, the password is read from the TRACKSTATION_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version:           "1.0.0",
	SilenceUsage:      true,
	PersistentPreRunE: loadRuntime,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if diagFile != nil {
			diagFile.Close()
		}
	},
}

func init() {
	// Transmit port flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Transmit serial port")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 9600, "Transmit baud rate (9600 or 115200)")

	// Receive port flags
	rootCmd.PersistentFlags().StringVarP(&rxPortName, "rx-port", "r", "", "Receive serial port (defaults to the transmit port)")
	rootCmd.PersistentFlags().IntVar(&rxBaudRate, "rx-baud", 9600, "Receive baud rate (9600 or 115200)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	// Runtime flags
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "TOML configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Diagnostics level (trace, debug, info, warn, error, off)")
	rootCmd.PersistentFlags().StringVar(&debugLogPath, "debug-log", "", "Write diagnostics to this file")
	rootCmd.PersistentFlags().StringVarP(&outputDir, "output-dir", "o", "", "Directory for logs and workbooks")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// loadRuntime loads the config file, applies explicitly set flags over it and
// builds the diagnostics logger
func loadRuntime(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Transmit.Port = portName
	}
	if flags.Changed("baud") || cfg.Transmit.Baud == 0 {
		cfg.Transmit.Baud = baudRate
	}
	if flags.Changed("rx-port") {
		cfg.Receive.Port = rxPortName
	}
	if flags.Changed("rx-baud") || cfg.Receive.Baud == 0 {
		cfg.Receive.Baud = rxBaudRate
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if flags.Changed("debug-log") {
		cfg.Log.File = debugLogPath
	}
	if flags.Changed("output-dir") {
		cfg.Output.Dir = outputDir
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	appCfg = cfg

	opts := logging.Options{Level: cfg.Log.Level}
	if cfg.Log.File != "" {
		logger, f, err := logging.NewFile(cfg.Log.File, opts)
		if err != nil {
			return fmt.Errorf("failed to open debug log: %w", err)
		}
		diag, diagFile = logger, f
	} else {
		diag = logging.New(os.Stderr, opts)
	}
	return nil
}
