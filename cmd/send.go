// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Thermoquad/trackstation/pkg/command"
	"github.com/Thermoquad/trackstation/pkg/export"
	"github.com/spf13/cobra"
)

var (
	sendPreset  bool
	historyPath string
)

var sendCmd = &cobra.Command{
	Use:   "send [command...]",
	Short: "Send one command on the transmit port",
	Long: `Send a hex command string on the transmit port and record it in the command
history workbook.

The words of the command are joined with single spaces, so both of these send
the same text:

  trackstation send --port COM3 "FA F3 20 56"
  trackstation send --port COM3 FA F3 20 56

Use --preset to send the default command. The history workbook is taken from
--history, then the configuration, and is otherwise created in the output
directory.`,
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().BoolVar(&sendPreset, "preset", false, "Send the default preset command")
	sendCmd.Flags().StringVar(&historyPath, "history", "", "Command history workbook")
}

func runSend(cmd *cobra.Command, args []string) error {
	text := strings.Join(args, " ")
	if sendPreset {
		if text != "" {
			return fmt.Errorf("--preset cannot be combined with a command")
		}
		text = command.PresetCommand
	}
	if strings.TrimSpace(text) == "" {
		return errors.New(msgEmptyCommand)
	}

	history, err := openHistory(historyPath, time.Now())
	if err != nil {
		return err
	}

	conn, err := OpenTransmit()
	if err != nil {
		return err
	}
	defer conn.Close()

	sender := command.NewSender(conn, history, diag)
	row, err := sender.Send(text)
	var ioErr *export.IOError
	if err != nil && !errors.As(err, &ioErr) {
		return err
	}

	fmt.Printf("Sent on %s: %s (count %d)\n", conn.Name(), row.SentData, row.Count)
	if err != nil {
		return fmt.Errorf("command sent but history was not saved: %w", err)
	}
	fmt.Printf("History: %s (%d rows)\n", history.Path(), len(history.Rows()))
	return nil
}

// openHistory resolves the history workbook from path, the configuration or a
// new timestamped workbook, and loads it
func openHistory(path string, now time.Time) (*command.History, error) {
	if path == "" {
		path = appCfg.Output.HistoryFile
	}
	if path == "" {
		created, err := export.CreateHistory(appCfg.Output.Dir, now)
		if err != nil {
			return nil, err
		}
		path = created
	}

	history := command.NewHistory(path)
	if err := history.Load(); err != nil {
		return nil, err
	}
	return history, nil
}
