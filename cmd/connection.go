// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/Thermoquad/trackstation/pkg/session"
	"golang.org/x/term"
)

// GetPassword retrieves password from environment or prompts user
func GetPassword() (string, error) {
	// First check environment variable
	if pw := os.Getenv("TRACKSTATION_PASSWORD"); pw != "" {
		return pw, nil
	}

	// Prompt user for password (hide input)
	fmt.Fprint(os.Stderr, "Password: ")

	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}

// openWebSocket dials --url, prompting for a password when --username is set
func openWebSocket() (*session.Session, error) {
	password := ""
	if wsUsername != "" {
		var err error
		password, err = GetPassword()
		if err != nil {
			return nil, err
		}
	}
	return session.DialWebSocket(session.WebSocketConfig{
		URL:           wsURL,
		Username:      wsUsername,
		Password:      password,
		SkipSSLVerify: wsNoSSLVerify,
	}, diag)
}

// OpenTransmit opens the command port only
func OpenTransmit() (*session.Session, error) {
	if wsURL != "" {
		return openWebSocket()
	}
	if appCfg.Transmit.Port == "" {
		return nil, fmt.Errorf("either --port or --url must be specified")
	}
	return session.OpenSerial(appCfg.TransmitSerial(), diag)
}

// OpenReceive opens the telemetry port only. Without a receive port the
// transmit port settings are used.
func OpenReceive() (*session.Session, error) {
	if wsURL != "" {
		return openWebSocket()
	}
	cfg := appCfg.ReceiveSerial()
	if cfg.Port == "" {
		cfg = appCfg.TransmitSerial()
	}
	if cfg.Port == "" {
		return nil, fmt.Errorf("either --rx-port, --port or --url must be specified")
	}
	return session.OpenSerial(cfg, diag)
}

// OpenSessions opens the transmit and receive sessions. When both directions
// share a port, or a WebSocket is used, one session is returned twice.
func OpenSessions() (tx, rx *session.Session, err error) {
	if wsURL != "" {
		s, err := openWebSocket()
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	}

	if appCfg.Transmit.Port == "" && appCfg.Receive.Port == "" {
		return nil, nil, fmt.Errorf("either --port, --rx-port or --url must be specified")
	}

	if appCfg.Transmit.Port != "" {
		tx, err = session.OpenSerial(appCfg.TransmitSerial(), diag)
		if err != nil {
			return nil, nil, err
		}
	}

	if appCfg.Receive.Port == "" || appCfg.Receive.Port == appCfg.Transmit.Port {
		return tx, tx, nil
	}

	rx, err = session.OpenSerial(appCfg.ReceiveSerial(), diag)
	if err != nil {
		if tx != nil {
			tx.Close()
		}
		return nil, nil, err
	}
	return tx, rx, nil
}

// closeSessions closes tx and rx once each
func closeSessions(tx, rx *session.Session) {
	if rx != nil {
		rx.Close()
	}
	if tx != nil && tx != rx {
		tx.Close()
	}
}
