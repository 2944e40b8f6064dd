// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// WebSocketConfig describes a bridged port reachable over WebSocket
type WebSocketConfig struct {
	URL           string
	Username      string
	Password      string
	SkipSSLVerify bool
}

// wsTransport adapts a WebSocket connection to a byte stream. Each message is
// one chunk; a message larger than the read buffer is returned over several
// reads.
type wsTransport struct {
	conn      *websocket.Conn
	buf       []byte
	bufOffset int
}

func (w *wsTransport) Read(p []byte) (int, error) {
	if w.bufOffset < len(w.buf) {
		n := copy(p, w.buf[w.bufOffset:])
		w.bufOffset += n
		return n, nil
	}

	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			return 0, err
		}
		// the bridge forwards the ASCII stream as text; binary is accepted too
		if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
			continue
		}
		if len(data) == 0 {
			continue
		}

		w.buf = data
		n := copy(p, w.buf)
		w.bufOffset = n
		return n, nil
	}
}

func (w *wsTransport) Write(p []byte) (int, error) {
	if err := w.conn.WriteMessage(websocket.TextMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *wsTransport) Close() error {
	deadline := time.Now().Add(time.Second)
	_ = w.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	return w.conn.Close()
}

// DialWebSocket connects to a ws:// or wss:// URL with optional HTTP Basic auth
func DialWebSocket(cfg WebSocketConfig, log zerolog.Logger) (*Session, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, &ConnectionError{Op: "open", Port: cfg.URL, Err: fmt.Errorf("invalid URL: %w", err)}
	}

	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, &ConnectionError{
			Op:   "open",
			Port: cfg.URL,
			Err:  fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme),
		}
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: cfg.SkipSSLVerify,
		}
	}

	headers := http.Header{}
	if cfg.Username != "" && cfg.Password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(cfg.Username + ":" + cfg.Password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, cfg.URL, headers)
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("HTTP %d: %w", resp.StatusCode, err)
		}
		return nil, &ConnectionError{Op: "open", Port: cfg.URL, Err: err}
	}

	log.Debug().Str("url", cfg.URL).Msg("websocket connected")
	return New(u.Host, fmt.Sprintf("WebSocket: %s", cfg.URL), &wsTransport{conn: conn}, log), nil
}
