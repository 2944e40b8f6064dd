// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads the trackstation TOML configuration file
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/Thermoquad/trackstation/pkg/session"
	"github.com/Thermoquad/trackstation/pkg/telemetry"
)

// Config is the full configuration. Every table is optional.
type Config struct {
	Transmit TransmitConfig `toml:"transmit"`
	Receive  ReceiveConfig  `toml:"receive"`
	Frame    FrameConfig    `toml:"frame"`
	Series   SeriesConfig   `toml:"series"`
	Output   OutputConfig   `toml:"output"`
	MQTT     MQTTConfig     `toml:"mqtt"`
	Log      LogConfig      `toml:"log"`
}

// TransmitConfig is the command port
type TransmitConfig struct {
	Port          string `toml:"port"`
	Baud          int    `toml:"baud"`
	ReadTimeoutMS int    `toml:"read_timeout_ms"`
}

// ReceiveConfig is the telemetry port and receive loop tuning
type ReceiveConfig struct {
	Port              string `toml:"port"`
	Baud              int    `toml:"baud"`
	ReadTimeoutMS     int    `toml:"read_timeout_ms"`
	ChunkSize         int    `toml:"chunk_size"`
	PollIntervalMS    int    `toml:"poll_interval_ms"`
	AccumulationLimit int    `toml:"accumulation_limit"`
}

// FrameConfig is the frame layout
type FrameConfig struct {
	SentinelOffset int `toml:"sentinel_offset"`
	SentinelValue  int `toml:"sentinel_value"`
	PayloadOffset  int `toml:"payload_offset"`
}

// SeriesConfig bounds the sample series; window 0 keeps every sample
type SeriesConfig struct {
	Window int `toml:"window"`
}

// OutputConfig controls files written during a session
type OutputConfig struct {
	Dir         string `toml:"dir"`
	ReceiveLog  bool   `toml:"receive_log"`
	HistoryFile string `toml:"history_file"`
	Commands    string `toml:"commands"`
}

// MQTTConfig enables the telemetry relay
type MQTTConfig struct {
	Enabled  bool   `toml:"enabled"`
	Broker   string `toml:"broker"`
	Topic    string `toml:"topic"`
	ClientID string `toml:"client_id"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	QoS      int    `toml:"qos"`
}

// LogConfig controls diagnostics
type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// Default returns the configuration used when no file is given
func Default() Config {
	return Config{
		Transmit: TransmitConfig{
			Baud:          9600,
			ReadTimeoutMS: int(session.DefaultReadTimeout / time.Millisecond),
		},
		Receive: ReceiveConfig{
			Baud:              9600,
			ReadTimeoutMS:     int(session.DefaultReadTimeout / time.Millisecond),
			ChunkSize:         telemetry.DefaultChunkSize,
			PollIntervalMS:    int(telemetry.DefaultPollInterval / time.Millisecond),
			AccumulationLimit: telemetry.DefaultAccumulationLimit,
		},
		Frame: FrameConfig{
			SentinelOffset: telemetry.DefaultSentinelOffset,
			SentinelValue:  telemetry.DefaultSentinelValue,
			PayloadOffset:  telemetry.DefaultPayloadOffset,
		},
		Output: OutputConfig{
			Dir:        ".",
			ReceiveLog: true,
		},
		MQTT: MQTTConfig{
			Topic: "trackstation/telemetry",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads path over the defaults and validates the result. An empty path
// returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("load config: unknown keys: %s", strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks every table and joins the problems found
func (c Config) Validate() error {
	var errs []error

	if c.Transmit.Port != "" {
		if err := session.ValidateBaud(c.Transmit.Baud); err != nil {
			errs = append(errs, fmt.Errorf("transmit: %w", err))
		}
	}
	if c.Receive.Port != "" {
		if err := session.ValidateBaud(c.Receive.Baud); err != nil {
			errs = append(errs, fmt.Errorf("receive: %w", err))
		}
	}
	if c.Receive.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("receive: chunk_size must be positive, got %d", c.Receive.ChunkSize))
	}
	if c.Receive.PollIntervalMS < 0 {
		errs = append(errs, fmt.Errorf("receive: poll_interval_ms must not be negative"))
	}
	if c.Receive.AccumulationLimit <= 0 {
		errs = append(errs, fmt.Errorf("receive: accumulation_limit must be positive, got %d", c.Receive.AccumulationLimit))
	}

	if c.Frame.SentinelValue < 0 || c.Frame.SentinelValue > 0xFF {
		errs = append(errs, fmt.Errorf("frame: sentinel_value must be 0-255, got %d", c.Frame.SentinelValue))
	}
	if err := c.Layout().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("frame: %w", err))
	}

	if c.Series.Window < 0 {
		errs = append(errs, fmt.Errorf("series: window must not be negative, got %d", c.Series.Window))
	}

	if c.MQTT.Enabled {
		if c.MQTT.Broker == "" {
			errs = append(errs, errors.New("mqtt: broker is required when enabled"))
		}
		if c.MQTT.Topic == "" {
			errs = append(errs, errors.New("mqtt: topic is required when enabled"))
		}
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, fmt.Errorf("mqtt: qos must be 0, 1 or 2, got %d", c.MQTT.QoS))
		}
	}

	return errors.Join(errs...)
}

// Layout returns the frame layout
func (c Config) Layout() telemetry.FrameLayout {
	return telemetry.FrameLayout{
		SentinelOffset: c.Frame.SentinelOffset,
		SentinelValue:  byte(c.Frame.SentinelValue),
		PayloadOffset:  c.Frame.PayloadOffset,
	}
}

// TransmitSerial returns the serial settings of the command port
func (c Config) TransmitSerial() session.Config {
	return session.Config{
		Port:        c.Transmit.Port,
		Baud:        c.Transmit.Baud,
		ReadTimeout: time.Duration(c.Transmit.ReadTimeoutMS) * time.Millisecond,
	}
}

// ReceiveSerial returns the serial settings of the telemetry port
func (c Config) ReceiveSerial() session.Config {
	return session.Config{
		Port:        c.Receive.Port,
		Baud:        c.Receive.Baud,
		ReadTimeout: time.Duration(c.Receive.ReadTimeoutMS) * time.Millisecond,
	}
}

// PollInterval returns the receive loop throttle
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.Receive.PollIntervalMS) * time.Millisecond
}
