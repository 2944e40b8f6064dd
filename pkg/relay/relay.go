// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package relay publishes telemetry samples to an MQTT broker
package relay

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Thermoquad/trackstation/pkg/telemetry"
)

const (
	queueSize      = 256
	publishTimeout = 5 * time.Second
)

// Config describes the broker and topic
type Config struct {
	Broker   string
	Topic    string
	ClientID string
	Username string
	Password string
	QoS      byte
	Source   string // port name stamped on every message
}

// Message is the JSON body published for each sample
type Message struct {
	ID        string `json:"id"`
	Source    string `json:"source"`
	Sequence  uint64 `json:"sequence"`
	Value     int    `json:"value"`
	Unit      string `json:"unit"`
	Timestamp int64  `json:"timestamp"` // unix nanos
}

// EncodeSample builds the JSON body for a sample
func EncodeSample(source string, s telemetry.Sample) ([]byte, error) {
	return json.Marshal(Message{
		ID:        uuid.NewString(),
		Source:    source,
		Sequence:  s.Index,
		Value:     int(s.Value),
		Unit:      telemetry.SampleUnit,
		Timestamp: s.Timestamp.UnixNano(),
	})
}

// client is the part of mqtt.Client the publisher uses
type client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// Publisher forwards samples to MQTT from its own goroutine so a slow broker
// never holds up payload processing. Samples are dropped when the queue is
// full.
type Publisher struct {
	c      client
	topic  string
	qos    byte
	source string
	status telemetry.StatusSink
	log    zerolog.Logger

	queue     chan telemetry.Sample
	wg        sync.WaitGroup
	closeOnce sync.Once

	published atomic.Uint64
	dropped   atomic.Uint64
	failed    atomic.Uint64
}

// Connect dials the broker and returns a running publisher
func Connect(cfg Config, status telemetry.StatusSink, log zerolog.Logger) (*Publisher, error) {
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "trackstation-" + uuid.NewString()[:8]
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetKeepAlive(60 * time.Second).
		SetPingTimeout(10 * time.Second)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	c := mqtt.NewClient(opts)
	token := c.Connect()
	if ok := token.WaitTimeout(10 * time.Second); !ok {
		return nil, fmt.Errorf("MQTT connect to %s timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("MQTT connect to %s failed: %w", cfg.Broker, err)
	}

	log.Info().Str("broker", cfg.Broker).Str("topic", cfg.Topic).Msg("relay connected")
	return newPublisher(c, cfg, status, log), nil
}

func newPublisher(c client, cfg Config, status telemetry.StatusSink, log zerolog.Logger) *Publisher {
	if status == nil {
		status = telemetry.StatusFunc(func(string, bool) {})
	}
	p := &Publisher{
		c:      c,
		topic:  cfg.Topic,
		qos:    cfg.QoS,
		source: cfg.Source,
		status: status,
		log:    log,
		queue:  make(chan telemetry.Sample, queueSize),
	}
	p.wg.Add(1)
	go p.run()
	return p
}

// Forward queues a sample for publication
func (p *Publisher) Forward(s telemetry.Sample) {
	defer func() {
		// Forward after Close
		if recover() != nil {
			p.dropped.Add(1)
		}
	}()
	select {
	case p.queue <- s:
	default:
		if p.dropped.Add(1) == 1 {
			p.status.Report("Relay queue full, dropping samples", true)
		}
	}
}

// Published returns the number of samples delivered to the broker
func (p *Publisher) Published() uint64 {
	return p.published.Load()
}

// Dropped returns the number of samples lost to a full queue
func (p *Publisher) Dropped() uint64 {
	return p.dropped.Load()
}

// Failed returns the number of failed publications
func (p *Publisher) Failed() uint64 {
	return p.failed.Load()
}

// Close drains the queue and disconnects
func (p *Publisher) Close() {
	p.closeOnce.Do(func() {
		close(p.queue)
		p.wg.Wait()
		p.c.Disconnect(250)
	})
}

func (p *Publisher) run() {
	defer p.wg.Done()
	for s := range p.queue {
		if err := p.publish(s); err != nil {
			if p.failed.Add(1) == 1 {
				p.status.Report(fmt.Sprintf("Relay publish failed: %v", err), true)
			}
			p.log.Warn().Err(err).Uint64("index", s.Index).Msg("relay publish failed")
			continue
		}
		p.published.Add(1)
	}
}

func (p *Publisher) publish(s telemetry.Sample) error {
	body, err := EncodeSample(p.source, s)
	if err != nil {
		return err
	}
	tok := p.c.Publish(p.topic, p.qos, false, body)
	if !tok.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish to %s timed out", p.topic)
	}
	return tok.Error()
}
