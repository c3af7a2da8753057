// Package events publishes transcription results to Kafka.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/petems/whisper-pipe/internal/metrics"
	"github.com/petems/whisper-pipe/internal/pipeline"
)

// Publisher writes one message per TranscriptionResult, keyed by segment ID.
// Without brokers it only logs.
type Publisher struct {
	writer  *kafka.Writer
	topic   string
	enabled bool
	log     zerolog.Logger
	metrics *metrics.Metrics
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers []string `json:"brokers"`
	Topic   string   `json:"topic"`
	Enabled bool     `json:"enabled"`
}

// New creates a publisher. A nil or disabled config yields log-only mode.
func New(cfg *Config, log zerolog.Logger) *Publisher {
	log = log.With().Str("component", "events").Logger()
	m := metrics.Default

	if cfg == nil || !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Msg("Kafka disabled, using log-only mode")
		p := &Publisher{log: log, metrics: m}
		if cfg != nil {
			p.topic = cfg.Topic
		}
		return p
	}

	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    &kafka.Transport{Dial: dialer.DialFunc},
	}

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topic", cfg.Topic).
		Msg("Kafka publisher initialized")

	return &Publisher{
		writer:  writer,
		topic:   cfg.Topic,
		enabled: true,
		log:     log,
		metrics: m,
	}
}

// Publish sends res as JSON with a status header of "ok" or "error"
func (p *Publisher) Publish(ctx context.Context, res pipeline.TranscriptionResult) error {
	payload, err := json.Marshal(res)
	if err != nil {
		p.log.Error().Err(err).Str("segment", res.Input.ID).Msg("Failed to marshal result")
		p.metrics.RecordPublish(err)
		return err
	}

	status := "ok"
	if !res.OK() {
		status = "error"
	}

	p.log.Debug().
		Str("topic", p.topic).
		Str("key", res.Input.ID).
		Str("status", status).
		RawJSON("payload", payload).
		Msg("Publishing result")

	if !p.enabled || p.writer == nil {
		p.metrics.RecordPublish(nil)
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(res.Input.ID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "status", Value: []byte(status)},
			{Key: "device", Value: []byte(res.Input.Device.String())},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.log.Error().
			Err(err).
			Str("topic", p.topic).
			Str("key", res.Input.ID).
			Msg("Failed to write to Kafka")
		p.metrics.RecordPublish(err)
		return err
	}

	p.metrics.RecordPublish(nil)
	return nil
}

// Close flushes and closes the Kafka writer.
func (p *Publisher) Close() error {
	if p.writer == nil {
		return nil
	}
	if err := p.writer.Close(); err != nil {
		p.log.Error().Err(err).Msg("Error closing Kafka writer")
		return err
	}
	return nil
}
