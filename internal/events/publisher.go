// Package events publishes slide media events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"ai-course-media-service/internal/models"
	"ai-course-media-service/internal/observability/metrics"
)

// messageWriter is the part of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher publishes captions, reveal commands and slide failures to
// separate Kafka topics. With Kafka disabled it only logs.
type Publisher struct {
	writerCaptions messageWriter
	writerReveals  messageWriter
	writerFailures messageWriter
	principal      string
	topicCaptions  string
	topicReveals   string
	topicFailures  string
	enabled        bool
	metrics        *metrics.Metrics
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers       []string
	TopicCaptions string
	TopicReveals  string
	TopicFailures string
	Principal     string
	Enabled       bool
}

// New creates a new Kafka event publisher with one topic per event kind.
func New(cfg *Config) *Publisher {
	m := metrics.DefaultMetrics

	if cfg == nil {
		log.Info().Msg("Kafka disabled (nil config), using log-only mode")
		return &Publisher{
			enabled: false,
			metrics: m,
		}
	}

	p := &Publisher{
		principal:     cfg.Principal,
		topicCaptions: cfg.TopicCaptions,
		topicReveals:  cfg.TopicReveals,
		topicFailures: cfg.TopicFailures,
		metrics:       m,
	}

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Msg("Kafka disabled, using log-only mode")
		return p
	}

	// Longer dial timeout for DNS resolution in Kubernetes
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	transport := &kafka.Transport{
		Dial: dialer.DialFunc,
	}
	newWriter := func(topic string) *kafka.Writer {
		return &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 10 * time.Millisecond,
			WriteTimeout: 10 * time.Second,
			RequiredAcks: kafka.RequireOne,
			Transport:    transport,
		}
	}

	p.writerCaptions = newWriter(cfg.TopicCaptions)
	p.writerReveals = newWriter(cfg.TopicReveals)
	p.writerFailures = newWriter(cfg.TopicFailures)
	p.enabled = true

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicCaptions", cfg.TopicCaptions).
		Str("topicReveals", cfg.TopicReveals).
		Str("topicFailures", cfg.TopicFailures).
		Str("principal", cfg.Principal).
		Msg("Kafka publisher initialized")
	return p
}

// PublishCaptions publishes a completed slide, keyed by slide id.
func (p *Publisher) PublishCaptions(ctx context.Context, event models.CaptionsReady) error {
	return p.publish(ctx, p.writerCaptions, p.topicCaptions, "captions", event.SlideID, event)
}

// PublishReveal publishes a reveal command, keyed by slide id so one slide's
// commands stay ordered within a partition.
func (p *Publisher) PublishReveal(ctx context.Context, event models.RevealCommandEvent) error {
	return p.publish(ctx, p.writerReveals, p.topicReveals, "reveal", event.SlideID, event)
}

// PublishFailure publishes a slide failure, keyed by slide id.
func (p *Publisher) PublishFailure(ctx context.Context, event models.SlideFailed) error {
	return p.publish(ctx, p.writerFailures, p.topicFailures, "failure", event.SlideID, event)
}

// publish is the internal method that writes to a specific Kafka writer.
func (p *Publisher) publish(ctx context.Context, writer messageWriter, topic, eventType, key string, event any) error {
	start := time.Now()

	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("Failed to marshal event")
		return err
	}

	log.Debug().
		Str("principal", p.principal).
		Str("topic", topic).
		Str("key", key).
		RawJSON("payload", payload).
		Msg("Publishing event")

	// If Kafka is disabled, just log
	if !p.enabled || writer == nil {
		p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(eventType)},
			{Key: "principal", Value: []byte(p.principal)},
		},
	}

	if err := writer.WriteMessages(ctx, msg); err != nil {
		log.Error().
			Err(err).
			Str("topic", topic).
			Str("key", key).
			Msg("Failed to write to Kafka")
		p.metrics.RecordKafkaPublish(topic, eventType, err, time.Since(start).Seconds())
		return err
	}

	p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
	return nil
}

// Close closes all Kafka writers.
func (p *Publisher) Close() error {
	var errs []error
	for _, w := range []messageWriter{p.writerCaptions, p.writerReveals, p.writerFailures} {
		if w == nil {
			continue
		}
		if err := w.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing Kafka writer")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
