// Package events provides event publishing functionality.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"voice-command-service/internal/observability/metrics"
)

// messageWriter is the subset of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher publishes turn events to separate Kafka topics.
type Publisher struct {
	writerRecognized messageWriter
	writerDispatched messageWriter
	principal        string
	topicRecognized  string
	topicDispatched  string
	enabled          bool
	metrics          *metrics.Metrics
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers         []string
	TopicRecognized string
	TopicDispatched string
	Principal       string
	Enabled         bool
}

// New creates a new Kafka event publisher with separate topics for
// recognition and dispatch events.
func New(cfg *Config) *Publisher {
	m := metrics.DefaultMetrics

	// Handle nil config case
	if cfg == nil {
		log.Info().Msg("Kafka disabled (nil config), using log-only mode")
		return &Publisher{
			enabled: false,
			metrics: m,
		}
	}

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Msg("Kafka disabled, using log-only mode")
		return &Publisher{
			principal:       cfg.Principal,
			topicRecognized: cfg.TopicRecognized,
			topicDispatched: cfg.TopicDispatched,
			enabled:         false,
			metrics:         m,
		}
	}

	// Longer dial timeout for DNS resolution in Kubernetes
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}

	transport := &kafka.Transport{
		Dial: dialer.DialFunc,
	}

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicRecognized", cfg.TopicRecognized).
		Str("topicDispatched", cfg.TopicDispatched).
		Str("principal", cfg.Principal).
		Msg("Kafka publisher initialized")

	return &Publisher{
		writerRecognized: newWriter(cfg.Brokers, cfg.TopicRecognized, transport),
		writerDispatched: newWriter(cfg.Brokers, cfg.TopicDispatched, transport),
		principal:        cfg.Principal,
		topicRecognized:  cfg.TopicRecognized,
		topicDispatched:  cfg.TopicDispatched,
		enabled:          true,
		metrics:          m,
	}
}

func newWriter(brokers []string, topic string, transport *kafka.Transport) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    transport,
	}
}

// PublishRecognized publishes a recognition event to the recognized topic.
func (p *Publisher) PublishRecognized(ctx context.Context, key string, event any) error {
	return p.publish(ctx, p.writerRecognized, p.topicRecognized, "recognized", key, event)
}

// PublishDispatched publishes a dispatch event to the dispatched topic.
func (p *Publisher) PublishDispatched(ctx context.Context, key string, event any) error {
	return p.publish(ctx, p.writerDispatched, p.topicDispatched, "dispatched", key, event)
}

// publish writes one event to a specific Kafka writer.
func (p *Publisher) publish(ctx context.Context, writer messageWriter, topic, eventType, key string, event any) error {
	start := time.Now()

	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("Failed to marshal event")
		return fmt.Errorf("failed to marshal %s event: %w", eventType, err)
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
			{Key: "eventType", Value: []byte(topic)},
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
		return fmt.Errorf("failed to publish %s event: %w", eventType, err)
	}

	p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
	return nil
}

// Close closes both Kafka writers.
func (p *Publisher) Close() error {
	var err error
	if p.writerRecognized != nil {
		if e := p.writerRecognized.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing recognized writer")
			err = e
		}
	}
	if p.writerDispatched != nil {
		if e := p.writerDispatched.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing dispatched writer")
			err = e
		}
	}
	return err
}
