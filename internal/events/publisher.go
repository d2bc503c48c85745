// Package events publishes preference-change events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Proton-105/profile-service/internal/domain"
	"github.com/Proton-105/profile-service/pkg/config"
	"github.com/Proton-105/profile-service/pkg/metrics"
)

const eventTypeHeader = "eventType"

// Publisher emits preference-change events. Publish never blocks on the broker
// and never reports failures to the caller; outcomes are only logged.
type Publisher interface {
	Publish(ctx context.Context, userID string, categories domain.CategoryMap, difficulty *int, eventType domain.EventType)
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events keyed by user id so one user's events stay on one partition.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	log    *slog.Logger
	now    func() time.Time
}

var _ Publisher = (*KafkaPublisher)(nil)

// NewKafkaPublisher builds an async kafka-go writer from configuration.
func NewKafkaPublisher(cfg config.KafkaConfig, log *slog.Logger) *KafkaPublisher {
	if log == nil {
		log = slog.Default()
	}

	p := &KafkaPublisher{
		topic: cfg.Topic,
		log:   log.With(slog.String("component", "events"), slog.String("topic", cfg.Topic)),
		now:   time.Now,
	}

	p.writer = &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        true,
		BatchTimeout: cfg.BatchTimeout,
		WriteTimeout: cfg.WriteTimeout,
		Completion:   p.onCompletion,
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			p.log.Error(fmt.Sprintf(msg, args...))
		}),
	}

	return p
}

func newPublisherWithWriter(w messageWriter, topic string, log *slog.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: w, topic: topic, log: log, now: time.Now}
}

// Publish serializes the event and hands it to the async writer.
func (p *KafkaPublisher) Publish(ctx context.Context, userID string, categories domain.CategoryMap, difficulty *int, eventType domain.EventType) {
	event := domain.PreferenceEvent{
		UserID:     userID,
		Categories: categories,
		Difficulty: difficulty,
		UpdatedAt:  domain.EventTime(p.now()),
		EventType:  eventType,
	}

	payload, err := json.Marshal(event)
	if err != nil {
		metrics.RecordEventPublished(string(eventType), "serialization_failed")
		p.log.Error("failed to serialize preference event",
			slog.String("user_id", userID),
			slog.String("event_type", string(eventType)),
			slog.Any("error", err),
		)
		return
	}

	msg := kafka.Message{
		Key:     []byte(userID),
		Value:   payload,
		Headers: []kafka.Header{{Key: eventTypeHeader, Value: []byte(eventType)}},
	}

	// The writer is async: this returns once the message is queued. The request
	// context is detached so a finished HTTP request cannot drop the event.
	if err := p.writer.WriteMessages(context.WithoutCancel(ctx), msg); err != nil {
		metrics.RecordEventPublished(string(eventType), "failed")
		p.log.Error("failed to enqueue preference event",
			slog.String("user_id", userID),
			slog.String("event_type", string(eventType)),
			slog.Any("error", err),
		)
		return
	}

	p.log.Debug("preference event queued",
		slog.String("user_id", userID),
		slog.String("event_type", string(eventType)),
	)
}

func (p *KafkaPublisher) onCompletion(messages []kafka.Message, err error) {
	for _, msg := range messages {
		eventType := headerValue(msg, eventTypeHeader)
		if err != nil {
			metrics.RecordEventPublished(eventType, "failed")
			p.log.Error("preference event delivery failed",
				slog.String("user_id", string(msg.Key)),
				slog.String("event_type", eventType),
				slog.Any("error", err),
			)
			continue
		}

		metrics.RecordEventPublished(eventType, "delivered")
		p.log.Info("preference event delivered",
			slog.String("user_id", string(msg.Key)),
			slog.String("event_type", eventType),
			slog.Int("partition", msg.Partition),
			slog.Int64("offset", msg.Offset),
		)
	}
}

// Close flushes queued messages.
func (p *KafkaPublisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

func headerValue(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

// NoopPublisher logs events instead of sending them; used when Kafka is disabled.
type NoopPublisher struct {
	log *slog.Logger
}

func NewNoopPublisher(log *slog.Logger) *NoopPublisher {
	if log == nil {
		log = slog.Default()
	}
	return &NoopPublisher{log: log}
}

func (p *NoopPublisher) Publish(_ context.Context, userID string, _ domain.CategoryMap, _ *int, eventType domain.EventType) {
	metrics.RecordEventPublished(string(eventType), "skipped")
	p.log.Debug("event publishing disabled", slog.String("user_id", userID), slog.String("event_type", string(eventType)))
}

func (p *NoopPublisher) Close() error { return nil }

// BrokerChecker verifies that at least one broker accepts connections.
type BrokerChecker struct {
	brokers []string
	dial    func(ctx context.Context, network, address string) (*kafka.Conn, error)
}

func NewBrokerChecker(brokers []string) *BrokerChecker {
	return &BrokerChecker{brokers: brokers, dial: kafka.DialContext}
}

func (c *BrokerChecker) HealthCheck(ctx context.Context) error {
	if len(c.brokers) == 0 {
		return errors.New("no kafka brokers configured")
	}

	var errs []error
	for _, broker := range c.brokers {
		conn, err := c.dial(ctx, "tcp", broker)
		if err != nil {
			errs = append(errs, fmt.Errorf("dial %s: %w", broker, err))
			continue
		}
		_ = conn.Close()
		return nil
	}

	return errors.Join(errs...)
}
