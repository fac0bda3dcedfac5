// Package kafka publishes events as JSON records to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"sitepulse/internal/emitter"
)

// Producer is the async produce call of *kgo.Client.
type Producer interface {
	Produce(ctx context.Context, r *kgo.Record, promise func(*kgo.Record, error))
}

// Envelope is the record value. Type is "capture", "identify", "reset" or
// "set_user_properties".
type Envelope struct {
	Type       string         `json:"type"`
	DistinctID string         `json:"distinct_id,omitempty"`
	Event      *emitter.Event `json:"event,omitempty"`
	Props      emitter.Props  `json:"props,omitempty"`
	SentAt     time.Time      `json:"sent_at"`
}

// Backend produces one record per call, keyed by distinct ID so a visitor's
// events stay ordered within a partition. Delivery failures are only logged.
type Backend struct {
	producer Producer
	topic    string
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures the Backend.
type Option func(*Backend)

func WithLogger(logger *slog.Logger) Option {
	return func(b *Backend) {
		b.logger = logger
	}
}

func WithClock(now func() time.Time) Option {
	return func(b *Backend) {
		b.now = now
	}
}

func New(producer Producer, topic string, opts ...Option) *Backend {
	b := &Backend{
		producer: producer,
		topic:    topic,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Dial creates a franz-go client for brokers.
func Dial(brokers []string, clientID string) (*kgo.Client, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka: no seed brokers")
	}
	return kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ClientID(clientID),
		kgo.ProducerLinger(50*time.Millisecond),
		kgo.RecordRetries(3),
	)
}

// EnsureTopic creates topic if it does not exist.
func EnsureTopic(ctx context.Context, client *kgo.Client, topic string, partitions int32, replication int16) error {
	admin := kadm.NewClient(client)
	resp, err := admin.CreateTopics(ctx, partitions, replication, nil, topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	for _, r := range resp {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", r.Topic, r.Err)
		}
	}
	return nil
}

func (b *Backend) Name() string { return "kafka" }

func (b *Backend) Capture(ctx context.Context, event emitter.Event) error {
	ev := event
	return b.produce(ctx, Envelope{Type: "capture", DistinctID: event.DistinctID, Event: &ev})
}

func (b *Backend) Identify(ctx context.Context, distinctID string, props emitter.Props) error {
	return b.produce(ctx, Envelope{Type: "identify", DistinctID: distinctID, Props: props})
}

func (b *Backend) Reset(ctx context.Context) error {
	return b.produce(ctx, Envelope{Type: "reset"})
}

func (b *Backend) SetUserProperties(ctx context.Context, distinctID string, props emitter.Props) error {
	return b.produce(ctx, Envelope{Type: "set_user_properties", DistinctID: distinctID, Props: props})
}

func (b *Backend) produce(ctx context.Context, env Envelope) error {
	env.SentAt = b.now().UTC()
	value, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode %s envelope: %w", env.Type, err)
	}
	record := &kgo.Record{
		Topic: b.topic,
		Key:   []byte(env.DistinctID),
		Value: value,
	}
	// The request context ends long before delivery.
	b.producer.Produce(context.WithoutCancel(ctx), record, func(r *kgo.Record, err error) {
		if err != nil {
			b.logger.Warn("kafka produce failed",
				"topic", r.Topic,
				"type", env.Type,
				"error", err,
			)
		}
	})
	return nil
}
