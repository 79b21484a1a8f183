package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Kafka publishes envelopes to a single topic, keyed by member id so one
// aggregate's events land on one partition in order.
type Kafka struct {
	client *kgo.Client
	topic  string
}

// KafkaConfig is the broker wiring the publisher needs.
type KafkaConfig struct {
	Brokers    []string
	Topic      string
	Partitions int32
	// ProduceTimeout bounds each synchronous produce.
	ProduceTimeout time.Duration
}

// NewKafka connects to the brokers and ensures the topic exists. Topic
// creation is idempotent; an already-exists response is not an error.
func NewKafka(ctx context.Context, cfg KafkaConfig) (*Kafka, error) {
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}
	if cfg.Partitions <= 0 {
		cfg.Partitions = 6
	}
	if cfg.ProduceTimeout <= 0 {
		cfg.ProduceTimeout = 10 * time.Second
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ProduceRequestTimeout(cfg.ProduceTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}

	admin := kadm.NewClient(client)
	responses, err := admin.CreateTopics(ctx, cfg.Partitions, 1, nil, cfg.Topic)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("ensure topic %s: %w", cfg.Topic, err)
	}
	for _, response := range responses {
		if response.Err != nil && !errors.Is(response.Err, kerr.TopicAlreadyExists) {
			client.Close()
			return nil, fmt.Errorf("ensure topic %s: %w", cfg.Topic, response.Err)
		}
	}

	return &Kafka{client: client, topic: cfg.Topic}, nil
}

// Publish synchronously produces one record. The Relay owns retries, so a
// failure returns immediately.
func (k *Kafka) Publish(ctx context.Context, envelope Envelope) error {
	value, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal envelope %s: %w", envelope.ID, err)
	}
	record := &kgo.Record{
		Topic: k.topic,
		Key:   []byte(envelope.Key()),
		Value: value,
	}
	if err := k.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce %s: %w", envelope.Name, err)
	}
	return nil
}

// Close flushes buffered records and releases the client.
func (k *Kafka) Close() {
	k.client.Close()
}
