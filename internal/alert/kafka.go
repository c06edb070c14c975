package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// producer is the part of *kgo.Client the channel uses.
type producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

// KafkaChannel produces alerts to a topic, keyed by fingerprint so repeated
// alerts for one posting land on one partition.
type KafkaChannel struct {
	client producer
	topic  string
}

// NewKafkaChannel connects a producer to the given brokers.
func NewKafkaChannel(brokers []string, topic string) (*KafkaChannel, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ClientID("jobradar"),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerLinger(10*time.Millisecond),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}
	return &KafkaChannel{client: client, topic: topic}, nil
}

func (k *KafkaChannel) Name() string {
	return "kafka"
}

func (k *KafkaChannel) Send(ctx context.Context, a Alert) error {
	value, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}
	record := &kgo.Record{
		Topic: k.topic,
		Key:   []byte(a.Fingerprint),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "source", Value: []byte(a.Source)},
		},
	}
	if err := k.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("failed to produce alert: %w", err)
	}
	return nil
}

// Close flushes and closes the producer.
func (k *KafkaChannel) Close() {
	k.client.Close()
}
