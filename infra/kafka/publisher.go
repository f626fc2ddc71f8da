// Package kafka publishes registry lifecycle events to a Kafka topic.
// Two client libraries are supported behind Publisher: IBM/sarama
// (sync producer, default) and segmentio/kafka-go (writer).
package kafka

import (
	"context"
	"fmt"
	"strings"
)

// Publisher sends one keyed message and blocks until the broker
// acknowledges it.
type Publisher interface {
	Publish(ctx context.Context, key, value []byte) error
	Close() error
}

const (
	DriverSarama  = "sarama"
	DriverKafkaGo = "kafka-go"
)

type Config struct {
	Driver  string
	Brokers []string
	Topic   string
}

// NewPublisher picks the client library named by cfg.Driver.
func NewPublisher(cfg Config) (Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: no brokers configured")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka: empty topic")
	}
	switch strings.ToLower(cfg.Driver) {
	case "", DriverSarama:
		return NewSaramaPublisher(cfg.Brokers, cfg.Topic)
	case DriverKafkaGo:
		return NewWriterPublisher(cfg.Brokers, cfg.Topic), nil
	default:
		return nil, fmt.Errorf("kafka: unknown driver %q", cfg.Driver)
	}
}
