// Package events publishes upload lifecycle events to Kafka.
package events

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/JonMunkholm/csvvault/internal/core"
)

const (
	numPartitions     = 3
	replicationFactor = 1
	dialTimeout       = 10 * time.Second

	// Each Publish carries one message; waiting for a fuller batch only adds latency.
	batchTimeout = 5 * time.Millisecond
	writeTimeout = 5 * time.Second
)

// KafkaPublisher writes msgpack-encoded upload events to a single topic.
// Messages are keyed by upload id so events for one upload stay ordered.
type KafkaPublisher struct {
	writer *kafka.Writer
	topic  string
}

var _ core.EventPublisher = (*KafkaPublisher)(nil)

// NewKafkaPublisher creates the topic when missing and returns a publisher for it.
func NewKafkaPublisher(ctx context.Context, brokers []string, topic string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("events: no kafka brokers configured")
	}
	if topic == "" {
		return nil, errors.New("events: topic is required")
	}

	ctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	if err := ensureTopic(ctx, brokers[0], topic); err != nil {
		return nil, fmt.Errorf("events: ensure topic %q: %w", topic, err)
	}

	return &KafkaPublisher{writer: newWriter(brokers, topic), topic: topic}, nil
}

func newWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchSize:    1,
		BatchTimeout: batchTimeout,
		WriteTimeout: writeTimeout,
	}
}

// Publish writes one event and waits for the broker to acknowledge it.
func (p *KafkaPublisher) Publish(ctx context.Context, event core.UploadEvent) error {
	msg, err := buildMessage(event)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("events: write %s: %w", event.Type, err)
	}
	return nil
}

// Close flushes pending writes and releases the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func buildMessage(event core.UploadEvent) (kafka.Message, error) {
	value, err := msgpack.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("events: encode %s: %w", event.Type, err)
	}
	return kafka.Message{
		Key:   []byte(event.UploadID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(event.Type)},
		},
		Time: event.OccurredAt,
	}, nil
}

func ensureTopic(ctx context.Context, broker, topic string) error {
	conn, err := kafka.DialContext(ctx, "tcp", broker)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	partitions, err := conn.ReadPartitions(topic)
	if err == nil && len(partitions) > 0 {
		return nil
	}
	if err != nil && !errors.Is(err, kafka.UnknownTopicOrPartition) {
		return err
	}

	controller, err := conn.Controller()
	if err != nil {
		return err
	}

	controllerConn, err := kafka.DialContext(ctx, "tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return err
	}
	defer func() { _ = controllerConn.Close() }()

	return controllerConn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     numPartitions,
		ReplicationFactor: replicationFactor,
	})
}
