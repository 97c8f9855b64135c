package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// kafkaWriter is the subset of *kafka.Writer used for publishing
type kafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// kafkaPublisher writes events to a Kafka topic keyed by event type
type kafkaPublisher struct {
	writer kafkaWriter
	logger *zap.Logger
}

// NewKafkaNotifier creates a notifier publishing to Kafka
func NewKafkaNotifier(cfg *KafkaConfig, logger *zap.Logger) (Notifier, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}
	timeout := cfg.WriteTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		WriteTimeout:           timeout,
		AllowAutoTopicCreation: true,
	}
	return newKafkaNotifier(writer, logger), nil
}

func newKafkaNotifier(writer kafkaWriter, logger *zap.Logger) Notifier {
	return &eventNotifier{
		channel: ChannelKafka,
		pub:     &kafkaPublisher{writer: writer, logger: logger},
	}
}

func (p *kafkaPublisher) publish(ctx context.Context, event Event, body []byte) error {
	err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.EventType),
		Value: body,
		Time:  event.Timestamp,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(event.EventID)},
			{Key: "content_type", Value: []byte("application/json")},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to write kafka message: %w", err)
	}
	return nil
}

func (p *kafkaPublisher) Close() error {
	return p.writer.Close()
}
