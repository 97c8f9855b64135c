package notify

import (
	"context"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// amqpChannel is the subset of *amqp.Channel used for publishing
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// amqpPublisher publishes events to a RabbitMQ exchange
type amqpPublisher struct {
	conn       *amqp.Connection
	channel    amqpChannel
	exchange   string
	routingKey string
	logger     *zap.Logger
}

// NewAMQPNotifier connects to RabbitMQ and declares the exchange
func NewAMQPNotifier(cfg *AMQPConfig, logger *zap.Logger) (Notifier, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("amqp URL is required")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	// The default exchange always exists and cannot be declared
	if cfg.Exchange != "" {
		if err := ch.ExchangeDeclare(cfg.Exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return nil, fmt.Errorf("failed to declare exchange %s: %w", cfg.Exchange, err)
		}
	}

	logger.Info("Connected to RabbitMQ", zap.String("exchange", cfg.Exchange))
	p := newAMQPPublisher(ch, cfg, logger)
	p.conn = conn
	return &eventNotifier{channel: ChannelAMQP, pub: p}, nil
}

func newAMQPPublisher(ch amqpChannel, cfg *AMQPConfig, logger *zap.Logger) *amqpPublisher {
	return &amqpPublisher{
		channel:    ch,
		exchange:   cfg.Exchange,
		routingKey: cfg.RoutingKey,
		logger:     logger,
	}
}

func (p *amqpPublisher) publish(ctx context.Context, event Event, body []byte) error {
	err := p.channel.PublishWithContext(ctx, p.exchange, p.routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.EventID,
		Timestamp:    event.Timestamp,
		Type:         event.EventType,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish amqp message: %w", err)
	}
	return nil
}

func (p *amqpPublisher) Close() error {
	var errs []error
	if err := p.channel.Close(); err != nil {
		errs = append(errs, err)
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
