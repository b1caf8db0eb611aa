package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"entitlement-manager/core/reconcile"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// amqpChannel is the subset of *amqp.Channel used by RabbitMQ.
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitMQ publishes snapshot envelopes to a topic exchange.
type RabbitMQ struct {
	conn     *amqp.Connection
	channel  amqpChannel
	exchange string
	log      *zap.Logger
	mu       sync.Mutex
}

// NewRabbitMQ connects to url and declares the topic exchange.
func NewRabbitMQ(url, exchange string, log *zap.Logger) (*RabbitMQ, error) {
	if log == nil {
		log = zap.NewNop()
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	log.Info("RabbitMQ publisher connected", zap.String("exchange", exchange))

	return &RabbitMQ{conn: conn, channel: ch, exchange: exchange, log: log}, nil
}

// Publish sends snap with routing key entitlements.snapshot.<user_id>.
func (p *RabbitMQ) Publish(ctx context.Context, snap *reconcile.Snapshot) error {
	payload, err := Encode(snap)
	if err != nil {
		return err
	}
	key := RoutingKey(snap.UserID)

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.channel.PublishWithContext(ctx,
		p.exchange, // exchange
		key,        // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Type:         SnapshotEventType,
			Body:         payload,
		},
	)
	if err != nil {
		p.log.Error("Failed to publish snapshot", zap.String("routing_key", key), zap.Error(err))
		return err
	}

	p.log.Debug("Snapshot published", zap.String("routing_key", key), zap.Int("size", len(payload)))
	return nil
}

// Close closes the channel and the connection.
func (p *RabbitMQ) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			p.log.Warn("Error closing channel", zap.Error(err))
		}
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
