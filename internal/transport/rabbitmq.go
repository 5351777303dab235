package transport

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/scouter-ml/scouter/internal/types"
	"go.uber.org/zap"
)

// RabbitMQPublisher publishes ServerRecords batches to a named queue, per
// spec.md §4.B. Prefetch/QoS and manual ack are consumer-side only, as the
// spec mandates; the publisher does not configure them.
type RabbitMQPublisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
	log     *zap.Logger
}

func NewRabbitMQPublisher(address, queue string, log *zap.Logger) (*RabbitMQPublisher, error) {
	conn, err := amqp.Dial(address)
	if err != nil {
		return nil, fmt.Errorf("transport: rabbitmq: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("transport: rabbitmq: channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("transport: rabbitmq: queue declare: %w", err)
	}
	return &RabbitMQPublisher{conn: conn, channel: ch, queue: queue, log: log}, nil
}

func (p *RabbitMQPublisher) Publish(ctx context.Context, records types.ServerRecords) error {
	body, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("transport: rabbitmq: marshal: %w", err)
	}
	return p.channel.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
}

func (p *RabbitMQPublisher) Flush(_ context.Context) error { return nil }

func (p *RabbitMQPublisher) Close() error {
	if err := p.channel.Close(); err != nil {
		return err
	}
	return p.conn.Close()
}
