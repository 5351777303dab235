package consumer

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// RabbitMQConsumer acks a message on successful insert and nacks with
// requeue on transient insert failure, per spec.md §4.D. Deserialization
// failures are acked (dropped), never requeued, to avoid a poison-message
// loop.
type RabbitMQConsumer struct {
	channel     *amqp.Channel
	queue       string
	prefetch    int
	consumerTag string
	sink        RecordSink
	log         *zap.Logger
}

func NewRabbitMQConsumer(channel *amqp.Channel, queue, consumerTag string, prefetch int, sink RecordSink, log *zap.Logger) (*RabbitMQConsumer, error) {
	if prefetch > 0 {
		if err := channel.Qos(prefetch, 0, false); err != nil {
			return nil, fmt.Errorf("consumer: rabbitmq: qos: %w", err)
		}
	}
	return &RabbitMQConsumer{channel: channel, queue: queue, prefetch: prefetch, consumerTag: consumerTag, sink: sink, log: log}, nil
}

// Run consumes until ctx is cancelled or the delivery channel closes.
func (c *RabbitMQConsumer) Run(ctx context.Context) error {
	deliveries, err := c.channel.Consume(c.queue, c.consumerTag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consumer: rabbitmq: consume: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			c.handle(ctx, d)
		}
	}
}

func (c *RabbitMQConsumer) handle(ctx context.Context, d amqp.Delivery) {
	records, err := decode(d.Body)
	if err != nil {
		logDrop(c.log, "rabbitmq", err)
		_ = d.Ack(false)
		return
	}
	if err := c.sink.WriteBatch(ctx, records); err != nil {
		c.log.Error("consumer: rabbitmq insert failed, requeuing", zap.Error(err))
		_ = d.Nack(false, true)
		return
	}
	_ = d.Ack(false)
}
