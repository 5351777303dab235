package consumer

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisConsumer subscribes to a pub/sub channel. Redis pub/sub has no
// redelivery mechanism, so insert failures are logged and the message is
// simply lost, which is the best any subscriber of a fire-and-forget
// channel can do; callers needing at-least-once delivery should use Kafka
// or RabbitMQ instead.
type RedisConsumer struct {
	client  *redis.Client
	channel string
	sink    RecordSink
	log     *zap.Logger
}

func NewRedisConsumer(addr, channel string, sink RecordSink, log *zap.Logger) *RedisConsumer {
	return &RedisConsumer{
		client:  redis.NewClient(&redis.Options{Addr: addr}),
		channel: channel,
		sink:    sink,
		log:     log,
	}
}

// Run subscribes and processes messages until ctx is cancelled.
func (c *RedisConsumer) Run(ctx context.Context) error {
	sub := c.client.Subscribe(ctx, c.channel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			records, err := decode([]byte(msg.Payload))
			if err != nil {
				logDrop(c.log, "redis", err)
				continue
			}
			if err := c.sink.WriteBatch(ctx, records); err != nil {
				c.log.Error("consumer: redis insert failed, message is lost", zap.Error(err))
			}
		}
	}
}
