package transport

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/scouter-ml/scouter/internal/types"
	"go.uber.org/zap"
)

// RedisPublisher publishes ServerRecords batches to a pub/sub channel, per
// spec.md §4.B.
type RedisPublisher struct {
	client  *redis.Client
	channel string
	log     *zap.Logger
}

func NewRedisPublisher(addr, channel string, log *zap.Logger) *RedisPublisher {
	return &RedisPublisher{
		client:  redis.NewClient(&redis.Options{Addr: addr}),
		channel: channel,
		log:     log,
	}
}

func (p *RedisPublisher) Publish(ctx context.Context, records types.ServerRecords) error {
	body, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("transport: redis: marshal: %w", err)
	}
	return p.client.Publish(ctx, p.channel, body).Err()
}

func (p *RedisPublisher) Flush(_ context.Context) error { return nil }
func (p *RedisPublisher) Close() error                  { return p.client.Close() }
