package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// streamAdder is the part of the redis client the stream notifier needs.
type streamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// RedisStream appends each message to a Redis stream for a bot process to consume.
type RedisStream struct {
	client streamAdder
	stream string
	logger *zap.Logger
	now    func() time.Time
}

// ensure RedisStream implements the interface
var _ Notifier = (*RedisStream)(nil)

// StreamPayload is the JSON document stored under the "payload" field of each entry.
type StreamPayload struct {
	Message string    `json:"message"`
	SentAt  time.Time `json:"sent_at"`
}

// NewRedisStream creates a stream notifier.
func NewRedisStream(client streamAdder, stream string, logger *zap.Logger) *RedisStream {
	return &RedisStream{client: client, stream: stream, logger: logger.Named("redis-stream"), now: time.Now}
}

// Notify adds one stream entry per message.
func (r *RedisStream) Notify(ctx context.Context, messages ...string) error {
	for _, m := range messages {
		payload, err := json.Marshal(StreamPayload{Message: m, SentAt: r.now().UTC()})
		if err != nil {
			return fmt.Errorf("failed to marshal notification: %w", err)
		}

		if err := r.client.XAdd(ctx, &redis.XAddArgs{
			Stream: r.stream,
			Values: map[string]interface{}{"payload": payload},
		}).Err(); err != nil {
			r.logger.Error("Failed to enqueue notification", zap.Error(err), zap.String("stream", r.stream))
			return fmt.Errorf("failed to enqueue notification: %w", err)
		}
	}
	return nil
}
