// Package notify relays user-facing market messages to the chat front end.
package notify

import (
	"context"
	"errors"

	"timeout-exchange-go/internal/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Notifier delivers already formatted messages.
type Notifier interface {
	Notify(ctx context.Context, messages ...string) error
}

// Log writes every message to the logger. It is the fallback when no other
// sink is configured.
type Log struct {
	logger *zap.Logger
}

// NewLog creates a logging notifier.
func NewLog(logger *zap.Logger) *Log {
	return &Log{logger: logger.Named("notify")}
}

// Notify logs the messages.
func (l *Log) Notify(_ context.Context, messages ...string) error {
	for _, m := range messages {
		l.logger.Info("Market notification", zap.String("message", m))
	}
	return nil
}

// Multi fans messages out to several notifiers. Every notifier is attempted
// even if an earlier one fails.
type Multi []Notifier

// Notify sends to all notifiers and joins their errors.
func (m Multi) Notify(ctx context.Context, messages ...string) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, messages...); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// New builds the notifier described by cfg. The returned close function
// releases any connection the notifier holds.
func New(cfg config.Notify, redisCfg config.Redis, logger *zap.Logger) (Notifier, func() error) {
	sinks := Multi{NewLog(logger)}
	closeFn := func() error { return nil }

	if cfg.WebhookURL != "" {
		sinks = append(sinks, NewWebhook(cfg, logger))
	}
	if cfg.RedisStream != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     redisCfg.Addr,
			Password: redisCfg.Password,
			DB:       redisCfg.DB,
		})
		sinks = append(sinks, NewRedisStream(client, cfg.RedisStream, logger))
		closeFn = client.Close
	}
	return sinks, closeFn
}
