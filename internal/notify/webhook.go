package notify

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"timeout-exchange-go/internal/config"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const maxRetries = 3

// Webhook posts messages to a chat webhook, one request per message.
type Webhook struct {
	client  *resty.Client
	url     string
	logger  *zap.Logger
	limiter *rate.Limiter
	// backoff is the first retry delay; it doubles on every attempt.
	backoff time.Duration
}

// ensure Webhook implements the interface
var _ Notifier = (*Webhook)(nil)

type webhookPayload struct {
	Content string `json:"content"`
}

// NewWebhook creates a webhook notifier.
func NewWebhook(cfg config.Notify, logger *zap.Logger) *Webhook {
	// rate.Limit is requests per second.
	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst)

	return &Webhook{
		client:  resty.New(),
		url:     cfg.WebhookURL,
		logger:  logger.Named("webhook"),
		limiter: limiter,
		backoff: time.Second,
	}
}

// Notify posts each message. It stops at the first message that cannot be delivered.
func (w *Webhook) Notify(ctx context.Context, messages ...string) error {
	for _, m := range messages {
		req := w.client.R().
			SetContext(ctx).
			SetHeader("Content-Type", "application/json").
			SetBody(webhookPayload{Content: m})

		if _, err := w.doRequest(ctx, req); err != nil {
			w.logger.Error("Failed to deliver notification", zap.Error(err), zap.String("message", m))
			return fmt.Errorf("failed to deliver notification: %w", err)
		}
	}
	return nil
}

// doRequest posts with rate limiting, retrying throttled, server and network failures.
func (w *Webhook) doRequest(ctx context.Context, req *resty.Request) (*resty.Response, error) {
	var resp *resty.Response
	var err error

	for i := 0; i < maxRetries; i++ {
		if err := w.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		resp, err = req.Post(w.url)
		if err == nil && !resp.IsError() {
			return resp, nil
		}

		shouldRetry := false
		var retryAfter time.Duration

		if err == nil {
			statusCode := resp.StatusCode()
			if statusCode == http.StatusTooManyRequests {
				shouldRetry = true
				if seconds, err := strconv.Atoi(resp.Header().Get("Retry-After")); err == nil {
					retryAfter = time.Duration(seconds) * time.Second
				}
			} else if statusCode >= 500 {
				shouldRetry = true
			}
		} else {
			shouldRetry = true
		}

		if !shouldRetry {
			return nil, fmt.Errorf("request failed with status %s: %s", resp.Status(), resp.String())
		}

		if retryAfter == 0 {
			retryAfter = time.Duration(math.Pow(2, float64(i))) * w.backoff
		}

		w.logger.Warn("Request failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(err),
		)

		select {
		case <-time.After(retryAfter):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err == nil {
		err = fmt.Errorf("status %s", resp.Status())
	}
	return nil, fmt.Errorf("request failed after %d attempts: %w", maxRetries, err)
}
