// Package scheduler keeps the market moving while nobody is trading.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"timeout-exchange-go/internal/exchange"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// CatchUpper replays the market up to the present.
type CatchUpper interface {
	CatchUp(ctx context.Context) (*exchange.CatchUpReport, error)
}

// Keeper triggers a market catch-up on a cron schedule, so that auto-sells
// fire and notifications go out even when no command touches the market.
type Keeper struct {
	market   CatchUpper
	schedule cron.Schedule
	logger   *zap.Logger
	now      func() time.Time
}

// NewKeeper parses spec, a five-field cron expression or a descriptor such
// as "@every 1m".
func NewKeeper(spec string, market CatchUpper, logger *zap.Logger) (*Keeper, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	schedule, err := parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid keep-alive schedule %q: %w", spec, err)
	}

	return &Keeper{
		market:   market,
		schedule: schedule,
		logger:   logger.Named("keeper"),
		now:      time.Now,
	}, nil
}

// Run blocks until ctx is cancelled.
func (k *Keeper) Run(ctx context.Context) {
	k.logger.Info("Starting market keeper")

	for {
		now := k.now()
		timer := time.NewTimer(k.schedule.Next(now).Sub(now))

		select {
		case <-ctx.Done():
			timer.Stop()
			k.logger.Info("Stopping market keeper...")
			return
		case <-timer.C:
			k.runOnce(ctx)
		}
	}
}

func (k *Keeper) runOnce(ctx context.Context) {
	report, err := k.market.CatchUp(ctx)
	if err != nil {
		k.logger.Error("Market catch-up failed", zap.Error(err))
		return
	}
	if report.Ticks > 0 {
		k.logger.Debug("Market caught up",
			zap.Int64("ticks", report.Ticks),
			zap.Int("notifications", len(report.Notifications)))
	}
}
