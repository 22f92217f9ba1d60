package exchange

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"timeout-exchange-go/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CatchUpReport describes what one catch-up applied.
type CatchUpReport struct {
	Ticks int64
	// Notifications holds one message per trade the auto-sell scan closed.
	Notifications []string
}

// CatchUp replays every whole tick between the stored market time and now.
func (x *Exchange) CatchUp(ctx context.Context) (*CatchUpReport, error) {
	return x.CatchUpAt(ctx, x.now())
}

// CatchUpAt replays every whole tick between the stored market time and now.
// Each tick runs the background actors, advances every stock by one tick and
// scans auto-sell trades. Only whole ticks are consumed; the remainder stays
// on the clock for the next call. Concurrent callers are serialised, and a
// caller that finds the clock already current does nothing.
func (x *Exchange) CatchUpAt(ctx context.Context, now time.Time) (*CatchUpReport, error) {
	x.clockMu.Lock()
	defer x.clockMu.Unlock()

	cfg := x.engine.Config()
	tick := time.Duration(cfg.TickSeconds * float64(time.Second))
	if tick <= 0 {
		return nil, errors.New("tick size must be positive")
	}

	var clock models.MarketClock
	if err := x.db.WithContext(ctx).First(&clock, models.MarketClockID).Error; err != nil {
		return nil, storageError(fmt.Errorf("failed to load market clock: %w", err))
	}

	elapsed := now.Sub(clock.LastUpdate)
	n := int64(elapsed / tick)
	if n <= 0 {
		return &CatchUpReport{}, nil
	}

	unlock, err := x.lockMarket(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	start := time.Now()
	report := &CatchUpReport{Ticks: n}
	var stocks []*models.Stock

	err = x.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Order("id").Find(&stocks).Error; err != nil {
			return fmt.Errorf("failed to load stocks: %w", err)
		}

		var watched []*models.Trade
		if err := tx.Where(watchedTrades).Order("id").Find(&watched).Error; err != nil {
			return fmt.Errorf("failed to load auto-sell trades: %w", err)
		}
		byStock := make(map[uint][]*models.Trade)
		for _, t := range watched {
			byStock[t.StockID] = append(byStock[t.StockID], t)
		}

		for i := int64(0); i < n; i++ {
			clock.Ticks++
			if every := int64(cfg.ActorRetargetTicks); every > 0 && clock.Ticks%every == 0 {
				for _, s := range stocks {
					x.engine.Retarget(s)
				}
			}
			x.engine.SimulateActors(stocks)
			for _, s := range stocks {
				x.engine.Advance(s, cfg.TickSeconds)
			}
			for _, s := range stocks {
				if len(byStock[s.ID]) == 0 {
					continue
				}
				var msgs []string
				byStock[s.ID], msgs = x.scanAutoSell(tx, s, byStock[s.ID])
				report.Notifications = append(report.Notifications, msgs...)
			}
		}

		for _, s := range stocks {
			if err := tx.Save(s).Error; err != nil {
				return fmt.Errorf("failed to save stock %s: %w", s.Code, err)
			}
		}

		clock.LastUpdate = clock.LastUpdate.Add(time.Duration(n) * tick)
		if err := tx.Save(&clock).Error; err != nil {
			return fmt.Errorf("failed to save market clock: %w", err)
		}
		return nil
	})
	if err != nil {
		x.logger.Error("Catch-up failed", zap.Int64("ticks", n), zap.Error(err))
		return nil, storageError(err)
	}

	x.metrics.Ticks.Add(float64(n))
	x.metrics.CatchUpDuration.Observe(time.Since(start).Seconds())
	for _, s := range stocks {
		x.metrics.StockPrice.WithLabelValues(s.Code).Set(s.Value)
	}
	x.logger.Debug("Market caught up",
		zap.Int64("ticks", n),
		zap.Int("auto_sells", len(report.Notifications)),
		zap.Duration("took", time.Since(start)))

	if len(report.Notifications) > 0 {
		if err := x.notifier.Notify(ctx, report.Notifications...); err != nil {
			x.logger.Warn("Failed to relay auto-sell notifications", zap.Error(err))
		}
	}
	return report, nil
}

const watchedTrades = "sold_at IS NULL AND (auto_sell_low IS NOT NULL OR auto_sell_high IS NOT NULL)"

// lockMarket takes the locks a catch-up holds besides the clock: the owner of
// every auto-sell trade, then every stock. An auto-sell close moves its
// owner's balance, so that user's ledger writes wait for the catch-up. Once
// the stocks are held no order can add a new owner; if one slipped in before
// that, everything is released and taken again with the larger set.
func (x *Exchange) lockMarket(ctx context.Context) (func(), error) {
	var ids []uint
	if err := x.db.WithContext(ctx).Model(&models.Stock{}).Order("id").Pluck("id", &ids).Error; err != nil {
		return nil, storageError(fmt.Errorf("failed to list stocks: %w", err))
	}
	owners, err := x.autoSellOwners(ctx)
	if err != nil {
		return nil, err
	}

	for {
		unlockUsers := x.users.LockAll(owners...)
		unlockStocks := x.stocks.LockAll(ids...)
		release := func() {
			unlockStocks()
			unlockUsers()
		}

		current, err := x.autoSellOwners(ctx)
		if err != nil {
			release()
			return nil, err
		}
		missing := slices.DeleteFunc(current, func(id int64) bool {
			return slices.Contains(owners, id)
		})
		if len(missing) == 0 {
			return release, nil
		}
		release()
		owners = append(owners, missing...)
	}
}

func (x *Exchange) autoSellOwners(ctx context.Context) ([]int64, error) {
	var owners []int64
	err := x.db.WithContext(ctx).Model(&models.Trade{}).Where(watchedTrades).
		Distinct("user_id").Pluck("user_id", &owners).Error
	if err != nil {
		return nil, storageError(fmt.Errorf("failed to list auto-sell owners: %w", err))
	}
	return owners, nil
}

// scanAutoSell closes every trade on s whose stop has been crossed and returns
// the trades still being watched. A long or short is closed when its low
// bound is above the bid or its high bound is below the ask. Each close runs
// in its own savepoint, so a failing trade is logged and skipped without
// disturbing the rest of the tick.
func (x *Exchange) scanAutoSell(tx *gorm.DB, s *models.Stock, trades []*models.Trade) ([]*models.Trade, []string) {
	var messages []string
	remaining := trades[:0]

	for _, t := range trades {
		bid, ask := x.engine.Spread(s)
		triggered := (t.AutoSellLow != nil && *t.AutoSellLow > bid) ||
			(t.AutoSellHigh != nil && *t.AutoSellHigh < ask)
		if !triggered {
			remaining = append(remaining, t)
			continue
		}

		var fill, pl float64
		err := tx.Transaction(func(sp *gorm.DB) error {
			var err error
			fill, pl, err = x.settle(sp, s, t)
			return err
		})
		if err != nil {
			x.metrics.AutoSellFailures.Inc()
			x.logger.Error("Auto-sell failed",
				zap.Uint("trade_id", t.ID), zap.String("code", s.Code), zap.Error(err))
			if !errors.Is(err, ErrNotFound) {
				remaining = append(remaining, t)
			}
			continue
		}

		x.metrics.AutoSells.Inc()
		x.logger.Info("Auto-sold trade",
			zap.Uint("trade_id", t.ID), zap.Int64("user", t.UserID), zap.String("code", s.Code),
			zap.Float64("fill", fill), zap.Float64("pl", pl))
		messages = append(messages, closeMessage(t.UserID, t.Shares, s.Code, fill, pl, t.IsShort, true))
	}
	return remaining, messages
}
