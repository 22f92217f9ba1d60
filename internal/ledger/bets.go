package ledger

import (
	"context"
	"fmt"

	"timeout-exchange-go/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Odds summarises the open betting pool for one target.
type Odds struct {
	TargetID int64   `json:"target_id"`
	Total    float64 `json:"total"`
	// Chance is the target's share of the whole pool.
	Chance float64 `json:"chance"`
	// Stakes maps each gambler to the amount they have on this target.
	Stakes map[int64]float64 `json:"stakes"`
}

// PlaceBet stakes credit on target being picked next.
func (l *Ledger) PlaceBet(ctx context.Context, gamblerID, targetID int64, amount float64) (*models.Bet, error) {
	defer l.users.Lock(gamblerID)()

	bet := &models.Bet{GamblerID: gamblerID, TargetID: targetID, Amount: amount}
	err := l.spend(ctx, gamblerID, amount, func(tx *gorm.DB) error {
		return tx.Create(bet).Error
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("Bet placed", zap.Int64("gambler", gamblerID), zap.Int64("target", targetID), zap.Float64("amount", amount))
	return bet, nil
}

// OpenOdds groups the unsettled bets by target.
func (l *Ledger) OpenOdds(ctx context.Context) (map[int64]*Odds, error) {
	var bets []models.Bet
	if err := l.db.WithContext(ctx).Where("settled = ?", false).Find(&bets).Error; err != nil {
		return nil, fmt.Errorf("failed to load bets: %w", err)
	}
	return computeOdds(bets), nil
}

func computeOdds(bets []models.Bet) map[int64]*Odds {
	odds := make(map[int64]*Odds)
	var pool float64
	for _, b := range bets {
		o, ok := odds[b.TargetID]
		if !ok {
			o = &Odds{TargetID: b.TargetID, Stakes: make(map[int64]float64)}
			odds[b.TargetID] = o
		}
		o.Total += b.Amount
		o.Stakes[b.GamblerID] += b.Amount
		pool += b.Amount
	}
	if pool > 0 {
		for _, o := range odds {
			o.Chance = o.Total / pool
		}
	}
	return odds
}

// SettleBets closes the current betting round with winnerID picked. The whole
// pool is split between those who backed the winner in proportion to their
// stake. If nobody backed the winner the stakes are forfeited. It returns the
// payout per gambler.
func (l *Ledger) SettleBets(ctx context.Context, winnerID int64) (map[int64]float64, error) {
	payouts := make(map[int64]float64)
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var bets []models.Bet
		if err := tx.Where("settled = ?", false).Find(&bets).Error; err != nil {
			return err
		}
		if len(bets) == 0 {
			return nil
		}

		odds := computeOdds(bets)
		var pool float64
		for _, o := range odds {
			pool += o.Total
		}
		if won, ok := odds[winnerID]; ok && won.Total > 0 {
			for gambler, stake := range won.Stakes {
				payouts[gambler] = pool * stake / won.Total
			}
		}

		for gambler, amount := range payouts {
			if err := tx.Create(&models.BetPayout{UserID: gambler, Amount: amount}).Error; err != nil {
				return err
			}
		}
		// Only the bets that made up the pool; one placed since the Find stays open.
		ids := make([]uint, 0, len(bets))
		for _, b := range bets {
			ids = append(ids, b.ID)
		}
		return tx.Model(&models.Bet{}).Where("id IN ?", ids).Update("settled", true).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to settle bets: %w", err)
	}

	l.logger.Info("Bets settled", zap.Int64("winner", winnerID), zap.Int("winners", len(payouts)))
	return payouts, nil
}
