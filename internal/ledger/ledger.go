// Package ledger derives and moves timeout credit. Credit is never stored as
// a running total; it is recomputed from the rows that produce it.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"timeout-exchange-go/internal/keylock"
	"timeout-exchange-go/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrInsufficientFunds is returned when an operation costs more credit than the user has.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrInvalidAmount is returned for zero, negative or otherwise unusable amounts.
	ErrInvalidAmount = errors.New("invalid amount")
)

// Ledger performs credit-moving operations. Operations touching a user take
// that user's lock from the shared lock map before opening a transaction.
type Ledger struct {
	db     *gorm.DB
	users  *keylock.Map[int64]
	logger *zap.Logger
}

// New creates a ledger. users must be the same lock map every other component
// that spends credit uses, or affordability checks can race.
func New(db *gorm.DB, users *keylock.Map[int64], logger *zap.Logger) *Ledger {
	if users == nil {
		users = keylock.New[int64]()
	}
	return &Ledger{db: db, users: users, logger: logger.Named("ledger")}
}

// Users returns the per-user lock map.
func (l *Ledger) Users() *keylock.Map[int64] {
	return l.users
}

// Balance returns the user's spendable credit in seconds.
func (l *Ledger) Balance(ctx context.Context, userID int64) (float64, error) {
	return Balance(l.db.WithContext(ctx), userID)
}

// Balance nets a user's credit inside tx:
//
//	duration + gifts received - gifts sent - purchases
//	- open trade cost + realized trade P/L - bet stakes + bet payouts
//
// Running it on the caller's transaction keeps it consistent with writes made there.
func Balance(tx *gorm.DB, userID int64) (float64, error) {
	var total float64
	for _, term := range balanceTerms(tx, userID) {
		var v float64
		if err := term.query.Scan(&v).Error; err != nil {
			return 0, fmt.Errorf("failed to sum %s: %w", term.name, err)
		}
		total += term.sign * v
	}
	return total, nil
}

type balanceTerm struct {
	name  string
	sign  float64
	query *gorm.DB
}

func balanceTerms(tx *gorm.DB, userID int64) []balanceTerm {
	sum := func(model any, expr string) *gorm.DB {
		return tx.Model(model).Select("COALESCE(SUM(" + expr + "), 0)")
	}
	return []balanceTerm{
		{"duration", 1, sum(&models.User{}, "duration").Where("id = ?", userID)},
		{"gifts received", 1, sum(&models.Gift{}, "amount").Where("receiver_id = ?", userID)},
		{"gifts sent", -1, sum(&models.Gift{}, "amount").Where("giver_id = ?", userID)},
		{"purchases", -1, sum(&models.Purchase{}, "cost").Where("user_id = ?", userID)},
		{"open trades", -1, sum(&models.Trade{}, "bought_at * shares").
			Where("user_id = ? AND sold_at IS NULL", userID)},
		{"realized trades", 1, sum(&models.Trade{},
			"CASE WHEN is_short THEN (bought_at - sold_at) * shares ELSE (sold_at - bought_at) * shares END").
			Where("user_id = ? AND sold_at IS NOT NULL", userID)},
		{"bet stakes", -1, sum(&models.Bet{}, "amount").Where("gambler_id = ?", userID)},
		{"bet payouts", 1, sum(&models.BetPayout{}, "amount").Where("user_id = ?", userID)},
	}
}

// RecordTimeout credits a member with a served timeout of the given length.
// Only positive durations count toward the number of timeouts.
func (l *Ledger) RecordTimeout(ctx context.Context, userID int64, seconds float64) error {
	count := 0
	if seconds > 0 {
		count = 1
	}

	user := models.User{ID: userID, TimeoutCount: count, Duration: seconds}
	err := l.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"timeout_count": gorm.Expr("users.timeout_count + ?", count),
			"duration":      gorm.Expr("users.duration + ?", seconds),
			"updated_at":    gorm.Expr("CURRENT_TIMESTAMP"),
		}),
	}).Create(&user).Error
	if err != nil {
		return fmt.Errorf("failed to record timeout for user %d: %w", userID, err)
	}

	l.logger.Debug("Recorded timeout", zap.Int64("user", userID), zap.Float64("seconds", seconds))
	return nil
}

// Leaderboard returns users ordered by number of timeouts, then total duration.
func (l *Ledger) Leaderboard(ctx context.Context, limit int) ([]models.User, error) {
	var users []models.User
	q := l.db.WithContext(ctx).Order("timeout_count DESC").Order("duration DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to load leaderboard: %w", err)
	}
	return users, nil
}

// spend runs fn in a transaction after checking userID can afford cost.
func (l *Ledger) spend(ctx context.Context, userID int64, cost float64, fn func(tx *gorm.DB) error) error {
	if !(cost > 0) {
		return ErrInvalidAmount
	}
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		balance, err := Balance(tx, userID)
		if err != nil {
			return err
		}
		if cost > balance {
			return fmt.Errorf("%w: costs %.2fs, balance is %.2fs", ErrInsufficientFunds, cost, balance)
		}
		return fn(tx)
	})
}

// Purchase buys a shop item.
func (l *Ledger) Purchase(ctx context.Context, userID int64, item string, cost float64) (*models.Purchase, error) {
	defer l.users.Lock(userID)()

	purchase := &models.Purchase{UserID: userID, Item: item, Cost: cost}
	err := l.spend(ctx, userID, cost, func(tx *gorm.DB) error {
		return tx.Create(purchase).Error
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("Purchase made", zap.Int64("user", userID), zap.String("item", item), zap.Float64("cost", cost))
	return purchase, nil
}

// Gift moves credit from one member to another.
func (l *Ledger) Gift(ctx context.Context, giverID, receiverID int64, amount float64) error {
	if giverID == receiverID {
		return fmt.Errorf("%w: cannot gift to yourself", ErrInvalidAmount)
	}
	defer l.users.LockAll(giverID, receiverID)()

	err := l.spend(ctx, giverID, amount, func(tx *gorm.DB) error {
		return tx.Create(&models.Gift{GiverID: giverID, ReceiverID: receiverID, Amount: amount}).Error
	})
	if err != nil {
		return err
	}

	l.logger.Info("Gift sent", zap.Int64("from", giverID), zap.Int64("to", receiverID), zap.Float64("amount", amount))
	return nil
}
