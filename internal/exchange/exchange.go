// Package exchange runs the stock market: it replays missed market ticks on
// demand and opens, closes and auto-sells positions against the live quotes.
package exchange

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"timeout-exchange-go/internal/keylock"
	"timeout-exchange-go/internal/ledger"
	"timeout-exchange-go/internal/market"
	"timeout-exchange-go/internal/metrics"
	"timeout-exchange-go/internal/models"
	"timeout-exchange-go/internal/notify"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Exchange is safe for concurrent use. Every operation takes its locks before
// opening a database transaction: the clock, then users, then stocks, each in
// ascending id order. Orders hold their user and stock. A catch-up holds the
// clock, the owners of auto-sell trades and every stock, so an auto-sell close
// never races a ledger write for the same user.
type Exchange struct {
	db       *gorm.DB
	engine   *market.Engine
	ledger   *ledger.Ledger
	notifier notify.Notifier
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time

	clockMu sync.Mutex
	stocks  *keylock.Map[uint]
	users   *keylock.Map[int64]

	// codes maps an upper-case stock code to its id. Codes never change once seeded.
	codes *cache.Cache
}

// Option customises an Exchange.
type Option func(*Exchange)

// WithNotifier relays auto-sell messages to n.
func WithNotifier(n notify.Notifier) Option {
	return func(x *Exchange) { x.notifier = n }
}

// WithMetrics records market activity on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(x *Exchange) { x.metrics = m }
}

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(x *Exchange) { x.now = now }
}

// New creates an exchange. The ledger's user locks are shared so that trading
// and spending credit never check affordability concurrently for one user.
func New(db *gorm.DB, engine *market.Engine, l *ledger.Ledger, logger *zap.Logger, opts ...Option) *Exchange {
	x := &Exchange{
		db:     db,
		engine: engine,
		ledger: l,
		logger: logger.Named("exchange"),
		now:    time.Now,
		stocks: keylock.New[uint](),
		users:  l.Users(),
		codes:  cache.New(cache.NoExpiration, 0),
	}
	for _, opt := range opts {
		opt(x)
	}
	if x.notifier == nil {
		x.notifier = notify.NewLog(logger)
	}
	if x.metrics == nil {
		x.metrics = metrics.New()
	}
	return x
}

// Ledger returns the credit ledger the exchange checks affordability against.
func (x *Exchange) Ledger() *ledger.Ledger {
	return x.ledger
}

// resolveStock returns the id of the stock with the given code, ignoring case.
func (x *Exchange) resolveStock(ctx context.Context, code string) (uint, error) {
	key := strings.ToUpper(strings.TrimSpace(code))
	if key == "" {
		return 0, fmt.Errorf("%w: no stock code given", ErrNotFound)
	}
	if id, ok := x.codes.Get(key); ok {
		return id.(uint), nil
	}

	var stock models.Stock
	err := x.db.WithContext(ctx).Select("id").Where("code = ?", key).First(&stock).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, fmt.Errorf("%w: unknown stock '%s'", ErrNotFound, key)
	}
	if err != nil {
		return 0, storageError(err)
	}

	x.codes.Set(key, stock.ID, cache.NoExpiration)
	return stock.ID, nil
}
