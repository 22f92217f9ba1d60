package exchange

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"timeout-exchange-go/internal/config"
	"timeout-exchange-go/internal/database"
	"timeout-exchange-go/internal/ledger"
	"timeout-exchange-go/internal/market"
	"timeout-exchange-go/internal/models"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var epoch = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

// fakeClock is a settable wall clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// MockNotifier is a mock implementation of notify.Notifier.
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, messages ...string) error {
	args := m.Called(ctx, messages)
	return args.Error(0)
}

type testEnv struct {
	x      *Exchange
	db     *gorm.DB
	ledger *ledger.Ledger
	clock  *fakeClock
	cfg    config.Market
}

// setupTest builds an exchange over a fresh in-memory database whose market
// clock starts at epoch. tune adjusts the market before the engine is built.
func setupTest(t *testing.T, tune func(*config.Market), opts ...Option) *testEnv {
	cfg := &config.Config{
		Market:   config.DefaultMarket(),
		Stocks:   config.DefaultStocks(),
		Database: config.Database{Driver: "sqlite", DSN: "file::memory:"},
	}
	if tune != nil {
		tune(&cfg.Market)
	}

	db, err := database.NewDatabase(cfg)
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.MarketClock{}).Where("id = ?", models.MarketClockID).
		Update("last_update", epoch).Error)

	clock := &fakeClock{now: epoch}
	l := ledger.New(db, nil, zap.NewNop())
	engine := market.NewEngine(cfg.Market, rand.New(rand.NewSource(1)), zap.NewNop())
	opts = append([]Option{WithClock(clock.Now)}, opts...)

	return &testEnv{
		x:      New(db, engine, l, zap.NewNop(), opts...),
		db:     db,
		ledger: l,
		clock:  clock,
		cfg:    cfg.Market,
	}
}

// quiet removes background actors so prices only move with time and orders.
func quiet(m *config.Market) {
	m.ActorsPerTick = 0
}

func (e *testEnv) fund(t *testing.T, userID int64, seconds float64) {
	require.NoError(t, e.ledger.RecordTimeout(context.Background(), userID, seconds))
}

func (e *testEnv) stock(t *testing.T, code string) models.Stock {
	var s models.Stock
	require.NoError(t, e.db.Where("code = ?", code).First(&s).Error)
	return s
}

func (e *testEnv) setValue(t *testing.T, code string, value float64) {
	require.NoError(t, e.db.Model(&models.Stock{}).Where("code = ?", code).Update("value", value).Error)
}

func (e *testEnv) marketClock(t *testing.T) models.MarketClock {
	var c models.MarketClock
	require.NoError(t, e.db.First(&c, models.MarketClockID).Error)
	return c
}

func (e *testEnv) stocks(t *testing.T) []models.Stock {
	var stocks []models.Stock
	require.NoError(t, e.db.Order("id").Find(&stocks).Error)
	return stocks
}

func ptr(v float64) *float64 { return &v }
