package exchange

import (
	"context"
	"errors"
	"fmt"

	"timeout-exchange-go/internal/ledger"
	"timeout-exchange-go/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OpenRequest describes a new long or short position.
type OpenRequest struct {
	UserID int64  `json:"-"`
	Code   string `json:"code"`
	Shares int    `json:"shares"`
	Short  bool   `json:"short"`
	// AutoSellLow and AutoSellHigh form one combined stop; see scanAutoSell.
	AutoSellLow  *float64 `json:"auto_sell_low,omitempty"`
	AutoSellHigh *float64 `json:"auto_sell_high,omitempty"`
}

// Receipt is the outcome of a successful order.
type Receipt struct {
	Trade models.Trade `json:"trade"`
	// Price is the fill price: the entry for opens, the exit for closes.
	Price float64 `json:"price"`
	// PL is the realized profit or loss of a close; zero for opens.
	PL float64 `json:"pl"`
	// Message is ready to be relayed to the user.
	Message string `json:"-"`
}

func (r OpenRequest) validate() error {
	if r.Shares <= 0 {
		return fmt.Errorf("%w: share count must be positive", ErrInvalidOrder)
	}
	for _, bound := range []*float64{r.AutoSellLow, r.AutoSellHigh} {
		if bound != nil && !(*bound > 0) {
			return fmt.Errorf("%w: auto-sell prices must be positive", ErrInvalidOrder)
		}
	}
	return nil
}

// Open buys or shorts shares at the current quote. Longs pay the ask and
// shorts receive the bid; either way the pre-impact price times the share
// count must be covered by the user's balance. The order's own market impact
// is applied after the fill price is taken.
func (x *Exchange) Open(ctx context.Context, req OpenRequest) (*Receipt, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	if _, err := x.CatchUp(ctx); err != nil {
		return nil, err
	}
	stockID, err := x.resolveStock(ctx, req.Code)
	if err != nil {
		return nil, err
	}

	defer x.users.Lock(req.UserID)()
	defer x.stocks.Lock(stockID)()

	var receipt Receipt
	err = x.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var stock models.Stock
		if err := tx.First(&stock, stockID).Error; err != nil {
			return fmt.Errorf("failed to load stock: %w", err)
		}

		bid, ask := x.engine.Spread(&stock)
		entry, pressure := ask, float64(req.Shares)
		if req.Short {
			entry, pressure = bid, -pressure
		}

		cost := entry * float64(req.Shares)
		balance, err := ledger.Balance(tx, req.UserID)
		if err != nil {
			return err
		}
		if cost > balance {
			return fmt.Errorf("%w: %d shares of %s cost %s, balance is %s",
				ErrInsufficientFunds, req.Shares, stock.Code, seconds(cost), seconds(balance))
		}

		x.engine.Order(&stock, pressure)
		if err := tx.Save(&stock).Error; err != nil {
			return fmt.Errorf("failed to save stock: %w", err)
		}

		trade := models.Trade{
			UserID:       req.UserID,
			StockID:      stock.ID,
			Shares:       req.Shares,
			BoughtAt:     entry,
			IsShort:      req.Short,
			AutoSellLow:  req.AutoSellLow,
			AutoSellHigh: req.AutoSellHigh,
		}
		if err := tx.Omit("Stock").Create(&trade).Error; err != nil {
			return fmt.Errorf("failed to record trade: %w", err)
		}

		receipt = Receipt{
			Trade:   trade,
			Price:   entry,
			Message: openMessage(req.UserID, req.Shares, stock.Code, entry, req.Short),
		}
		return nil
	})
	if err != nil {
		return nil, storageError(err)
	}

	side := "long"
	if req.Short {
		side = "short"
	}
	x.metrics.Orders.WithLabelValues(side).Inc()
	x.logger.Info("Trade opened",
		zap.Uint("trade_id", receipt.Trade.ID),
		zap.Int64("user", req.UserID),
		zap.String("code", req.Code),
		zap.String("side", side),
		zap.Int("shares", req.Shares),
		zap.Float64("price", receipt.Price))
	return &receipt, nil
}

// Close exits an open trade owned by userID. Longs sell at the bid, shorts
// cover at the ask. A trade can be closed once; later attempts get ErrNotFound.
func (x *Exchange) Close(ctx context.Context, userID int64, tradeID uint) (*Receipt, error) {
	if _, err := x.CatchUp(ctx); err != nil {
		return nil, err
	}

	var trade models.Trade
	err := x.db.WithContext(ctx).Where("id = ? AND user_id = ?", tradeID, userID).First(&trade).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && !trade.IsOpen()) {
		return nil, fmt.Errorf("%w: no open trade #%d", ErrNotFound, tradeID)
	}
	if err != nil {
		return nil, storageError(err)
	}

	defer x.users.Lock(userID)()
	defer x.stocks.Lock(trade.StockID)()

	var receipt Receipt
	err = x.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var stock models.Stock
		if err := tx.First(&stock, trade.StockID).Error; err != nil {
			return fmt.Errorf("failed to load stock: %w", err)
		}

		fill, pl, err := x.settle(tx, &stock, &trade)
		if err != nil {
			return err
		}
		if err := tx.Save(&stock).Error; err != nil {
			return fmt.Errorf("failed to save stock: %w", err)
		}

		receipt = Receipt{
			Trade:   trade,
			Price:   fill,
			PL:      pl,
			Message: closeMessage(userID, trade.Shares, stock.Code, fill, pl, trade.IsShort, false),
		}
		return nil
	})
	if err != nil {
		return nil, storageError(err)
	}

	x.metrics.Orders.WithLabelValues("close").Inc()
	x.logger.Info("Trade closed",
		zap.Uint("trade_id", tradeID),
		zap.Int64("user", userID),
		zap.Float64("price", receipt.Price),
		zap.Float64("pl", receipt.PL))
	return &receipt, nil
}

// settle marks trade sold at the current closing price and applies the
// opposite market impact to stock. The caller saves stock. The update only
// matches an open row, so two racing closes cannot both succeed.
func (x *Exchange) settle(tx *gorm.DB, stock *models.Stock, trade *models.Trade) (fill, pl float64, err error) {
	bid, ask := x.engine.Spread(stock)
	fill, pressure := bid, -float64(trade.Shares)
	if trade.IsShort {
		fill, pressure = ask, float64(trade.Shares)
	}

	res := tx.Model(&models.Trade{}).
		Where("id = ? AND sold_at IS NULL", trade.ID).
		Update("sold_at", fill)
	if res.Error != nil {
		return 0, 0, fmt.Errorf("failed to close trade #%d: %w", trade.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, 0, fmt.Errorf("%w: no open trade #%d", ErrNotFound, trade.ID)
	}

	trade.SoldAt = &fill
	x.engine.Order(stock, pressure)
	return fill, models.RealizedPL(trade.BoughtAt, fill, trade.Shares, trade.IsShort), nil
}
