package exchange

import (
	"context"
	"fmt"

	"timeout-exchange-go/internal/ledger"
	"timeout-exchange-go/internal/models"
)

// Quote is the current price of one stock.
type Quote struct {
	Code  string  `json:"code"`
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Bid   float64 `json:"bid"`
	Ask   float64 `json:"ask"`
}

// Position is an open trade valued at the price it would close at now.
type Position struct {
	Trade models.Trade `json:"trade"`
	Code  string       `json:"code"`
	// Price is the bid for longs and the ask for shorts.
	Price        float64 `json:"price"`
	UnrealizedPL float64 `json:"unrealized_pl"`
}

// Portfolio lists a user's open positions next to their spendable balance.
type Portfolio struct {
	UserID       int64      `json:"user_id"`
	Balance      float64    `json:"balance"`
	Positions    []Position `json:"positions"`
	UnrealizedPL float64    `json:"unrealized_pl"`
}

// Market quotes every stock after catching up.
func (x *Exchange) Market(ctx context.Context) ([]Quote, error) {
	if _, err := x.CatchUp(ctx); err != nil {
		return nil, err
	}

	var stocks []models.Stock
	if err := x.db.WithContext(ctx).Order("id").Find(&stocks).Error; err != nil {
		return nil, storageError(fmt.Errorf("failed to load stocks: %w", err))
	}

	quotes := make([]Quote, 0, len(stocks))
	for i := range stocks {
		s := &stocks[i]
		bid, ask := x.engine.Spread(s)
		quotes = append(quotes, Quote{Code: s.Code, Name: s.Name, Value: s.Value, Bid: bid, Ask: ask})
	}
	return quotes, nil
}

// Portfolio values a user's open positions after catching up.
func (x *Exchange) Portfolio(ctx context.Context, userID int64) (*Portfolio, error) {
	if _, err := x.CatchUp(ctx); err != nil {
		return nil, err
	}

	db := x.db.WithContext(ctx)
	var trades []models.Trade
	if err := db.Preload("Stock").Where("user_id = ? AND sold_at IS NULL", userID).Order("id").Find(&trades).Error; err != nil {
		return nil, storageError(fmt.Errorf("failed to load trades: %w", err))
	}
	balance, err := ledger.Balance(db, userID)
	if err != nil {
		return nil, storageError(err)
	}

	p := &Portfolio{UserID: userID, Balance: balance, Positions: make([]Position, 0, len(trades))}
	for _, t := range trades {
		bid, ask := x.engine.Spread(&t.Stock)
		price := bid
		if t.IsShort {
			price = ask
		}
		pl := models.RealizedPL(t.BoughtAt, price, t.Shares, t.IsShort)
		p.Positions = append(p.Positions, Position{Trade: t, Code: t.Stock.Code, Price: price, UnrealizedPL: pl})
		p.UnrealizedPL += pl
	}
	return p, nil
}
