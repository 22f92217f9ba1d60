package models

import "gorm.io/gorm"

// Trade is a long or short position. It is open while SoldAt is nil.
type Trade struct {
	gorm.Model
	UserID  int64 `gorm:"index;not null" json:"user_id"`
	StockID uint  `gorm:"index;not null" json:"stock_id"`
	Stock   Stock `json:"-"`
	Shares  int   `gorm:"not null" json:"shares"`

	// BoughtAt is the fill price at open: the ask for longs, the bid received for shorts.
	BoughtAt float64  `gorm:"not null" json:"bought_at"`
	SoldAt   *float64 `gorm:"index" json:"sold_at,omitempty"`
	IsShort  bool     `gorm:"not null;default:false" json:"is_short"`

	AutoSellLow  *float64 `json:"auto_sell_low,omitempty"`
	AutoSellHigh *float64 `json:"auto_sell_high,omitempty"`
}

// IsOpen reports whether the position has not been closed yet.
func (t *Trade) IsOpen() bool {
	return t.SoldAt == nil
}

// RealizedPL returns the profit or loss of closing the trade at exit.
// Shorts profit when the exit is below the entry.
func RealizedPL(entry, exit float64, shares int, short bool) float64 {
	pl := (exit - entry) * float64(shares)
	if short {
		return -pl
	}
	return pl
}
