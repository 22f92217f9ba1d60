package models

import "time"

// MarketClockID is the primary key of the single market clock row.
const MarketClockID = 1

// MarketClock records how far simulated market time has advanced.
// There should only ever be one row in this table.
type MarketClock struct {
	ID         uint      `gorm:"primaryKey;autoIncrement:false"`
	LastUpdate time.Time `gorm:"not null"`
	// Ticks counts every tick ever applied.
	Ticks     int64 `gorm:"not null;default:0"`
	UpdatedAt time.Time
}
