package models

import (
	"time"

	"gorm.io/gorm"
)

// User holds the accumulated timeout duration a member has earned, in seconds.
type User struct {
	ID           int64   `gorm:"primaryKey;autoIncrement:false" json:"id"`
	TimeoutCount int     `gorm:"not null;default:0" json:"timeout_count"`
	Duration     float64 `gorm:"not null;default:0" json:"duration"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Purchase is a shop item bought with timeout credit.
type Purchase struct {
	gorm.Model
	UserID int64   `gorm:"index;not null"`
	Item   string  `gorm:"not null"`
	Cost   float64 `gorm:"not null"`
	Used   bool    `gorm:"default:false"`
}

// Gift is credit transferred from one member to another.
type Gift struct {
	gorm.Model
	GiverID    int64   `gorm:"index;not null"`
	ReceiverID int64   `gorm:"index;not null"`
	Amount     float64 `gorm:"not null"`
}

// Bet is a stake placed by a gambler on a target member.
type Bet struct {
	gorm.Model
	GamblerID int64   `gorm:"index;not null"`
	TargetID  int64   `gorm:"index;not null"`
	Amount    float64 `gorm:"not null"`
	Settled   bool    `gorm:"index;default:false"`
}

// BetPayout is credit won from a settled betting round.
type BetPayout struct {
	gorm.Model
	UserID int64   `gorm:"index;not null"`
	Amount float64 `gorm:"not null"`
}
