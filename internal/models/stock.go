package models

import "gorm.io/gorm"

// Stock represents a tradable instrument and its live price state.
type Stock struct {
	gorm.Model
	Code       string  `gorm:"uniqueIndex;not null" json:"code"`
	Name       string  `gorm:"not null" json:"name"`
	Value      float64 `gorm:"not null" json:"value"`
	Drift      float64 `json:"drift"`
	Volatility float64 `json:"volatility"`
	Volume     float64 `json:"volume"`

	// BasePrice is the seeded price the actor target wanders around.
	BasePrice        float64 `gorm:"not null" json:"base_price"`
	ActorTargetPrice float64 `gorm:"not null" json:"actor_target_price"`
}
