package market

import (
	"math"

	"timeout-exchange-go/internal/models"
)

// ActorOrderSize draws the signed size of one simulated background order.
// Actors lean toward the stock's target price; the further away the price,
// the stronger the lean, saturating at one order size.
func (e *Engine) ActorOrderSize(s *models.Stock) float64 {
	size := e.cfg.ActorOrderSize
	if size <= 0 || s.Value <= 0 || s.ActorTargetPrice <= 0 {
		return 0
	}
	gap := math.Log(s.ActorTargetPrice / s.Value)
	mean := size * clamp(e.cfg.ActorPull*gap, -1, 1)
	return math.Round(mean + size*e.rng.NormFloat64())
}

// SimulateActors places ActorsPerTick background orders on randomly chosen stocks.
// It returns how many orders moved a price.
func (e *Engine) SimulateActors(stocks []*models.Stock) int {
	if len(stocks) == 0 {
		return 0
	}
	placed := 0
	for i := 0; i < e.cfg.ActorsPerTick; i++ {
		s := stocks[e.rng.Intn(len(stocks))]
		shares := e.ActorOrderSize(s)
		if shares == 0 {
			continue
		}
		e.Order(s, shares)
		placed++
	}
	return placed
}

// Retarget re-rolls the price actors trade toward. The target performs a
// mean-reverting random walk in log space around the base price and never
// leaves [base/softRange, base*softRange].
func (e *Engine) Retarget(s *models.Stock) {
	base := s.BasePrice
	if base <= 0 {
		base = s.Value
	}
	target := s.ActorTargetPrice
	if target <= 0 {
		target = base
	}

	offset := math.Log(target/base)*e.cfg.ActorTargetReversion + e.cfg.ActorTargetVolatility*e.rng.NormFloat64()
	if soft := e.cfg.ActorSoftRange; soft > 1 {
		bound := math.Log(soft)
		offset = clamp(offset, -bound, bound)
	}
	s.ActorTargetPrice = base * math.Exp(offset)
}
