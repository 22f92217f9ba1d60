package market

import (
	"math"
	"math/rand"

	"timeout-exchange-go/internal/config"
	"timeout-exchange-go/internal/models"

	"go.uber.org/zap"
)

// Engine evolves stock prices. It applies the impact of orders, advances
// prices through time with geometric Brownian motion and quotes spreads.
//
// Engine is not safe for concurrent use by multiple goroutines when
// advancing or simulating actors, since both draw from the shared random
// source. Order and Spread are pure with respect to the engine.
type Engine struct {
	cfg    config.Market
	rng    *rand.Rand
	logger *zap.Logger
}

// NewEngine creates a price engine. A nil rng is seeded from cfg.Seed.
func NewEngine(cfg config.Market, rng *rand.Rand, logger *zap.Logger) *Engine {
	if rng == nil {
		rng = rand.New(rand.NewSource(cfg.Seed))
	}
	return &Engine{cfg: cfg, rng: rng, logger: logger.Named("price-engine")}
}

// Config returns the tuning the engine was built with.
func (e *Engine) Config() config.Market {
	return e.cfg
}

// Liquidity is the damping applied to order impact; it grows with traded volume.
func (e *Engine) Liquidity(s *models.Stock) float64 {
	return math.Pow(math.Max(s.Volume, 1), e.cfg.LiquidityExponent)
}

// Order applies the market impact of a signed order. Positive shares push
// the price up, negative shares push it down.
func (e *Engine) Order(s *models.Stock, shares float64) {
	if shares == 0 {
		return
	}

	// Squared volume weights large orders super-linearly.
	alpha := e.cfg.VolumeAlpha
	s.Volume = (1-alpha)*s.Volume + alpha*shares*shares

	pressure := shares / e.Liquidity(s)

	impact := e.cfg.PriceImpact * pressure
	if limit := e.cfg.MaxPriceImpact; limit > 0 && math.Abs(impact) > limit {
		e.logger.Warn("Clamping order impact",
			zap.String("code", s.Code), zap.Float64("shares", shares), zap.Float64("impact", impact))
		impact = math.Copysign(limit, impact)
	}
	s.Value = math.Max(e.cfg.MinPrice, s.Value*(1+impact))

	s.Drift = clamp(s.Drift+e.cfg.DriftImpact*pressure, -e.cfg.MaxDrift, e.cfg.MaxDrift)
	s.Volatility = clamp(s.Volatility+e.cfg.VolatilityImpact*math.Abs(pressure), e.cfg.MinVolatility, e.cfg.MaxVolatility)
}

// Advance moves a stock dt seconds forward, then lets drift and volatility
// relax toward their baselines.
func (e *Engine) Advance(s *models.Stock, dt float64) {
	if dt <= 0 {
		return
	}

	mu, sigma := s.Drift, s.Volatility
	z := e.rng.NormFloat64()
	step := (mu-0.5*sigma*sigma)*dt + sigma*math.Sqrt(dt)*z

	if limit := e.cfg.MaxLogStep; limit > 0 && math.Abs(step) > limit {
		e.logger.Warn("Clamping price step",
			zap.String("code", s.Code), zap.Float64("log_step", step), zap.Float64("limit", limit))
		step = math.Copysign(limit, step)
	}
	s.Value = math.Max(e.cfg.MinPrice, s.Value*math.Exp(step))

	// Raising the decay to dt keeps calming independent of the tick size.
	keep := math.Pow(e.cfg.DecayFactor, dt)
	s.Drift = clamp(e.cfg.BaseDrift+(s.Drift-e.cfg.BaseDrift)*keep, -e.cfg.MaxDrift, e.cfg.MaxDrift)
	s.Volatility = clamp(e.cfg.BaseVolatility+(s.Volatility-e.cfg.BaseVolatility)*keep, e.cfg.MinVolatility, e.cfg.MaxVolatility)
}

// SpreadFraction is the half-spread as a fraction of the mid price.
func (e *Engine) SpreadFraction(s *models.Stock) float64 {
	volatilityTerm := e.cfg.SpreadVolatilityFactor * s.Volatility
	// Thin markets quote wider.
	liquidityTerm := e.cfg.SpreadLiquidityFactor / math.Pow(math.Max(s.Volume, 1), e.cfg.SpreadVolumeExponent)
	return math.Min(e.cfg.MaxSpread, e.cfg.BaseSpread+volatilityTerm+liquidityTerm)
}

// Spread returns the bid sellers receive and the ask buyers pay.
func (e *Engine) Spread(s *models.Stock) (bid, ask float64) {
	frac := e.SpreadFraction(s)
	return s.Value * (1 - frac), s.Value * (1 + frac)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
