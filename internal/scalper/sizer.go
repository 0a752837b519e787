package scalper

import (
	"bybit-scalp-bot-go/internal/config"
)

// PriceTier classifies a symbol for sizing purposes. The classification is
// a static lookup table built from config, not derived from live prices.
type PriceTier int

const (
	TierDefault PriceTier = iota
	TierLow               // low-priced coins get a larger allocation
	TierHigh              // high-priced coins get a smaller allocation
)

// PositionSizer computes trade notional from the account tier rules and
// stop/target price levels from a fixed percentage model. It holds no
// mutable state.
type PositionSizer struct {
	initialCapital   float64
	baseRiskPerTrade float64
	minPositionSize  float64
	maxPositionSize  float64
	tiers            map[string]PriceTier
}

// NewPositionSizer builds the sizer, deriving the tier table from the
// configured low-/high-price symbol lists.
func NewPositionSizer(cfg *config.Config) *PositionSizer {
	tiers := make(map[string]PriceTier)
	for _, symbol := range cfg.Scanner.LowPriceSymbols {
		tiers[symbol] = TierLow
	}
	for _, symbol := range cfg.Scanner.HighPriceSymbols {
		tiers[symbol] = TierHigh
	}

	return &PositionSizer{
		initialCapital:   cfg.Account.InitialCapital,
		baseRiskPerTrade: cfg.Risk.BaseRiskPerTrade,
		minPositionSize:  cfg.Risk.MinPositionSize,
		maxPositionSize:  cfg.Risk.MaxPositionSize,
		tiers:            tiers,
	}
}

// CalculateSize returns the notional for a new trade in quote currency,
// clamped to the configured [min, max] window.
func (s *PositionSizer) CalculateSize(symbol string, currentPrice float64) float64 {
	size := s.initialCapital * s.baseRiskPerTrade

	switch s.tiers[symbol] {
	case TierLow:
		size *= 1.5
	case TierHigh:
		size *= 0.7
	}

	if size < s.minPositionSize {
		size = s.minPositionSize
	}
	if size > s.maxPositionSize {
		size = s.maxPositionSize
	}
	return size
}

// CalculateLevels returns the stop and target prices for an entry. For a
// long the stop sits below the entry and the target above; for a short the
// signs invert.
func (s *PositionSizer) CalculateLevels(direction Direction, entryPrice, stopLossPct, takeProfitPct float64) (stopLoss, takeProfit float64) {
	if direction == Short {
		return entryPrice * (1 + stopLossPct), entryPrice * (1 - takeProfitPct)
	}
	return entryPrice * (1 - stopLossPct), entryPrice * (1 + takeProfitPct)
}
