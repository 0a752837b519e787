package scalper

import (
	"sync"

	"bybit-scalp-bot-go/internal/config"
	"go.uber.org/zap"
)

// RiskLedger tracks daily P&L, per-symbol exposure, and the trading-enabled
// latch. It is the single admission-control gate for new positions. All
// state is in memory and all operations are synchronous and infallible.
type RiskLedger struct {
	mu     sync.Mutex
	logger *zap.Logger

	initialCapital  float64
	dailyLossLimit  float64 // fraction of initial capital
	maxDrawdown     float64 // fraction of initial capital
	minPositionSize float64
	maxPositionSize float64

	dailyPnl       float64
	tradesToday    int
	symbolExposure map[string]int
	tradingEnabled bool
}

// RiskMetrics is a point-in-time copy of the ledger state for reporting.
type RiskMetrics struct {
	DailyPnl       float64
	TradesToday    int
	TradingEnabled bool
	SymbolExposure map[string]int
}

// NewRiskLedger creates a ledger with trading enabled and all counters zero.
func NewRiskLedger(cfg *config.Config, logger *zap.Logger) *RiskLedger {
	return &RiskLedger{
		logger:          logger,
		initialCapital:  cfg.Account.InitialCapital,
		dailyLossLimit:  cfg.Risk.DailyLossLimit,
		maxDrawdown:     cfg.Risk.MaxDrawdown,
		minPositionSize: cfg.Risk.MinPositionSize,
		maxPositionSize: cfg.Risk.MaxPositionSize,
		symbolExposure:  make(map[string]int),
		tradingEnabled:  true,
	}
}

// CanTrade reports whether new trade admission is allowed. Crossing the
// daily-loss or max-drawdown threshold trips the latch as a side effect;
// once tripped it stays off until ResetDaily.
func (r *RiskLedger) CanTrade() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.canTradeLocked()
}

func (r *RiskLedger) canTradeLocked() bool {
	if !r.tradingEnabled {
		return false
	}

	if r.dailyPnl <= -r.dailyLossLimit*r.initialCapital {
		r.logger.Warn("Daily loss limit reached, trading disabled",
			zap.Float64("daily_pnl", r.dailyPnl))
		r.tradingEnabled = false
		return false
	}

	if r.dailyPnl <= -r.maxDrawdown*r.initialCapital {
		r.logger.Warn("Max drawdown reached, trading disabled",
			zap.Float64("daily_pnl", r.dailyPnl))
		r.tradingEnabled = false
		return false
	}

	return true
}

// CanTradeSymbol reports whether the symbol has no open position. The
// policy is strict: at most one open position per symbol.
func (r *RiskLedger) CanTradeSymbol(symbol string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.symbolExposure[symbol] < 1
}

// ApproveTrade is the final admission check before an order is submitted:
// the global gate, the per-symbol gate, the notional bounds, and a sanity
// bound on the stop/target spread relative to the notional.
func (r *RiskLedger) ApproveTrade(symbol string, positionSize, stopLoss, takeProfit float64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.canTradeLocked() {
		return false
	}
	if r.symbolExposure[symbol] >= 1 {
		return false
	}
	if positionSize < r.minPositionSize || positionSize > r.maxPositionSize {
		return false
	}

	spread := stopLoss - takeProfit
	if spread < 0 {
		spread = -spread
	}
	return spread <= positionSize*0.5
}

// RecordOpen registers a newly opened position for the symbol.
func (r *RiskLedger) RecordOpen(symbol string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.symbolExposure[symbol]++
	r.tradesToday++
}

// RecordClose applies the realized P&L of a closed position and frees the
// symbol. The exposure counter never goes below zero.
func (r *RiskLedger) RecordClose(symbol string, pnl float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dailyPnl += pnl
	if r.symbolExposure[symbol] > 0 {
		r.symbolExposure[symbol]--
	}
}

// ResetDaily zeroes all counters and re-enables trading. The engine calls
// this on a configurable day-boundary cadence.
func (r *RiskLedger) ResetDaily() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dailyPnl = 0
	r.tradesToday = 0
	r.symbolExposure = make(map[string]int)
	r.tradingEnabled = true
	r.logger.Info("Daily risk metrics reset")
}

// Metrics returns a copy of the current ledger state.
func (r *RiskLedger) Metrics() RiskMetrics {
	r.mu.Lock()
	defer r.mu.Unlock()

	exposure := make(map[string]int, len(r.symbolExposure))
	for symbol, count := range r.symbolExposure {
		exposure[symbol] = count
	}
	return RiskMetrics{
		DailyPnl:       r.dailyPnl,
		TradesToday:    r.tradesToday,
		TradingEnabled: r.tradingEnabled,
		SymbolExposure: exposure,
	}
}
