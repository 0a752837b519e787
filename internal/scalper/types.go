// Package scalper contains the position lifecycle and risk-gating engine:
// admission control, position sizing, the open-position set, batch
// execution, and the monitoring/exit loop that drives short-duration
// trades on a very small account.
package scalper

import (
	"time"

	"bybit-scalp-bot-go/internal/bybit"
)

// Direction is the side of a trade.
type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
)

// OrderSide maps the direction to the order side that opens it.
func (d Direction) OrderSide() string {
	if d == Short {
		return bybit.SideSell
	}
	return bybit.SideBuy
}

// CloseSide maps the direction to the order side that closes it.
func (d Direction) CloseSide() string {
	if d == Short {
		return bybit.SideBuy
	}
	return bybit.SideSell
}

// Position represents one open trade. Quantity is in base units; the
// notional at entry is EntryPrice*Quantity.
type Position struct {
	Symbol     string
	Direction  Direction
	EntryPrice float64
	Quantity   float64
	StopLoss   float64
	TakeProfit float64
	OrderID    string
	EntryTime  time.Time

	// UnrealizedPnl is recomputed by the monitor each cycle and becomes
	// the realized P&L when the position closes.
	UnrealizedPnl float64
}

// PnlPct returns the signed fractional P&L of the position at the given
// price: positive when the trade is in profit.
func (p *Position) PnlPct(currentPrice float64) float64 {
	if p.EntryPrice == 0 {
		return 0
	}
	if p.Direction == Short {
		return (p.EntryPrice - currentPrice) / p.EntryPrice
	}
	return (currentPrice - p.EntryPrice) / p.EntryPrice
}

// Opportunity is one ranked trade candidate produced by the scanner.
// The coordinator treats it as read-only input.
type Opportunity struct {
	Symbol       string
	Direction    Direction
	Score        float64
	CurrentPrice float64
	// Confidence is an optional model score attached by a signal-scoring
	// component; zero when none is wired in.
	Confidence float64
}

// OpportunitySource supplies ranked trade candidates, best first.
type OpportunitySource interface {
	TopOpportunities(limit int) []Opportunity
}
