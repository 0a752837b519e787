package models

import "gorm.io/gorm"

// PositionRecord is the durable log entry for one position. A row is
// created when a position is opened and updated in place when it closes,
// so a restart can reconcile in-memory bookkeeping against the exchange.
type PositionRecord struct {
	gorm.Model
	OrderID    string `gorm:"uniqueIndex;not null"`
	Symbol     string `gorm:"index"`
	Direction  string // "LONG" or "SHORT"
	EntryPrice float64
	Quantity   float64
	StopLoss   float64
	TakeProfit float64
	EntryTime  int64 // unix seconds
	Open       bool  `gorm:"index"`

	// Populated on close.
	RealizedPnl float64
	CloseReason string
	ClosedAt    int64 // unix seconds, zero while open
}
