package models

import "gorm.io/gorm"

// TradeRecord represents a completed round trip, appended when a position
// is closed. Kept separate from PositionRecord so reporting queries never
// touch the live position log.
type TradeRecord struct {
	gorm.Model
	Symbol    string `json:"symbol" gorm:"index"`
	Direction string `json:"direction"` // "LONG" or "SHORT"
	Quantity  float64
	Price     float64 `json:"price"` // entry price
	Pnl       float64 `json:"pnl"`
	Reason    string  `json:"reason"` // why the position was closed
	OpenedAt  int64   `json:"opened_at"`
	ClosedAt  int64   `json:"closed_at"`
}
