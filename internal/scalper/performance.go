package scalper

import (
	"sync"
	"time"

	"bybit-scalp-bot-go/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PerformanceTracker aggregates realized P&L and trade counts. Closed
// trades are also appended to the durable trade history when a database
// is wired in.
type PerformanceTracker struct {
	mu     sync.Mutex
	logger *zap.Logger
	store  *PositionStore
	db     *gorm.DB // nil disables trade history

	totalTrades   int
	winningTrades int
	totalPnl      float64
	dailyPnl      float64
}

// PerformanceSnapshot is a point-in-time report of trading results.
type PerformanceSnapshot struct {
	TotalTrades     int
	WinningTrades   int
	WinRate         float64 // percentage, 0 when no trades
	TotalPnl        float64
	DailyPnl        float64
	ActivePositions int
}

// NewPerformanceTracker creates a tracker with all counters zero.
func NewPerformanceTracker(logger *zap.Logger, store *PositionStore, db *gorm.DB) *PerformanceTracker {
	return &PerformanceTracker{
		logger: logger,
		store:  store,
		db:     db,
	}
}

// Record books the now-realized P&L of a closed position.
func (t *PerformanceTracker) Record(position Position, reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	pnl := position.UnrealizedPnl
	t.totalTrades++
	t.totalPnl += pnl
	t.dailyPnl += pnl
	if pnl > 0 {
		t.winningTrades++
	}

	if t.db != nil {
		rec := models.TradeRecord{
			Symbol:    position.Symbol,
			Direction: string(position.Direction),
			Quantity:  position.Quantity,
			Price:     position.EntryPrice,
			Pnl:       pnl,
			Reason:    reason,
			OpenedAt:  position.EntryTime.Unix(),
			ClosedAt:  time.Now().Unix(),
		}
		if err := t.db.Create(&rec).Error; err != nil {
			t.logger.Error("Failed to append trade history record", zap.Error(err))
		}
	}
}

// ResetDaily zeroes the daily P&L figure; cumulative totals are kept.
func (t *PerformanceTracker) ResetDaily() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dailyPnl = 0
}

// Snapshot returns the current aggregates.
func (t *PerformanceTracker) Snapshot() PerformanceSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	winRate := 0.0
	if t.totalTrades > 0 {
		winRate = float64(t.winningTrades) / float64(t.totalTrades) * 100
	}
	return PerformanceSnapshot{
		TotalTrades:     t.totalTrades,
		WinningTrades:   t.winningTrades,
		WinRate:         winRate,
		TotalPnl:        t.totalPnl,
		DailyPnl:        t.dailyPnl,
		ActivePositions: t.store.Size(),
	}
}
