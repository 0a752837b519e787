package scalper

import (
	"fmt"
	"sync"
	"time"

	"bybit-scalp-bot-go/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PositionStore owns the set of open positions, keyed by order id. It
// writes through to a durable sqlite log so a restarted process can pick
// up the positions it still holds on the exchange. Log failures are
// logged but never block trading; the in-memory set stays authoritative
// for the running process.
type PositionStore struct {
	mu        sync.RWMutex
	positions map[string]*Position
	db        *gorm.DB // nil disables persistence
	logger    *zap.Logger
}

// NewPositionStore creates an empty store. db may be nil, in which case
// positions live only in process memory.
func NewPositionStore(db *gorm.DB, logger *zap.Logger) *PositionStore {
	return &PositionStore{
		positions: make(map[string]*Position),
		db:        db,
		logger:    logger,
	}
}

// LoadOpen rehydrates open positions from the durable log. Called once at
// startup, before the engine loop begins.
func (s *PositionStore) LoadOpen() error {
	if s.db == nil {
		return nil
	}

	var records []models.PositionRecord
	if err := s.db.Where("open = ?", true).Find(&records).Error; err != nil {
		return fmt.Errorf("failed to load open positions: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range records {
		s.positions[rec.OrderID] = &Position{
			Symbol:     rec.Symbol,
			Direction:  Direction(rec.Direction),
			EntryPrice: rec.EntryPrice,
			Quantity:   rec.Quantity,
			StopLoss:   rec.StopLoss,
			TakeProfit: rec.TakeProfit,
			OrderID:    rec.OrderID,
			EntryTime:  time.Unix(rec.EntryTime, 0),
		}
	}

	if len(records) > 0 {
		s.logger.Info("Rehydrated open positions from position log",
			zap.Int("count", len(records)))
	}
	return nil
}

// Insert adds a newly opened position. The order id must not already be
// present.
func (s *PositionStore) Insert(p *Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.positions[p.OrderID]; exists {
		return fmt.Errorf("position with order id %s already exists", p.OrderID)
	}
	s.positions[p.OrderID] = p

	if s.db != nil {
		rec := models.PositionRecord{
			OrderID:    p.OrderID,
			Symbol:     p.Symbol,
			Direction:  string(p.Direction),
			EntryPrice: p.EntryPrice,
			Quantity:   p.Quantity,
			StopLoss:   p.StopLoss,
			TakeProfit: p.TakeProfit,
			EntryTime:  p.EntryTime.Unix(),
			Open:       true,
		}
		if err := s.db.Create(&rec).Error; err != nil {
			s.logger.Error("Failed to persist open position",
				zap.String("order_id", p.OrderID), zap.Error(err))
		}
	}
	return nil
}

// Get returns a copy of the position with the given order id.
func (s *PositionStore) Get(orderID string) (Position, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.positions[orderID]
	if !ok {
		return Position{}, false
	}
	return *p, true
}

// UpdatePnl stores the latest unrealized P&L for the position. A missing
// order id is ignored; the position may have been removed mid-cycle.
func (s *PositionStore) UpdatePnl(orderID string, pnl float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.positions[orderID]; ok {
		p.UnrealizedPnl = pnl
	}
}

// Remove deletes the position and marks its log row closed with the
// realized P&L and the reason the monitor closed it.
func (s *PositionStore) Remove(orderID string, realizedPnl float64, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.positions[orderID]; !ok {
		return
	}
	delete(s.positions, orderID)

	if s.db != nil {
		updates := map[string]interface{}{
			"open":         false,
			"realized_pnl": realizedPnl,
			"close_reason": reason,
			"closed_at":    time.Now().Unix(),
		}
		if err := s.db.Model(&models.PositionRecord{}).
			Where("order_id = ?", orderID).
			Updates(updates).Error; err != nil {
			s.logger.Error("Failed to mark position closed in position log",
				zap.String("order_id", orderID), zap.Error(err))
		}
	}
}

// Snapshot returns copies of all open positions, safe to iterate while the
// store is being mutated.
func (s *PositionStore) Snapshot() []Position {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := make([]Position, 0, len(s.positions))
	for _, p := range s.positions {
		snapshot = append(snapshot, *p)
	}
	return snapshot
}

// Size returns the number of open positions.
func (s *PositionStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.positions)
}
