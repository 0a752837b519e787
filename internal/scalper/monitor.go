package scalper

import (
	"errors"
	"time"

	"bybit-scalp-bot-go/internal/bybit"
	"bybit-scalp-bot-go/internal/config"
	"go.uber.org/zap"
)

// Close reasons recorded in the position log and trade history.
const (
	ReasonTimeExpiry    = "time expiry"
	ReasonEmergencyExit = "emergency exit"
	ReasonEarlyProfit   = "early profit"
)

// PositionMonitor walks the open positions once per cycle, refreshes their
// unrealized P&L, and closes the ones that hit an exit rule. A failure on
// one position never aborts the pass for the others.
type PositionMonitor struct {
	logger *zap.Logger
	cfg    *config.Config
	client bybit.RestClientInterface
	risk   *RiskLedger
	store  *PositionStore
	perf   *PerformanceTracker
}

// NewPositionMonitor wires the monitor to its collaborators.
func NewPositionMonitor(logger *zap.Logger, cfg *config.Config, client bybit.RestClientInterface,
	risk *RiskLedger, store *PositionStore, perf *PerformanceTracker) *PositionMonitor {
	return &PositionMonitor{
		logger: logger,
		cfg:    cfg,
		client: client,
		risk:   risk,
		store:  store,
		perf:   perf,
	}
}

type closeRequest struct {
	position Position
	reason   string
}

// MonitorAll evaluates every open position once. Time expiry takes
// priority over the P&L thresholds; a position whose price is unavailable
// this cycle is skipped and retried next cycle.
func (m *PositionMonitor) MonitorAll() {
	snapshot := m.store.Snapshot()
	if len(snapshot) == 0 {
		return
	}

	maxHold := time.Duration(m.cfg.Scalp.MaxHoldTimeSec) * time.Second
	var toClose []closeRequest

	for _, position := range snapshot {
		if reason, ok := m.evaluate(&position, maxHold); ok {
			toClose = append(toClose, closeRequest{position: position, reason: reason})
		}
	}

	for _, req := range toClose {
		m.closePosition(req.position, req.reason)
	}
}

// evaluate applies the exit rules to one position and refreshes its stored
// unrealized P&L. It returns the close reason when the position should be
// closed this cycle.
func (m *PositionMonitor) evaluate(position *Position, maxHold time.Duration) (string, bool) {
	l := m.logger.With(
		zap.String("symbol", position.Symbol),
		zap.String("order_id", position.OrderID),
	)

	if time.Since(position.EntryTime) > maxHold {
		l.Info("Position exceeded max hold time")
		return ReasonTimeExpiry, true
	}

	ticker, err := m.client.GetTicker(position.Symbol)
	if err != nil {
		if errors.Is(err, bybit.ErrUnavailable) {
			l.Debug("Price unavailable, retrying next cycle", zap.Error(err))
		} else {
			l.Warn("Malformed ticker response, skipping position this cycle", zap.Error(err))
		}
		return "", false
	}

	pnlPct := position.PnlPct(ticker.LastPrice)
	pnl := pnlPct * position.EntryPrice * position.Quantity
	position.UnrealizedPnl = pnl
	m.store.UpdatePnl(position.OrderID, pnl)

	switch {
	case pnlPct < -m.cfg.Scalp.EmergencyExitPct:
		l.Warn("Emergency exit threshold breached",
			zap.Float64("pnl_pct", pnlPct))
		return ReasonEmergencyExit, true
	case pnlPct > m.cfg.Scalp.EarlyProfitPct:
		l.Info("Early profit threshold reached",
			zap.Float64("pnl_pct", pnlPct))
		return ReasonEarlyProfit, true
	}

	return "", false
}

// closePosition submits a reduce-only market order on the opposite side.
// On success the realized P&L flows into the performance tracker and risk
// ledger and the position leaves the store. On failure the position stays
// open and is re-evaluated next cycle.
func (m *PositionMonitor) closePosition(position Position, reason string) {
	l := m.logger.With(
		zap.String("symbol", position.Symbol),
		zap.String("order_id", position.OrderID),
		zap.String("reason", reason),
	)

	_, err := m.client.PlaceOrder(&bybit.OrderRequest{
		Symbol:     position.Symbol,
		Side:       position.Direction.CloseSide(),
		Qty:        position.Quantity,
		ReduceOnly: true,
	})
	if err != nil {
		l.Error("Failed to close position, will retry next cycle", zap.Error(err))
		return
	}

	// Use the latest P&L figure recorded for the position; for a time
	// expiry with no price this cycle that is last cycle's estimate.
	realized := position.UnrealizedPnl
	if current, ok := m.store.Get(position.OrderID); ok {
		realized = current.UnrealizedPnl
		position = current
	}

	m.perf.Record(position, reason)
	m.risk.RecordClose(position.Symbol, realized)
	m.store.Remove(position.OrderID, realized, reason)

	l.Info("Position closed", zap.Float64("realized_pnl", realized))
}
