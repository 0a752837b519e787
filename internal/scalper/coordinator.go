package scalper

import (
	"bybit-scalp-bot-go/internal/bybit"
	"bybit-scalp-bot-go/internal/config"
	"go.uber.org/zap"
	"time"
)

// ExecutionCoordinator turns ranked opportunities into open positions. It
// enforces the concurrency budget, runs each candidate through the risk
// ledger, sizes the trade, submits the order, and records the result.
// Submissions within one batch are strictly sequential so exposure
// bookkeeping stays race-free.
type ExecutionCoordinator struct {
	logger *zap.Logger
	cfg    *config.Config
	client bybit.RestClientInterface
	risk   *RiskLedger
	sizer  *PositionSizer
	store  *PositionStore

	// symbols which already had leverage applied this process lifetime
	leverageSet map[string]bool
}

// NewExecutionCoordinator wires the coordinator to its collaborators.
func NewExecutionCoordinator(logger *zap.Logger, cfg *config.Config, client bybit.RestClientInterface,
	risk *RiskLedger, sizer *PositionSizer, store *PositionStore) *ExecutionCoordinator {
	return &ExecutionCoordinator{
		logger:      logger,
		cfg:         cfg,
		client:      client,
		risk:        risk,
		sizer:       sizer,
		store:       store,
		leverageSet: make(map[string]bool),
	}
}

// ExecuteBatch attempts to open positions for the given opportunities, best
// first. At most maxConcurrentTrades - openCount positions are opened per
// call. A rejected candidate is skipped silently; a gateway failure is
// logged and the batch continues with the next candidate.
func (c *ExecutionCoordinator) ExecuteBatch(opportunities []Opportunity) {
	if !c.risk.CanTrade() {
		c.logger.Warn("Trading disabled by risk ledger, skipping batch")
		return
	}

	budget := c.cfg.Risk.MaxConcurrentTrades - c.store.Size()
	if budget <= 0 {
		c.logger.Debug("No free position slots, skipping batch",
			zap.Int("open_positions", c.store.Size()))
		return
	}

	opened := 0
	for _, opp := range opportunities {
		if opened >= budget {
			break
		}
		if c.openPosition(opp) {
			opened++
		}
	}

	if opened > 0 {
		c.logger.Info("Batch execution complete",
			zap.Int("opened", opened),
			zap.Int("candidates", len(opportunities)))
	}
}

// openPosition runs one candidate through admission, sizing, and
// submission. Returns true only when a position was actually opened.
func (c *ExecutionCoordinator) openPosition(opp Opportunity) bool {
	l := c.logger.With(
		zap.String("symbol", opp.Symbol),
		zap.String("direction", string(opp.Direction)),
		zap.Float64("score", opp.Score),
	)

	if opp.CurrentPrice <= 0 {
		l.Warn("Opportunity has no valid price, skipping")
		return false
	}

	if !c.risk.CanTradeSymbol(opp.Symbol) {
		l.Debug("Symbol already has an open position, skipping")
		return false
	}

	size := c.sizer.CalculateSize(opp.Symbol, opp.CurrentPrice)
	if size < c.cfg.Risk.MinPositionSize {
		l.Debug("Position size below minimum, skipping", zap.Float64("size", size))
		return false
	}

	stopLoss, takeProfit := c.sizer.CalculateLevels(opp.Direction, opp.CurrentPrice,
		c.cfg.Scalp.StopLossPct, c.cfg.Scalp.TakeProfitPct)

	if !c.risk.ApproveTrade(opp.Symbol, size, stopLoss, takeProfit) {
		l.Debug("Trade not approved by risk ledger, skipping")
		return false
	}

	c.ensureLeverage(opp.Symbol)

	qty := size / opp.CurrentPrice
	orderID, err := c.client.PlaceOrder(&bybit.OrderRequest{
		Symbol:     opp.Symbol,
		Side:       opp.Direction.OrderSide(),
		Qty:        qty,
		StopLoss:   stopLoss,
		TakeProfit: takeProfit,
	})
	if err != nil {
		l.Error("Order submission failed, continuing with next candidate", zap.Error(err))
		return false
	}

	position := &Position{
		Symbol:     opp.Symbol,
		Direction:  opp.Direction,
		EntryPrice: opp.CurrentPrice,
		Quantity:   qty,
		StopLoss:   stopLoss,
		TakeProfit: takeProfit,
		OrderID:    orderID,
		EntryTime:  time.Now(),
	}
	if err := c.store.Insert(position); err != nil {
		// The order is live on the exchange; keep bookkeeping consistent
		// by recording exposure anyway.
		l.Error("Failed to record position", zap.Error(err))
	}
	c.risk.RecordOpen(opp.Symbol)

	l.Info("Opened position",
		zap.String("order_id", orderID),
		zap.Float64("notional", size),
		zap.Float64("stop_loss", stopLoss),
		zap.Float64("take_profit", takeProfit),
	)
	return true
}

// ensureLeverage applies the configured leverage the first time a symbol is
// traded. Failure is logged and ignored; the exchange keeps whatever
// leverage was previously set.
func (c *ExecutionCoordinator) ensureLeverage(symbol string) {
	if c.leverageSet[symbol] {
		return
	}
	if err := c.client.SetLeverage(symbol, c.cfg.Account.Leverage); err != nil {
		c.logger.Warn("Failed to set leverage",
			zap.String("symbol", symbol), zap.Error(err))
	}
	c.leverageSet[symbol] = true
}
