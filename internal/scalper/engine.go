package scalper

import (
	"context"
	"fmt"
	"time"

	"bybit-scalp-bot-go/internal/bybit"
	"bybit-scalp-bot-go/internal/config"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Engine drives the trading loop. Each tick it runs the position monitor;
// on the configured longer cadences it scans for opportunities, resets the
// daily risk metrics, and logs a performance snapshot. Monitoring and
// execution never run concurrently with each other.
type Engine struct {
	logger  *zap.Logger
	cfg     *config.Config
	client  bybit.RestClientInterface
	scanner OpportunitySource

	risk        *RiskLedger
	store       *PositionStore
	coordinator *ExecutionCoordinator
	monitor     *PositionMonitor
	perf        *PerformanceTracker

	iteration int
}

// NewEngine constructs the core components once and wires them together.
// db may be nil to run without the durable position log.
func NewEngine(logger *zap.Logger, cfg *config.Config, client bybit.RestClientInterface,
	scanner OpportunitySource, db *gorm.DB) *Engine {
	risk := NewRiskLedger(cfg, logger)
	sizer := NewPositionSizer(cfg)
	store := NewPositionStore(db, logger)
	perf := NewPerformanceTracker(logger, store, db)

	return &Engine{
		logger:      logger,
		cfg:         cfg,
		client:      client,
		scanner:     scanner,
		risk:        risk,
		store:       store,
		coordinator: NewExecutionCoordinator(logger, cfg, client, risk, sizer, store),
		monitor:     NewPositionMonitor(logger, cfg, client, risk, store, perf),
		perf:        perf,
	}
}

// Run starts the engine's main loop and blocks until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	e.logger.Info("Initializing scalp engine...")
	if err := e.initialize(); err != nil {
		e.logger.Fatal("Failed to initialize engine", zap.Error(err))
	}
	e.logger.Info("Engine initialized successfully.")

	interval := time.Duration(e.cfg.Schedule.CyclePeriodSec) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.logger.Info("Starting trading loop", zap.Duration("cycle_period", interval))

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Stopping scalp engine...")
			e.logPerformance()
			return
		case <-ticker.C:
			e.cycle()
		}
	}
}

// initialize rehydrates open positions and verifies connectivity.
func (e *Engine) initialize() error {
	if err := e.store.LoadOpen(); err != nil {
		return fmt.Errorf("could not load position log: %w", err)
	}
	if e.store.Size() > 0 {
		e.logger.Info("Resuming with open positions", zap.Int("count", e.store.Size()))
	}

	balance, err := e.client.GetWalletBalance()
	if err != nil {
		// Balance is informational only; the risk baseline is configured
		// initial capital, not live equity.
		e.logger.Warn("Could not fetch wallet balance", zap.Error(err))
		return nil
	}
	e.logger.Info("Account balance",
		zap.Float64("equity", balance),
		zap.Float64("initial_capital", e.cfg.Account.InitialCapital))
	return nil
}

// cycle is one tick of the loop: monitor first, then any scheduled work.
func (e *Engine) cycle() {
	e.iteration++

	e.monitor.MonitorAll()

	if e.cfg.Schedule.ResetEvery > 0 && e.iteration%e.cfg.Schedule.ResetEvery == 0 {
		e.risk.ResetDaily()
		e.perf.ResetDaily()
	}

	if e.cfg.Schedule.ScanEvery > 0 && e.iteration%e.cfg.Schedule.ScanEvery == 0 {
		e.scanAndTrade()
	}

	if e.cfg.Schedule.ReportEvery > 0 && e.iteration%e.cfg.Schedule.ReportEvery == 0 {
		e.logPerformance()
	}
}

// scanAndTrade pulls the ranked opportunities and hands them to the
// coordinator. Skipped cheaply while the risk latch is tripped.
func (e *Engine) scanAndTrade() {
	if !e.risk.CanTrade() {
		e.logger.Warn("Trading paused by risk limits, skipping scan")
		return
	}

	opportunities := e.scanner.TopOpportunities(e.cfg.Scanner.ScanLimit)
	if len(opportunities) == 0 {
		e.logger.Debug("No opportunities this scan")
		return
	}

	e.logger.Info("Scan complete", zap.Int("opportunities", len(opportunities)))
	e.coordinator.ExecuteBatch(opportunities)
}

func (e *Engine) logPerformance() {
	snapshot := e.perf.Snapshot()
	metrics := e.risk.Metrics()

	e.logger.Info("Performance snapshot",
		zap.Int("total_trades", snapshot.TotalTrades),
		zap.Float64("win_rate", snapshot.WinRate),
		zap.Float64("total_pnl", snapshot.TotalPnl),
		zap.Float64("daily_pnl", snapshot.DailyPnl),
		zap.Int("active_positions", snapshot.ActivePositions),
		zap.Bool("trading_enabled", metrics.TradingEnabled),
	)
}
