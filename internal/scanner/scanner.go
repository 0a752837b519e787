// Package scanner produces the ranked trade candidates the coordinator
// consumes. It applies the two distilled entry signals of the system: a
// short-vs-long average momentum crossover, and a faster price-change rule
// for volatile low-priced coins.
package scanner

import (
	"sort"

	"bybit-scalp-bot-go/internal/bybit"
	"bybit-scalp-bot-go/internal/config"
	"bybit-scalp-bot-go/internal/scalper"
	"go.uber.org/zap"
)

// Scanner polls the configured symbol universe for entry signals.
type Scanner struct {
	logger *zap.Logger
	cfg    *config.Config
	client bybit.RestClientInterface

	lowPrice map[string]bool
}

// New creates a scanner over the configured universe.
func New(logger *zap.Logger, cfg *config.Config, client bybit.RestClientInterface) *Scanner {
	lowPrice := make(map[string]bool, len(cfg.Scanner.LowPriceSymbols))
	for _, symbol := range cfg.Scanner.LowPriceSymbols {
		lowPrice[symbol] = true
	}
	return &Scanner{
		logger:   logger,
		cfg:      cfg,
		client:   client,
		lowPrice: lowPrice,
	}
}

// TopOpportunities scans every configured symbol and returns at most limit
// candidates, best score first. A symbol whose data cannot be fetched is
// skipped; it will be scanned again next time.
func (s *Scanner) TopOpportunities(limit int) []scalper.Opportunity {
	var opportunities []scalper.Opportunity

	for _, symbol := range s.cfg.Scanner.Symbols {
		opp, ok := s.scanSymbol(symbol)
		if ok {
			opportunities = append(opportunities, opp)
		}
	}

	sort.SliceStable(opportunities, func(i, j int) bool {
		return opportunities[i].Score > opportunities[j].Score
	})

	if limit > 0 && len(opportunities) > limit {
		opportunities = opportunities[:limit]
	}
	return opportunities
}

func (s *Scanner) scanSymbol(symbol string) (scalper.Opportunity, bool) {
	klines, err := s.client.GetKlines(symbol, s.cfg.Scanner.KlineInterval, s.cfg.Scanner.KlineDepth)
	if err != nil {
		s.logger.Debug("Skipping symbol, klines unavailable",
			zap.String("symbol", symbol), zap.Error(err))
		return scalper.Opportunity{}, false
	}
	if len(klines) < 10 {
		return scalper.Opportunity{}, false
	}

	closes := make([]float64, len(klines))
	for i, k := range klines {
		closes[i] = k.Close
	}
	currentPrice := closes[len(closes)-1]
	if currentPrice <= 0 {
		return scalper.Opportunity{}, false
	}

	score, direction := momentumSignal(closes)
	if s.lowPrice[symbol] {
		if pennyScore, pennyDir := pennySignal(closes); pennyScore > score {
			score, direction = pennyScore, pennyDir
		}
	}
	if score == 0 {
		return scalper.Opportunity{}, false
	}

	return scalper.Opportunity{
		Symbol:       symbol,
		Direction:    direction,
		Score:        score,
		CurrentPrice: currentPrice,
	}, true
}

// momentumSignal compares the 5-candle average against the 10-candle
// average; a 0.5% divergence either way is a directional signal.
func momentumSignal(closes []float64) (float64, scalper.Direction) {
	if len(closes) < 10 {
		return 0, scalper.Long
	}

	shortMA := average(closes[len(closes)-5:])
	longMA := average(closes[len(closes)-10:])

	switch {
	case shortMA > longMA*1.005:
		return 0.7, scalper.Long
	case shortMA < longMA*0.995:
		return 0.7, scalper.Short
	}
	return 0, scalper.Long
}

// pennySignal is the fast-move rule for volatile low-priced coins: a 1%
// move over the last five candles in either direction.
func pennySignal(closes []float64) (float64, scalper.Direction) {
	if len(closes) < 6 {
		return 0, scalper.Long
	}

	ref := closes[len(closes)-6]
	if ref == 0 {
		return 0, scalper.Long
	}
	change := (closes[len(closes)-1] - ref) / ref

	switch {
	case change > 0.01:
		return 0.6, scalper.Long
	case change < -0.01:
		return 0.6, scalper.Short
	}
	return 0, scalper.Long
}

func average(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
