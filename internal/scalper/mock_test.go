package scalper

import (
	"testing"

	"bybit-scalp-bot-go/internal/bybit"
	"bybit-scalp-bot-go/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"bybit-scalp-bot-go/internal/models"
)

// MockRestClient is a mock implementation of bybit.RestClientInterface.
type MockRestClient struct {
	mock.Mock
}

func (m *MockRestClient) GetServerTime() (int64, error) {
	args := m.Called()
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRestClient) GetTicker(symbol string) (*bybit.Ticker, error) {
	args := m.Called(symbol)
	ticker, _ := args.Get(0).(*bybit.Ticker)
	return ticker, args.Error(1)
}

func (m *MockRestClient) GetKlines(symbol, interval string, limit int) ([]bybit.Kline, error) {
	args := m.Called(symbol, interval, limit)
	klines, _ := args.Get(0).([]bybit.Kline)
	return klines, args.Error(1)
}

func (m *MockRestClient) PlaceOrder(req *bybit.OrderRequest) (string, error) {
	args := m.Called(req)
	return args.String(0), args.Error(1)
}

func (m *MockRestClient) SetLeverage(symbol string, leverage int) error {
	args := m.Called(symbol, leverage)
	return args.Error(0)
}

func (m *MockRestClient) GetWalletBalance() (float64, error) {
	args := m.Called()
	return args.Get(0).(float64), args.Error(1)
}

// testConfig returns the stock micro-account parameters used across the
// component tests.
func testConfig() *config.Config {
	return &config.Config{
		Account: config.Account{
			InitialCapital: 100.00,
			Leverage:       3,
		},
		Risk: config.Risk{
			DailyLossLimit:      0.10,
			MaxDrawdown:         0.20,
			MaxConcurrentTrades: 8,
			MinPositionSize:     5.00,
			MaxPositionSize:     15.00,
			BaseRiskPerTrade:    0.01,
		},
		Scalp: config.Scalp{
			StopLossPct:      0.010,
			TakeProfitPct:    0.015,
			MaxHoldTimeSec:   300,
			EmergencyExitPct: 0.02,
			EarlyProfitPct:   0.008,
		},
		Scanner: config.Scanner{
			LowPriceSymbols:  []string{"DOGEUSDT"},
			HighPriceSymbols: []string{"BTCUSDT"},
			ScanLimit:        3,
		},
	}
}

// setupTestDB creates a fresh in-memory position log per test.
func setupTestDB(t *testing.T) *gorm.DB {
	// Use a new, non-shared in-memory database for each test to ensure isolation.
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	assert.NoError(t, err)

	err = db.AutoMigrate(&models.PositionRecord{}, &models.TradeRecord{})
	assert.NoError(t, err)

	return db
}
