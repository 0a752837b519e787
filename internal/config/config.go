package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Bybit    Bybit    `mapstructure:"bybit"`
	Account  Account  `mapstructure:"account"`
	Risk     Risk     `mapstructure:"risk"`
	Scalp    Scalp    `mapstructure:"scalp"`
	Scanner  Scanner  `mapstructure:"scanner"`
	Schedule Schedule `mapstructure:"schedule"`
	Logger   Logger   `mapstructure:"logger"`
	Database Database `mapstructure:"database"`
}

// Bybit holds the configuration for the Bybit API.
type Bybit struct {
	ApiKey         string  `mapstructure:"apiKey"`
	SecretKey      string  `mapstructure:"secretKey"`
	Testnet        bool    `mapstructure:"testnet"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// Account describes the capital the bot trades with.
type Account struct {
	// InitialCapital is the account size in USDT; all risk fractions
	// are computed against this baseline.
	InitialCapital float64 `mapstructure:"initial_capital"`
	// Leverage is applied per symbol before the first order on it.
	Leverage int `mapstructure:"leverage"`
}

// Risk holds the admission-control limits.
type Risk struct {
	// DailyLossLimit is a fraction of initial capital (0.10 = 10%).
	DailyLossLimit float64 `mapstructure:"daily_loss_limit"`
	// MaxDrawdown is a fraction of initial capital (0.20 = 20%).
	MaxDrawdown float64 `mapstructure:"max_drawdown"`
	// MaxConcurrentTrades caps open positions across all symbols.
	MaxConcurrentTrades int `mapstructure:"max_concurrent_trades"`
	// MinPositionSize and MaxPositionSize bound the notional per trade, in USDT.
	MinPositionSize float64 `mapstructure:"min_position_size"`
	MaxPositionSize float64 `mapstructure:"max_position_size"`
	// BaseRiskPerTrade is the fraction of capital committed per trade (0.01 = 1%).
	BaseRiskPerTrade float64 `mapstructure:"base_risk_per_trade"`
}

// Scalp holds the entry/exit parameters for short-duration trades.
type Scalp struct {
	// StopLossPct and TakeProfitPct are fractions of the entry price.
	StopLossPct   float64 `mapstructure:"stop_loss_pct"`
	TakeProfitPct float64 `mapstructure:"take_profit_pct"`
	// MaxHoldTimeSec closes a position regardless of P&L once exceeded.
	MaxHoldTimeSec int `mapstructure:"max_hold_time_sec"`
	// EmergencyExitPct closes a position losing more than this fraction.
	EmergencyExitPct float64 `mapstructure:"emergency_exit_pct"`
	// EarlyProfitPct closes a position gaining more than this fraction.
	EarlyProfitPct float64 `mapstructure:"early_profit_pct"`
}

// Scanner holds the opportunity scanner settings.
type Scanner struct {
	Symbols []string `mapstructure:"symbols"`
	// LowPriceSymbols / HighPriceSymbols feed the sizer's price-tier table.
	LowPriceSymbols  []string `mapstructure:"low_price_symbols"`
	HighPriceSymbols []string `mapstructure:"high_price_symbols"`
	// KlineInterval is a Bybit interval string ("3" = 3 minutes).
	KlineInterval string `mapstructure:"kline_interval"`
	KlineDepth    int    `mapstructure:"kline_depth"`
	// ScanLimit caps how many ranked opportunities reach the coordinator.
	ScanLimit int `mapstructure:"scan_limit"`
}

// Schedule holds the cadence of the engine loop. All *Every values are
// measured in ticks of CyclePeriodSec.
type Schedule struct {
	CyclePeriodSec int `mapstructure:"cycle_period_sec"`
	ScanEvery      int `mapstructure:"scan_every"`
	ResetEvery     int `mapstructure:"reset_every"`
	ReportEvery    int `mapstructure:"report_every"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// Database holds the configuration for the position/trade log database.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("yml")

	// Allow environment variables to override config file
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults()

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	return
}

// setDefaults registers the stock micro-account parameters so a minimal
// config file only needs API credentials.
func setDefaults() {
	viper.SetDefault("bybit.rate_limit", 10)      // requests per second
	viper.SetDefault("bybit.rate_limit_burst", 5) // burst size

	viper.SetDefault("account.initial_capital", 100.00)
	viper.SetDefault("account.leverage", 3)

	viper.SetDefault("risk.daily_loss_limit", 0.10)
	viper.SetDefault("risk.max_drawdown", 0.20)
	viper.SetDefault("risk.max_concurrent_trades", 8)
	viper.SetDefault("risk.min_position_size", 5.00)
	viper.SetDefault("risk.max_position_size", 15.00)
	viper.SetDefault("risk.base_risk_per_trade", 0.01)

	viper.SetDefault("scalp.stop_loss_pct", 0.010)
	viper.SetDefault("scalp.take_profit_pct", 0.015)
	viper.SetDefault("scalp.max_hold_time_sec", 300)
	viper.SetDefault("scalp.emergency_exit_pct", 0.02)
	viper.SetDefault("scalp.early_profit_pct", 0.008)

	viper.SetDefault("scanner.kline_interval", "3")
	viper.SetDefault("scanner.kline_depth", 20)
	viper.SetDefault("scanner.scan_limit", 3)

	viper.SetDefault("schedule.cycle_period_sec", 5)
	viper.SetDefault("schedule.scan_every", 60)    // one scan per 5 minutes
	viper.SetDefault("schedule.reset_every", 2880) // roughly one day of cycles
	viper.SetDefault("schedule.report_every", 360) // one snapshot per 30 minutes

	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.format", "console")

	viper.SetDefault("database.dsn", "scalp_bot.db")
}
