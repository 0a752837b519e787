package database

import (
	"fmt"

	"bybit-scalp-bot-go/internal/config"
	"bybit-scalp-bot-go/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewDatabase opens the position/trade log and migrates the schema.
// Existing rows are preserved: the open-position records are what lets a
// restarted process pick up its exchange-side positions again.
func NewDatabase(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(cfg.Database.DSN), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&models.PositionRecord{}, &models.TradeRecord{}); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate database: %w", err)
	}

	return db, nil
}
