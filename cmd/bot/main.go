package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"bybit-scalp-bot-go/internal/bybit"
	"bybit-scalp-bot-go/internal/config"
	"bybit-scalp-bot-go/internal/database"
	"bybit-scalp-bot-go/internal/logger"
	"bybit-scalp-bot-go/internal/scalper"
	"bybit-scalp-bot-go/internal/scanner"
	"go.uber.org/zap"
)

func main() {
	// Load application configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		// We can't use the logger here because it's not initialized yet.
		panic(fmt.Sprintf("could not load config: %v", err))
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format, cfg.Logger.File)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("Configuration loaded")

	// Initialize position/trade log database
	db, err := database.NewDatabase(&cfg)
	if err != nil {
		log.Fatal("Failed to open position log database", zap.Error(err))
	}
	log.Info("Position log database ready.")

	// Initialize Bybit REST client
	restClient := bybit.NewRestClient(&cfg.Bybit, log)
	if _, err := restClient.GetServerTime(); err != nil {
		log.Fatal("Failed to connect to Bybit API", zap.Error(err))
	}
	log.Info("Successfully connected to Bybit API.")

	// Setup context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigchan := make(chan os.Signal, 1)
		signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
		<-sigchan
		log.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	// Initialize and run the scalp engine
	opportunityScanner := scanner.New(log, &cfg, restClient)
	engine := scalper.NewEngine(log, &cfg, restClient, opportunityScanner, db)
	engine.Run(ctx)

	log.Info("Bot has been shut down.")
}
