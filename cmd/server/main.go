package main

import (
	"log"

	"github.com/brightline/classledger/internal/app"
	"github.com/brightline/classledger/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := app.NewLogger(cfg.Environment)
	defer logger.Sync()

	logger.Sugar().Infow("Starting classledger",
		"environment", cfg.Environment,
		"port", cfg.Port)

	if err := app.Run(cfg, logger); err != nil {
		logger.Sugar().Fatalw("Server stopped", "error", err)
	}
}
