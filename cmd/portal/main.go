package main

import (
	"log/slog"
	"os"

	"tutorhub-portal/internal/app"
	"tutorhub-portal/internal/config"
	"tutorhub-portal/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New(os.Stdout, "info")
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger.New(os.Stdout, cfg.LogLevel)

	application, err := app.New(cfg)
	if err != nil {
		slog.Error("failed to initialize application", "error", err)
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		slog.Error("application run failed", "error", err)
		os.Exit(1)
	}
}
