package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tutorhub-portal/internal/config"
	"tutorhub-portal/internal/devapi"
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

	api, err := devapi.New(devapi.Options{
		JWTSecret:  cfg.JWTSecret,
		AccessTTL:  cfg.JWTAccessTTL,
		RefreshTTL: cfg.JWTRefreshTTL,
	})
	if err != nil {
		slog.Error("failed to initialize development backend", "error", err)
		os.Exit(1)
	}

	server := &http.Server{
		Addr:              ":" + cfg.DevAPIPort,
		Handler:           api.Handler(),
		ReadHeaderTimeout: cfg.ServerReadHeaderTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	go func() {
		slog.Info("development backend starting", "addr", server.Addr, "password", devapi.DefaultPassword)
		if serveErr := server.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			slog.Error("server failed", "error", serveErr)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
