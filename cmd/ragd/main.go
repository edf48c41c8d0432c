package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/knoguchi/rag/internal/app"
	"github.com/knoguchi/rag/internal/config"
	"github.com/knoguchi/rag/internal/server"
)

func main() {
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		slog.Error("failed to run server", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	slog.Info("starting RAG service",
		"http_port", cfg.HTTPPort,
		"environment", cfg.Environment,
	)

	rc, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to build runtime context: %w", err)
	}
	defer rc.Close()
	slog.Info("runtime context ready", "registry_collection", cfg.RegistryCollection)

	httpServer := server.New(server.Config{
		Port:           cfg.HTTPPort,
		Logger:         logger,
		AllowedOrigins: cfg.AllowedOrigins,
	}, rc)

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.Start(); err != nil {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		slog.Info("received shutdown signal", "signal", sig)
	}

	slog.Info("shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown HTTP server", "error", err)
	}
	if err := rc.Close(); err != nil {
		slog.Error("failed to close runtime context", "error", err)
	}

	slog.Info("server stopped")
	return nil
}
