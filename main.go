package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/teilomillet/koreksi/config"
	"github.com/teilomillet/koreksi/errors"
	"github.com/teilomillet/koreksi/server"
	"go.uber.org/zap"
)

func main() {
	configPath := "config.yaml"

	cfg, err := config.LoadFile(configPath)
	if err != nil {
		fmt.Printf("Critical error: failed to load %s: %v\n", configPath, err)
		os.Exit(1)
	}

	logger, level, err := server.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Printf("Critical error: failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Printf("Warning: failed to sync logger: %v\n", syncErr)
		}
	}()

	errors.SetLogger(logger)

	srv, err := server.NewServer(configPath, logger, server.WithLevel(level))
	if err != nil {
		logger.Fatal("Server initialization failed",
			zap.Error(err),
			zap.String("config_path", configPath),
		)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("Shutdown signal received",
			zap.String("signal", sig.String()),
		)
		cancel()
	}()

	if err := srv.Start(ctx); err != nil {
		logger.Fatal("Server startup or runtime error", zap.Error(err))
	}
}
