package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/teilomillet/koreksi/config"
	"github.com/teilomillet/koreksi/errors"
	"github.com/teilomillet/koreksi/server"
	"go.uber.org/zap"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configFile)
		},
	}
}

func runServe(ctx context.Context, path string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// Logging settings come from the file, so it is read once up front.
	// The watcher inside the server reads it again and follows changes.
	cfg, err := config.LoadFile(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, level, err := server.NewLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer logger.Sync()
	errors.SetLogger(logger)

	srv, err := server.NewServer(path, logger, server.WithLevel(level))
	if err != nil {
		logger.Error("Server initialization failed", zap.Error(err), zap.String("config_path", path))
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting koreksi",
		zap.String("version", server.Version),
		zap.Int("port", cfg.Server.Port),
	)
	if err := srv.Start(ctx); err != nil {
		logger.Error("Server stopped with error", zap.Error(err))
		return err
	}
	logger.Info("Server stopped")
	return nil
}
