// Package main is the entry point for the gitpoints server.
//
// The main package stays minimal:
//  1. Read configuration (.env + environment)
//  2. Create dependencies (logger, store)
//  3. Start the server
//
// All actual logic lives in the internal packages. Any configuration or
// store error stops the process before it serves a single request.
package main

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/sakif/gitpoints/internal/config"
	"github.com/sakif/gitpoints/internal/server"
)

func main() {
	// Bootstrap logger until the configured level and format are known.
	instanceID := uuid.New().String()
	logger := newLogger(os.Stdout, slog.LevelInfo, false).With(slog.String("instanceID", instanceID))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger = newLogger(os.Stdout, cfg.LogLevel, cfg.LogJSON).With(slog.String("instanceID", instanceID))
	logger.Info("configuration loaded", slog.String("config", cfg.NonSensitiveString()))

	ctx := context.Background()

	store, err := server.OpenStore(ctx, cfg.Store, logger)
	if err != nil {
		logger.Error("failed to open store", slog.String("error", err.Error()))
		os.Exit(1)
	}

	srv, err := server.New(cfg, store, logger)
	if err != nil {
		_ = store.Close()
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start blocks until SIGINT/SIGTERM and closes the store on the way out.
	if err := srv.Start(ctx); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// newLogger returns a text logger for humans or a JSON logger for log
// collectors.
func newLogger(w io.Writer, level slog.Level, json bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if json {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
