// Package main implements the entry point for the StoryForge server,
// which turns quiz answers into scripted stories and drives the concurrent
// image-generation pipeline that illustrates them.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"

	"github.com/fableworks/storyforge/internal/config"
	"github.com/fableworks/storyforge/internal/platform/logger"
)

// main loads configuration, wires the application's dependencies and runs
// the HTTP server until it is signalled to stop.
func main() {
	ctx := context.Background()

	cfg, appLogger, err := initializeApp()
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	app, err := newApplication(ctx, cfg, appLogger)
	if err != nil {
		log.Fatalf("Failed to assemble application: %v", err)
	}

	if err := app.Run(ctx); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

// initializeApp loads configuration and sets up structured logging.
// Returns the loaded config, the root logger and any initialization error.
func initializeApp() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	// Set up structured logging using the configured log level
	appLogger := logger.Setup(cfg.Server)

	// Log configuration details using structured logging
	slog.Info("Server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel)

	slog.Debug("Pipeline configuration",
		"max_concurrent", cfg.Pipeline.MaxConcurrent,
		"batch_size", cfg.Pipeline.BatchSize,
		"max_images_per_min", cfg.Pipeline.MaxImagesPerMin)
	if cfg.Notify.RedisAddr != "" {
		slog.Debug("Notify configuration", "redis_present", true)
	}
	if cfg.Video.Enabled {
		slog.Debug("Video configuration", "endpoint", cfg.Video.Endpoint)
	}

	return cfg, appLogger, nil
}
