package main

import (
	"context"
	"fmt"
	"log/slog"

	gcstorage "cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/fableworks/storyforge/internal/config"
	"github.com/fableworks/storyforge/internal/generation"
	"github.com/fableworks/storyforge/internal/metrics"
	"github.com/fableworks/storyforge/internal/notify"
	"github.com/fableworks/storyforge/internal/pipeline"
	"github.com/fableworks/storyforge/internal/platform/gcs"
	"github.com/fableworks/storyforge/internal/platform/gemini"
	"github.com/fableworks/storyforge/internal/platform/imagen"
	"github.com/fableworks/storyforge/internal/platform/video"
	"github.com/fableworks/storyforge/internal/sanitize"
	"github.com/fableworks/storyforge/internal/store"
	"github.com/fableworks/storyforge/internal/task"
)

// application holds all the application-wide dependencies, wired once at
// startup and shared by the router and the background task runner.
type application struct {
	config   *config.Config
	logger   *slog.Logger
	sessions *store.SessionStore
	hub      *notify.Hub
	registry *prometheus.Registry
	recorder *metrics.Recorder
	scripter *gemini.ScriptGenerator
	factory  *task.StoryGenerationTaskFactory
	runner   *task.Runner

	// Held only for cleanup; nil when the matching feature is not configured.
	storageClient *gcstorage.Client
	broker        *notify.RedisBroker
}

// newApplication creates and initializes all application dependencies in
// dependency order: stores and notification fan-out first, then the model
// and storage clients, then the pipeline built on top of them, and finally
// the task runner that executes story generation in the background.
func newApplication(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
) (*application, error) {
	sessions := store.NewSessionStore(
		cfg.Store.FinishedCapacity,
		cfg.Store.FinishedRetention,
		logger,
	)
	logger.Info("Session store initialized",
		"finished_capacity", cfg.Store.FinishedCapacity,
		"finished_retention", cfg.Store.FinishedRetention)

	hub := notify.NewHub(logger)
	var publisher notify.Publisher = hub
	var broker *notify.RedisBroker
	if cfg.Notify.RedisAddr != "" {
		b, err := notify.NewRedisBroker(ctx, cfg.Notify.RedisAddr, cfg.Notify.ChannelPrefix, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect progress broker: %w", err)
		}
		broker = b
		publisher = notify.NewFanout(hub, b)
		logger.Info("Redis progress broker connected", "addr", cfg.Notify.RedisAddr)
	}

	registry := prometheus.NewRegistry()
	recorder := metrics.NewRecorder(registry)

	client, err := gemini.NewClient(ctx, cfg.Generation.GeminiAPIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	logger.Info("Gemini client created",
		"script_model", cfg.Generation.ScriptModel,
		"image_model", cfg.Generation.ImageModel)

	scripter, err := gemini.NewScriptGenerator(logger, cfg.Generation, client)
	if err != nil {
		return nil, fmt.Errorf("failed to create script generator: %w", err)
	}

	renderer, err := imagen.NewRenderer(logger, cfg.Generation, client)
	if err != nil {
		return nil, fmt.Errorf("failed to create image renderer: %w", err)
	}

	storageClient, err := gcstorage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	uploader, err := gcs.NewUploader(storageClient, cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create uploader: %w", err)
	}
	logger.Info("Object storage ready", "bucket", cfg.Storage.Bucket)

	sanitizer, err := sanitize.FromFile(cfg.Sanitizer.RulesFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load sanitizer rules: %w", err)
	}

	pipeCfg := pipelineSettings(cfg.Pipeline, cfg.Generation)
	flag := pipeline.NewRateLimitFlag()
	executor, err := pipeline.NewExecutor(renderer, uploader, sanitizer, flag, pipeCfg, logger, recorder)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline executor: %w", err)
	}
	scheduler, err := pipeline.NewBatchScheduler(executor, flag, pipeCfg, logger, recorder)
	if err != nil {
		return nil, fmt.Errorf("failed to create batch scheduler: %w", err)
	}
	driver, err := pipeline.NewDriver(scheduler, executor, pipeCfg, logger, recorder)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline driver: %w", err)
	}
	logger.Info("Image pipeline assembled",
		"max_concurrent", pipeCfg.MaxConcurrent,
		"batch_size", pipeCfg.BatchSize,
		"max_attempts", pipeCfg.MaxAttempts)

	// synth stays a nil interface unless the video stage is configured; the
	// task factory treats nil as "stage disabled".
	var synth generation.VideoSynthesizer
	if cfg.Video.Enabled {
		videoClient, err := video.NewClient(cfg.Video, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create video client: %w", err)
		}
		synth = videoClient
		logger.Info("Video synthesis enabled",
			"endpoint", cfg.Video.Endpoint,
			"model", cfg.Video.Model)
	}

	factory := task.NewStoryGenerationTaskFactory(
		sessions,
		scripter,
		driver,
		synth,
		publisher,
		recorder,
		logger,
	)

	runner := task.NewRunner(task.RunnerConfig{
		WorkerCount: cfg.Pipeline.StoryWorkers,
		QueueSize:   cfg.Pipeline.StoryQueueSize,
	}, logger)
	runner.Start()
	logger.Info("Task runner started",
		"workers", cfg.Pipeline.StoryWorkers,
		"queue_size", cfg.Pipeline.StoryQueueSize)

	return &application{
		config:        cfg,
		logger:        logger,
		sessions:      sessions,
		hub:           hub,
		registry:      registry,
		recorder:      recorder,
		scripter:      scripter,
		factory:       factory,
		runner:        runner,
		storageClient: storageClient,
		broker:        broker,
	}, nil
}

// Run starts the HTTP server and blocks until shutdown completes.
func (app *application) Run(ctx context.Context) error {
	router := app.setupRouter()
	return app.startHTTPServer(ctx, router)
}

// cleanup releases application resources in reverse dependency order. The
// runner stops first so no in-flight task publishes through a closed broker.
func (app *application) cleanup() {
	app.logger.Info("Cleaning up application resources")

	if app.runner != nil {
		app.runner.Stop()
		app.logger.Info("Task runner stopped")
	}

	if app.broker != nil {
		if err := app.broker.Close(); err != nil {
			app.logger.Error("Failed to close progress broker", "error", err)
		}
	}

	if app.storageClient != nil {
		if err := app.storageClient.Close(); err != nil {
			app.logger.Error("Failed to close storage client", "error", err)
		}
	}
}

// pipelineSettings maps the service configuration onto the pipeline tuning.
// The prompt cap lives under generation settings because the scripter owns
// prompt length, but it is the pipeline that enforces it on retries.
func pipelineSettings(p config.PipelineConfig, g config.GenerationConfig) pipeline.Config {
	return pipeline.Config{
		MaxConcurrent:    p.MaxConcurrent,
		BatchSize:        p.BatchSize,
		MaxImagesPerMin:  p.MaxImagesPerMin,
		MaxAttempts:      p.MaxAttempts,
		OverallDeadline:  p.OverallDeadline,
		RunRetries:       p.RunRetries,
		RunRetryDelay:    p.RunRetryDelay,
		GenericBackoff:   p.GenericBackoff,
		RateLimitBackoff: p.RateLimitBackoff,
		PromptMaxLen:     g.PromptMaxLen,
		RequireApproval:  p.RequireApproval,
	}
}
