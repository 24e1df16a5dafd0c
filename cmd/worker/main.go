package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/videovault/videovault/internal/cache"
	"github.com/videovault/videovault/internal/config"
	"github.com/videovault/videovault/internal/database"
	"github.com/videovault/videovault/internal/ffmpeg"
	"github.com/videovault/videovault/internal/jobs"
	"github.com/videovault/videovault/internal/logging"
	"github.com/videovault/videovault/internal/metrics"
	"github.com/videovault/videovault/internal/queue"
	"github.com/videovault/videovault/internal/storage"
	"github.com/videovault/videovault/internal/tracing"
	"github.com/videovault/videovault/pkg/models"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	db, err := database.New(cfg.Database)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	if err := db.Migrate(context.Background()); err != nil {
		logger.WithError(err).Fatal("Failed to run migrations")
	}

	repo := database.NewRepository(db)

	stor, err := storage.New(cfg.Storage)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize storage")
	}

	q, err := queue.New(cfg.Queue)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to queue")
	}
	defer q.Close()

	videoCache, err := cache.NewCache(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.WithError(err).Warn("Redis unavailable, running without cache")
		videoCache = nil
	} else {
		defer videoCache.Close()
	}

	if cfg.Tracing.Enabled {
		_, closer, err := tracing.InitTracer(cfg.Tracing.ServiceName, cfg.Tracing.JaegerEndpoint)
		if err != nil {
			logger.WithError(err).Warn("Failed to initialize tracing")
		} else {
			defer closer.Close()
		}
	}

	enc := ffmpeg.New(cfg.FFmpeg, logger)

	var jobCache jobs.VideoCache
	if videoCache != nil {
		jobCache = videoCache
	}
	svc := jobs.NewService(repo, stor, q, enc, jobCache, logger)

	if err := svc.CheckEncoder(cfg.FFmpeg.Require); err != nil {
		logger.WithError(err).Fatal("Encoder check failed")
	}

	metricsServer := metrics.NewServer(cfg.Metrics.Port)
	go func() {
		logger.Infof("Starting metrics server on :%d", cfg.Metrics.Port)
		if err := metricsServer.Start(); err != nil {
			logger.WithError(err).Error("Metrics server stopped")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutting down worker gracefully...")
		cancel()
	}()

	handler := func(task models.Task) error {
		return svc.HandleTask(ctx, task)
	}

	if depth, err := q.Depth(); err == nil {
		logger.Infof("Task queue depth at startup: %d", depth)
	}

	logger.Info("Worker started, waiting for tasks...")
	if err := q.ConsumeTasks(ctx, handler); err != nil {
		logger.WithError(err).Fatal("Failed to consume tasks")
	}

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Metrics server shutdown failed")
	}

	logger.Info("Worker stopped")
}
