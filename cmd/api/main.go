package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/videovault/videovault/internal/cache"
	"github.com/videovault/videovault/internal/config"
	"github.com/videovault/videovault/internal/database"
	"github.com/videovault/videovault/internal/ffmpeg"
	"github.com/videovault/videovault/internal/jobs"
	"github.com/videovault/videovault/internal/logging"
	"github.com/videovault/videovault/internal/middleware"
	"github.com/videovault/videovault/internal/queue"
	"github.com/videovault/videovault/internal/storage"
	"github.com/videovault/videovault/internal/tracing"
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

	// The cache is an optimization; the API serves from the database when
	// Redis is unavailable.
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

	api := &API{
		repo:    repo,
		storage: stor,
		cache:   videoCache,
		jobs:    svc,
		cfg:     cfg,
		log:     logger,
	}

	router := setupRouter(api)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Infof("Starting API server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Fatal("Server forced to shutdown")
	}

	logger.Info("Server stopped")
}

func setupRouter(api *API) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.RateLimit(middleware.NewRateLimiter(10, 20)))
	router.MaxMultipartMemory = 32 << 20

	router.GET("/health", api.healthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/videos", api.uploadVideo)
		v1.GET("/videos", api.listVideos)
		v1.GET("/videos/:id", api.getVideo)
		v1.DELETE("/videos/:id", api.deleteVideo)

		v1.POST("/videos/:id/transcodes", api.requestTranscode)
		v1.GET("/videos/:id/transcodes", api.listTranscodes)
		v1.GET("/videos/:id/url", api.getVideoURL)
		v1.GET("/videos/:id/source", api.checkSource)
	}

	return router
}
