package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/user/imageproxy-service/internal/api"
	"github.com/user/imageproxy-service/internal/config"
	"github.com/user/imageproxy-service/internal/fetcher"
	"github.com/user/imageproxy-service/internal/monitoring"
	"github.com/user/imageproxy-service/internal/storage"
)

func main() {
	// Initialize structured logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("could not load config", zap.Error(err))
	}

	// Initialize Monitoring and the optional metadata cache
	metrics := monitoring.NewMetrics()
	cache := storage.NewMetadataCache(cfg.RedisAddr)
	if cache != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := cache.Ping(ctx); err != nil {
			logger.Warn("redis unreachable, metadata cache degraded", zap.Error(err))
		}
		cancel()
	}

	// Initialize the upstream fetcher
	f := fetcher.New(fetcher.Options{
		Timeout:      cfg.FetchTimeoutDuration(),
		MaxRetries:   cfg.MaxRetries,
		RetryBase:    cfg.RetryBaseDelay(),
		MaxBodyBytes: cfg.MaxBodyBytes,
		OnRetry:      metrics.UpstreamRetries.Inc,
	}, logger)

	// Initialize API Server
	server := api.NewServer(cfg, f, cache, metrics, logger)

	// Graceful Shutdown
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("could not start server", zap.Error(err))
		}
	}()

	logger.Info("server started", zap.String("port", cfg.ServerPort))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exiting")
}
