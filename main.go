package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"bridgeflow-backend/config"
	"bridgeflow-backend/internal/broadcaster"
	"bridgeflow-backend/internal/database"
	"bridgeflow-backend/internal/pipeline"
	"bridgeflow-backend/internal/prices"
	"bridgeflow-backend/internal/scheduler"
	"bridgeflow-backend/internal/server"
	"bridgeflow-backend/internal/tokens"
	"bridgeflow-backend/internal/utils"

	"go.uber.org/zap"
)

func main() {
	appConfig, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(appConfig.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(appConfig, logger); err != nil {
		utils.LogError(logger, "Backend failed", err)
		logger.Sync()
		os.Exit(1)
	}
}

func run(appConfig config.Config, logger *zap.Logger) error {
	logger.Info("Starting bridge flow backend...")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry, err := tokens.Load(appConfig.Tokens.File)
	if err != nil {
		return utils.WrapError(err, utils.ErrorTypeConfig, "TOKENS_UNAVAILABLE", "failed to load token registry", "main")
	}
	logger.Info("Token registry loaded", zap.Int("tokens", registry.Len()), zap.Strings("tickers", registry.Tickers()))

	source, err := database.Open(ctx, appConfig.Database, logger)
	if err != nil {
		return utils.WrapError(err, utils.ErrorTypeUpstream, "DATABASE_UNAVAILABLE", "failed to open transfer store", "main")
	}
	defer source.Close()

	pricesLogger := utils.ComponentLogger(logger, utils.PricesComponent)
	var (
		feed   prices.Source = prices.NewHTTPSource(appConfig.Prices.BaseURL, appConfig.Prices.Timeout)
		warmer scheduler.PriceWarmer
	)
	if appConfig.Prices.RedisAddr != "" && appConfig.Prices.CacheTTL > 0 {
		cache, err := prices.NewRedisCache(ctx, appConfig.Prices.RedisAddr, appConfig.Prices.RedisDB)
		if err != nil {
			// Prices still resolve straight from the feed
			pricesLogger.Warn("Redis unavailable, price cache disabled", zap.String("addr", appConfig.Prices.RedisAddr), zap.Error(err))
		} else {
			defer cache.Close()
			cached := prices.NewCachedSource(feed, cache, appConfig.Prices.CacheTTL, appConfig.Prices.RedisKeyBase, pricesLogger)
			feed, warmer = cached, cached
			pricesLogger.Info("Price cache enabled", zap.String("addr", appConfig.Prices.RedisAddr), zap.Duration("ttl", appConfig.Prices.CacheTTL))
		}
	}
	resolver := prices.NewResolver(feed, registry, appConfig.Prices.StaleAfter, pricesLogger)

	pipelineConfig := appConfig.Pipeline
	pipelineConfig.Network = appConfig.Prices.Network
	coordinator, err := pipeline.NewCoordinator(pipelineConfig, source, resolver, logger)
	if err != nil {
		return err
	}
	defer coordinator.Stop()

	hub := broadcaster.NewHub(appConfig.Broadcaster, logger)
	sched, err := scheduler.NewScheduler(appConfig.Scheduler, appConfig.Prices.Network, coordinator, hub, warmer, logger)
	if err != nil {
		return err
	}
	srv := server.NewServer(appConfig.Server, coordinator, hub, logger)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		hub.Start(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		sched.Start(ctx)
	}()

	serverErr := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		serverErr <- srv.Start(ctx)
	}()

	logger.Info("Bridge flow backend started", zap.String("addr", appConfig.Server.Addr))

	// Wait for interrupt signal or a server failure
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", zap.String("signal", sig.String()))
	case runErr = <-serverErr:
		logger.Error("HTTP server stopped unexpectedly", zap.Error(runErr))
	}

	// Cancel context to signal shutdown
	cancel()

	// Wait for all components to shut down
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("Graceful shutdown completed")
	case <-time.After(15 * time.Second):
		logger.Warn("Shutdown timeout reached")
	}
	return runErr
}
