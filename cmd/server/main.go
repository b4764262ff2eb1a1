package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pricescout/backend/config"
	httpDelivery "github.com/pricescout/backend/internal/delivery/http"
	"github.com/pricescout/backend/internal/domain"
	"github.com/pricescout/backend/internal/infrastructure/cache"
	"github.com/pricescout/backend/internal/infrastructure/logging"
	"github.com/pricescout/backend/internal/infrastructure/metrics"
	"github.com/pricescout/backend/internal/infrastructure/scraper"
	"github.com/pricescout/backend/internal/infrastructure/status"
	"github.com/pricescout/backend/internal/usecase"
)

const (
	serviceName     = "pricescout-backend"
	shutdownTimeout = 15 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("Server exited with error")
		os.Exit(1)
	}
}

// run wires the service and serves until a signal arrives or the listener fails.
// Deferred cleanup always runs before it returns.
func run(cfg *config.Config, logger logging.Logger) error {
	logger.WithFields(logging.Fields{
		"service":     serviceName,
		"environment": cfg.Server.Environment,
		"port":        cfg.Server.Port,
		"cache_type":  cfg.Cache.Type,
		"cache_ttl":   cfg.Cache.TTL.String(),
	}).Info("Starting PriceScout Backend v1.0.0")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	productCache, closeCache, err := newCache(ctx, cfg.Cache)
	if err != nil {
		return fmt.Errorf("initialize cache: %w", err)
	}
	defer func() {
		if err := closeCache(); err != nil {
			logger.WithError(err).Warn("Failed to close cache")
		}
	}()

	hub := status.NewHub(cfg.Status.OrphanTTL, logger)
	defer hub.Stop()

	collector := metrics.NewCollector(serviceName, func() float64 {
		return float64(hub.ActiveStreams())
	})

	client := scraper.NewClient(scraper.ClientConfig{
		UserAgent:      cfg.Scraper.UserAgent,
		RequestTimeout: cfg.Scraper.RequestTimeout,
		RatePerSecond:  cfg.Scraper.RatePerSecond,
		Burst:          cfg.Scraper.Burst,
	}, logger)

	sources := scraper.DefaultSources(cfg.Scraper.AmazonBaseURL, cfg.Scraper.FlipkartBaseURL)
	for _, source := range sources {
		logger.WithFields(logging.Fields{
			"source": source.Key,
			"url":    source.BaseURL,
		}).Info("Source configured")
	}

	searchService := usecase.NewSearchService(
		scraper.NewScraper(client),
		productCache,
		hub,
		usecase.SearchServiceConfig{
			Sources:  sources,
			CacheTTL: cfg.Cache.TTL,
			Observer: collector,
			Logger:   logger,
		},
	)

	handler := httpDelivery.NewHandler(searchService, hub, logger)
	router := httpDelivery.SetupRouter(cfg, handler, collector, logger)

	// No write timeout: status streams stay open for the length of a search
	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", server.Addr).Info("Server listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	}

	// Ending the streams first lets their handlers return before Shutdown waits on them
	hub.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

// newCache builds the configured cache backend and its close function
func newCache(ctx context.Context, cfg config.CacheConfig) (domain.CacheRepository, func() error, error) {
	switch cfg.Type {
	case "redis":
		redisCache, err := cache.NewRedisCache(ctx, cfg.RedisURL, cfg.KeyPrefix)
		if err != nil {
			return nil, nil, err
		}
		return redisCache, redisCache.Close, nil
	default:
		memoryCache := cache.NewMemoryCache(0)
		return memoryCache, memoryCache.Close, nil
	}
}
