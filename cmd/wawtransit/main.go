package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wawtransit/internal/cache"
	"wawtransit/internal/config"
	"wawtransit/internal/handler"
	"wawtransit/internal/hub"
	"wawtransit/internal/ingestor"
	"wawtransit/internal/middleware"
	"wawtransit/internal/realtime"
	"wawtransit/internal/service"
	"wawtransit/internal/version"
	"wawtransit/pkg/ztmfeed"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("starting wawtransit server",
		"version", version.Get().Version,
		"log_level", cfg.LogLevel.String(),
		"http_addr", cfg.HTTPAddr,
		"cache_path", cfg.CachePath,
	)

	feedClient := ztmfeed.New(cfg.ListingURL, cfg.DefaultFeedURL, cfg.UserAgent, logger)

	if cfg.IngestOnStart {
		if _, err := os.Stat(cfg.CachePath); os.IsNotExist(err) {
			logger.Info("schedule cache missing, running ingestion", "cache_path", cfg.CachePath)
			ing := ingestor.New(feedClient, cfg.CachePath, logger)
			if err := ing.Run(context.Background()); err != nil {
				logger.Error("startup ingestion failed", "error", err)
				os.Exit(1)
			}
		}
	}

	rtClient := realtime.NewClient(cfg.RealtimeFeedURL, cfg.UserAgent)
	svc := service.New(cfg.CachePath, rtClient, time.Now, logger)

	var redisCache *cache.RedisCache
	if cfg.RedisEnabled {
		redisCache, err = cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, logger)
		if err != nil {
			logger.Warn("redis unavailable, continuing without response cache", "error", err)
			redisCache = nil
		} else {
			defer redisCache.Close()
		}
	}

	wsHub := hub.NewHub(logger)
	poller := ingestor.NewPoller(svc, wsHub, cfg.PollInterval, realtime.Options{RoutesInfo: true}, logger)

	transitHandler := handler.NewTransitHandler(svc, redisCache, logger)
	wsHandler := handler.NewWSHandler(wsHub, svc, logger)
	healthHandler := handler.NewHealthHandler(svc)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/positions", transitHandler.CurrentPositions)
	mux.HandleFunc("GET /api/shapes/{tripId}", transitHandler.GetShape)
	mux.HandleFunc("GET /api/routes/{tripId}", transitHandler.GetRouteInfo)
	mux.HandleFunc("GET /api/stops", transitHandler.ListStops)
	mux.HandleFunc("GET /api/trips/{tripId}", transitHandler.GetTripDetails)
	mux.HandleFunc("GET /api/trips/{tripId}/stops", transitHandler.GetStopsOnTrip)
	mux.HandleFunc("GET /api/version", transitHandler.GetVersion)
	mux.HandleFunc("/api/ws", wsHandler.ServeWS)

	mux.HandleFunc("GET /healthz", healthHandler.Healthz)
	mux.HandleFunc("GET /readyz", healthHandler.Readyz)

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitPerWindow, cfg.RateLimitWindow, cfg.RateLimitWhitelist, logger)

	var root http.Handler = mux
	root = handler.GzipMiddleware(root)
	root = handler.CORSMiddleware(root)
	root = rateLimiter.Middleware(root)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      root,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go wsHub.Run(ctx)
	go poller.Run(ctx)

	if redisCache != nil && cfg.CacheWarmOnStart {
		warmer := cache.NewCacheWarmer(redisCache, svc, cfg.CacheTTL, logger)
		go func() {
			if err := warmer.WarmAll(ctx); err != nil {
				logger.Warn("cache warm failed", "error", err)
			}
		}()
	}

	go func() {
		logger.Info("starting HTTP server", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigChan:
		logger.Info("shutdown signal received")
	case <-ctx.Done():
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}
