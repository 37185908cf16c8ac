package main

import (
	"context"
	"log/slog"
	"os"

	"wawtransit/internal/config"
	"wawtransit/internal/ingestor"
	"wawtransit/pkg/ztmfeed"
)

// save-cache runs one schedule ingestion and exits. It is meant for
// cron or a pre-deploy step so the server never has to ingest on the
// serving path.
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

	feedClient := ztmfeed.New(cfg.ListingURL, cfg.DefaultFeedURL, cfg.UserAgent, logger)
	ing := ingestor.New(feedClient, cfg.CachePath, logger)

	if err := ing.Run(context.Background()); err != nil {
		logger.Error("schedule ingestion failed", "error", err)
		os.Exit(1)
	}
}
