package ingestor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"wawtransit/internal/schedule"
	"wawtransit/pkg/ztmfeed"
)

// Ingestor runs the offline ingestion path: select the archive valid
// for today, download it, load it into a fresh in-memory store and
// atomically persist it over the cache file. Serving never runs this;
// it is invoked by the save-cache binary or once at startup when the
// cache file is missing.
type Ingestor struct {
	client    *ztmfeed.Client
	loader    *schedule.Loader
	cachePath string
	logger    *slog.Logger
}

func New(client *ztmfeed.Client, cachePath string, logger *slog.Logger) *Ingestor {
	return &Ingestor{
		client:    client,
		loader:    schedule.NewLoader(logger),
		cachePath: cachePath,
		logger:    logger.With("component", "schedule_ingestor"),
	}
}

// Run performs one full ingestion. Two concurrent ingestions racing to
// rename over the same path are unspecified, so a lock file next to the
// cache serializes them; a second invocation fails fast instead of
// waiting.
func (i *Ingestor) Run(ctx context.Context) error {
	unlock, err := i.acquireLock()
	if err != nil {
		return err
	}
	defer unlock()

	start := time.Now()

	url := i.client.ArchiveURL(ctx, time.Now())
	reader, _, err := i.client.DownloadArchive(ctx, url)
	if err != nil {
		return fmt.Errorf("download schedule archive: %w", err)
	}

	store, err := schedule.NewMemory()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := i.loader.Load(store, reader); err != nil {
		return err
	}

	if err := store.Persist(i.cachePath); err != nil {
		return err
	}

	i.logger.Info("schedule ingestion completed",
		"cache_path", i.cachePath,
		"archive_url", url,
		"total_duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func (i *Ingestor) acquireLock() (func(), error) {
	lockPath := i.cachePath + ".lock"
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("ingestion already in progress (lock file %s exists)", lockPath)
		}
		return nil, fmt.Errorf("create lock file: %w", err)
	}
	f.Close()

	return func() {
		if err := os.Remove(lockPath); err != nil {
			i.logger.Warn("failed to remove lock file", "path", lockPath, "error", err)
		}
	}, nil
}
