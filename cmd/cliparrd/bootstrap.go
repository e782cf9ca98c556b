package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cliparr/internal/catalog"
	"cliparr/internal/config"
	"cliparr/internal/daemon"
	"cliparr/internal/fingerprint"
	"cliparr/internal/fpstore"
	"cliparr/internal/jobs"
	"cliparr/internal/scheduler"
)

// bootstrap wires the daemon's dependency graph: stores, extractor, catalog,
// and scheduler. The catalog watcher feeds episode updates straight into the
// scheduler, which owns the extract -> match -> aggregate cascade.
func bootstrap(cfg *config.Config, logger *slog.Logger) (*daemon.Daemon, error) {
	if strings.TrimSpace(cfg.Catalog.SnapshotPath) == "" {
		return nil, fmt.Errorf("catalog.snapshot_path is not configured")
	}

	store, err := jobs.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open job store: %w", err)
	}
	prints, err := fpstore.Open(cfg)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("open fingerprint store: %w", err)
	}

	extractor := fingerprint.NewExtractor(cfg, logger)
	library := catalog.NewSnapshotProvider(cfg.Catalog.SnapshotPath, logger)
	sched := scheduler.New(cfg, store, prints, extractor, library, logger)

	pollInterval := time.Duration(cfg.Catalog.PollInterval) * time.Second
	watcher := catalog.NewWatcher(library, pollInterval, func(ctx context.Context, ep catalog.Episode) {
		sched.OnEpisodeUpdated(ctx, ep)
	}, logger)

	d, err := daemon.New(cfg, store, prints, sched, library, watcher, logger)
	if err != nil {
		store.Close()
		prints.Close()
		return nil, err
	}
	return d, nil
}
