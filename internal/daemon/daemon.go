package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"cliparr/internal/api"
	"cliparr/internal/catalog"
	"cliparr/internal/config"
	"cliparr/internal/deps"
	"cliparr/internal/fpstore"
	"cliparr/internal/jobs"
	"cliparr/internal/logging"
	"cliparr/internal/scheduler"
)

// Daemon coordinates the background analysis services and enforces
// single-instance execution.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *jobs.Store
	prints  *fpstore.Store
	sched   *scheduler.Scheduler
	library *catalog.SnapshotProvider
	watcher *catalog.Watcher

	lockPath string
	lock     *flock.Flock
	api      *apiServer

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *jobs.Store, prints *fpstore.Store, sched *scheduler.Scheduler, library *catalog.SnapshotProvider, watcher *catalog.Watcher, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || prints == nil || sched == nil || library == nil || watcher == nil {
		return nil, errors.New("daemon requires config, stores, scheduler, and catalog")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "cliparrd.lock")
	return &Daemon{
		cfg:      cfg,
		logger:   logging.WithComponent(logger, "daemon"),
		store:    store,
		prints:   prints,
		sched:    sched,
		library:  library,
		watcher:  watcher,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock and launches the watcher, scheduler, and
// HTTP API. It returns once everything is running.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another cliparr daemon instance is already running")
	}

	for _, dep := range deps.CheckBinaries(deps.Requirements(d.cfg)) {
		if !dep.Available && !dep.Optional {
			d.logger.Warn("external dependency unavailable",
				logging.String("name", dep.Name),
				logging.String("detail", dep.Detail))
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.watcher.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Error("catalog watcher stopped", logging.Error(err))
		}
	}()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.sched.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Error("scheduler stopped", logging.Error(err))
		}
	}()

	server, err := newAPIServer(d.cfg, d, d.logger)
	if err != nil {
		cancel()
		d.wg.Wait()
		_ = d.lock.Unlock()
		return err
	}
	d.api = server
	if err := d.api.start(runCtx); err != nil {
		cancel()
		d.wg.Wait()
		_ = d.lock.Unlock()
		return err
	}

	d.running.Store(true)
	d.logger.Info("cliparr daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.wg.Wait()
	d.api.stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("cliparr daemon stopped")
}

// Close stops the daemon and releases its stores.
func (d *Daemon) Close() error {
	d.Stop()
	var firstErr error
	if err := d.store.Close(); err != nil {
		firstErr = err
	}
	if err := d.prints.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// RequestScan asks the catalog watcher for an immediate snapshot reload.
func (d *Daemon) RequestScan() {
	d.watcher.Refresh()
}

// ListJobs returns jobs matching the filter, newest first.
func (d *Daemon) ListJobs(ctx context.Context, filter jobs.ListFilter) ([]*jobs.Job, error) {
	return d.store.List(ctx, filter)
}

// ShowSegments returns the show's stored consensus segments.
func (d *Daemon) ShowSegments(ctx context.Context, showID int64) ([]jobs.StoredSegment, error) {
	return d.store.SegmentsForShow(ctx, showID)
}

// Status assembles the daemon status payload: process and scheduler state,
// job counts per kind and state, and per-show analysis progress.
func (d *Daemon) Status(ctx context.Context) (*api.DaemonStatus, error) {
	counts, err := d.store.CountsByKindState(ctx)
	if err != nil {
		return nil, fmt.Errorf("job counts: %w", err)
	}
	jobCounts := make(map[string]map[string]int, len(counts))
	for kind, states := range counts {
		jobCounts[string(kind)] = make(map[string]int, len(states))
		for state, count := range states {
			jobCounts[string(kind)][string(state)] = count
		}
	}

	shows, err := d.showStatuses(ctx)
	if err != nil {
		return nil, err
	}

	checks := deps.CheckBinaries(deps.Requirements(d.cfg))
	dependencies := make([]api.DependencyStatus, len(checks))
	for i, dep := range checks {
		dependencies[i] = api.DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		}
	}

	schedStatus := d.sched.Status()
	return &api.DaemonStatus{
		Running:       d.running.Load(),
		PID:           os.Getpid(),
		DatabasePath:  d.store.Path(),
		LockFilePath:  d.lockPath,
		CatalogLoaded: !d.library.LoadedAt().IsZero(),
		Scheduler: api.SchedulerStatus{
			Workers:  schedStatus.Workers,
			InFlight: schedStatus.InFlight,
		},
		JobCounts:    jobCounts,
		Shows:        shows,
		Dependencies: dependencies,
	}, nil
}

func (d *Daemon) showStatuses(ctx context.Context) ([]api.ShowStatus, error) {
	episodes, err := d.library.Episodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list episodes: %w", err)
	}

	type showInfo struct {
		title    string
		versions map[int64]string
	}
	byShow := make(map[int64]*showInfo)
	for _, ep := range episodes {
		info := byShow[ep.ShowID]
		if info == nil {
			info = &showInfo{versions: make(map[int64]string)}
			byShow[ep.ShowID] = info
		}
		if info.title == "" {
			info.title = ep.ShowTitle
		}
		info.versions[ep.ID] = ep.ContentVersion
	}

	summaries, err := d.store.ShowSummaries(ctx)
	if err != nil {
		return nil, fmt.Errorf("show summaries: %w", err)
	}

	statuses := make([]api.ShowStatus, 0, len(byShow))
	for showID, info := range byShow {
		fingerprinted, err := d.prints.CountForEpisodes(ctx, info.versions)
		if err != nil {
			return nil, fmt.Errorf("count fingerprints: %w", err)
		}
		status := api.ShowStatus{
			ShowID:        showID,
			Title:         info.title,
			Episodes:      len(info.versions),
			Fingerprinted: fingerprinted,
			// Consensus needs at least min_support_episodes fingerprints.
			InsufficientData: fingerprinted < d.cfg.Analysis.MinSupportEpisodes,
		}
		if summary := summaries[showID]; summary != nil {
			status.Matches = summary.MatchCount
			status.MatchesSinceAggregate = summary.MatchesSinceAggregate
			status.Segments = summary.SegmentCount
			if summary.LastAggregateAt != nil {
				status.LastAggregateAt = api.FormatTime(*summary.LastAggregateAt)
			}
		}
		statuses = append(statuses, status)
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].ShowID < statuses[j].ShowID })
	return statuses, nil
}
