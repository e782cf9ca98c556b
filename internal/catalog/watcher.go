package catalog

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"cliparr/internal/logging"
)

// UpdateHandler receives episodes that appeared in or changed within the
// catalog since the previous snapshot load.
type UpdateHandler func(ctx context.Context, ep Episode)

// Watcher keeps a SnapshotProvider current. It reloads on filesystem events
// for the snapshot file, on a polling interval as a fallback, and on demand
// via Refresh, then reports per-episode differences to the handler.
type Watcher struct {
	provider *SnapshotProvider
	handler  UpdateHandler
	interval time.Duration
	logger   *slog.Logger

	refresh chan struct{}
}

// NewWatcher builds a watcher around the provider. interval is the polling
// fallback period for platforms or mounts where filesystem events are
// unreliable.
func NewWatcher(provider *SnapshotProvider, interval time.Duration, handler UpdateHandler, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Watcher{
		provider: provider,
		handler:  handler,
		interval: interval,
		logger:   logging.WithComponent(logger, "catalog-watcher"),
		refresh:  make(chan struct{}, 1),
	}
}

// Refresh requests an immediate snapshot reload. It never blocks; a reload
// already queued absorbs the request.
func (w *Watcher) Refresh() {
	select {
	case w.refresh <- struct{}{}:
	default:
	}
}

// Run loads the snapshot once, then reloads until the context is canceled.
// The snapshot file is watched through its parent directory because the media
// manager replaces the file by rename, which drops a watch on the file itself.
func (w *Watcher) Run(ctx context.Context) error {
	before := w.provider.versions()
	if err := w.provider.Reload(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		w.logger.Warn("initial catalog load failed, will retry on next cycle",
			logging.Error(err))
	} else {
		w.reportChanges(ctx, before)
	}

	notifier, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer notifier.Close()

	dir := filepath.Dir(w.provider.path)
	if err := notifier.Add(dir); err != nil {
		w.logger.Warn("filesystem watch unavailable, falling back to polling",
			logging.String("dir", dir), logging.Error(err))
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// Small settle delay so a rename followed by a write is read once.
	var pending *time.Timer
	pendingC := make(<-chan time.Time)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-notifier.Events:
			if !ok {
				return errors.New("filesystem watcher closed")
			}
			if !w.snapshotEvent(event) {
				continue
			}
			if pending == nil {
				pending = time.NewTimer(250 * time.Millisecond)
				pendingC = pending.C
			} else {
				pending.Reset(250 * time.Millisecond)
			}

		case watchErr, ok := <-notifier.Errors:
			if !ok {
				return errors.New("filesystem watcher closed")
			}
			w.logger.Warn("filesystem watch error", logging.Error(watchErr))

		case <-pendingC:
			pending = nil
			pendingC = make(<-chan time.Time)
			w.reload(ctx)

		case <-ticker.C:
			w.reloadIfStale(ctx)

		case <-w.refresh:
			w.reload(ctx)
		}
	}
}

func (w *Watcher) snapshotEvent(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != filepath.Clean(w.provider.path) {
		return false
	}
	return event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Write) || event.Op.Has(fsnotify.Rename)
}

func (w *Watcher) reload(ctx context.Context) {
	before := w.provider.versions()
	if err := w.provider.Reload(ctx); err != nil {
		w.logger.Warn("catalog reload failed", logging.Error(err))
		return
	}
	w.reportChanges(ctx, before)
}

// reloadIfStale skips the polling reload when the snapshot file has not been
// modified since the last successful load.
func (w *Watcher) reloadIfStale(ctx context.Context) {
	info, err := os.Stat(w.provider.path)
	if err == nil && !info.ModTime().After(w.provider.LoadedAt()) {
		return
	}
	w.reload(ctx)
}

func (w *Watcher) reportChanges(ctx context.Context, before map[int64]string) {
	if w.handler == nil {
		return
	}
	after, err := w.provider.Episodes(ctx)
	if err != nil {
		return
	}
	for _, ep := range after {
		prev, known := before[ep.ID]
		if known && prev == ep.ContentVersion {
			continue
		}
		if known {
			w.logger.Info("episode content changed",
				logging.Int64(logging.FieldEpisodeID, ep.ID),
				logging.String("previous_version", prev),
				logging.String("version", ep.ContentVersion))
		} else {
			w.logger.Info("episode added",
				logging.Int64(logging.FieldEpisodeID, ep.ID),
				logging.Int64(logging.FieldShowID, ep.ShowID))
		}
		w.handler(ctx, ep)
	}
}
