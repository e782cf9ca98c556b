package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"

	"cliparr/internal/logging"
)

// snapshotFile is the on-disk export written by the media manager.
type snapshotFile struct {
	GeneratedAt time.Time `json:"generated_at"`
	Episodes    []Episode `json:"episodes"`
}

// SnapshotProvider serves episodes from a JSON snapshot file. Reload swaps the
// in-memory view atomically; readers never observe a half-loaded catalog.
type SnapshotProvider struct {
	path   string
	logger *slog.Logger

	mu       sync.RWMutex
	episodes map[int64]Episode
	byShow   map[int64][]int64
	loadedAt time.Time
}

// NewSnapshotProvider creates a provider for the snapshot at path. The catalog
// is empty until the first Reload.
func NewSnapshotProvider(path string, logger *slog.Logger) *SnapshotProvider {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &SnapshotProvider{
		path:     path,
		logger:   logging.WithComponent(logger, "catalog"),
		episodes: make(map[int64]Episode),
		byShow:   make(map[int64][]int64),
	}
}

// Reload re-reads the snapshot file and replaces the in-memory catalog. The
// media manager rewrites the file non-atomically on some platforms, so short
// read or decode failures are retried before giving up.
func (p *SnapshotProvider) Reload(ctx context.Context) error {
	snapshot, err := retry.DoWithData(
		func() (*snapshotFile, error) { return readSnapshot(p.path) },
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(200*time.Millisecond),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return fmt.Errorf("load catalog snapshot %s: %w", p.path, err)
	}

	episodes := make(map[int64]Episode, len(snapshot.Episodes))
	byShow := make(map[int64][]int64)
	for _, ep := range snapshot.Episodes {
		if ep.ID == 0 || ep.ShowID == 0 {
			p.logger.Warn("skipping snapshot entry without identifiers",
				logging.String("title", ep.Title))
			continue
		}
		if ep.ContentVersion == "" {
			ep.ContentVersion = deriveContentVersion(ep.AudioFile)
		}
		episodes[ep.ID] = ep
		byShow[ep.ShowID] = append(byShow[ep.ShowID], ep.ID)
	}
	for showID := range byShow {
		ids := byShow[showID]
		sort.Slice(ids, func(i, j int) bool {
			a, b := episodes[ids[i]], episodes[ids[j]]
			if a.SeasonNumber != b.SeasonNumber {
				return a.SeasonNumber < b.SeasonNumber
			}
			if a.EpisodeNumber != b.EpisodeNumber {
				return a.EpisodeNumber < b.EpisodeNumber
			}
			return a.ID < b.ID
		})
	}

	p.mu.Lock()
	p.episodes = episodes
	p.byShow = byShow
	p.loadedAt = time.Now()
	p.mu.Unlock()

	p.logger.Info("catalog snapshot loaded",
		logging.Int("episodes", len(episodes)),
		logging.Int("shows", len(byShow)))
	return nil
}

func readSnapshot(path string) (*snapshotFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var snapshot snapshotFile
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snapshot, nil
}

// deriveContentVersion builds a version token from the audio file's size and
// modification time when the snapshot does not carry one.
func deriveContentVersion(audioFile string) string {
	info, err := os.Stat(audioFile)
	if err != nil {
		return "unknown"
	}
	return fmt.Sprintf("%x-%x", info.Size(), info.ModTime().UnixNano())
}

// Episode implements Provider.
func (p *SnapshotProvider) Episode(_ context.Context, id int64) (Episode, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ep, ok := p.episodes[id]
	if !ok {
		return Episode{}, fmt.Errorf("episode %d: %w", id, ErrNotFound)
	}
	return ep, nil
}

// Episodes implements Provider.
func (p *SnapshotProvider) Episodes(_ context.Context) ([]Episode, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	result := make([]Episode, 0, len(p.episodes))
	for _, ep := range p.episodes {
		result = append(result, ep)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// EpisodesForShow implements Provider.
func (p *SnapshotProvider) EpisodesForShow(_ context.Context, showID int64) ([]Episode, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ids := p.byShow[showID]
	result := make([]Episode, 0, len(ids))
	for _, id := range ids {
		result = append(result, p.episodes[id])
	}
	return result, nil
}

// LoadedAt reports when the current snapshot was read. The zero time means no
// snapshot has been loaded yet.
func (p *SnapshotProvider) LoadedAt() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.loadedAt
}

// versions returns the content version of every episode, keyed by episode ID.
func (p *SnapshotProvider) versions() map[int64]string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	result := make(map[int64]string, len(p.episodes))
	for id, ep := range p.episodes {
		result[id] = ep.ContentVersion
	}
	return result
}
