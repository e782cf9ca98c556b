package catalog

import (
	"context"
	"errors"
)

// ErrNotFound indicates the requested episode is not in the catalog.
var ErrNotFound = errors.New("episode not found in catalog")

// Episode is one library entry as the analysis pipeline sees it. ContentVersion
// changes whenever the underlying audio changes, e.g. after an upgrade to a
// better release of the same episode.
type Episode struct {
	ID             int64  `json:"id"`
	ShowID         int64  `json:"show_id"`
	ShowTitle      string `json:"show_title"`
	SeasonNumber   int    `json:"season"`
	EpisodeNumber  int    `json:"episode"`
	Title          string `json:"title"`
	DurationMS     int64  `json:"duration_ms"`
	AudioFile      string `json:"audio_file"`
	ContentVersion string `json:"content_version"`
}

// Provider serves read access to the episode library.
type Provider interface {
	// Episode returns one episode by identifier, or ErrNotFound.
	Episode(ctx context.Context, id int64) (Episode, error)
	// Episodes returns every known episode.
	Episodes(ctx context.Context) ([]Episode, error)
	// EpisodesForShow returns the show's episodes ordered by season and number.
	EpisodesForShow(ctx context.Context, showID int64) ([]Episode, error)
}
