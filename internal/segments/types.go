package segments

import "cliparr/internal/config"

// Kind classifies a consensus segment.
type Kind string

const (
	KindIntro   Kind = "intro"
	KindRecap   Kind = "recap"
	KindCredits Kind = "credits"
	KindUnknown Kind = "unknown"
)

// EpisodeRange is a time span inside one episode, milliseconds.
type EpisodeRange struct {
	StartMS int64 `json:"start_ms"`
	EndMS   int64 `json:"end_ms"`
}

// Duration returns the span length.
func (r EpisodeRange) Duration() int64 {
	return r.EndMS - r.StartMS
}

// overlap returns the overlapping span length of two ranges, or zero.
func (r EpisodeRange) overlap(other EpisodeRange) int64 {
	lo := max64(r.StartMS, other.StartMS)
	hi := min64(r.EndMS, other.EndMS)
	if hi <= lo {
		return 0
	}
	return hi - lo
}

// Segment is a show-level consensus repeated region.
type Segment struct {
	ShowID             int64                  `json:"show_id"`
	Kind               Kind                   `json:"kind"`
	Ordinal            int                    `json:"ordinal"`
	Confidence         float64                `json:"confidence"`
	SupportingEpisodes int                    `json:"supporting_episodes"`
	Ranges             map[int64]EpisodeRange `json:"ranges"`
}

// PairMatch is the aggregator's view of one stored pairwise match range.
type PairMatch struct {
	EpisodeA int64
	EpisodeB int64
	RangeA   EpisodeRange
	RangeB   EpisodeRange
	Score    float64
}

// Params controls clustering and classification.
type Params struct {
	// MinOverlap is the interval overlap fraction at which two ranges on the
	// same episode merge into one cluster.
	MinOverlap float64
	// EdgeFraction defines the episode head/tail region used to classify
	// intros and credits.
	EdgeFraction float64
	// MinSupportEpisodes drops clusters corroborated by fewer episodes.
	MinSupportEpisodes int
	// MinConfidence drops clusters below this confidence.
	MinConfidence float64
}

// DefaultParams returns the aggregation thresholds used in production.
func DefaultParams() Params {
	return Params{
		MinOverlap:         0.5,
		EdgeFraction:       0.10,
		MinSupportEpisodes: 2,
		MinConfidence:      0.3,
	}
}

// ParamsFromConfig maps the analysis config section onto aggregation params.
func ParamsFromConfig(cfg *config.Config) Params {
	p := DefaultParams()
	if cfg == nil {
		return p
	}
	p.EdgeFraction = cfg.Analysis.EdgeFraction
	p.MinSupportEpisodes = cfg.Analysis.MinSupportEpisodes
	p.MinConfidence = cfg.Analysis.MinConfidence
	return p
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
