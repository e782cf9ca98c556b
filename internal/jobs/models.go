package jobs

import (
	"fmt"
	"strings"
	"time"

	"cliparr/internal/segments"
)

// Kind identifies the work an analysis job performs.
type Kind string

const (
	KindExtract   Kind = "extract"
	KindMatch     Kind = "match"
	KindAggregate Kind = "aggregate"
)

// State represents the lifecycle of an analysis job.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	StateRetrying  State = "retrying"
	StateSkipped   State = "skipped"
)

var allStates = []State{
	StatePending,
	StateRunning,
	StateSucceeded,
	StateFailed,
	StateRetrying,
	StateSkipped,
}

var stateSet = func() map[State]struct{} {
	set := make(map[State]struct{}, len(allStates))
	for _, state := range allStates {
		set[state] = struct{}{}
	}
	return set
}()

// AllStates returns the ordered list of known states.
func AllStates() []State {
	cp := make([]State, len(allStates))
	copy(cp, allStates)
	return cp
}

// ParseState converts a string into a known State.
func ParseState(value string) (State, bool) {
	normalized := State(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := stateSet[normalized]
	return normalized, ok
}

// ParseKind converts a string into a known Kind.
func ParseKind(value string) (Kind, bool) {
	switch Kind(strings.ToLower(strings.TrimSpace(value))) {
	case KindExtract:
		return KindExtract, true
	case KindMatch:
		return KindMatch, true
	case KindAggregate:
		return KindAggregate, true
	}
	return "", false
}

// Terminal reports whether the state ends the job's lifecycle.
func (s State) Terminal() bool {
	switch s {
	case StateSucceeded, StateFailed, StateSkipped:
		return true
	}
	return false
}

// Job is one analysis job persisted in SQLite.
type Job struct {
	ID            int64
	Kind          Kind
	Scope         string
	ShowID        int64
	EpisodeA      int64
	EpisodeB      int64
	VersionA      string
	VersionB      string
	State         State
	Attempts      int
	LastError     string
	NextAttemptAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ExtractScope builds the scope key for an episode extraction.
// Content version is carried in VersionA, not the scope: re-extraction after
// a version change reuses the scope so the uniqueness invariant applies.
func ExtractScope(episodeID int64) string {
	return fmt.Sprintf("episode:%d", episodeID)
}

// MatchScope builds the scope key for an unordered episode pair at specific
// content versions.
func MatchScope(episodeA, episodeB int64, versionA, versionB string) string {
	if episodeB < episodeA {
		episodeA, episodeB = episodeB, episodeA
		versionA, versionB = versionB, versionA
	}
	return fmt.Sprintf("pair:%d@%s|%d@%s", episodeA, versionA, episodeB, versionB)
}

// AggregateScope builds the scope key for a show aggregation.
func AggregateScope(showID int64) string {
	return fmt.Sprintf("show:%d", showID)
}

// PairwiseMatch is one stored match result between two episodes.
type PairwiseMatch struct {
	ID        int64
	ShowID    int64
	EpisodeA  int64
	EpisodeB  int64
	VersionA  string
	VersionB  string
	Stale     bool
	Ranges    []MatchRange
	CreatedAt time.Time
}

// MatchRange mirrors match.Range for persistence.
type MatchRange struct {
	OffsetA  int64   `json:"offset_a"`
	OffsetB  int64   `json:"offset_b"`
	LengthMS int64   `json:"length_ms"`
	Score    float64 `json:"score"`
	Support  int     `json:"support"`
}

// ShowSummary aggregates per-show analysis progress for status queries.
type ShowSummary struct {
	ShowID                int64
	FingerprintedCount    int
	MatchCount            int
	MatchesSinceAggregate int
	LastAggregateAt       *time.Time
	SegmentCount          int
}

// StoredSegment is a segment row read back from the store.
type StoredSegment = segments.Segment
