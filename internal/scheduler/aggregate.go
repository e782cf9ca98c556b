package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"cliparr/internal/jobs"
	"cliparr/internal/logging"
	"cliparr/internal/segments"
)

// executeAggregate rebuilds the show's consensus segments from its current
// non-stale matches. The match counter is snapshotted first; ReplaceSegments
// subtracts only the snapshot so matches recorded mid-flight keep the counter
// positive and trigger a follow-up round via afterSettle.
func (s *Scheduler) executeAggregate(ctx context.Context, job *jobs.Job, logger *slog.Logger) (string, error) {
	showID := job.ShowID

	consumed, err := s.store.MatchesSinceAggregate(ctx, showID)
	if err != nil {
		return "", fmt.Errorf("read show match counter: %w", err)
	}

	episodes, err := s.library.EpisodesForShow(ctx, showID)
	if err != nil {
		return "", fmt.Errorf("list show episodes: %w", err)
	}
	if len(episodes) == 0 {
		return "show no longer in catalog", nil
	}
	durations := make(map[int64]int64, len(episodes))
	currentVersions := make(map[int64]string, len(episodes))
	for _, ep := range episodes {
		durations[ep.ID] = ep.DurationMS
		currentVersions[ep.ID] = ep.ContentVersion
	}

	matches, err := s.store.MatchesForShow(ctx, showID, false)
	if err != nil {
		return "", fmt.Errorf("load show matches: %w", err)
	}

	var pairs []segments.PairMatch
	for _, m := range matches {
		// Guard against rows whose staleness mark has not landed yet.
		if currentVersions[m.EpisodeA] != m.VersionA || currentVersions[m.EpisodeB] != m.VersionB {
			continue
		}
		for _, r := range m.Ranges {
			pairs = append(pairs, segments.PairMatch{
				EpisodeA: m.EpisodeA,
				EpisodeB: m.EpisodeB,
				RangeA:   segments.EpisodeRange{StartMS: r.OffsetA, EndMS: r.OffsetA + r.LengthMS},
				RangeB:   segments.EpisodeRange{StartMS: r.OffsetB, EndMS: r.OffsetB + r.LengthMS},
				Score:    r.Score,
			})
		}
	}

	segs := segments.Aggregate(showID, pairs, durations, len(episodes), s.segmentParams)
	if err := s.store.ReplaceSegments(ctx, showID, segs, consumed); err != nil {
		return "", fmt.Errorf("replace segments: %w", err)
	}

	logger.Info("segments rebuilt",
		logging.Int64(logging.FieldShowID, showID),
		logging.Int("segments", len(segs)),
		logging.Int("matches", len(matches)),
		logging.Int("consumed", consumed))
	return "", nil
}
