package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cliparr/internal/catalog"
	"cliparr/internal/fpstore"
	"cliparr/internal/jobs"
	"cliparr/internal/logging"
	"cliparr/internal/match"
)

// executeMatch compares the fingerprints of one episode pair and records the
// result. A pair with no shared audio still gets a row with zero ranges so
// the pair is never compared again at these versions.
func (s *Scheduler) executeMatch(ctx context.Context, job *jobs.Job, logger *slog.Logger) (string, error) {
	epA, err := s.library.Episode(ctx, job.EpisodeA)
	if errors.Is(err, catalog.ErrNotFound) {
		return "episode no longer in catalog", nil
	}
	if err != nil {
		return "", fmt.Errorf("look up episode %d: %w", job.EpisodeA, err)
	}
	epB, err := s.library.Episode(ctx, job.EpisodeB)
	if errors.Is(err, catalog.ErrNotFound) {
		return "episode no longer in catalog", nil
	}
	if err != nil {
		return "", fmt.Errorf("look up episode %d: %w", job.EpisodeB, err)
	}
	if epA.ContentVersion != job.VersionA || epB.ContentVersion != job.VersionB {
		return reasonSuperseded, nil
	}

	// A missing fingerprint at a current version means the extraction is
	// still in flight or was interrupted; retrying resolves both.
	seqA, err := s.prints.GetVersion(ctx, job.EpisodeA, job.VersionA)
	if errors.Is(err, fpstore.ErrNotFound) {
		return "", fmt.Errorf("fingerprint for episode %d not ready", job.EpisodeA)
	}
	if err != nil {
		return "", fmt.Errorf("load fingerprint %d: %w", job.EpisodeA, err)
	}
	seqB, err := s.prints.GetVersion(ctx, job.EpisodeB, job.VersionB)
	if errors.Is(err, fpstore.ErrNotFound) {
		return "", fmt.Errorf("fingerprint for episode %d not ready", job.EpisodeB)
	}
	if err != nil {
		return "", fmt.Errorf("load fingerprint %d: %w", job.EpisodeB, err)
	}

	ranges := match.Match(seqA.Landmarks, seqB.Landmarks, s.matchParams)

	result := &jobs.PairwiseMatch{
		ShowID:   job.ShowID,
		EpisodeA: job.EpisodeA,
		EpisodeB: job.EpisodeB,
		VersionA: job.VersionA,
		VersionB: job.VersionB,
		Ranges:   toMatchRanges(ranges),
	}
	inserted, err := s.store.RecordMatch(ctx, result)
	if err != nil {
		return "", fmt.Errorf("record match: %w", err)
	}
	logger.Info("pair compared",
		logging.Int("shared_ranges", len(ranges)),
		logging.Bool("recorded", inserted))

	if inserted {
		s.maybeEnqueueAggregate(ctx, job.ShowID, logger)
	}
	return "", nil
}

func toMatchRanges(ranges []match.Range) []jobs.MatchRange {
	result := make([]jobs.MatchRange, len(ranges))
	for i, r := range ranges {
		result[i] = jobs.MatchRange{
			OffsetA:  r.OffsetA,
			OffsetB:  r.OffsetB,
			LengthMS: r.LengthMS,
			Score:    r.Score,
			Support:  r.Support,
		}
	}
	return result
}
