package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cliparr/internal/catalog"
	"cliparr/internal/jobs"
	"cliparr/internal/logging"
)

// executeExtract fingerprints one episode and fans out match jobs against
// every other fingerprinted episode of the same show.
func (s *Scheduler) executeExtract(ctx context.Context, job *jobs.Job, logger *slog.Logger) (string, error) {
	ep, err := s.library.Episode(ctx, job.EpisodeA)
	if errors.Is(err, catalog.ErrNotFound) {
		return "episode no longer in catalog", nil
	}
	if err != nil {
		return "", fmt.Errorf("look up episode %d: %w", job.EpisodeA, err)
	}
	if ep.ContentVersion != job.VersionA {
		return reasonSuperseded, nil
	}

	has, err := s.prints.Has(ctx, ep.ID, ep.ContentVersion)
	if err != nil {
		return "", fmt.Errorf("check fingerprint: %w", err)
	}
	if !has {
		seq, err := s.extractor.ExtractFile(ctx, ep.AudioFile, time.Duration(ep.DurationMS)*time.Millisecond)
		if err != nil {
			return "", fmt.Errorf("fingerprint %s: %w", ep.AudioFile, err)
		}
		if err := s.prints.Put(ctx, ep.ID, ep.ContentVersion, seq); err != nil {
			return "", fmt.Errorf("store fingerprint: %w", err)
		}
		logger.Info("fingerprint stored",
			logging.Int("landmarks", len(seq.Landmarks)),
			logging.Int64("duration_ms", seq.DurationMS))
	}

	return "", s.fanOutMatches(ctx, ep, logger)
}

// fanOutMatches queues a match job for every fingerprinted sibling episode the
// pair has no result for yet.
func (s *Scheduler) fanOutMatches(ctx context.Context, ep catalog.Episode, logger *slog.Logger) error {
	peers, err := s.library.EpisodesForShow(ctx, ep.ShowID)
	if err != nil {
		return fmt.Errorf("list show episodes: %w", err)
	}

	queuedPairs := 0
	for _, peer := range peers {
		if peer.ID == ep.ID {
			continue
		}
		peerReady, err := s.prints.Has(ctx, peer.ID, peer.ContentVersion)
		if err != nil {
			return fmt.Errorf("check peer fingerprint: %w", err)
		}
		if !peerReady {
			// The peer's own extraction will fan out toward us once it lands.
			continue
		}
		done, err := s.store.HasMatch(ctx, ep.ID, peer.ID, ep.ContentVersion, peer.ContentVersion)
		if err != nil {
			return fmt.Errorf("check existing match: %w", err)
		}
		if done {
			continue
		}
		if s.enqueueMatch(ctx, ep, peer, logger) {
			queuedPairs++
		}
	}
	if queuedPairs > 0 {
		logger.Info("match jobs queued", logging.Int("pairs", queuedPairs))
	}
	return nil
}

// enqueueMatch queues a match job for the pair, normalized to ascending
// episode order. Reports whether a new job was created.
func (s *Scheduler) enqueueMatch(ctx context.Context, a, b catalog.Episode, logger *slog.Logger) bool {
	if b.ID < a.ID {
		a, b = b, a
	}
	job := &jobs.Job{
		Kind:     jobs.KindMatch,
		Scope:    jobs.MatchScope(a.ID, b.ID, a.ContentVersion, b.ContentVersion),
		ShowID:   a.ShowID,
		EpisodeA: a.ID,
		EpisodeB: b.ID,
		VersionA: a.ContentVersion,
		VersionB: b.ContentVersion,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, created, err := s.store.Enqueue(ctx, job)
	if err != nil {
		logger.Error("enqueueing match failed",
			logging.Int64("episode_a", a.ID),
			logging.Int64("episode_b", b.ID),
			logging.Error(err))
		return false
	}
	return created
}
