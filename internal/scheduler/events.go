package scheduler

import (
	"context"
	"log/slog"

	"cliparr/internal/catalog"
	"cliparr/internal/jobs"
	"cliparr/internal/logging"
)

const reasonSuperseded = "superseded by newer content version"

// OnEpisodeUpdated reacts to an episode appearing in or changing within the
// catalog: queued work referencing an older content version is skipped, match
// results from older versions are marked stale, and a fresh extraction is
// queued. Safe to call for episodes that are already fully analyzed; every
// step is idempotent.
func (s *Scheduler) OnEpisodeUpdated(ctx context.Context, ep catalog.Episode) {
	logger := s.logger.With(
		logging.Int64(logging.FieldEpisodeID, ep.ID),
		logging.Int64(logging.FieldShowID, ep.ShowID),
	)

	s.mu.Lock()
	defer s.mu.Unlock()

	queued, err := s.store.JobsForEpisode(ctx, ep.ID)
	if err != nil {
		logger.Error("listing episode jobs failed", logging.Error(err))
		return
	}
	for _, job := range queued {
		if job.State == jobs.StateRunning {
			// Running jobs notice the version change themselves; see
			// afterSettle for the extract follow-up.
			continue
		}
		if versionFor(job, ep.ID) == ep.ContentVersion {
			continue
		}
		job.State = jobs.StateSkipped
		job.LastError = reasonSuperseded
		if err := s.store.Update(ctx, job); err != nil {
			logger.Error("skipping stale job failed",
				logging.Int64(logging.FieldJobID, job.ID), logging.Error(err))
			return
		}
		logger.Info("skipped stale job",
			logging.Int64(logging.FieldJobID, job.ID),
			logging.String(logging.FieldJobKind, string(job.Kind)))
	}

	stale, err := s.store.MarkMatchesStale(ctx, ep.ID, ep.ContentVersion)
	if err != nil {
		logger.Error("marking matches stale failed", logging.Error(err))
		return
	}
	if stale > 0 {
		logger.Info("marked matches stale", logging.Int64("count", stale))
	}

	s.enqueueExtractLocked(ctx, ep, logger)
}

// versionFor returns the content version the job pinned for the episode.
func versionFor(job *jobs.Job, episodeID int64) string {
	if job.EpisodeA == episodeID {
		return job.VersionA
	}
	return job.VersionB
}

// enqueueExtractLocked queues an extraction for the episode's current content
// version. Caller holds mu.
func (s *Scheduler) enqueueExtractLocked(ctx context.Context, ep catalog.Episode, logger *slog.Logger) {
	job := &jobs.Job{
		Kind:     jobs.KindExtract,
		Scope:    jobs.ExtractScope(ep.ID),
		ShowID:   ep.ShowID,
		EpisodeA: ep.ID,
		VersionA: ep.ContentVersion,
	}
	_, created, err := s.store.Enqueue(ctx, job)
	if err != nil {
		logger.Error("enqueueing extraction failed", logging.Error(err))
		return
	}
	if created {
		logger.Info("extraction queued", logging.String("version", ep.ContentVersion))
	}
}

// afterSettle runs cascade follow-ups once a job reached success or skip.
// Caller holds mu.
func (s *Scheduler) afterSettle(ctx context.Context, job *jobs.Job, logger *slog.Logger) {
	switch job.Kind {
	case jobs.KindExtract:
		// A version change that arrived while the job ran could not enqueue a
		// replacement because the scope was still occupied. Catch up now.
		ep, err := s.library.Episode(ctx, job.EpisodeA)
		if err != nil {
			return
		}
		if ep.ContentVersion != job.VersionA {
			s.enqueueExtractLocked(ctx, ep, logger)
		}
	case jobs.KindAggregate:
		// Matches recorded while this aggregation ran were not consumed by it;
		// the settled counter is still positive and warrants another round.
		s.maybeEnqueueAggregateLocked(ctx, job.ShowID, logger)
	}
}

// maybeEnqueueAggregate queues a show aggregation when unconsumed matches
// exist for it.
func (s *Scheduler) maybeEnqueueAggregate(ctx context.Context, showID int64, logger *slog.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maybeEnqueueAggregateLocked(ctx, showID, logger)
}

func (s *Scheduler) maybeEnqueueAggregateLocked(ctx context.Context, showID int64, logger *slog.Logger) {
	pending, err := s.store.MatchesSinceAggregate(ctx, showID)
	if err != nil {
		logger.Error("reading show match counter failed", logging.Error(err))
		return
	}
	if pending <= 0 {
		return
	}
	job := &jobs.Job{
		Kind:   jobs.KindAggregate,
		Scope:  jobs.AggregateScope(showID),
		ShowID: showID,
	}
	_, created, err := s.store.Enqueue(ctx, job)
	if err != nil {
		logger.Error("enqueueing aggregation failed", logging.Error(err))
		return
	}
	if created {
		logger.Info("aggregation queued",
			logging.Int64(logging.FieldShowID, showID),
			logging.Int("pending_matches", pending))
	}
}
