package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"cliparr/internal/catalog"
	"cliparr/internal/config"
	"cliparr/internal/fingerprint"
	"cliparr/internal/fpstore"
	"cliparr/internal/jobs"
	"cliparr/internal/logging"
	"cliparr/internal/match"
	"cliparr/internal/segments"
)

const pruneInterval = time.Hour

// Scheduler drives analysis jobs from pending to a terminal state.
type Scheduler struct {
	cfg       *config.Config
	store     *jobs.Store
	prints    *fpstore.Store
	extractor *fingerprint.Extractor
	library   catalog.Provider
	logger    *slog.Logger

	matchParams   match.Params
	segmentParams segments.Params

	// mu serializes all job state transitions.
	mu       sync.Mutex
	inFlight atomic.Int32
}

// Status is a point-in-time view of scheduler activity.
type Status struct {
	Workers  int `json:"workers"`
	InFlight int `json:"in_flight"`
}

// New wires a scheduler from its collaborators.
func New(cfg *config.Config, store *jobs.Store, prints *fpstore.Store, extractor *fingerprint.Extractor, library catalog.Provider, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Scheduler{
		cfg:           cfg,
		store:         store,
		prints:        prints,
		extractor:     extractor,
		library:       library,
		logger:        logging.WithComponent(logger, "scheduler"),
		matchParams:   match.ParamsFromConfig(cfg),
		segmentParams: segments.ParamsFromConfig(cfg),
	}
}

// Status reports current worker occupancy.
func (s *Scheduler) Status() Status {
	return Status{
		Workers:  s.cfg.Workflow.Workers,
		InFlight: int(s.inFlight.Load()),
	}
}

// Run executes jobs until the context is canceled. Claimed jobs are handed to
// a bounded pool; pool.Go blocks when every worker is busy, which throttles
// claiming without extra bookkeeping.
func (s *Scheduler) Run(ctx context.Context) error {
	if reclaimed, err := s.store.ReclaimRunning(ctx); err != nil {
		return fmt.Errorf("reclaim running jobs: %w", err)
	} else if reclaimed > 0 {
		s.logger.Info("reclaimed interrupted jobs", logging.Int64("count", reclaimed))
	}

	workers := pool.New().WithMaxGoroutines(s.cfg.Workflow.Workers)
	defer workers.Wait()

	pollInterval := time.Duration(s.cfg.Workflow.JobPollInterval) * time.Second
	errorInterval := time.Duration(s.cfg.Workflow.ErrorRetryInterval) * time.Second
	lastPrune := time.Now()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if time.Since(lastPrune) >= pruneInterval {
			s.pruneTerminal(ctx)
			lastPrune = time.Now()
		}

		job, err := s.claimNext(ctx)
		if err != nil {
			s.logger.Error("claiming next job failed", logging.Error(err))
			if !sleepCtx(ctx, errorInterval) {
				return ctx.Err()
			}
			continue
		}
		if job == nil {
			if !sleepCtx(ctx, pollInterval) {
				return ctx.Err()
			}
			continue
		}

		claimed := job
		workers.Go(func() {
			s.inFlight.Add(1)
			defer s.inFlight.Add(-1)
			s.runJob(ctx, claimed)
		})
	}
}

// claimNext atomically picks the next runnable job and moves it to running.
// The attempt is charged at claim time so a crash mid-execution still counts
// against the retry budget once the job is reclaimed and retried.
func (s *Scheduler) claimNext(ctx context.Context) (*jobs.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, err := s.store.NextRunnable(ctx, time.Now())
	if err != nil || job == nil {
		return nil, err
	}
	job.State = jobs.StateRunning
	job.Attempts++
	job.NextAttemptAt = nil
	if err := s.store.Update(ctx, job); err != nil {
		return nil, fmt.Errorf("mark job running: %w", err)
	}
	return job, nil
}

func (s *Scheduler) runJob(ctx context.Context, job *jobs.Job) {
	logger := s.logger.With(
		logging.String(logging.FieldRequestID, uuid.NewString()),
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String(logging.FieldJobKind, string(job.Kind)),
		logging.String(logging.FieldScope, job.Scope),
	)
	logger.Info("job started", logging.Int("attempt", job.Attempts))
	started := time.Now()

	jobCtx, cancel := context.WithTimeout(ctx, time.Duration(s.cfg.Workflow.JobTimeout)*time.Second)
	defer cancel()

	skipReason, err := s.execute(jobCtx, job, logger)
	if err != nil && errors.Is(jobCtx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("job timed out: %w", err)
	}

	// Settlement outlives the run context: a job that finishes during shutdown
	// must still record its outcome, or it gets reclaimed and re-run with a
	// second attempt charged against its budget.
	settleCtx := context.WithoutCancel(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case err != nil:
		s.settleFailure(settleCtx, job, err, logger)
	case skipReason != "":
		job.State = jobs.StateSkipped
		job.LastError = skipReason
		if updateErr := s.store.Update(settleCtx, job); updateErr != nil {
			logger.Error("persisting skipped job failed", logging.Error(updateErr))
			return
		}
		logger.Info("job skipped", logging.String("reason", skipReason))
		s.afterSettle(settleCtx, job, logger)
	default:
		job.State = jobs.StateSucceeded
		job.LastError = ""
		if updateErr := s.store.Update(settleCtx, job); updateErr != nil {
			logger.Error("persisting succeeded job failed", logging.Error(updateErr))
			return
		}
		logger.Info("job succeeded",
			logging.Duration("elapsed", time.Since(started).Round(time.Millisecond)))
		s.afterSettle(settleCtx, job, logger)
	}
}

// execute dispatches to the per-kind executor, converting panics into job
// failures so one bad input cannot take the daemon down.
func (s *Scheduler) execute(ctx context.Context, job *jobs.Job, logger *slog.Logger) (skipReason string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker panic: %v", r)
		}
	}()

	switch job.Kind {
	case jobs.KindExtract:
		return s.executeExtract(ctx, job, logger)
	case jobs.KindMatch:
		return s.executeMatch(ctx, job, logger)
	case jobs.KindAggregate:
		return s.executeAggregate(ctx, job, logger)
	default:
		return "", fmt.Errorf("unknown job kind %q", job.Kind)
	}
}

// settleFailure applies the retry policy under mu. Permanent errors and
// exhausted budgets fail terminally, anything else backs off exponentially.
func (s *Scheduler) settleFailure(ctx context.Context, job *jobs.Job, cause error, logger *slog.Logger) {
	job.LastError = cause.Error()

	if isPermanent(cause) || job.Attempts >= s.cfg.Workflow.MaxAttempts {
		job.State = jobs.StateFailed
		job.NextAttemptAt = nil
		if err := s.store.Update(ctx, job); err != nil {
			logger.Error("persisting failed job failed", logging.Error(err))
			return
		}
		logger.Error("job failed",
			logging.Int("attempts", job.Attempts),
			logging.Bool("permanent", isPermanent(cause)),
			logging.Error(cause))
		return
	}

	delay := retryDelay(time.Duration(s.cfg.Workflow.RetryBackoff)*time.Second, job.Attempts)
	next := time.Now().Add(delay)
	job.State = jobs.StateRetrying
	job.NextAttemptAt = &next
	if err := s.store.Update(ctx, job); err != nil {
		logger.Error("persisting retrying job failed", logging.Error(err))
		return
	}
	logger.Warn("job will retry",
		logging.Int("attempt", job.Attempts),
		logging.Duration("backoff", delay),
		logging.Error(cause))
}

// isPermanent reports whether the error rules out a retry.
func isPermanent(err error) bool {
	return fingerprint.Permanent(err) || errors.Is(err, jobs.ErrInvariantViolation)
}

// retryDelay doubles the base per prior attempt, capped at one hour.
func retryDelay(base time.Duration, attempts int) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	shift := attempts - 1
	if shift < 0 {
		shift = 0
	}
	if shift > 10 {
		shift = 10
	}
	delay := base << uint(shift)
	if delay > time.Hour {
		delay = time.Hour
	}
	return delay
}

func (s *Scheduler) pruneTerminal(ctx context.Context) {
	days := s.cfg.Workflow.JobRetentionDays
	if days <= 0 {
		return
	}
	cutoff := time.Now().Add(-time.Duration(days) * 24 * time.Hour)
	pruned, err := s.store.PruneTerminal(ctx, cutoff)
	if err != nil {
		s.logger.Warn("pruning terminal jobs failed", logging.Error(err))
		return
	}
	if pruned > 0 {
		s.logger.Info("pruned terminal jobs", logging.Int64("count", pruned))
	}
}

// sleepCtx sleeps for d or until the context ends, reporting whether the
// caller should keep running.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		d = time.Second
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
