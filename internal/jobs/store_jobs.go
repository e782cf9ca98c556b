package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const jobColumns = "id, kind, scope, show_id, episode_a, episode_b, version_a, version_b, state, attempts, last_error, next_attempt_at, created_at, updated_at"

// Enqueue inserts a new pending job unless a non-terminal job already exists
// for the same (scope, kind). It returns the effective job and whether a new
// row was created.
func (s *Store) Enqueue(ctx context.Context, job *Job) (*Job, bool, error) {
	if job == nil {
		return nil, false, errors.New("job is nil")
	}
	if job.Scope == "" || job.Kind == "" {
		return nil, false, errors.New("job scope and kind are required")
	}

	existing, err := s.ActiveJob(ctx, job.Scope, job.Kind)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (kind, scope, show_id, episode_a, episode_b, version_a, version_b,
                           state, attempts, last_error, next_attempt_at, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, NULL, NULL, ?, ?)`,
		job.Kind, job.Scope, job.ShowID,
		nullableInt(job.EpisodeA), nullableInt(job.EpisodeB),
		nullableString(job.VersionA), nullableString(job.VersionB),
		StatePending, timestamp, timestamp,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			// The partial index caught a concurrent writer; transitions are
			// supposed to be serialized, so surface this as corruption.
			return nil, false, fmt.Errorf("%w: duplicate active job for %s/%s", ErrInvariantViolation, job.Scope, job.Kind)
		}
		return nil, false, fmt.Errorf("insert job: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, false, fmt.Errorf("last insert id: %w", err)
	}
	created, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return created, true, nil
}

// ActiveJob returns the single non-terminal job for (scope, kind), or nil.
func (s *Store) ActiveJob(ctx context.Context, scope string, kind Kind) (*Job, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM jobs
         WHERE scope = ? AND kind = ? AND state IN (?, ?, ?)`,
		scope, kind, StatePending, StateRunning, StateRetrying,
	)
	if err != nil {
		return nil, fmt.Errorf("query active job: %w", err)
	}
	defer rows.Close()

	var active []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		active = append(active, job)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	switch len(active) {
	case 0:
		return nil, nil
	case 1:
		return active[0], nil
	default:
		return nil, fmt.Errorf("%w: %d non-terminal jobs for %s/%s", ErrInvariantViolation, len(active), scope, kind)
	}
}

// GetByID fetches a job by identifier.
func (s *Store) GetByID(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// Update persists changes to an existing job.
func (s *Store) Update(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	job.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`UPDATE jobs
         SET state = ?, attempts = ?, last_error = ?, next_attempt_at = ?, updated_at = ?
         WHERE id = ?`,
		job.State, job.Attempts, nullableString(job.LastError),
		nullableTime(job.NextAttemptAt),
		job.UpdatedAt.Format(time.RFC3339Nano),
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return nil
}

// NextRunnable returns the oldest job that is pending, or retrying with an
// elapsed backoff, as of now.
func (s *Store) NextRunnable(ctx context.Context, now time.Time) (*Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM jobs
         WHERE state = ? OR (state = ? AND (next_attempt_at IS NULL OR next_attempt_at <= ?))
         ORDER BY created_at, id LIMIT 1`,
		StatePending, StateRetrying, now.UTC().Format(time.RFC3339Nano),
	)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next runnable job: %w", err)
	}
	return job, nil
}

// List returns jobs matching the filter, newest first.
type ListFilter struct {
	Kind   Kind
	State  State
	ShowID int64
	Limit  int
	Offset int
}

func (s *Store) List(ctx context.Context, filter ListFilter) ([]*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs`
	var clauses []string
	var args []any
	if filter.Kind != "" {
		clauses = append(clauses, "kind = ?")
		args = append(args, filter.Kind)
	}
	if filter.State != "" {
		clauses = append(clauses, "state = ?")
		args = append(args, filter.State)
	}
	if filter.ShowID != 0 {
		clauses = append(clauses, "show_id = ?")
		args = append(args, filter.ShowID)
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var result []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, job)
	}
	return result, rows.Err()
}

// JobsForEpisode returns non-terminal jobs whose scope references the episode.
func (s *Store) JobsForEpisode(ctx context.Context, episodeID int64) ([]*Job, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM jobs
         WHERE (episode_a = ? OR episode_b = ?) AND state IN (?, ?, ?)
         ORDER BY created_at, id`,
		episodeID, episodeID, StatePending, StateRunning, StateRetrying,
	)
	if err != nil {
		return nil, fmt.Errorf("query episode jobs: %w", err)
	}
	defer rows.Close()

	var result []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, job)
	}
	return result, rows.Err()
}

// CountsByKindState returns a job count per (kind, state).
func (s *Store) CountsByKindState(ctx context.Context) (map[Kind]map[State]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT kind, state, COUNT(1) FROM jobs GROUP BY kind, state`)
	if err != nil {
		return nil, fmt.Errorf("job counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[Kind]map[State]int)
	for rows.Next() {
		var kind Kind
		var state State
		var count int
		if err := rows.Scan(&kind, &state, &count); err != nil {
			return nil, err
		}
		if counts[kind] == nil {
			counts[kind] = make(map[State]int)
		}
		counts[kind][state] = count
	}
	return counts, rows.Err()
}

// ReclaimRunning returns jobs left running by a crashed daemon to pending.
// Attempt counts are preserved; the interrupted attempt is not charged.
func (s *Store) ReclaimRunning(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET state = ?, updated_at = ? WHERE state = ?`,
		StatePending, time.Now().UTC().Format(time.RFC3339Nano), StateRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim running jobs: %w", err)
	}
	return res.RowsAffected()
}

// PruneTerminal deletes terminal jobs older than the cutoff.
func (s *Store) PruneTerminal(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM jobs WHERE state IN (?, ?, ?) AND updated_at < ?`,
		StateSucceeded, StateFailed, StateSkipped,
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("prune terminal jobs: %w", err)
	}
	return res.RowsAffected()
}

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id             int64
		kind           string
		scope          string
		showID         int64
		episodeA       sql.NullInt64
		episodeB       sql.NullInt64
		versionA       sql.NullString
		versionB       sql.NullString
		state          string
		attempts       int
		lastError      sql.NullString
		nextAttemptRaw sql.NullString
		createdRaw     string
		updatedRaw     string
	)
	if err := scanner.Scan(
		&id, &kind, &scope, &showID,
		&episodeA, &episodeB, &versionA, &versionB,
		&state, &attempts, &lastError, &nextAttemptRaw,
		&createdRaw, &updatedRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:        id,
		Kind:      Kind(kind),
		Scope:     scope,
		ShowID:    showID,
		EpisodeA:  episodeA.Int64,
		EpisodeB:  episodeB.Int64,
		VersionA:  versionA.String,
		VersionB:  versionB.String,
		State:     State(state),
		Attempts:  attempts,
		LastError: lastError.String,
	}
	if nextAttemptRaw.Valid {
		if next, err := parseTimeString(nextAttemptRaw.String); err == nil {
			job.NextAttemptAt = &next
		}
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		job.UpdatedAt = updated
	}
	return job, nil
}
