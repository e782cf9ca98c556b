package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// RecordMatch stores a pairwise match result and, when the row is new, bumps
// the show's matches-since-aggregate counter inside the same transaction.
// The write is idempotent on (episode pair, versions): a retried match job
// leaves both the row and the counter unchanged.
func (s *Store) RecordMatch(ctx context.Context, m *PairwiseMatch) (bool, error) {
	if m == nil {
		return false, errors.New("match is nil")
	}
	if m.EpisodeB < m.EpisodeA {
		m.EpisodeA, m.EpisodeB = m.EpisodeB, m.EpisodeA
		m.VersionA, m.VersionB = m.VersionB, m.VersionA
		for i := range m.Ranges {
			m.Ranges[i].OffsetA, m.Ranges[i].OffsetB = m.Ranges[i].OffsetB, m.Ranges[i].OffsetA
		}
	}

	rangesJSON, err := json.Marshal(m.Ranges)
	if err != nil {
		return false, fmt.Errorf("marshal match ranges: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin match tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO pairwise_matches
             (show_id, episode_a, episode_b, version_a, version_b, stale, ranges_json, created_at)
         VALUES (?, ?, ?, ?, ?, 0, ?, ?)`,
		m.ShowID, m.EpisodeA, m.EpisodeB, m.VersionA, m.VersionB,
		string(rangesJSON), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return false, fmt.Errorf("insert match: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if inserted == 0 {
		return false, tx.Commit()
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO show_state (show_id, matches_since_aggregate) VALUES (?, 1)
         ON CONFLICT(show_id) DO UPDATE SET matches_since_aggregate = matches_since_aggregate + 1`,
		m.ShowID,
	); err != nil {
		return false, fmt.Errorf("bump show counter: %w", err)
	}
	return true, tx.Commit()
}

// MatchesForShow returns the show's pairwise matches; stale rows are kept for
// auditability but excluded unless includeStale is set.
func (s *Store) MatchesForShow(ctx context.Context, showID int64, includeStale bool) ([]*PairwiseMatch, error) {
	query := `SELECT id, show_id, episode_a, episode_b, version_a, version_b, stale, ranges_json, created_at
              FROM pairwise_matches WHERE show_id = ?`
	if !includeStale {
		query += ` AND stale = 0`
	}
	query += ` ORDER BY episode_a, episode_b, id`

	rows, err := s.db.QueryContext(ctx, query, showID)
	if err != nil {
		return nil, fmt.Errorf("query matches: %w", err)
	}
	defer rows.Close()

	var matches []*PairwiseMatch
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// HasMatch reports whether a match row exists for the pair at these versions.
func (s *Store) HasMatch(ctx context.Context, episodeA, episodeB int64, versionA, versionB string) (bool, error) {
	if episodeB < episodeA {
		episodeA, episodeB = episodeB, episodeA
		versionA, versionB = versionB, versionA
	}
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM pairwise_matches
         WHERE episode_a = ? AND episode_b = ? AND version_a = ? AND version_b = ?`,
		episodeA, episodeB, versionA, versionB,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("match exists: %w", err)
	}
	return true, nil
}

// MarkMatchesStale flags match rows referencing the episode at any version
// other than current. Stale rows stay on disk for auditability.
func (s *Store) MarkMatchesStale(ctx context.Context, episodeID int64, currentVersion string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE pairwise_matches SET stale = 1
         WHERE ((episode_a = ? AND version_a != ?) OR (episode_b = ? AND version_b != ?)) AND stale = 0`,
		episodeID, currentVersion, episodeID, currentVersion,
	)
	if err != nil {
		return 0, fmt.Errorf("mark matches stale: %w", err)
	}
	return res.RowsAffected()
}

// MatchesSinceAggregate returns the show's pending-match counter.
func (s *Store) MatchesSinceAggregate(ctx context.Context, showID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT matches_since_aggregate FROM show_state WHERE show_id = ?`, showID,
	).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("show counter: %w", err)
	}
	return count, nil
}

func scanMatch(scanner interface{ Scan(dest ...any) error }) (*PairwiseMatch, error) {
	var (
		m          PairwiseMatch
		stale      int
		rangesJSON string
		createdRaw string
	)
	if err := scanner.Scan(&m.ID, &m.ShowID, &m.EpisodeA, &m.EpisodeB, &m.VersionA, &m.VersionB, &stale, &rangesJSON, &createdRaw); err != nil {
		return nil, err
	}
	m.Stale = stale != 0
	if err := json.Unmarshal([]byte(rangesJSON), &m.Ranges); err != nil {
		return nil, fmt.Errorf("decode match ranges: %w", err)
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		m.CreatedAt = created
	}
	return &m, nil
}
