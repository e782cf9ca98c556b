package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"cliparr/internal/segments"
)

// ReplaceSegments swaps the show's segment set for a fresh computation and
// settles the matches-since-aggregate counter. consumed is the counter value
// snapshotted when the aggregate job started; matches recorded after the
// snapshot stay counted so a follow-up aggregation is triggered for them.
func (s *Store) ReplaceSegments(ctx context.Context, showID int64, segs []segments.Segment, consumed int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin segments tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM show_segments WHERE show_id = ?`, showID); err != nil {
		return fmt.Errorf("clear segments: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, seg := range segs {
		rangesJSON, err := json.Marshal(seg.Ranges)
		if err != nil {
			return fmt.Errorf("marshal segment ranges: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO show_segments (show_id, kind, ordinal, confidence, supporting_episodes, ranges_json, updated_at)
             VALUES (?, ?, ?, ?, ?, ?, ?)`,
			showID, seg.Kind, seg.Ordinal, seg.Confidence, seg.SupportingEpisodes, string(rangesJSON), now,
		); err != nil {
			return fmt.Errorf("insert segment: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO show_state (show_id, matches_since_aggregate, last_aggregate_at)
         VALUES (?, 0, ?)
         ON CONFLICT(show_id) DO UPDATE SET
             matches_since_aggregate = MAX(matches_since_aggregate - ?, 0),
             last_aggregate_at = excluded.last_aggregate_at`,
		showID, now, consumed,
	); err != nil {
		return fmt.Errorf("settle show counter: %w", err)
	}

	return tx.Commit()
}

// SegmentsForShow returns the show's current consensus segments.
func (s *Store) SegmentsForShow(ctx context.Context, showID int64) ([]segments.Segment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, ordinal, confidence, supporting_episodes, ranges_json
         FROM show_segments WHERE show_id = ? ORDER BY kind, ordinal`,
		showID,
	)
	if err != nil {
		return nil, fmt.Errorf("query segments: %w", err)
	}
	defer rows.Close()

	var result []segments.Segment
	for rows.Next() {
		var (
			seg        segments.Segment
			kind       string
			rangesJSON string
		)
		if err := rows.Scan(&kind, &seg.Ordinal, &seg.Confidence, &seg.SupportingEpisodes, &rangesJSON); err != nil {
			return nil, err
		}
		seg.ShowID = showID
		seg.Kind = segments.Kind(kind)
		if err := json.Unmarshal([]byte(rangesJSON), &seg.Ranges); err != nil {
			return nil, fmt.Errorf("decode segment ranges: %w", err)
		}
		result = append(result, seg)
	}
	return result, rows.Err()
}

// ShowSummaries returns per-show analysis progress across all shows known to
// the store.
func (s *Store) ShowSummaries(ctx context.Context) (map[int64]*ShowSummary, error) {
	summaries := make(map[int64]*ShowSummary)
	get := func(showID int64) *ShowSummary {
		if summary, ok := summaries[showID]; ok {
			return summary
		}
		summary := &ShowSummary{ShowID: showID}
		summaries[showID] = summary
		return summary
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT show_id, COUNT(1) FROM pairwise_matches WHERE stale = 0 GROUP BY show_id`)
	if err != nil {
		return nil, fmt.Errorf("summary matches: %w", err)
	}
	for rows.Next() {
		var showID int64
		var count int
		if err := rows.Scan(&showID, &count); err != nil {
			rows.Close()
			return nil, err
		}
		get(showID).MatchCount = count
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx,
		`SELECT show_id, COUNT(1) FROM show_segments GROUP BY show_id`)
	if err != nil {
		return nil, fmt.Errorf("summary segments: %w", err)
	}
	for rows.Next() {
		var showID int64
		var count int
		if err := rows.Scan(&showID, &count); err != nil {
			rows.Close()
			return nil, err
		}
		get(showID).SegmentCount = count
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx,
		`SELECT show_id, matches_since_aggregate, last_aggregate_at FROM show_state`)
	if err != nil {
		return nil, fmt.Errorf("summary show state: %w", err)
	}
	for rows.Next() {
		var showID int64
		var pending int
		var lastRaw sql.NullString
		if err := rows.Scan(&showID, &pending, &lastRaw); err != nil {
			rows.Close()
			return nil, err
		}
		summary := get(showID)
		summary.MatchesSinceAggregate = pending
		if lastRaw.Valid {
			if last, err := parseTimeString(lastRaw.String); err == nil {
				summary.LastAggregateAt = &last
			}
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return summaries, nil
}
