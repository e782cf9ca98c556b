package fpstore

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"cliparr/internal/config"
	"cliparr/internal/fingerprint"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema
// changes; users clear the database to adopt the new schema.
const schemaVersion = 1

// ErrNotFound indicates no fingerprint sequence exists for the key.
var ErrNotFound = errors.New("fingerprint not found")

// ErrSchemaMismatch indicates the database was created by a different version.
var ErrSchemaMismatch = errors.New("fingerprint schema version mismatch")

// Store manages fingerprint persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the fingerprint database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.DataDir, "fingerprints.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) initSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	var version int
	err = tx.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read schema version: %w", err)
	case version != schemaVersion:
		return fmt.Errorf("%w: database has version %d, expected %d", ErrSchemaMismatch, version, schemaVersion)
	}

	return tx.Commit()
}

// Put stores a sequence for (episodeID, version). The write is idempotent:
// if the key already exists the call is a no-op and the stored sequence is
// left untouched.
func (s *Store) Put(ctx context.Context, episodeID int64, version string, seq *fingerprint.Sequence) error {
	if seq.Empty() {
		return errors.New("refusing to store empty sequence")
	}
	if version == "" {
		return errors.New("content version is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin put tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO fingerprints (episode_id, content_version, duration_ms, landmark_count, created_at)
         VALUES (?, ?, ?, ?, ?)`,
		episodeID, version, seq.DurationMS, len(seq.Landmarks),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert fingerprint header: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if inserted == 0 {
		// Key already present; sequences are immutable per version.
		return nil
	}

	insert, err := tx.PrepareContext(ctx,
		`INSERT INTO landmarks (episode_id, content_version, ts_ms, hash_code, strength) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare landmark insert: %w", err)
	}
	defer insert.Close()

	for _, lm := range seq.Landmarks {
		if _, err := insert.ExecContext(ctx, episodeID, version, lm.T, int64(lm.Hash), lm.Strength); err != nil {
			return fmt.Errorf("insert landmark: %w", err)
		}
	}

	return tx.Commit()
}

// Has reports whether a sequence exists for (episodeID, version).
func (s *Store) Has(ctx context.Context, episodeID int64, version string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM fingerprints WHERE episode_id = ? AND content_version = ?`,
		episodeID, version,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("fingerprint exists: %w", err)
	}
	return true, nil
}

// Get returns the most recently written sequence for an episode along with
// its content version.
func (s *Store) Get(ctx context.Context, episodeID int64) (*fingerprint.Sequence, string, error) {
	var version string
	err := s.db.QueryRowContext(ctx,
		`SELECT content_version FROM fingerprints WHERE episode_id = ? ORDER BY created_at DESC LIMIT 1`,
		episodeID,
	).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", ErrNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("lookup fingerprint version: %w", err)
	}
	seq, err := s.GetVersion(ctx, episodeID, version)
	return seq, version, err
}

// GetVersion returns the sequence stored for (episodeID, version).
func (s *Store) GetVersion(ctx context.Context, episodeID int64, version string) (*fingerprint.Sequence, error) {
	return s.read(ctx, episodeID, version, -1, -1)
}

// Landmarks returns the landmarks of (episodeID, version) whose timestamps
// fall within [fromMS, toMS). Negative bounds are open.
func (s *Store) Landmarks(ctx context.Context, episodeID int64, version string, fromMS, toMS int64) (*fingerprint.Sequence, error) {
	return s.read(ctx, episodeID, version, fromMS, toMS)
}

func (s *Store) read(ctx context.Context, episodeID int64, version string, fromMS, toMS int64) (*fingerprint.Sequence, error) {
	var durationMS int64
	err := s.db.QueryRowContext(ctx,
		`SELECT duration_ms FROM fingerprints WHERE episode_id = ? AND content_version = ?`,
		episodeID, version,
	).Scan(&durationMS)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup fingerprint: %w", err)
	}

	query := `SELECT ts_ms, hash_code, strength FROM landmarks WHERE episode_id = ? AND content_version = ?`
	args := []any{episodeID, version}
	if fromMS >= 0 {
		query += ` AND ts_ms >= ?`
		args = append(args, fromMS)
	}
	if toMS >= 0 {
		query += ` AND ts_ms < ?`
		args = append(args, toMS)
	}
	query += ` ORDER BY ts_ms`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query landmarks: %w", err)
	}
	defer rows.Close()

	seq := &fingerprint.Sequence{DurationMS: durationMS}
	for rows.Next() {
		var ts, hash int64
		var strength float64
		if err := rows.Scan(&ts, &hash, &strength); err != nil {
			return nil, err
		}
		seq.Landmarks = append(seq.Landmarks, fingerprint.Landmark{T: ts, Hash: uint32(hash), Strength: strength})
	}
	return seq, rows.Err()
}

// Versions lists the stored content versions for an episode, newest first.
func (s *Store) Versions(ctx context.Context, episodeID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT content_version FROM fingerprints WHERE episode_id = ? ORDER BY created_at DESC`,
		episodeID,
	)
	if err != nil {
		return nil, fmt.Errorf("query versions: %w", err)
	}
	defer rows.Close()

	var versions []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// CountForEpisodes returns how many of the given (episode, version) pairs
// have stored sequences.
func (s *Store) CountForEpisodes(ctx context.Context, keys map[int64]string) (int, error) {
	count := 0
	for episodeID, version := range keys {
		ok, err := s.Has(ctx, episodeID, version)
		if err != nil {
			return 0, err
		}
		if ok {
			count++
		}
	}
	return count, nil
}
