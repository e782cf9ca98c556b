package jobs

import "context"

// ForceSchemaVersion rewrites the stored schema version so tests can exercise
// the mismatch check.
func (s *Store) ForceSchemaVersion(ctx context.Context, version int) error {
	_, err := s.db.ExecContext(ctx, `UPDATE schema_version SET version = ?`, version)
	return err
}
