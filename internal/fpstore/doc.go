// Package fpstore persists fingerprint sequences in SQLite keyed by
// (episode id, content version).
//
// Sequences are immutable once written: a new content version produces a new
// row set and never touches the old one. Writes are idempotent on the key, so
// a retried extraction job leaves the store unchanged. Invalidation of
// dependent matches and segments is the scheduler's responsibility.
package fpstore
