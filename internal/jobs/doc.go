// Package jobs persists analysis jobs, pairwise matches, and consensus
// segments in SQLite.
//
// The Store is the durable half of the scheduler: job rows carry the
// explicit state machine (pending, running, succeeded, failed, retrying,
// skipped), pairwise match rows are keyed by episode pair and content
// versions, and segment rows are replaced wholesale per show. A partial
// unique index guarantees at most one non-terminal job per (scope, kind), so
// the double-enqueue class of bug cannot reach disk.
//
// Treat this package as the single source of truth for job semantics; when
// you add states or columns, update schema.sql and bump schemaVersion.
package jobs
