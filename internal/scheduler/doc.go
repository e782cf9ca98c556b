// Package scheduler runs the analysis pipeline: it claims runnable jobs from
// the durable queue, executes them on a bounded worker pool, and applies the
// extract -> match -> aggregate cascade. All job state transitions are
// serialized through a single mutex so the at-most-one-active invariant per
// (scope, kind) holds without row locking.
package scheduler
