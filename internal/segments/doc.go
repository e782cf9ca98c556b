// Package segments turns pairwise matches into show-level consensus
// segments.
//
// Matched ranges are clustered with union-find: the two sides of a pairwise
// range are always joined, and ranges on the same episode join when their
// intervals overlap enough. Each cluster becomes one candidate segment whose
// confidence is the fraction of the show's episodes that corroborate it, and
// whose kind falls out of where the ranges sit inside their episodes.
//
// Aggregation is a pure function recomputed from all available matches each
// run; there is no incremental delta state.
package segments
