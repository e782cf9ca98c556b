// Package match finds repeated audio between two fingerprint sequences.
//
// The engine uses offset voting: every pair of landmarks with an equal hash
// votes for the time offset between the two sequences, and true repeats pile
// their votes onto one offset bin while noise scatters. Winning bins are then
// expanded into maximal contiguous time ranges whose landmark pairs agree
// with the bin's offset within a drift tolerance.
//
// Matching is a pure function: deterministic for identical inputs and
// parameters, with no dependence on processing order beyond sorted
// timestamps.
package match
