// Package logging builds slog loggers for the daemon and CLI.
//
// It provides console and JSON handlers behind a single Options struct,
// attribute helper aliases so call sites stay terse, and standardized field
// names for job/show/episode identifiers used across the pipeline.
package logging
