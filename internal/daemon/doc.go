// Package daemon ties the analysis services together: it enforces
// single-instance execution through a lock file, runs the catalog watcher and
// the job scheduler, and serves the HTTP API the CLI consumes.
package daemon
