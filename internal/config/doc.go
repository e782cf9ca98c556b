// Package config loads, normalizes, and validates Cliparr configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), and reads TOML files. The Config type centralizes every knob
// the daemon and CLI need: data/log directories, the catalog snapshot
// location, fingerprint extraction parameters, matching and aggregation
// thresholds, and workflow timing.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths and clear validation errors.
package config
