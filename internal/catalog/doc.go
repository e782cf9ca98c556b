// Package catalog exposes the episode library to the analysis pipeline. The
// library itself is owned by an external media manager; this package reads a
// snapshot export of it and reports additions and content changes.
package catalog
