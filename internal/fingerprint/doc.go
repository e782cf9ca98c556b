// Package fingerprint turns an episode's audio track into a compact,
// time-ordered landmark sequence.
//
// Audio is decoded to mono 16-bit PCM (by shelling out to ffmpeg), chopped
// into overlapping windows, and reduced per window to the dominant frequency
// band. Landmarks pair the dominant band of a window with the bands of two
// later windows, which makes the hash robust to level changes while staying
// fully deterministic.
//
// Extraction is pure: it returns data and never persists anything. The
// scheduler owns persistence through the fingerprint store.
package fingerprint
