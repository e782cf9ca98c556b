package testsupport

import (
	"testing"

	"cliparr/internal/config"
	"cliparr/internal/fpstore"
	"cliparr/internal/jobs"
)

// MustOpenJobStore opens a jobs.Store for tests and registers cleanup.
func MustOpenJobStore(t testing.TB, cfg *config.Config) *jobs.Store {
	t.Helper()

	store, err := jobs.Open(cfg)
	if err != nil {
		t.Fatalf("jobs.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustOpenFingerprintStore opens an fpstore.Store for tests and registers cleanup.
func MustOpenFingerprintStore(t testing.TB, cfg *config.Config) *fpstore.Store {
	t.Helper()

	store, err := fpstore.Open(cfg)
	if err != nil {
		t.Fatalf("fpstore.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}
