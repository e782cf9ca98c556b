package deps

import (
	"os"
	"path/filepath"
	"testing"

	"cliparr/internal/config"
)

func TestRequirementsUseConfiguredBinary(t *testing.T) {
	cfg := config.Default()
	cfg.Analysis.FFmpegBinary = "ffmpeg7"

	reqs := Requirements(&cfg)
	if len(reqs) != 1 {
		t.Fatalf("expected one requirement, got %d", len(reqs))
	}
	if reqs[0].Name != "FFmpeg" || reqs[0].Command != "ffmpeg7" {
		t.Fatalf("unexpected requirement %#v", reqs[0])
	}
}

func TestCheckBinariesResolvesPath(t *testing.T) {
	dir := t.TempDir()
	binary := filepath.Join(dir, "fakeffmpeg")
	if err := os.WriteFile(binary, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatalf("write fake binary: %v", err)
	}

	results := CheckBinaries([]Requirement{{Name: "FFmpeg", Command: binary}})
	if len(results) != 1 {
		t.Fatalf("expected one status, got %d", len(results))
	}
	status := results[0]
	if !status.Available {
		t.Fatalf("executable should be available: %#v", status)
	}
	if status.Command != binary {
		t.Fatalf("command should resolve to the absolute path, got %q", status.Command)
	}
}

func TestCheckBinariesReportsMissing(t *testing.T) {
	results := CheckBinaries([]Requirement{
		{Name: "FFmpeg", Command: "definitely-not-installed-binary"},
		{Name: "Empty", Command: "   "},
	})
	if results[0].Available {
		t.Fatal("missing binary should not be available")
	}
	if results[0].Detail == "" {
		t.Fatal("missing binary should carry a detail message")
	}
	if results[1].Available || results[1].Detail != "command not configured" {
		t.Fatalf("blank command mishandled: %#v", results[1])
	}
}
