package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cliparr/internal/config"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent.toml")

	cfg, resolved, exists, err := config.Load(missing)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if exists {
		t.Fatal("missing config should not report exists")
	}
	if resolved != missing {
		t.Fatalf("resolved path should echo the request, got %q", resolved)
	}
	if cfg.Analysis.SampleRate != 16000 {
		t.Fatalf("expected default sample rate, got %d", cfg.Analysis.SampleRate)
	}
	if cfg.Workflow.Workers != 4 {
		t.Fatalf("expected default worker count, got %d", cfg.Workflow.Workers)
	}
	if cfg.Logging.Format != "console" {
		t.Fatalf("expected console log format, got %q", cfg.Logging.Format)
	}
}

func TestLoadOverridesAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cliparr.toml")
	content := `
[paths]
data_dir = "` + dir + `/data"
log_dir = "` + dir + `/logs"

[catalog]
snapshot_path = "` + dir + `/catalog.json"
poll_interval = 15

[analysis]
sample_rate = 8000
window_size = 1024
hop_size = 512

[workflow]
workers = 2

[logging]
format = "JSON"
level = "Debug"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists {
		t.Fatal("config file should report exists")
	}
	if cfg.Analysis.SampleRate != 8000 || cfg.Analysis.HopSize != 512 {
		t.Fatalf("analysis overrides lost: %#v", cfg.Analysis)
	}
	if cfg.Workflow.Workers != 2 {
		t.Fatalf("worker override lost: %d", cfg.Workflow.Workers)
	}
	// Untouched sections keep defaults.
	if cfg.Workflow.MaxAttempts != 3 {
		t.Fatalf("expected default max attempts, got %d", cfg.Workflow.MaxAttempts)
	}
	// Format and level are lowercased during normalization.
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("logging not normalized: %#v", cfg.Logging)
	}
	if !filepath.IsAbs(cfg.Paths.DataDir) {
		t.Fatalf("data dir not absolute: %q", cfg.Paths.DataDir)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			"hop larger than window",
			"[analysis]\nwindow_size = 256\nhop_size = 512\n",
			"hop_size",
		},
		{
			"zero workers",
			"[workflow]\nworkers = 0\n",
			"workflow.workers",
		},
		{
			"bad log format",
			"[logging]\nformat = \"xml\"\n",
			"logging.format",
		},
		{
			"edge fraction too large",
			"[analysis]\nedge_fraction = 0.6\n",
			"edge_fraction",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "cliparr.toml")
			if err := os.WriteFile(path, []byte(tc.body), 0o644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			_, _, _, err := config.Load(path)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("error %q should mention %q", err, tc.wantErr)
			}
		})
	}
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(dir, "data")
	cfg.Paths.LogDir = filepath.Join(dir, "logs", "nested")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, path := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir} {
		info, err := os.Stat(path)
		if err != nil || !info.IsDir() {
			t.Fatalf("directory %q not created: %v", path, err)
		}
	}
}

func TestWriteSampleRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	written, err := config.WriteSample(path)
	if err != nil {
		t.Fatalf("WriteSample failed: %v", err)
	}
	if written != path {
		t.Fatalf("unexpected written path %q", written)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[analysis]") {
		t.Fatal("sample config missing analysis section")
	}

	if _, err := config.WriteSample(path); err == nil {
		t.Fatal("expected refusal to overwrite existing config")
	}
}

func TestSampleConfigParses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if _, err := config.WriteSample(path); err != nil {
		t.Fatalf("WriteSample failed: %v", err)
	}
	if _, _, _, err := config.Load(path); err != nil {
		t.Fatalf("sample config must load cleanly: %v", err)
	}
}
