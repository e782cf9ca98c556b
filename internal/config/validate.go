package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateCatalog(); err != nil {
		return err
	}
	if err := c.validateAnalysis(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateCatalog() error {
	if c.Catalog.PollInterval <= 0 {
		return errors.New("catalog.poll_interval must be positive")
	}
	return nil
}

func (c *Config) validateAnalysis() error {
	if c.Analysis.SampleRate <= 0 {
		return errors.New("analysis.sample_rate must be positive")
	}
	if c.Analysis.WindowSize <= 0 {
		return errors.New("analysis.window_size must be positive")
	}
	if c.Analysis.HopSize <= 0 || c.Analysis.HopSize > c.Analysis.WindowSize {
		return errors.New("analysis.hop_size must be positive and no larger than window_size")
	}
	if c.Analysis.MinLandmarkStrength < 0 || c.Analysis.MinLandmarkStrength > 1 {
		return errors.New("analysis.min_landmark_strength must be between 0 and 1")
	}
	if c.Analysis.EdgeFraction <= 0 || c.Analysis.EdgeFraction >= 0.5 {
		return errors.New("analysis.edge_fraction must be between 0 and 0.5")
	}
	if c.Analysis.MinConfidence < 0 || c.Analysis.MinConfidence > 1 {
		return errors.New("analysis.min_confidence must be between 0 and 1")
	}
	if err := ensurePositiveMap(map[string]int{
		"analysis.min_audio_seconds":    c.Analysis.MinAudioSeconds,
		"analysis.drift_tolerance_ms":   c.Analysis.DriftToleranceMS,
		"analysis.min_votes":            c.Analysis.MinVotes,
		"analysis.min_segment_seconds":  c.Analysis.MinSegmentSeconds,
		"analysis.min_support_episodes": c.Analysis.MinSupportEpisodes,
	}); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	return ensurePositiveMap(map[string]int{
		"workflow.workers":              c.Workflow.Workers,
		"workflow.job_poll_interval":    c.Workflow.JobPollInterval,
		"workflow.job_timeout":          c.Workflow.JobTimeout,
		"workflow.max_attempts":         c.Workflow.MaxAttempts,
		"workflow.retry_backoff":        c.Workflow.RetryBackoff,
		"workflow.job_retention_days":   c.Workflow.JobRetentionDays,
		"workflow.error_retry_interval": c.Workflow.ErrorRetryInterval,
	})
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for name, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	return nil
}
