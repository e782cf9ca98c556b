package config

const (
	defaultDataDir            = "~/.local/share/cliparr/data"
	defaultLogDir             = "~/.local/share/cliparr/logs"
	defaultAPIBind            = "127.0.0.1:8765"
	defaultCatalogPollSeconds = 60
	defaultFFmpegBinary       = "ffmpeg"
	defaultSampleRate         = 16000
	defaultWindowSize         = 4096
	defaultHopSize            = 2048
	defaultMinStrength        = 0.05
	defaultMinAudioSeconds    = 5
	defaultDriftToleranceMS   = 50
	defaultMinVotes           = 8
	defaultMinSegmentSeconds  = 3
	defaultEdgeFraction       = 0.10
	defaultMinSupportEpisodes = 2
	defaultMinConfidence      = 0.3
	defaultWorkers            = 4
	defaultJobPollInterval    = 2
	defaultJobTimeout         = 600
	defaultMaxAttempts        = 3
	defaultRetryBackoff       = 30
	defaultJobRetentionDays   = 30
	defaultErrorRetryInterval = 5
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Catalog: Catalog{
			PollInterval: defaultCatalogPollSeconds,
		},
		Analysis: Analysis{
			FFmpegBinary:        defaultFFmpegBinary,
			SampleRate:          defaultSampleRate,
			WindowSize:          defaultWindowSize,
			HopSize:             defaultHopSize,
			MinLandmarkStrength: defaultMinStrength,
			MinAudioSeconds:     defaultMinAudioSeconds,
			DriftToleranceMS:    defaultDriftToleranceMS,
			MinVotes:            defaultMinVotes,
			MinSegmentSeconds:   defaultMinSegmentSeconds,
			EdgeFraction:        defaultEdgeFraction,
			MinSupportEpisodes:  defaultMinSupportEpisodes,
			MinConfidence:       defaultMinConfidence,
		},
		Workflow: Workflow{
			Workers:            defaultWorkers,
			JobPollInterval:    defaultJobPollInterval,
			JobTimeout:         defaultJobTimeout,
			MaxAttempts:        defaultMaxAttempts,
			RetryBackoff:       defaultRetryBackoff,
			JobRetentionDays:   defaultJobRetentionDays,
			ErrorRetryInterval: defaultErrorRetryInterval,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
