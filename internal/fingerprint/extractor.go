package fingerprint

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"cliparr/internal/config"
	"cliparr/internal/logging"
)

// Extractor combines a decoder with extraction parameters.
type Extractor struct {
	decoder Decoder
	params  Params
	logger  *slog.Logger
}

// NewExtractor builds an extractor from configuration.
func NewExtractor(cfg *config.Config, logger *slog.Logger) *Extractor {
	params := ParamsFromConfig(cfg)
	binary := "ffmpeg"
	if cfg != nil {
		binary = cfg.Analysis.FFmpegBinary
	}
	return &Extractor{
		decoder: &FFmpegDecoder{Binary: binary, SampleRate: params.SampleRate},
		params:  params,
		logger:  logging.WithComponent(logger, "fingerprint"),
	}
}

// NewExtractorWithDecoder builds an extractor around a custom decoder (used
// in tests).
func NewExtractorWithDecoder(decoder Decoder, params Params, logger *slog.Logger) *Extractor {
	return &Extractor{decoder: decoder, params: params, logger: logging.WithComponent(logger, "fingerprint")}
}

// ExtractFile decodes one episode's audio and returns its landmark sequence.
// expected is the catalog's episode duration; a decode that covers at least
// the configured fraction of it is accepted as a partial result.
func (e *Extractor) ExtractFile(ctx context.Context, path string, expected time.Duration) (*Sequence, error) {
	stream, err := e.decoder.Decode(ctx, path)
	if err != nil {
		return nil, err
	}

	params := e.params
	params.ExpectedDuration = expected

	seq, extractErr := Extract(stream, params)
	closeErr := stream.Close()

	if extractErr != nil {
		// A decoder that produced nothing and exited nonzero is an
		// unsupported format, not empty audio.
		if errors.Is(extractErr, ErrEmptyAudio) && closeErr != nil && errors.Is(closeErr, ErrUnsupportedFormat) {
			return nil, closeErr
		}
		return nil, extractErr
	}
	if closeErr != nil && !errors.Is(closeErr, ErrUnsupportedFormat) {
		e.logger.Warn("decoder exited abnormally after usable audio",
			logging.String("file", path),
			logging.Error(closeErr),
		)
	}
	return seq, nil
}
