package fingerprint

import "errors"

var (
	// ErrUnsupportedFormat indicates the audio stream could not be decoded.
	// Permanent: retrying the same file cannot succeed.
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	// ErrEmptyAudio indicates the decoded audio is shorter than the minimum
	// useful duration. Permanent.
	ErrEmptyAudio = errors.New("audio shorter than minimum duration")
	// ErrTruncated indicates decoding stopped well before the expected
	// duration. Treated as transient since early EOF is usually an I/O symptom.
	ErrTruncated = errors.New("audio stream ended early")
)

// Permanent reports whether err is an extraction failure that retrying
// cannot fix.
func Permanent(err error) bool {
	return errors.Is(err, ErrUnsupportedFormat) || errors.Is(err, ErrEmptyAudio)
}
