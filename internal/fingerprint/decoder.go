package fingerprint

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync/atomic"
)

// Decoder produces a mono 16-bit little-endian PCM stream for an audio file.
type Decoder interface {
	Decode(ctx context.Context, path string) (io.ReadCloser, error)
}

// FFmpegDecoder shells out to ffmpeg for decoding. External tools are
// executed, never linked.
type FFmpegDecoder struct {
	Binary     string
	SampleRate int
}

// Decode starts ffmpeg and returns its PCM stdout. Close waits for the
// process; if it failed before producing any audio, Close reports
// ErrUnsupportedFormat.
func (d *FFmpegDecoder) Decode(ctx context.Context, path string) (io.ReadCloser, error) {
	binary := strings.TrimSpace(d.Binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("decode: empty path")
	}

	cmd := exec.CommandContext(ctx, binary,
		"-nostdin", "-v", "error",
		"-i", path,
		"-map", "0:a:0",
		"-ac", "1",
		"-ar", strconv.Itoa(d.SampleRate),
		"-f", "s16le",
		"pipe:1",
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("decode: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("decode: start ffmpeg: %w", err)
	}
	return &pcmStream{out: stdout, cmd: cmd, stderr: &stderr}, nil
}

type pcmStream struct {
	out    io.ReadCloser
	cmd    *exec.Cmd
	stderr *bytes.Buffer
	read   atomic.Int64
}

func (s *pcmStream) Read(p []byte) (int, error) {
	n, err := s.out.Read(p)
	s.read.Add(int64(n))
	return n, err
}

func (s *pcmStream) Close() error {
	_ = s.out.Close()
	waitErr := s.cmd.Wait()
	if waitErr == nil {
		return nil
	}
	detail := strings.TrimSpace(s.stderr.String())
	if s.read.Load() == 0 {
		if detail != "" {
			return fmt.Errorf("%w: %s", ErrUnsupportedFormat, lastLine(detail))
		}
		return fmt.Errorf("%w: %v", ErrUnsupportedFormat, waitErr)
	}
	if detail != "" {
		return fmt.Errorf("decode interrupted: %s", lastLine(detail))
	}
	return fmt.Errorf("decode interrupted: %w", waitErr)
}

func lastLine(s string) string {
	lines := strings.Split(s, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if trimmed := strings.TrimSpace(lines[i]); trimmed != "" {
			return trimmed
		}
	}
	return s
}
