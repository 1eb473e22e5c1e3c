// Package media normalizes arbitrary audio/video inputs into a canonical
// compressed mono MP3 and splits it into bounded-duration segments suitable
// for a remote transcription API with a hard payload ceiling.
package media

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"time"

	"github.com/scribeworks/scribed/internal/ffmpeg"
)

// Canonical audio parameters. Every input is normalized to mono MP3 at a
// fixed sample rate before transcription.
const (
	// CanonicalSampleRate is the fixed output sample rate in Hz.
	CanonicalSampleRate = 44100

	// CanonicalBitrateKbps is the bitrate for whole-file compression,
	// chosen for maximum size reduction while keeping speech intelligible.
	CanonicalBitrateKbps = 64

	// SegmentBitrateKbps is the bitrate for individual segments. Slightly
	// higher than the canonical bitrate to preserve recognition quality on
	// short clips.
	SegmentBitrateKbps = 128
)

// durationPattern extracts the Duration field from ffmpeg diagnostics,
// e.g. "Duration: 00:10:20.50, start: ...".
var durationPattern = regexp.MustCompile(`Duration:\s*(\d+):(\d+):(\d+)\.(\d+)`)

// Prober extracts media metadata by parsing ffmpeg diagnostic output.
type Prober struct {
	ffmpegPath string
	cmd        commandRunner
}

// ProberOption configures a Prober.
type ProberOption func(*Prober)

// WithProberCommandRunner sets the command runner (for testing).
func WithProberCommandRunner(r commandRunner) ProberOption {
	return func(p *Prober) { p.cmd = r }
}

// NewProber creates a Prober using the given ffmpeg binary.
func NewProber(ffmpegPath string, opts ...ProberOption) (*Prober, error) {
	if ffmpegPath == "" {
		return nil, fmt.Errorf("ffmpegPath cannot be empty: %w", ffmpeg.ErrNotFound)
	}
	p := &Prober{
		ffmpegPath: ffmpegPath,
		cmd:        ffmpeg.NewExecutor(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Duration returns the total duration of a media file. FFmpeg is invoked
// with a null output so it only reads the input and prints diagnostics;
// the non-zero exit code it returns in that mode is expected.
func (p *Prober) Duration(ctx context.Context, path string) (time.Duration, error) {
	output, err := p.cmd.CombinedOutput(ctx, p.ffmpegPath, []string{
		"-i", path,
		"-f", "null", "-",
	})
	if err != nil && len(output) == 0 {
		return 0, classifyExecError(err)
	}

	d, ok := parseDuration(string(output))
	if !ok {
		return 0, fmt.Errorf("%w: no duration in ffmpeg output for %s", ErrProbeFailed, path)
	}
	return d, nil
}

// parseDuration extracts the first Duration token from ffmpeg diagnostics.
func parseDuration(output string) (time.Duration, bool) {
	m := durationPattern.FindStringSubmatch(output)
	if m == nil {
		return 0, false
	}

	h, _ := strconv.Atoi(m[1])
	min, _ := strconv.Atoi(m[2])
	s, _ := strconv.Atoi(m[3])

	// Fractional part may carry 1..n digits; normalize to milliseconds.
	frac, _ := strconv.Atoi(m[4])
	ms := frac
	switch n := len(m[4]); {
	case n == 1:
		ms = frac * 100
	case n == 2:
		ms = frac * 10
	case n == 3:
		// Already milliseconds.
	case n > 3:
		for i := n; i > 3; i-- {
			ms /= 10
		}
	}

	return time.Duration(h)*time.Hour +
		time.Duration(min)*time.Minute +
		time.Duration(s)*time.Second +
		time.Duration(ms)*time.Millisecond, true
}

// classifyExecError distinguishes a missing/unexecutable binary from a
// subprocess that ran and failed. Callers treat the former as a fatal
// environment error and the latter as a per-file error.
func classifyExecError(err error) error {
	if errors.Is(err, exec.ErrNotFound) {
		return fmt.Errorf("%w: %v", ffmpeg.ErrNotFound, err)
	}
	return fmt.Errorf("%w: %v", ErrProbeFailed, err)
}
