package media

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/scribeworks/scribed/internal/ffmpeg"
)

// minPlausibleOutputBytes is the smallest output accepted as a valid
// conversion. FFmpeg can exit zero and still write a header-only file;
// anything under this is treated as a failed conversion.
const minPlausibleOutputBytes = 1000

// Transcoder converts media files into the canonical compressed mono MP3.
type Transcoder struct {
	ffmpegPath string
	cmd        commandRunner
	statter    fileStatter
	files      fileRemover
}

// TranscoderOption configures a Transcoder.
type TranscoderOption func(*Transcoder)

// WithTranscoderCommandRunner sets the command runner (for testing).
func WithTranscoderCommandRunner(r commandRunner) TranscoderOption {
	return func(t *Transcoder) { t.cmd = r }
}

// WithTranscoderFileStatter sets the file statter (for testing).
func WithTranscoderFileStatter(s fileStatter) TranscoderOption {
	return func(t *Transcoder) { t.statter = s }
}

// WithTranscoderFileRemover sets the file remover (for testing).
func WithTranscoderFileRemover(f fileRemover) TranscoderOption {
	return func(t *Transcoder) { t.files = f }
}

// NewTranscoder creates a Transcoder using the given ffmpeg binary.
func NewTranscoder(ffmpegPath string, opts ...TranscoderOption) (*Transcoder, error) {
	if ffmpegPath == "" {
		return nil, fmt.Errorf("ffmpegPath cannot be empty: %w", ffmpeg.ErrNotFound)
	}
	t := &Transcoder{
		ffmpegPath: ffmpegPath,
		cmd:        ffmpeg.NewExecutor(),
		statter:    osFileStatter{},
		files:      osFileRemover{},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Convert transcodes inputPath into mono MP3 at the given bitrate with
// metadata stripped, overwriting outputPath if present. The result is
// validated before returning: a subprocess success with an implausibly
// small output still fails with ErrConversionFailed.
func (t *Transcoder) Convert(ctx context.Context, inputPath, outputPath string, bitrateKbps int) error {
	args := []string{
		"-i", inputPath,
		"-acodec", "mp3",
		"-ab", fmt.Sprintf("%dk", bitrateKbps),
		"-ar", fmt.Sprintf("%d", CanonicalSampleRate),
		"-ac", "1",
		"-map_metadata", "-1",
		"-y",
		outputPath,
	}

	output, err := t.cmd.CombinedOutput(ctx, t.ffmpegPath, args)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return fmt.Errorf("%w: %v", ffmpeg.ErrNotFound, err)
		}
		return fmt.Errorf("%w: %v\nOutput: %s", ErrConversionFailed, err, output)
	}

	return t.validateOutput(outputPath, minPlausibleOutputBytes)
}

// Extract transcodes a time-bounded slice of inputPath into mono MP3 at the
// given bitrate. Used by the segmenter.
func (t *Transcoder) Extract(ctx context.Context, inputPath, outputPath string, start, dur time.Duration, bitrateKbps int) error {
	args := []string{
		"-i", inputPath,
		"-ss", fmt.Sprintf("%.3f", start.Seconds()),
		"-t", fmt.Sprintf("%.3f", dur.Seconds()),
		"-acodec", "mp3",
		"-ab", fmt.Sprintf("%dk", bitrateKbps),
		"-ar", fmt.Sprintf("%d", CanonicalSampleRate),
		"-ac", "1",
		"-y",
		outputPath,
	}

	output, err := t.cmd.CombinedOutput(ctx, t.ffmpegPath, args)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return fmt.Errorf("%w: %v", ffmpeg.ErrNotFound, err)
		}
		return fmt.Errorf("%w: extract [%v +%v]: %v\nOutput: %s",
			ErrConversionFailed, start, dur, err, output)
	}
	return nil
}

// validateOutput checks that the converted file exists and is large enough
// to plausibly contain audio. Implausible outputs are removed.
func (t *Transcoder) validateOutput(path string, minBytes int64) error {
	info, err := t.statter.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: output missing: %v", ErrConversionFailed, err)
	}
	if info.Size() < minBytes {
		_ = t.files.Remove(path)
		return fmt.Errorf("%w: output is %d bytes, under the %d byte plausibility floor",
			ErrConversionFailed, info.Size(), minBytes)
	}
	return nil
}
