package ffmpeg

import (
	"context"
)

// Executor runs ffmpeg commands with injectable dependencies.
type Executor struct {
	runner commandRunner
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithCommandRunner sets a custom command runner (for testing).
func WithCommandRunner(r commandRunner) ExecutorOption {
	return func(e *Executor) { e.runner = r }
}

// NewExecutor creates an Executor with the given options.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{runner: osCommandRunner{}}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CombinedOutput executes ffmpeg and captures stdout and stderr together.
// FFmpeg writes its diagnostic output (durations, stream info) to stderr
// and returns non-zero exit codes for some valid operations, so callers
// that parse diagnostics should inspect the output even when err != nil.
func (e *Executor) CombinedOutput(ctx context.Context, ffmpegPath string, args []string) ([]byte, error) {
	return e.runner.CombinedOutput(ctx, ffmpegPath, args)
}
