// Package ffmpeg locates and executes the external transcoder binary.
//
// Resolution runs once at process start; the resulting path is passed by
// handle into the media layer so per-request code never sniffs the
// environment.
package ffmpeg

import (
	"fmt"
)

// wellKnownPaths lists conventional install locations tried after PATH.
var wellKnownPaths = []string{
	"/usr/bin/ffmpeg",
	"/usr/local/bin/ffmpeg",
	"/opt/homebrew/bin/ffmpeg",
}

// Resolver finds the ffmpeg binary.
type Resolver struct {
	checker pathChecker
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithPathChecker sets the binary lookup implementation (for testing).
func WithPathChecker(c pathChecker) ResolverOption {
	return func(r *Resolver) { r.checker = c }
}

// NewResolver creates a Resolver with the given options.
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{checker: osPathChecker{}}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve finds ffmpeg using the following precedence:
//  1. The configured path, when non-empty (error if set but not present)
//  2. System PATH
//  3. Well-known install locations
func (r *Resolver) Resolve(configuredPath string) (string, error) {
	if configuredPath != "" {
		if _, err := r.checker.Stat(configuredPath); err != nil {
			return "", fmt.Errorf("%w: configured path %q is not usable: %v",
				ErrNotFound, configuredPath, err)
		}
		return configuredPath, nil
	}

	if path, err := r.checker.LookPath("ffmpeg"); err == nil {
		return path, nil
	}

	for _, path := range wellKnownPaths {
		if _, err := r.checker.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("%w: not on PATH and no conventional install location exists "+
		"(install ffmpeg or set SCRIBED_FFMPEG_PATH)", ErrNotFound)
}

// Resolve finds ffmpeg using a default resolver.
func Resolve(configuredPath string) (string, error) {
	return NewResolver().Resolve(configuredPath)
}
