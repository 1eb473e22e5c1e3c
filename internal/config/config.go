// Package config loads service configuration from the environment.
// Values arrive either from the real environment or from a .env file
// loaded by the entrypoint before Load runs.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ErrMissingAPIKey indicates the transcription API key is not configured.
var ErrMissingAPIKey = errors.New("missing API key")

// Environment variable keys.
const (
	EnvFFmpegPath     = "SCRIBED_FFMPEG_PATH"
	EnvOpenAIKey      = "OPENAI_API_KEY"
	EnvTmpRoot        = "SCRIBED_TMP_DIR"
	EnvAddr           = "SCRIBED_ADDR"
	EnvSegmentSeconds = "SCRIBED_SEGMENT_SECONDS"
	EnvModels         = "SCRIBED_MODELS"
	EnvChatModel      = "SCRIBED_CHAT_MODEL"
)

// Defaults for optional settings.
const (
	DefaultAddr           = ":8080"
	DefaultSegmentSeconds = 300
)

// Config holds every runtime setting. Zero values mean "use the default";
// only OpenAIKey is validated here because nothing works without it.
type Config struct {
	// FFmpegPath is an explicit tool location. Empty means auto-resolve.
	FFmpegPath string

	// OpenAIKey authenticates against the transcription API.
	OpenAIKey string

	// TmpRoot is the scratch directory. Empty means the system temp dir.
	TmpRoot string

	// Addr is the HTTP listen address.
	Addr string

	// SegmentSeconds is the target segment length for oversized audio.
	SegmentSeconds int

	// Models overrides the candidate model chain, in fallback order.
	// Empty means the built-in defaults.
	Models []string

	// ChatModel overrides the transcript post-processing model.
	// Empty means the built-in default.
	ChatModel string
}

// Load reads configuration from the environment. Malformed numeric values
// are errors; a missing API key is reported by Validate, not here, so
// commands that never reach the network can still run.
func Load() (Config, error) {
	cfg := Config{
		FFmpegPath:     os.Getenv(EnvFFmpegPath),
		OpenAIKey:      os.Getenv(EnvOpenAIKey),
		TmpRoot:        os.Getenv(EnvTmpRoot),
		Addr:           os.Getenv(EnvAddr),
		ChatModel:      os.Getenv(EnvChatModel),
		SegmentSeconds: DefaultSegmentSeconds,
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}

	if raw := os.Getenv(EnvSegmentSeconds); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("%s must be a positive integer, got %q", EnvSegmentSeconds, raw)
		}
		cfg.SegmentSeconds = n
	}

	if raw := os.Getenv(EnvModels); raw != "" {
		for _, m := range strings.Split(raw, ",") {
			if m = strings.TrimSpace(m); m != "" {
				cfg.Models = append(cfg.Models, m)
			}
		}
	}

	return cfg, nil
}

// Validate checks the settings every network-facing command needs.
func (c Config) Validate() error {
	if c.OpenAIKey == "" {
		return fmt.Errorf("%s is not set: %w", EnvOpenAIKey, ErrMissingAPIKey)
	}
	return nil
}
