// Package transcribe converts audio into text through a remote speech API,
// failing over across an ordered chain of candidate models. An overloaded
// model is abandoned immediately in favor of the next candidate; other
// transient failures are retried on the same model with exponential backoff.
package transcribe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/scribeworks/scribed/internal/apierr"
)

// Candidate model identifiers, in default preference order.
const (
	// ModelGPT4oMiniTranscribe is the cost-effective transcription model.
	ModelGPT4oMiniTranscribe = "gpt-4o-mini-transcribe"

	// ModelWhisper1 is the fallback model when the primary is at capacity.
	ModelWhisper1 = openai.Whisper1
)

// MaxPayloadBytes is the provider's hard request ceiling. Payloads over
// this limit are rejected client-side before any network call, since the
// provider would refuse them anyway.
const MaxPayloadBytes = 20 * 1024 * 1024

// Per-model retry policy.
const (
	defaultAttemptsPerModel = 3
	defaultBaseDelay        = 1 * time.Second
	defaultMaxDelay         = 4 * time.Second
)

// Request is one transcription payload. Audio carries the encoded bytes;
// Filename gives the provider a container hint through its extension.
type Request struct {
	Audio    []byte
	Filename string
	MIMEType string

	// Language is an optional ISO 639-1 hint. Empty means auto-detect.
	Language string

	// Prompt provides context for domain vocabulary.
	Prompt string
}

// Transcriber converts one audio payload into text.
type Transcriber interface {
	Transcribe(ctx context.Context, req Request) (string, error)
}

// audioTranscriber is the seam over the provider SDK. *openai.Client
// implements it implicitly, which allows injecting mocks in tests.
type audioTranscriber interface {
	CreateTranscription(ctx context.Context, req openai.AudioRequest) (openai.AudioResponse, error)
}

// Compile-time interface compliance checks.
var (
	_ Transcriber      = (*Client)(nil)
	_ audioTranscriber = (*openai.Client)(nil)
)

// Client transcribes audio with model fallback. The candidate chain is
// walked in order; each model gets a bounded number of attempts before the
// next one is tried.
type Client struct {
	api       audioTranscriber
	models    []string
	attempts  int
	baseDelay time.Duration
	maxDelay  time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithModels replaces the candidate model chain. The slice order is the
// fallback order.
func WithModels(models []string) ClientOption {
	return func(c *Client) {
		if len(models) > 0 {
			c.models = models
		}
	}
}

// WithAttemptsPerModel sets how many tries each model gets before fallback.
func WithAttemptsPerModel(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.attempts = n
		}
	}
}

// WithRetryDelays sets the base and max delays for exponential backoff
// between attempts on the same model.
func WithRetryDelays(base, max time.Duration) ClientOption {
	return func(c *Client) {
		if base > 0 {
			c.baseDelay = base
		}
		if max > 0 {
			c.maxDelay = max
		}
	}
}

// NewClient creates a Client backed by the real provider API.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	return newClient(openai.NewClient(apiKey), opts...)
}

func newClient(api audioTranscriber, opts ...ClientOption) *Client {
	c := &Client{
		api:       api,
		models:    []string{ModelGPT4oMiniTranscribe, ModelWhisper1},
		attempts:  defaultAttemptsPerModel,
		baseDelay: defaultBaseDelay,
		maxDelay:  defaultMaxDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Models returns the candidate chain in fallback order.
func (c *Client) Models() []string {
	out := make([]string, len(c.models))
	copy(out, c.models)
	return out
}

// Transcribe walks the candidate chain until one model produces a
// transcript. An overloaded model is skipped without backoff unless it is
// the last candidate, in which case its attempts are exhausted normally.
// Errors that no model can fix (bad credentials, oversized payload) abort
// the chain immediately.
func (c *Client) Transcribe(ctx context.Context, req Request) (string, error) {
	if len(req.Audio) == 0 {
		return "", fmt.Errorf("empty audio payload: %w", apierr.ErrBadRequest)
	}
	if len(req.Audio) > MaxPayloadBytes {
		return "", fmt.Errorf("payload is %d bytes, limit is %d: %w",
			len(req.Audio), MaxPayloadBytes, apierr.ErrPayloadTooLarge)
	}

	var lastErr error
	for i, model := range c.models {
		lastModel := i == len(c.models)-1

		text, err := c.transcribeWithModel(ctx, model, req, lastModel)
		if err == nil {
			return text, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		if !errors.Is(err, apierr.ErrOverloaded) && isChainFatal(err) {
			return "", err
		}

		lastErr = err
	}

	return "", &AllModelsFailedError{Models: c.Models(), Last: lastErr}
}

// transcribeWithModel runs the per-model attempt loop. Overload errors end
// the loop without backoff so the caller can fail over; on the last model
// there is nowhere to fail over to, so overloads are retried like any other
// transient error.
func (c *Client) transcribeWithModel(ctx context.Context, model string, req Request, lastModel bool) (string, error) {
	cfg := apierr.RetryConfig{
		MaxRetries: c.attempts - 1,
		BaseDelay:  c.baseDelay,
		MaxDelay:   c.maxDelay,
	}

	return apierr.RetryWithBackoff(ctx, cfg, func() (string, error) {
		resp, err := c.api.CreateTranscription(ctx, openai.AudioRequest{
			Model:    model,
			Reader:   bytes.NewReader(req.Audio),
			FilePath: req.filename(),
			Format:   openai.AudioResponseFormatJSON,
			Prompt:   req.Prompt,
			Language: req.Language,
		})
		if err != nil {
			return "", classifyError(err)
		}
		return resp.Text, nil
	}, func(err error) bool {
		if errors.Is(err, apierr.ErrOverloaded) {
			return lastModel
		}
		return isRetryableError(err)
	})
}

// filename returns the upload filename, deriving one from the MIME type
// when the caller did not supply it. The extension is the container hint
// the provider relies on.
func (r Request) filename() string {
	if r.Filename != "" {
		return r.Filename
	}
	switch r.MIMEType {
	case "audio/wav", "audio/x-wav":
		return "audio.wav"
	case "audio/ogg":
		return "audio.ogg"
	case "audio/mp4", "audio/x-m4a":
		return "audio.m4a"
	case "video/webm", "audio/webm":
		return "audio.webm"
	default:
		return "audio.mp3"
	}
}

// isChainFatal reports errors that trying another model cannot fix.
func isChainFatal(err error) bool {
	return errors.Is(err, apierr.ErrAuthFailed) ||
		errors.Is(err, apierr.ErrQuotaExceeded) ||
		errors.Is(err, apierr.ErrPayloadTooLarge)
}

// classifyError maps provider API errors to sentinel errors.
func classifyError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusServiceUnavailable:
			return fmt.Errorf("%s: %w", apiErr.Message, apierr.ErrOverloaded)
		case http.StatusTooManyRequests:
			// Distinguish a temporary rate limit from an exhausted quota.
			// Quota problems require user action and must not be retried.
			if strings.Contains(apiErr.Message, "quota") ||
				strings.Contains(apiErr.Message, "billing") {
				return fmt.Errorf("%s: %w", apiErr.Message, apierr.ErrQuotaExceeded)
			}
			return fmt.Errorf("%s: %w", apiErr.Message, apierr.ErrRateLimit)
		case http.StatusUnauthorized:
			return fmt.Errorf("%s: %w", apiErr.Message, apierr.ErrAuthFailed)
		case http.StatusRequestEntityTooLarge:
			return fmt.Errorf("%s: %w", apiErr.Message, apierr.ErrPayloadTooLarge)
		case http.StatusRequestTimeout, http.StatusGatewayTimeout:
			return fmt.Errorf("%s: %w", apiErr.Message, apierr.ErrTimeout)
		case http.StatusInternalServerError, http.StatusBadGateway:
			// Retryable server error.
			return fmt.Errorf("%s: %w", apiErr.Message, apierr.ErrTimeout)
		case http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound:
			return fmt.Errorf("%s: %w", apiErr.Message, apierr.ErrBadRequest)
		}
		// Some gateways report capacity in the message with a generic status.
		if strings.Contains(strings.ToLower(apiErr.Message), "overloaded") {
			return fmt.Errorf("%s: %w", apiErr.Message, apierr.ErrOverloaded)
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("request timed out: %w", apierr.ErrTimeout)
	}

	return err
}

// isRetryableError determines if an error is transient and worth retrying
// on the same model.
func isRetryableError(err error) bool {
	if errors.Is(err, apierr.ErrRateLimit) || errors.Is(err, apierr.ErrTimeout) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return false
}
