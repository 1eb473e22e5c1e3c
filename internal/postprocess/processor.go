// Package postprocess transforms finished transcripts with an LLM:
// summaries with tags and topics, and full translations. It operates on
// transcript text only; audio never leaves the transcription flow.
package postprocess

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/scribeworks/scribed/internal/apierr"
)

// Processor post-processes transcript text.
type Processor interface {
	// Summarize condenses a transcript per the given style. outputLang is
	// an optional ISO 639-1 code for the response language; empty keeps
	// the prompt's native language (English).
	Summarize(ctx context.Context, transcript string, style SummaryStyle, outputLang string) (string, error)

	// Translate renders the full transcript in the target language.
	Translate(ctx context.Context, transcript, targetLang string) (string, error)
}

// chatCompleter is the seam over the provider SDK. *openai.Client
// implements it implicitly, which allows injecting mocks in tests.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Compile-time interface compliance checks.
var (
	_ Processor     = (*OpenAIProcessor)(nil)
	_ chatCompleter = (*openai.Client)(nil)
)

// Default configuration.
const (
	defaultChatModel      = "gpt-4o-mini"
	defaultMaxInputTokens = 100000
	maxOutputTokens       = 16384

	// Token estimation: ~3 chars per token is conservative for the short
	// words of Romance languages. English averages closer to 4.
	charsPerToken = 3

	// Chat completions have longer latency than transcription, so the
	// retry window is wider.
	defaultChatMaxRetries = 3
	defaultChatBaseDelay  = 1 * time.Second
	defaultChatMaxDelay   = 30 * time.Second
)

// OpenAIProcessor post-processes transcripts through the chat completion
// API, retrying transient failures with exponential backoff.
type OpenAIProcessor struct {
	api            chatCompleter
	model          string
	maxInputTokens int
	maxRetries     int
	baseDelay      time.Duration
	maxDelay       time.Duration
}

// ProcessorOption configures an OpenAIProcessor.
type ProcessorOption func(*OpenAIProcessor)

// WithModel sets the chat model.
func WithModel(model string) ProcessorOption {
	return func(p *OpenAIProcessor) {
		if model != "" {
			p.model = model
		}
	}
}

// WithMaxInputTokens sets the estimated input token ceiling.
func WithMaxInputTokens(n int) ProcessorOption {
	return func(p *OpenAIProcessor) {
		if n > 0 {
			p.maxInputTokens = n
		}
	}
}

// WithMaxRetries sets the retry attempt limit.
func WithMaxRetries(n int) ProcessorOption {
	return func(p *OpenAIProcessor) {
		if n >= 0 {
			p.maxRetries = n
		}
	}
}

// WithRetryDelays sets the base and max delays for exponential backoff.
func WithRetryDelays(base, max time.Duration) ProcessorOption {
	return func(p *OpenAIProcessor) {
		if base > 0 {
			p.baseDelay = base
		}
		if max > 0 {
			p.maxDelay = max
		}
	}
}

// NewOpenAIProcessor creates a processor backed by the real provider API.
func NewOpenAIProcessor(apiKey string, opts ...ProcessorOption) *OpenAIProcessor {
	return newProcessor(openai.NewClient(apiKey), opts...)
}

func newProcessor(api chatCompleter, opts ...ProcessorOption) *OpenAIProcessor {
	p := &OpenAIProcessor{
		api:            api,
		model:          defaultChatModel,
		maxInputTokens: defaultMaxInputTokens,
		maxRetries:     defaultChatMaxRetries,
		baseDelay:      defaultChatBaseDelay,
		maxDelay:       defaultChatMaxDelay,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Summarize condenses the transcript per the style. A non-English
// outputLang prepends a response-language instruction since the prompts
// are native English.
func (p *OpenAIProcessor) Summarize(ctx context.Context, transcript string, style SummaryStyle, outputLang string) (string, error) {
	prompt := style.prompt()
	if name, ok := languageNames[outputLang]; ok && outputLang != "en" {
		prompt = fmt.Sprintf("Respond in %s.\n\n%s", name, prompt)
	}
	return p.complete(ctx, prompt, transcript)
}

// Translate renders the full transcript in the target language.
func (p *OpenAIProcessor) Translate(ctx context.Context, transcript, targetLang string) (string, error) {
	return p.complete(ctx, translatePrompt(targetLang), transcript)
}

// complete runs one chat completion with retry. The transcript length is
// checked against the token ceiling before any network call.
func (p *OpenAIProcessor) complete(ctx context.Context, prompt, transcript string) (string, error) {
	if strings.TrimSpace(transcript) == "" {
		return "", ErrEmptyTranscript
	}

	estimated := len(transcript) / charsPerToken
	if estimated > p.maxInputTokens {
		return "", fmt.Errorf("transcript too long (%dK tokens estimated, max %dK): %w",
			estimated/1000, p.maxInputTokens/1000, ErrTranscriptTooLong)
	}

	req := openai.ChatCompletionRequest{
		Model:               p.model,
		MaxCompletionTokens: maxOutputTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt},
			{Role: openai.ChatMessageRoleUser, Content: transcript},
		},
		// Deterministic output for reproducibility.
		Temperature: 0,
	}

	cfg := apierr.RetryConfig{
		MaxRetries: p.maxRetries,
		BaseDelay:  p.baseDelay,
		MaxDelay:   p.maxDelay,
	}
	return apierr.RetryWithBackoff(ctx, cfg, func() (string, error) {
		resp, err := p.api.CreateChatCompletion(ctx, req)
		if err != nil {
			return "", classifyChatError(err)
		}
		if len(resp.Choices) == 0 {
			return "", errors.New("no response from API")
		}
		return strings.TrimSpace(resp.Choices[0].Message.Content), nil
	}, isRetryableChatError)
}

// classifyChatError maps chat completion API errors to sentinel errors.
func classifyChatError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusTooManyRequests:
			if strings.Contains(apiErr.Message, "quota") ||
				strings.Contains(apiErr.Message, "billing") {
				return fmt.Errorf("%s: %w", apiErr.Message, apierr.ErrQuotaExceeded)
			}
			return fmt.Errorf("%s: %w", apiErr.Message, apierr.ErrRateLimit)
		case http.StatusUnauthorized:
			return fmt.Errorf("%s: %w", apiErr.Message, apierr.ErrAuthFailed)
		case http.StatusRequestTimeout, http.StatusGatewayTimeout,
			http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable:
			return fmt.Errorf("%s: %w", apiErr.Message, apierr.ErrTimeout)
		case http.StatusBadRequest:
			if strings.Contains(apiErr.Message, "context_length") ||
				strings.Contains(apiErr.Message, "maximum context length") {
				return fmt.Errorf("API rejected: %w", ErrTranscriptTooLong)
			}
			return fmt.Errorf("%s: %w", apiErr.Message, apierr.ErrBadRequest)
		case http.StatusForbidden, http.StatusNotFound:
			return fmt.Errorf("%s: %w", apiErr.Message, apierr.ErrBadRequest)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("request timed out: %w", apierr.ErrTimeout)
	}
	return err
}

// isRetryableChatError reports transient failures worth another attempt.
func isRetryableChatError(err error) bool {
	return errors.Is(err, apierr.ErrRateLimit) || errors.Is(err, apierr.ErrTimeout)
}
