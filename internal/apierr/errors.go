// Package apierr provides shared error sentinels and retry infrastructure
// for HTTP-based API clients. Provider-specific error types are classified
// into these sentinels at the adapter boundary.
//
// Adapters map HTTP status codes to these errors with
// fmt.Errorf("%s: %w", msg, sentinel). Callers check with
// errors.Is(err, apierr.ErrOverloaded) etc.
package apierr

import "errors"

// Sentinel errors for API interaction failures.
var (
	// ErrOverloaded indicates the remote model is at capacity (503 or an
	// explicit overload message). Callers fail over to the next candidate
	// model instead of backing off.
	ErrOverloaded = errors.New("service overloaded")

	// ErrRateLimit indicates the API rate limit was exceeded (temporary, retryable).
	ErrRateLimit = errors.New("rate limit exceeded")

	// ErrQuotaExceeded indicates the API quota was exceeded (billing issue, not retryable).
	ErrQuotaExceeded = errors.New("quota exceeded")

	// ErrTimeout indicates a request timed out.
	ErrTimeout = errors.New("request timeout")

	// ErrAuthFailed indicates API authentication failed (invalid key).
	ErrAuthFailed = errors.New("authentication failed")

	// ErrPayloadTooLarge indicates the request body exceeds the provider's
	// hard payload ceiling. Retrying the same payload cannot succeed.
	ErrPayloadTooLarge = errors.New("payload too large")

	// ErrBadRequest indicates a client error (4xx) that is not otherwise classified.
	ErrBadRequest = errors.New("bad request")
)
