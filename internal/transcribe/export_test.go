package transcribe

// Exports for testing. These allow black-box tests to inject dependencies
// without modifying the public API.

// NewTestClient creates a Client backed by a mock provider API.
func NewTestClient(api audioTranscriber, opts ...ClientOption) *Client {
	return newClient(api, opts...)
}

// Function exports for unit testing internal logic.
var (
	ClassifyError    = classifyError
	IsRetryableError = isRetryableError
)
