package transcribe

import (
	"errors"
	"fmt"
)

// ErrAllModelsFailed indicates every candidate model was exhausted without
// producing a transcript.
var ErrAllModelsFailed = errors.New("all transcription models failed")

// AllModelsFailedError reports that the whole candidate chain failed, and
// carries the error from the final attempt.
type AllModelsFailedError struct {
	Models []string
	Last   error
}

func (e *AllModelsFailedError) Error() string {
	return fmt.Sprintf("all %d transcription models failed, last error: %v", len(e.Models), e.Last)
}

// Unwrap exposes both the sentinel and the final attempt's error, so
// errors.Is works against either.
func (e *AllModelsFailedError) Unwrap() []error {
	return []error{ErrAllModelsFailed, e.Last}
}
