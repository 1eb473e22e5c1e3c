package postprocess

import "errors"

// ErrTranscriptTooLong indicates the transcript exceeds the model's input
// token limit (estimated client-side).
var ErrTranscriptTooLong = errors.New("transcript exceeds input token limit")

// ErrUnknownStyle indicates an invalid summary style was specified.
var ErrUnknownStyle = errors.New("unknown summary style")

// ErrEmptyTranscript indicates there is no text to process.
var ErrEmptyTranscript = errors.New("transcript is empty")
