package upload

import (
	"errors"
	"fmt"
)

// ErrInvalidInput indicates a malformed chunk upload (empty payload,
// negative index, or missing upload id).
var ErrInvalidInput = errors.New("invalid chunk upload input")

// ErrMissingChunk indicates assembly was attempted before every chunk
// arrived. The upload is retryable once the missing chunk is uploaded.
var ErrMissingChunk = errors.New("missing chunk")

// ErrNoChunks indicates no chunk files exist for the upload.
var ErrNoChunks = errors.New("no chunks found for upload")

// MissingChunkError reports which chunk index is absent.
type MissingChunkError struct {
	Index int
}

func (e *MissingChunkError) Error() string {
	return fmt.Sprintf("missing chunk %d", e.Index)
}

// Unwrap lets callers match with errors.Is(err, ErrMissingChunk).
func (e *MissingChunkError) Unwrap() error {
	return ErrMissingChunk
}
