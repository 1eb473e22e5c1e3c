package ffmpeg

import "errors"

// ErrNotFound indicates the ffmpeg binary could not be located. This is an
// environment misconfiguration and should be surfaced at startup, not per
// request.
var ErrNotFound = errors.New("ffmpeg not found")
