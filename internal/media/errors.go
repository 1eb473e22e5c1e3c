package media

import "errors"

// ErrProbeFailed indicates ffmpeg ran but its output contained no parseable
// duration. Permanent for the file, not retried.
var ErrProbeFailed = errors.New("could not probe media duration")

// ErrConversionFailed indicates ffmpeg failed to convert the input, or
// produced an implausibly small output file. A zero exit code does not
// guarantee valid output.
var ErrConversionFailed = errors.New("media conversion failed")

// ErrSegmentationFailed indicates a segmentation run could not produce any
// usable segment.
var ErrSegmentationFailed = errors.New("media segmentation failed")
