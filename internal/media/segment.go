package media

import (
	"context"
	"fmt"
	"os"
	"path"
	"time"

	"github.com/scribeworks/scribed/internal/format"
	"github.com/scribeworks/scribed/internal/tmpstore"
)

// Segmentation parameters.
const (
	// DefaultSegmentDuration is the target length of one segment.
	DefaultSegmentDuration = 5 * time.Minute

	// minSegmentDuration drops trailing slivers: a final partial segment
	// shorter than this is omitted, never padded.
	minSegmentDuration = time.Second

	// minSegmentBytes is the smallest segment file accepted as valid.
	// Smaller files are discarded with a warning rather than aborting
	// the whole run.
	minSegmentBytes = 100
)

// Segment is one time-bounded slice of a canonical audio file. The caller
// owns the file at Path and must release it after use.
type Segment struct {
	Path  string        // Absolute path to the encoded segment.
	Index int           // Zero-based position in the source timeline.
	Start time.Duration // Start timestamp in the source audio.
	End   time.Duration // End timestamp in the source audio.
}

// Duration returns the length of this segment.
func (s Segment) Duration() time.Duration {
	return s.End - s.Start
}

// String returns a human-readable representation for logging.
func (s Segment) String() string {
	return fmt.Sprintf("segment %d: %s-%s",
		s.Index,
		format.Duration(s.Start),
		format.Duration(s.End))
}

// SegmentationResult aggregates one full segmentation run. Immutable once
// returned.
type SegmentationResult struct {
	Segments      []Segment
	TotalDuration time.Duration
	SourcePath    string
}

// WarnFunc is a callback for warning messages during segmentation.
// Set to nil to suppress warnings, or provide a custom handler.
type WarnFunc func(msg string)

// defaultWarnFunc writes warnings to stderr.
func defaultWarnFunc(msg string) {
	fmt.Fprintln(os.Stderr, msg)
}

// Segmenter splits canonical audio into fixed-duration segments by invoking
// the transcoder with time offsets. Segments are produced strictly one at a
// time so only one ffmpeg subprocess runs per segmentation.
type Segmenter struct {
	prober     *Prober
	transcoder *Transcoder
	store      *tmpstore.Store
	warn       WarnFunc
	statter    fileStatter
	files      fileRemover
	now        func() time.Time
}

// SegmenterOption configures a Segmenter.
type SegmenterOption func(*Segmenter)

// WithSegmenterWarnFunc sets a callback for warning messages.
func WithSegmenterWarnFunc(fn WarnFunc) SegmenterOption {
	return func(s *Segmenter) { s.warn = fn }
}

// WithSegmenterFileStatter sets the file statter (for testing).
func WithSegmenterFileStatter(st fileStatter) SegmenterOption {
	return func(s *Segmenter) { s.statter = st }
}

// WithSegmenterFileRemover sets the file remover (for testing).
func WithSegmenterFileRemover(f fileRemover) SegmenterOption {
	return func(s *Segmenter) { s.files = f }
}

// WithSegmenterClock sets the time source for segment directory names
// (for testing).
func WithSegmenterClock(now func() time.Time) SegmenterOption {
	return func(s *Segmenter) { s.now = now }
}

// NewSegmenter creates a Segmenter from a prober, transcoder, and scratch
// store.
func NewSegmenter(prober *Prober, transcoder *Transcoder, store *tmpstore.Store, opts ...SegmenterOption) *Segmenter {
	s := &Segmenter{
		prober:     prober,
		transcoder: transcoder,
		store:      store,
		warn:       defaultWarnFunc,
		statter:    osFileStatter{},
		files:      osFileRemover{},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Segment splits filePath into consecutive slices of at most
// segmentDuration. A trailing slice shorter than one second is dropped.
// Undersized segment files are discarded with a warning; the run aborts
// only when every segment is unusable.
func (s *Segmenter) Segment(ctx context.Context, filePath string, segmentDuration time.Duration) (SegmentationResult, error) {
	if segmentDuration <= 0 {
		segmentDuration = DefaultSegmentDuration
	}

	total, err := s.prober.Duration(ctx, filePath)
	if err != nil {
		return SegmentationResult{}, fmt.Errorf("probe before segmentation: %w", err)
	}

	subdir := path.Join("segments", fmt.Sprintf("%d", s.now().UnixMilli()))
	if _, err := s.store.EnsureDir(subdir); err != nil {
		return SegmentationResult{}, err
	}

	n := int((total + segmentDuration - 1) / segmentDuration) // ceiling division
	segments := make([]Segment, 0, n)

	for i := 0; i < n; i++ {
		start := time.Duration(i) * segmentDuration
		end := min(start+segmentDuration, total)
		dur := end - start

		// Trailing sliver: omit, never pad.
		if dur < minSegmentDuration {
			continue
		}

		segPath := s.store.AllocatePathExact(fmt.Sprintf("segment_%03d.mp3", i), subdir)
		if err := s.transcoder.Extract(ctx, filePath, segPath, start, dur, SegmentBitrateKbps); err != nil {
			cleanupFiles(s.files, segments)
			return SegmentationResult{}, err
		}

		info, err := s.statter.Stat(segPath)
		if err != nil || info.Size() <= minSegmentBytes {
			// Discard, warn, keep going: one broken slice should not sink
			// the rest of the file.
			_ = s.files.Remove(segPath)
			if s.warn != nil {
				s.warn(fmt.Sprintf("Warning: segment %d is too small, discarding", i))
			}
			continue
		}

		segments = append(segments, Segment{
			Path:  segPath,
			Index: i,
			Start: start,
			End:   end,
		})
	}

	if n > 0 && len(segments) == 0 {
		return SegmentationResult{}, fmt.Errorf("%w: all %d segments were discarded", ErrSegmentationFailed, n)
	}

	return SegmentationResult{
		Segments:      segments,
		TotalDuration: total,
		SourcePath:    filePath,
	}, nil
}

// EstimateCompressedSizeMB predicts the size of filePath after compression
// at the given bitrate. Pure arithmetic from the probed duration; used for
// pre-flight sizing decisions only.
func (s *Segmenter) EstimateCompressedSizeMB(ctx context.Context, filePath string, bitrateKbps int) (float64, error) {
	total, err := s.prober.Duration(ctx, filePath)
	if err != nil {
		return 0, err
	}
	// kbps * seconds / 8 = KB, / 1024 = MB.
	return float64(bitrateKbps) * total.Seconds() / 8 / 1024, nil
}

// CleanupSegments removes every segment file. Best-effort: files that are
// already gone are ignored.
func CleanupSegments(segments []Segment) {
	cleanupFiles(osFileRemover{}, segments)
}

func cleanupFiles(files fileRemover, segments []Segment) {
	for _, seg := range segments {
		_ = files.Remove(seg.Path)
	}
}
