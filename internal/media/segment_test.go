package media_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/scribeworks/scribed/internal/media"
	"github.com/scribeworks/scribed/internal/tmpstore"
)

// segmenterFixture wires a Segmenter whose probe and extract subprocesses
// are both served by one mock runner. Probe calls are recognized by the
// null muxer argument, extract calls by the seek flag.
type segmenterFixture struct {
	runner  *mockCommandRunner
	statter *mockFileStatter
	remover *mockFileRemover
	store   *tmpstore.Store
	seg     *media.Segmenter
	warns   []string
}

func newSegmenterFixture(t *testing.T, probeDiag []byte, segmentSize int64) *segmenterFixture {
	t.Helper()

	f := &segmenterFixture{
		statter: &mockFileStatter{sizes: map[string]int64{}},
		remover: &mockFileRemover{},
	}
	f.runner = &mockCommandRunner{
		outputFunc: func(ctx context.Context, name string, args []string) ([]byte, error) {
			if contains(args, "null") {
				return probeDiag, errors.New("exit status 1")
			}
			// Extract writes a segment; record its size for the stat check.
			out := args[len(args)-1]
			f.statter.sizes[out] = segmentSize
			return nil, nil
		},
	}

	prober, err := media.NewProber("/usr/bin/ffmpeg", media.WithProberCommandRunner(f.runner))
	if err != nil {
		t.Fatal(err)
	}
	tc, err := media.NewTranscoder("/usr/bin/ffmpeg",
		media.WithTranscoderCommandRunner(f.runner),
		media.WithTranscoderFileStatter(f.statter),
		media.WithTranscoderFileRemover(f.remover),
	)
	if err != nil {
		t.Fatal(err)
	}

	f.store = tmpstore.New(t.TempDir())
	f.seg = media.NewSegmenter(prober, tc, f.store,
		media.WithSegmenterWarnFunc(func(msg string) { f.warns = append(f.warns, msg) }),
		media.WithSegmenterFileStatter(f.statter),
		media.WithSegmenterFileRemover(f.remover),
		media.WithSegmenterClock(func() time.Time { return time.UnixMilli(1700000000000) }),
	)
	return f
}

// extractCalls returns the mock calls that were segment extractions.
func (f *segmenterFixture) extractCalls() []mockCall {
	var out []mockCall
	for _, c := range f.runner.calls {
		if contains(c.args, "-ss") {
			out = append(out, c)
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// TestSegmenter_Segment - slicing a 10:20 file into 5-minute segments
// ---------------------------------------------------------------------------

func TestSegmenter_Segment(t *testing.T) {
	t.Parallel()

	// 620 seconds at 300-second segments: two full slices plus a 20s tail.
	f := newSegmenterFixture(t, probeOutput(0, 10, 20, 0), 5000)

	res, err := f.seg.Segment(context.Background(), "source.mp3", 5*time.Minute)
	if err != nil {
		t.Fatalf("Segment() error: %v", err)
	}

	if res.TotalDuration != 620*time.Second {
		t.Errorf("TotalDuration = %v, want 620s", res.TotalDuration)
	}
	if res.SourcePath != "source.mp3" {
		t.Errorf("SourcePath = %q", res.SourcePath)
	}
	if len(res.Segments) != 3 {
		t.Fatalf("got %d segments, want 3", len(res.Segments))
	}

	wantBounds := []struct{ start, end time.Duration }{
		{0, 300 * time.Second},
		{300 * time.Second, 600 * time.Second},
		{600 * time.Second, 620 * time.Second},
	}
	for i, seg := range res.Segments {
		if seg.Index != i {
			t.Errorf("segment %d: Index = %d", i, seg.Index)
		}
		if seg.Start != wantBounds[i].start || seg.End != wantBounds[i].end {
			t.Errorf("segment %d: bounds [%v, %v), want [%v, %v)",
				i, seg.Start, seg.End, wantBounds[i].start, wantBounds[i].end)
		}
		if want := fmt.Sprintf("segment_%03d.mp3", i); filepath.Base(seg.Path) != want {
			t.Errorf("segment %d: basename %q, want %q", i, filepath.Base(seg.Path), want)
		}
		if !strings.HasPrefix(seg.Path, f.store.Root()) {
			t.Errorf("segment %d: path %q escapes scratch root", i, seg.Path)
		}
	}

	// The tail extraction asks for exactly the remaining 20 seconds.
	extracts := f.extractCalls()
	if len(extracts) != 3 {
		t.Fatalf("got %d extract calls, want 3", len(extracts))
	}
	last := extracts[2].args
	if !contains(last, "600.000") || !contains(last, "20.000") {
		t.Errorf("tail extract args = %v, want -ss 600.000 -t 20.000", last)
	}
	if !contains(last, "128k") {
		t.Errorf("extract args missing segment bitrate: %v", last)
	}
}

func TestSegmenter_Segment_TrailingSliverDropped(t *testing.T) {
	t.Parallel()

	// 300.5 seconds: the half-second remainder is omitted, never padded.
	f := newSegmenterFixture(t, probeOutput(0, 5, 0, 50), 5000)

	res, err := f.seg.Segment(context.Background(), "source.mp3", 5*time.Minute)
	if err != nil {
		t.Fatalf("Segment() error: %v", err)
	}
	if len(res.Segments) != 1 {
		t.Fatalf("got %d segments, want 1", len(res.Segments))
	}
	if got := res.Segments[0].Duration(); got != 5*time.Minute {
		t.Errorf("segment duration = %v, want 5m", got)
	}
	if n := len(f.extractCalls()); n != 1 {
		t.Errorf("got %d extract calls, want 1 (sliver must not be extracted)", n)
	}
}

func TestSegmenter_Segment_ShortFileSingleSegment(t *testing.T) {
	t.Parallel()

	f := newSegmenterFixture(t, probeOutput(0, 1, 30, 0), 5000)

	res, err := f.seg.Segment(context.Background(), "source.mp3", 5*time.Minute)
	if err != nil {
		t.Fatalf("Segment() error: %v", err)
	}
	if len(res.Segments) != 1 {
		t.Fatalf("got %d segments, want 1", len(res.Segments))
	}
	if res.Segments[0].End != 90*time.Second {
		t.Errorf("End = %v, want 90s", res.Segments[0].End)
	}
}

// ---------------------------------------------------------------------------
// TestSegmenter_Segment_UndersizedDiscarded
// ---------------------------------------------------------------------------

func TestSegmenter_Segment_UndersizedDiscarded(t *testing.T) {
	t.Parallel()

	f := newSegmenterFixture(t, probeOutput(0, 10, 0, 0), 5000)

	// The middle segment comes out as a stub file.
	extractIndex := 0
	base := f.runner.outputFunc
	f.runner.outputFunc = func(ctx context.Context, name string, args []string) ([]byte, error) {
		out, err := base(ctx, name, args)
		if contains(args, "-ss") {
			if extractIndex == 1 {
				f.statter.sizes[args[len(args)-1]] = 50
			}
			extractIndex++
		}
		return out, err
	}

	res, err := f.seg.Segment(context.Background(), "source.mp3", 5*time.Minute)
	if err != nil {
		t.Fatalf("Segment() error: %v", err)
	}

	// The broken slice is dropped and removed; the rest of the run survives.
	if len(res.Segments) != 1 {
		t.Fatalf("got %d segments, want 1", len(res.Segments))
	}
	if res.Segments[0].Index != 0 {
		t.Errorf("surviving segment Index = %d, want 0", res.Segments[0].Index)
	}
	if len(f.remover.removed) != 1 || filepath.Base(f.remover.removed[0]) != "segment_001.mp3" {
		t.Errorf("removed = %v, want the undersized segment only", f.remover.removed)
	}
	if len(f.warns) != 1 || !strings.Contains(f.warns[0], "too small") {
		t.Errorf("warns = %v, want one undersized warning", f.warns)
	}
}

func TestSegmenter_Segment_AllDiscarded(t *testing.T) {
	t.Parallel()

	f := newSegmenterFixture(t, probeOutput(0, 10, 0, 0), 50)

	_, err := f.seg.Segment(context.Background(), "source.mp3", 5*time.Minute)
	if !errors.Is(err, media.ErrSegmentationFailed) {
		t.Errorf("Segment() error = %v, want ErrSegmentationFailed", err)
	}
}

// ---------------------------------------------------------------------------
// TestSegmenter_Segment_ExtractFailureCleansUp
// ---------------------------------------------------------------------------

func TestSegmenter_Segment_ExtractFailureCleansUp(t *testing.T) {
	t.Parallel()

	f := newSegmenterFixture(t, probeOutput(0, 15, 0, 0), 5000)

	extractIndex := 0
	base := f.runner.outputFunc
	f.runner.outputFunc = func(ctx context.Context, name string, args []string) ([]byte, error) {
		if contains(args, "-ss") {
			if extractIndex == 2 {
				return []byte("disk full"), errors.New("exit status 1")
			}
			extractIndex++
		}
		return base(ctx, name, args)
	}

	_, err := f.seg.Segment(context.Background(), "source.mp3", 5*time.Minute)
	if !errors.Is(err, media.ErrConversionFailed) {
		t.Fatalf("Segment() error = %v, want ErrConversionFailed", err)
	}

	// The two segments produced before the failure are removed.
	if len(f.remover.removed) != 2 {
		t.Fatalf("removed %d files, want 2: %v", len(f.remover.removed), f.remover.removed)
	}
	for i, path := range f.remover.removed {
		if want := fmt.Sprintf("segment_%03d.mp3", i); filepath.Base(path) != want {
			t.Errorf("removed[%d] = %q, want %q", i, filepath.Base(path), want)
		}
	}
}

// ---------------------------------------------------------------------------
// TestSegmenter_EstimateCompressedSizeMB
// ---------------------------------------------------------------------------

func TestSegmenter_EstimateCompressedSizeMB(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		diag        []byte
		bitrateKbps int
		want        float64
	}{
		{
			// 128 kbps * 1000 s / 8 / 1024 = 15.625 MB.
			name:        "segment bitrate",
			diag:        probeOutput(0, 16, 40, 0),
			bitrateKbps: 128,
			want:        15.625,
		},
		{
			// 64 kbps * 3600 s / 8 / 1024 = 28.125 MB.
			name:        "canonical bitrate over an hour",
			diag:        probeOutput(1, 0, 0, 0),
			bitrateKbps: 64,
			want:        28.125,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newSegmenterFixture(t, tt.diag, 5000)
			got, err := f.seg.EstimateCompressedSizeMB(context.Background(), "source.mp3", tt.bitrateKbps)
			if err != nil {
				t.Fatalf("EstimateCompressedSizeMB() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("EstimateCompressedSizeMB() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSegmenter_Segment_ProbeFailure(t *testing.T) {
	t.Parallel()

	f := newSegmenterFixture(t, []byte("no duration here"), 5000)

	_, err := f.seg.Segment(context.Background(), "source.mp3", 5*time.Minute)
	if !errors.Is(err, media.ErrProbeFailed) {
		t.Errorf("Segment() error = %v, want ErrProbeFailed", err)
	}
	if n := len(f.extractCalls()); n != 0 {
		t.Errorf("got %d extract calls after failed probe, want 0", n)
	}
}
