// Package pipeline orchestrates the full local flow: assemble an uploaded
// file, normalize it to canonical audio, split it when it would exceed the
// remote payload ceiling, transcribe every unit, and combine the results.
// Every scratch file the pipeline creates is released before it returns.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/scribeworks/scribed/internal/format"
	"github.com/scribeworks/scribed/internal/media"
	"github.com/scribeworks/scribed/internal/tmpstore"
	"github.com/scribeworks/scribed/internal/transcribe"
	"github.com/scribeworks/scribed/internal/upload"
)

// segmentThresholdBytes is the canonical-file size above which the audio is
// split before transcription. Kept below the remote payload ceiling so a
// single-unit plan always fits with headroom for the multipart envelope.
const segmentThresholdBytes = 18 * 1024 * 1024

// MaxRecommendedParallel is the upper limit for concurrent transcription
// requests. Higher values tend to trip provider rate limits.
const MaxRecommendedParallel = 10

// Options configures one transcription run.
type Options struct {
	// Language is an optional ISO 639-1 hint. Empty means auto-detect.
	Language string

	// Prompt provides context for domain vocabulary.
	Prompt string

	// Parallel is the number of concurrent transcription requests.
	// Values below 2 mean sequential.
	Parallel int
}

// Pipeline wires the upload assembler, the media tooling, and the remote
// transcription client into one flow.
type Pipeline struct {
	store      *tmpstore.Store
	assembler  *upload.Assembler
	prober     *media.Prober
	transcoder *media.Transcoder
	segmenter  *media.Segmenter
	client     transcribe.Transcriber
	log        *zap.Logger

	segmentDuration time.Duration
	files           fileReader
	statter         fileStatter
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithSegmentDuration sets the target segment length.
func WithSegmentDuration(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.segmentDuration = d
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(log *zap.Logger) Option {
	return func(p *Pipeline) { p.log = log }
}

// WithFileReader sets the file reader (for testing).
func WithFileReader(r fileReader) Option {
	return func(p *Pipeline) { p.files = r }
}

// WithFileStatter sets the file statter (for testing).
func WithFileStatter(s fileStatter) Option {
	return func(p *Pipeline) { p.statter = s }
}

// New creates a Pipeline from its components.
func New(
	store *tmpstore.Store,
	assembler *upload.Assembler,
	prober *media.Prober,
	transcoder *media.Transcoder,
	segmenter *media.Segmenter,
	client transcribe.Transcriber,
	opts ...Option,
) *Pipeline {
	p := &Pipeline{
		store:           store,
		assembler:       assembler,
		prober:          prober,
		transcoder:      transcoder,
		segmenter:       segmenter,
		client:          client,
		log:             zap.NewNop(),
		segmentDuration: media.DefaultSegmentDuration,
		files:           osFileReader{},
		statter:         osFileStatter{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// AssembleUpload joins a completed chunked upload into one file and returns
// its path and size.
func (p *Pipeline) AssembleUpload(uploadID string, totalChunks int) (string, int64, error) {
	path, size, err := p.assembler.Complete(uploadID, totalChunks)
	if err != nil {
		return "", 0, err
	}
	p.log.Info("upload assembled",
		zap.String("upload_id", uploadID),
		zap.Int("chunks", totalChunks),
		zap.String("size", format.Size(size)))
	return path, size, nil
}

// TranscodeAndSegment normalizes inputPath into canonical audio and decides
// how it travels to the transcription API: whole when the compressed file
// fits the payload ceiling with headroom, split into segments otherwise.
// The returned plan owns every file it references; the caller must invoke
// Plan.Cleanup. On error, nothing is left behind.
func (p *Pipeline) TranscodeAndSegment(ctx context.Context, inputPath string) (*Plan, error) {
	if _, err := p.store.EnsureDir("converted"); err != nil {
		return nil, err
	}
	base := tmpstore.Sanitize(filepath.Base(inputPath))
	canonical := p.store.AllocatePath(base+".mp3", "converted")

	if err := p.transcoder.Convert(ctx, inputPath, canonical, media.CanonicalBitrateKbps); err != nil {
		return nil, err
	}

	info, err := p.statter.Stat(canonical)
	if err != nil {
		_ = p.store.Release(canonical)
		return nil, fmt.Errorf("stat converted file: %w", err)
	}

	if info.Size() <= segmentThresholdBytes {
		total, err := p.prober.Duration(ctx, canonical)
		if err != nil {
			_ = p.store.Release(canonical)
			return nil, err
		}
		p.log.Info("transcoded under payload ceiling",
			zap.String("path", canonical),
			zap.String("size", format.Size(info.Size())),
			zap.String("duration", format.Duration(total)))
		return &Plan{
			Units:         []Unit{{Path: canonical, Start: 0, End: total}},
			CanonicalPath: canonical,
			TotalDuration: total,
			release:       p.store.Release,
		}, nil
	}

	res, err := p.segmenter.Segment(ctx, canonical, p.segmentDuration)
	if err != nil {
		_ = p.store.Release(canonical)
		return nil, err
	}

	units := make([]Unit, len(res.Segments))
	for i, seg := range res.Segments {
		units[i] = Unit{Path: seg.Path, Start: seg.Start, End: seg.End}
	}
	p.log.Info("transcoded and segmented",
		zap.String("size", format.Size(info.Size())),
		zap.String("duration", format.Duration(res.TotalDuration)),
		zap.Int("segments", len(units)))
	return &Plan{
		Units:         units,
		CanonicalPath: canonical,
		TotalDuration: res.TotalDuration,
		Segmented:     true,
		release:       p.store.Release,
	}, nil
}

// Transcribe sends every unit of the plan to the remote API and returns the
// combined transcript. Units run sequentially unless opts.Parallel asks for
// bounded concurrency; either way the output preserves timeline order.
func (p *Pipeline) Transcribe(ctx context.Context, plan *Plan, opts Options) (string, error) {
	if plan == nil || len(plan.Units) == 0 {
		return "", errors.New("transcription plan has no units")
	}

	results := make([]UnitResult, len(plan.Units))
	transcribeUnit := func(ctx context.Context, i int) error {
		u := plan.Units[i]
		audio, err := p.files.ReadFile(u.Path)
		if err != nil {
			return fmt.Errorf("read unit %d: %w", i, err)
		}
		text, err := p.client.Transcribe(ctx, transcribe.Request{
			Audio:    audio,
			Filename: filepath.Base(u.Path),
			Language: opts.Language,
			Prompt:   opts.Prompt,
		})
		if err != nil {
			return fmt.Errorf("unit %d (%s): %w", i, filepath.Base(u.Path), err)
		}
		results[i] = UnitResult{Start: u.Start, Text: text}
		p.log.Debug("unit transcribed",
			zap.Int("unit", i),
			zap.String("start", format.Duration(u.Start)))
		return nil
	}

	if opts.Parallel > 1 && len(plan.Units) > 1 {
		if err := p.transcribeParallel(ctx, plan, opts.Parallel, transcribeUnit); err != nil {
			return "", err
		}
	} else {
		for i := range plan.Units {
			if err := transcribeUnit(ctx, i); err != nil {
				return "", err
			}
		}
	}

	if !plan.Segmented {
		return strings.TrimSpace(results[0].Text), nil
	}
	return CombineResults(results), nil
}

// transcribeParallel runs the unit workers with a bounded semaphore.
// Results land in pre-sized slots, so completion order never changes
// output order.
func (p *Pipeline) transcribeParallel(ctx context.Context, plan *Plan, parallel int, work func(context.Context, int) error) error {
	if parallel > MaxRecommendedParallel {
		parallel = MaxRecommendedParallel
	}
	sem := make(chan struct{}, parallel)

	g, ctx := errgroup.WithContext(ctx)
	for i := range plan.Units {
		i := i
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return ctx.Err()
			}
			defer func() { <-sem }()
			return work(ctx, i)
		})
	}
	return g.Wait()
}

// Run executes the full local flow for an already assembled file. All
// scratch files are released before it returns, on success and failure.
// The input file itself is also consumed.
func (p *Pipeline) Run(ctx context.Context, inputPath string, opts Options) (string, error) {
	defer func() { _ = p.store.Release(inputPath) }()

	plan, err := p.TranscodeAndSegment(ctx, inputPath)
	if err != nil {
		return "", err
	}
	defer plan.Cleanup()

	text, err := p.Transcribe(ctx, plan, opts)
	if err != nil {
		return "", err
	}

	p.log.Info("transcription complete",
		zap.String("input", filepath.Base(inputPath)),
		zap.String("duration", format.Duration(plan.TotalDuration)),
		zap.Int("units", len(plan.Units)))
	return text, nil
}
