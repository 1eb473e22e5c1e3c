package pipeline

import (
	"strings"
	"time"

	"github.com/scribeworks/scribed/internal/format"
)

// Unit is one transcription payload in a Plan: either the whole canonical
// file or a single segment of it.
type Unit struct {
	Path  string
	Start time.Duration
	End   time.Duration
}

// Plan is the output of TranscodeAndSegment: the ordered units to send for
// transcription. The plan owns every scratch file it references; callers
// must invoke Cleanup when done, on success and on failure.
type Plan struct {
	Units         []Unit
	CanonicalPath string
	TotalDuration time.Duration
	Segmented     bool

	release func(path string) error
}

// Cleanup removes the canonical file and every segment. Safe to call more
// than once.
func (p *Plan) Cleanup() {
	if p.release == nil {
		return
	}
	for _, u := range p.Units {
		_ = p.release(u.Path)
	}
	if p.CanonicalPath != "" {
		_ = p.release(p.CanonicalPath)
	}
}

// UnitResult pairs a transcribed text with its position in the source
// timeline.
type UnitResult struct {
	Start time.Duration
	Text  string
}

// CombineResults joins per-unit transcripts into one document. Each unit
// is prefixed with its start timestamp, units separated by a blank line.
func CombineResults(results []UnitResult) string {
	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(format.Timestamp(r.Start))
		b.WriteString(" ")
		b.WriteString(strings.TrimSpace(r.Text))
	}
	return b.String()
}
