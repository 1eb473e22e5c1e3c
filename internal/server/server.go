// Package server exposes the upload and transcription flow over HTTP.
// Handlers stay thin: they bind, validate, call into the pipeline, and map
// error kinds to status codes.
package server

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/scribeworks/scribed/internal/pipeline"
	"github.com/scribeworks/scribed/internal/postprocess"
	"github.com/scribeworks/scribed/internal/tmpstore"
	"github.com/scribeworks/scribed/internal/upload"
)

// Stale upload housekeeping defaults.
const (
	DefaultSweepMaxAge   = 24 * time.Hour
	DefaultSweepInterval = time.Hour
)

// pipelineRunner is the slice of the pipeline the handlers need.
type pipelineRunner interface {
	AssembleUpload(uploadID string, totalChunks int) (string, int64, error)
	Run(ctx context.Context, inputPath string, opts pipeline.Options) (string, error)
}

// Compile-time interface compliance check.
var _ pipelineRunner = (*pipeline.Pipeline)(nil)

// Server wires HTTP routes to the upload assembler, the transcription
// pipeline, and the transcript post-processor.
type Server struct {
	store     *tmpstore.Store
	assembler *upload.Assembler
	runner    pipelineRunner
	post      postprocess.Processor
	log       *zap.Logger

	ffmpegPath    string
	models        []string
	sweepMaxAge   time.Duration
	sweepInterval time.Duration
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithLogger sets the structured logger.
func WithLogger(log *zap.Logger) ServerOption {
	return func(s *Server) { s.log = log }
}

// WithPostProcessor enables the summarize and translate routes.
func WithPostProcessor(p postprocess.Processor) ServerOption {
	return func(s *Server) { s.post = p }
}

// WithFFmpegPath records the resolved tool path for the health report.
func WithFFmpegPath(path string) ServerOption {
	return func(s *Server) { s.ffmpegPath = path }
}

// WithModels records the candidate model chain for the health report.
func WithModels(models []string) ServerOption {
	return func(s *Server) { s.models = models }
}

// WithSweepPolicy sets how old an abandoned upload must be before the
// sweeper removes it, and how often the sweeper runs.
func WithSweepPolicy(maxAge, interval time.Duration) ServerOption {
	return func(s *Server) {
		if maxAge > 0 {
			s.sweepMaxAge = maxAge
		}
		if interval > 0 {
			s.sweepInterval = interval
		}
	}
}

// New creates a Server over its collaborators.
func New(store *tmpstore.Store, assembler *upload.Assembler, runner pipelineRunner, opts ...ServerOption) *Server {
	s := &Server{
		store:         store,
		assembler:     assembler,
		runner:        runner,
		log:           zap.NewNop(),
		sweepMaxAge:   DefaultSweepMaxAge,
		sweepInterval: DefaultSweepInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterRoutes attaches every API route to the engine.
func (s *Server) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api")
	{
		api.POST("/uploads/chunk", s.handleChunk)
		api.POST("/uploads/complete", s.handleComplete)
		api.POST("/transcribe", s.handleTranscribe)
		api.POST("/summarize", s.handleSummarize)
		api.POST("/translate", s.handleTranslate)
		api.GET("/health", s.handleHealth)
	}
}

// RunSweeper periodically removes abandoned upload sessions until ctx is
// cancelled. Meant to run in its own goroutine.
func (s *Server) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			swept, err := s.assembler.SweepStale(s.sweepMaxAge)
			if err != nil {
				s.log.Warn("stale upload sweep failed", zap.Error(err))
				continue
			}
			if swept > 0 {
				s.log.Info("swept stale uploads", zap.Int("count", swept))
			}
		}
	}
}
