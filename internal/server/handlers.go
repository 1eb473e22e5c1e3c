package server

import (
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/scribeworks/scribed/internal/apierr"
	"github.com/scribeworks/scribed/internal/ffmpeg"
	"github.com/scribeworks/scribed/internal/pipeline"
	"github.com/scribeworks/scribed/internal/postprocess"
	"github.com/scribeworks/scribed/internal/transcribe"
	"github.com/scribeworks/scribed/internal/upload"
)

// handleChunk receives one multipart chunk. A missing uploadId starts a new
// session with a generated id; the client sends it back with later chunks.
func (s *Server) handleChunk(c *gin.Context) {
	uploadID := c.PostForm("uploadId")
	if uploadID == "" {
		uploadID = uuid.NewString()
	}

	indexRaw := c.PostForm("chunkIndex")
	index, err := strconv.Atoi(indexRaw)
	if err != nil {
		s.writeError(c, http.StatusBadRequest, "invalid_input",
			"chunkIndex must be an integer, got "+strconv.Quote(indexRaw))
		return
	}

	fileHeader, err := c.FormFile("chunk")
	if err != nil {
		s.writeError(c, http.StatusBadRequest, "invalid_input", "chunk file field is required")
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		s.fail(c, err)
		return
	}
	defer func() { _ = file.Close() }()

	if err := s.assembler.ReceiveChunk(uploadID, index, file); err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"uploadId":   uploadID,
		"chunkIndex": index,
	})
}

// handleComplete assembles a finished chunked upload into one file.
func (s *Server) handleComplete(c *gin.Context) {
	var req struct {
		UploadID    string `json:"uploadId" binding:"required"`
		TotalChunks int    `json:"totalChunks" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}

	path, size, err := s.runner.AssembleUpload(req.UploadID, req.TotalChunks)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"filePath": path,
		"size":     size,
	})
}

// handleTranscribe runs the full pipeline on a previously assembled file.
// Only paths inside the scratch root are accepted.
func (s *Server) handleTranscribe(c *gin.Context) {
	var req struct {
		FilePath string `json:"filePath" binding:"required"`
		Language string `json:"language"`
		Prompt   string `json:"prompt"`
		Parallel int    `json:"parallel"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}

	clean := filepath.Clean(req.FilePath)
	if !strings.HasPrefix(clean, s.store.Root()+string(filepath.Separator)) {
		s.writeError(c, http.StatusBadRequest, "invalid_input",
			"filePath must point inside the scratch directory")
		return
	}

	text, err := s.runner.Run(c.Request.Context(), clean, pipeline.Options{
		Language: req.Language,
		Prompt:   req.Prompt,
		Parallel: req.Parallel,
	})
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"transcription": text,
	})
}

// handleSummarize condenses a finished transcript. The optional style is
// "short" or "detailed" (the default); language selects the response
// language.
func (s *Server) handleSummarize(c *gin.Context) {
	if s.post == nil {
		s.writeError(c, http.StatusServiceUnavailable, "post_processing_unavailable",
			"transcript post-processing is not configured")
		return
	}

	var req struct {
		Text     string `json:"text" binding:"required"`
		Style    string `json:"style"`
		Language string `json:"language"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}

	style, err := postprocess.ParseSummaryStyle(req.Style)
	if err != nil {
		s.writeError(c, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}

	summary, err := s.post.Summarize(c.Request.Context(), req.Text, style, req.Language)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"summary": summary,
		"style":   style.String(),
	})
}

// handleTranslate renders a finished transcript in another language.
func (s *Server) handleTranslate(c *gin.Context) {
	if s.post == nil {
		s.writeError(c, http.StatusServiceUnavailable, "post_processing_unavailable",
			"transcript post-processing is not configured")
		return
	}

	var req struct {
		Text           string `json:"text" binding:"required"`
		TargetLanguage string `json:"targetLanguage" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}

	translated, err := s.post.Translate(c.Request.Context(), req.Text, req.TargetLanguage)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"translation":    translated,
		"targetLanguage": req.TargetLanguage,
	})
}

// handleHealth reports tool resolution and the candidate model chain.
func (s *Server) handleHealth(c *gin.Context) {
	status := "ok"
	if s.ffmpegPath == "" {
		status = "degraded"
	}
	c.JSON(http.StatusOK, gin.H{
		"status": status,
		"ffmpeg": s.ffmpegPath,
		"models": s.models,
	})
}

// fail translates a pipeline error into an HTTP response.
func (s *Server) fail(c *gin.Context, err error) {
	status, kind := classify(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", zap.String("kind", kind), zap.Error(err))
	} else {
		s.log.Warn("request rejected", zap.String("kind", kind), zap.Error(err))
	}
	s.writeError(c, status, kind, err.Error())
}

func (s *Server) writeError(c *gin.Context, status int, kind, msg string) {
	c.JSON(status, gin.H{
		"error": msg,
		"kind":  kind,
	})
}

// classify maps error kinds to status codes. Unknown errors are internal.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, upload.ErrMissingChunk):
		return http.StatusConflict, "missing_chunk"
	case errors.Is(err, upload.ErrInvalidInput), errors.Is(err, upload.ErrNoChunks),
		errors.Is(err, postprocess.ErrEmptyTranscript):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, apierr.ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge, "payload_too_large"
	case errors.Is(err, postprocess.ErrTranscriptTooLong):
		return http.StatusRequestEntityTooLarge, "transcript_too_long"
	case errors.Is(err, apierr.ErrAuthFailed):
		return http.StatusInternalServerError, "auth_failed"
	case errors.Is(err, transcribe.ErrAllModelsFailed):
		return http.StatusInternalServerError, "all_models_failed"
	case errors.Is(err, ffmpeg.ErrNotFound):
		return http.StatusInternalServerError, "tool_not_found"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
