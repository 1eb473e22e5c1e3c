package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/scribeworks/scribed/internal/apierr"
	"github.com/scribeworks/scribed/internal/config"
	"github.com/scribeworks/scribed/internal/ffmpeg"
	"github.com/scribeworks/scribed/internal/logging"
	"github.com/scribeworks/scribed/internal/media"
	"github.com/scribeworks/scribed/internal/pipeline"
	"github.com/scribeworks/scribed/internal/postprocess"
	"github.com/scribeworks/scribed/internal/server"
	"github.com/scribeworks/scribed/internal/tmpstore"
	"github.com/scribeworks/scribed/internal/transcribe"
	"github.com/scribeworks/scribed/internal/upload"
)

// Injected at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

// Exit codes.
const (
	ExitOK            = 0
	ExitGeneral       = 1
	ExitSetup         = 3
	ExitTranscription = 5
	ExitInterrupt     = 130
)

func main() {
	// Load .env file if present (ignore error if missing).
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var verbose bool

	rootCmd := &cobra.Command{
		Use:     "scribed",
		Short:   "Upload, normalize, and transcribe audio and video",
		Version: fmt.Sprintf("%s (commit: %s)", version, commit),
		// Silence Cobra's default error/usage printing; we handle it ourselves.
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(serveCmd(&verbose))
	rootCmd.AddCommand(transcribeCmd(&verbose))

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

// components holds everything a command needs, wired from config.
type components struct {
	cfg        config.Config
	log        *zap.Logger
	store      *tmpstore.Store
	assembler  *upload.Assembler
	client     *transcribe.Client
	pipe       *pipeline.Pipeline
	post       *postprocess.OpenAIProcessor
	ffmpegPath string
}

// wire resolves the tool, builds the store, and assembles the pipeline.
func wire(verbose bool) (*components, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ffmpegPath, err := ffmpeg.Resolve(cfg.FFmpegPath)
	if err != nil {
		return nil, err
	}

	log := logging.New(verbose)
	store := tmpstore.New(cfg.TmpRoot)
	assembler := upload.New(store)

	prober, err := media.NewProber(ffmpegPath)
	if err != nil {
		return nil, err
	}
	transcoder, err := media.NewTranscoder(ffmpegPath)
	if err != nil {
		return nil, err
	}
	segmenter := media.NewSegmenter(prober, transcoder, store)

	var clientOpts []transcribe.ClientOption
	if len(cfg.Models) > 0 {
		clientOpts = append(clientOpts, transcribe.WithModels(cfg.Models))
	}
	client := transcribe.NewClient(cfg.OpenAIKey, clientOpts...)

	var postOpts []postprocess.ProcessorOption
	if cfg.ChatModel != "" {
		postOpts = append(postOpts, postprocess.WithModel(cfg.ChatModel))
	}
	post := postprocess.NewOpenAIProcessor(cfg.OpenAIKey, postOpts...)

	pipe := pipeline.New(store, assembler, prober, transcoder, segmenter, client,
		pipeline.WithLogger(log),
		pipeline.WithSegmentDuration(time.Duration(cfg.SegmentSeconds)*time.Second),
	)

	return &components{
		cfg:        cfg,
		log:        log,
		store:      store,
		assembler:  assembler,
		client:     client,
		pipe:       pipe,
		post:       post,
		ffmpegPath: ffmpegPath,
	}, nil
}

// serveCmd runs the HTTP daemon.
func serveCmd(verbose *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP transcription service",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := wire(*verbose)
			if err != nil {
				return err
			}
			defer func() { _ = c.log.Sync() }()

			srv := server.New(c.store, c.assembler, c.pipe,
				server.WithLogger(c.log),
				server.WithFFmpegPath(c.ffmpegPath),
				server.WithModels(c.client.Models()),
				server.WithPostProcessor(c.post),
			)

			gin.SetMode(gin.ReleaseMode)
			engine := gin.New()
			engine.Use(gin.Recovery())
			srv.RegisterRoutes(engine)

			httpSrv := &http.Server{
				Addr:              c.cfg.Addr,
				Handler:           engine,
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx := cmd.Context()
			go srv.RunSweeper(ctx)
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				_ = httpSrv.Shutdown(shutdownCtx)
			}()

			c.log.Info("listening",
				zap.String("addr", c.cfg.Addr),
				zap.String("ffmpeg", c.ffmpegPath),
				zap.Strings("models", c.client.Models()))

			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			if errors.Is(ctx.Err(), context.Canceled) {
				return context.Canceled
			}
			return nil
		},
	}
}

// transcribeCmd runs the pipeline once on a local file and prints the
// transcript to stdout, optionally post-processed into a summary or a
// translation.
func transcribeCmd(verbose *bool) *cobra.Command {
	var language, prompt, summary, translateTo string
	var parallel int

	cmd := &cobra.Command{
		Use:   "transcribe <file>",
		Short: "Transcribe a local audio or video file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := wire(*verbose)
			if err != nil {
				return err
			}
			defer func() { _ = c.log.Sync() }()

			input := args[0]
			if _, err := os.Stat(input); err != nil {
				return fmt.Errorf("input file: %w", err)
			}

			// Work on a copy so the pipeline can consume its input without
			// touching the user's file.
			if _, err := c.store.EnsureDir("uploads"); err != nil {
				return err
			}
			scratch := c.store.AllocatePath(input, "uploads")
			if err := copyFile(input, scratch); err != nil {
				return err
			}

			text, err := c.pipe.Run(cmd.Context(), scratch, pipeline.Options{
				Language: language,
				Prompt:   prompt,
				Parallel: parallel,
			})
			if err != nil {
				return err
			}

			if summary != "" {
				style, err := postprocess.ParseSummaryStyle(summary)
				if err != nil {
					return err
				}
				text, err = c.post.Summarize(cmd.Context(), text, style, language)
				if err != nil {
					return err
				}
			}
			if translateTo != "" {
				text, err = c.post.Translate(cmd.Context(), text, translateTo)
				if err != nil {
					return err
				}
			}

			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}

	cmd.Flags().StringVarP(&language, "language", "l", "", "ISO 639-1 language hint (default auto-detect)")
	cmd.Flags().StringVarP(&prompt, "prompt", "p", "", "context prompt for domain vocabulary")
	cmd.Flags().IntVarP(&parallel, "parallel", "n", 1, "concurrent transcription requests")
	cmd.Flags().StringVarP(&summary, "summary", "s", "", "summarize the transcript (short or detailed)")
	cmd.Flags().StringVarP(&translateTo, "translate", "t", "", "translate the transcript to an ISO 639-1 language")
	return cmd
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src) // #nosec G304 -- src is the user's CLI argument
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o600)
}

// exitCode maps errors to exit codes.
func exitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	if errors.Is(err, context.Canceled) {
		return ExitInterrupt
	}
	if errors.Is(err, ffmpeg.ErrNotFound) || errors.Is(err, config.ErrMissingAPIKey) {
		return ExitSetup
	}
	if errors.Is(err, apierr.ErrAuthFailed) || errors.Is(err, apierr.ErrQuotaExceeded) ||
		errors.Is(err, apierr.ErrRateLimit) || errors.Is(err, apierr.ErrTimeout) ||
		errors.Is(err, apierr.ErrPayloadTooLarge) ||
		errors.Is(err, postprocess.ErrTranscriptTooLong) ||
		errors.Is(err, transcribe.ErrAllModelsFailed) {
		return ExitTranscription
	}
	return ExitGeneral
}
