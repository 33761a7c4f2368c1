package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"github.com/xhad/pdfembed/internal/models"
	"github.com/xhad/pdfembed/internal/types"
	"github.com/xhad/pdfembed/pkg/config"
	"github.com/xhad/pdfembed/pkg/extractor"
	"github.com/xhad/pdfembed/pkg/fetcher"
	"github.com/xhad/pdfembed/pkg/llm"
	"github.com/xhad/pdfembed/pkg/memory"
	"github.com/xhad/pdfembed/pkg/pipeline"
	"github.com/xhad/pdfembed/pkg/processor"
	"github.com/xhad/pdfembed/pkg/retry"
	"github.com/xhad/pdfembed/pkg/runner"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	// Documents are processed one at a time; keep the runtime on one core.
	runtime.GOMAXPROCS(1)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the CLI and returns the process exit code. Only the final
// result is ever written to stdout.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	code := exitOK

	app := &cli.App{
		Name:      "pdfembed",
		Usage:     "Download PDF documents and emit passage embeddings as JSON",
		ArgsUsage: "<job.json>",
		Writer:    stderr,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML config file",
				EnvVars: []string{"PDFEMBED_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.BoolFlag{
				Name:  "no-progress",
				Usage: "Disable the progress bar",
			},
		},
		Before: func(c *cli.Context) error {
			return setupLogger(c, stderr)
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				cli.ShowAppHelp(c)
				code = exitUsage
				return nil
			}
			code = embedCommand(c, stdout, stderr)
			return nil
		},
		ExitErrHandler: func(*cli.Context, error) {},
	}

	if err := app.RunContext(ctx, args); err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}
	return code
}

func embedCommand(c *cli.Context, stdout, stderr io.Writer) int {
	ctx := c.Context
	logger := slog.Default()

	fail := func(err error) int {
		logger.Error("run failed", "err", err)
		if emitErr := runner.Emit(stdout, models.NewErrorResult(err)); emitErr != nil {
			logger.Error("failed to write error result", "err", emitErr)
		}
		return exitFailure
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("failed to load .env", "err", err)
	}

	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return fail(fmt.Errorf("failed to load config: %w", err))
	}
	if verrs := cfg.Validate(); len(verrs) > 0 {
		msgs := make([]string, len(verrs))
		for i, verr := range verrs {
			msgs[i] = verr.Error()
		}
		return fail(fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; ")))
	}

	job, err := runner.LoadJob(c.Args().First())
	if err != nil {
		return fail(err)
	}

	r, err := newRunner(cfg, c.Bool("no-progress"), stderr, logger)
	if err != nil {
		return fail(err)
	}

	result, err := r.Run(ctx, job)
	if err != nil {
		if ctx.Err() != nil {
			logger.Warn("interrupted, exiting without result", "err", err)
			return exitFailure
		}
		return fail(err)
	}

	if err := runner.Emit(stdout, result); err != nil {
		logger.Error("failed to write result", "err", err)
		return exitFailure
	}
	return exitOK
}

// newLoader builds the model loader; tests replace it to avoid a live server.
var newLoader = func(cfg *config.Config, extract types.Extractor, progress io.Writer, logger *slog.Logger) llm.Loader {
	return llm.NewOllamaLoader(llm.OllamaLoaderConfig{
		BaseURL:   cfg.Model.BaseURL,
		Model:     cfg.Model.Name,
		NumThread: cfg.Model.NumThread,
		BatchSize: cfg.Pipeline.BatchSize,
		Extractor: extract,
		Progress:  progress,
		Logger:    logger,
	})
}

func newRunner(cfg *config.Config, noProgress bool, stderr io.Writer, logger *slog.Logger) (*runner.Runner, error) {
	extract := extractor.NewWithConfig(extractor.ExtractorConfig{Logger: logger})

	progress := cfg.UI.Progress && !noProgress
	var pullProgress io.Writer
	if progress {
		pullProgress = stderr
	}

	manager := llm.NewManager(llm.ManagerConfig{
		CacheDir: cfg.Model.CacheDir,
		Loader:   newLoader(cfg, extract, pullProgress, logger),
		Logger:   logger,
	})

	fetch := fetcher.NewWithConfig(fetcher.FetcherConfig{
		MaxAttempts: cfg.Fetcher.MaxAttempts,
		RetryDelay:  cfg.Fetcher.RetryDelay,
		Timeout:     cfg.Fetcher.Timeout,
		RateLimit:   cfg.Fetcher.RateLimit,
		BufferSize:  cfg.Fetcher.BufferSize,
		UserAgent:   cfg.Fetcher.UserAgent,
		Logger:      logger,
	})

	proc := processor.NewWithConfig(processor.ProcessorConfig{
		ChunkSize:      cfg.Processor.ChunkSize,
		ChunkOverlap:   cfg.Processor.ChunkOverlap,
		MinChunkLength: cfg.Processor.MinChunkLength,
		MinTextLength:  cfg.Processor.MinTextLength,
	})

	embedRetry := &retry.Policy{
		MaxAttempts: cfg.Pipeline.EmbedAttempts,
		Backoff:     retry.Exponential(time.Second, 10*time.Second),
	}

	return runner.NewWithConfig(runner.RunnerConfig{
		Models: manager,
		NewPipeline: func(m *llm.Models) (types.Pipeline, error) {
			return pipeline.NewWithConfig(pipeline.PipelineConfig{
				Fetcher:    fetch,
				Extractor:  m.Extractor,
				Embedder:   m.Embedder,
				Processor:  proc,
				BatchSize:  cfg.Pipeline.BatchSize,
				ScratchDir: cfg.Pipeline.ScratchDir,
				Retry:      embedRetry,
				Logger:     logger,
			})
		},
		Reclaimer: memory.NewWithConfig(memory.ReclaimerConfig{
			Every:      cfg.Pipeline.ReclaimEvery,
			LimitBytes: uint64(cfg.Pipeline.MemoryLimitMB) << 20,
			Logger:     logger,
		}),
		Progress: progress,
		Stderr:   stderr,
		Logger:   logger,
	})
}

func setupLogger(c *cli.Context, w io.Writer) error {
	var level slog.Level
	switch strings.ToLower(c.String("log-level")) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", c.String("log-level"))
	}

	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return nil
}
