package runner

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime/debug"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/xhad/pdfembed/internal/models"
	"github.com/xhad/pdfembed/internal/types"
	"github.com/xhad/pdfembed/pkg/llm"
	"github.com/xhad/pdfembed/pkg/memory"
)

// ModelProvider owns the lifetime of the loaded models.
type ModelProvider interface {
	Initialize(ctx context.Context) (*llm.Models, error)
	Teardown()
}

// PipelineFactory builds the per-document pipeline once models are loaded.
type PipelineFactory func(m *llm.Models) (types.Pipeline, error)

type RunnerConfig struct {
	Models      ModelProvider
	NewPipeline PipelineFactory
	Reclaimer   *memory.Reclaimer
	Progress    bool
	Stderr      io.Writer
	Logger      *slog.Logger
}

type Runner struct {
	config RunnerConfig
	logger *slog.Logger
}

func NewWithConfig(config RunnerConfig) (*Runner, error) {
	if config.Models == nil {
		return nil, fmt.Errorf("runner requires a model provider")
	}
	if config.NewPipeline == nil {
		return nil, fmt.Errorf("runner requires a pipeline factory")
	}
	if config.Stderr == nil {
		config.Stderr = os.Stderr
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Reclaimer == nil {
		config.Reclaimer = memory.NewWithConfig(memory.ReclaimerConfig{Logger: config.Logger})
	}

	return &Runner{
		config: config,
		logger: config.Logger.With("component", "runner"),
	}, nil
}

// Run processes every request of job in order. Per-document failures are
// counted; a returned error means the run as a whole did not complete.
func (r *Runner) Run(ctx context.Context, job models.Job) (result models.RunResult, err error) {
	logger := r.logger.With("run_id", uuid.NewString())

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("recovered from panic", "panic", rec, "stack", string(debug.Stack()))
			result = models.RunResult{}
			err = fmt.Errorf("%w: %v", ErrPanic, rec)
		}
	}()
	defer r.config.Models.Teardown()

	logger.Info("starting run", "documents", len(job))

	result = models.RunResult{
		Success:    true,
		Embeddings: []models.EmbeddedPassage{},
	}

	// Models are loaded on the first valid request, so a job without one
	// never downloads anything.
	var pipeline types.Pipeline

	bar := r.progressBar(len(job))
	for i, req := range job {
		if err := ctx.Err(); err != nil {
			logger.Warn("run interrupted", "processed", i, "remaining", len(job)-i)
			return models.RunResult{}, err
		}

		if !req.Valid() {
			logger.Error("skipping document", "index", i, "err", ErrMalformedRequest)
			result.FailedPDFs++
		} else {
			if pipeline == nil {
				if pipeline, err = r.loadPipeline(ctx); err != nil {
					return models.RunResult{}, err
				}
			}
			res := pipeline.Process(ctx, req)
			if res.Succeeded() {
				result.SuccessfulPDFs++
				result.Embeddings = append(result.Embeddings, res.Passages...)
			} else {
				result.FailedPDFs++
			}
			r.printStatus(req, res)
		}

		if bar != nil {
			bar.Add(1)
		}
		r.config.Reclaimer.After(i + 1)
	}

	if err := ctx.Err(); err != nil {
		logger.Warn("run interrupted", "processed", len(job))
		return models.RunResult{}, err
	}
	if bar != nil {
		bar.Finish()
		fmt.Fprintln(r.config.Stderr)
	}

	result.TotalChunks = len(result.Embeddings)
	logger.Info("run complete",
		"successful", result.SuccessfulPDFs, "failed", result.FailedPDFs, "chunks", result.TotalChunks)
	r.printSummary(result)
	return result, nil
}

func (r *Runner) loadPipeline(ctx context.Context) (types.Pipeline, error) {
	handles, err := r.config.Models.Initialize(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize models: %w", err)
	}
	pipeline, err := r.config.NewPipeline(handles)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}
	return pipeline, nil
}

func (r *Runner) progressBar(total int) *progressbar.ProgressBar {
	if !r.config.Progress || total == 0 {
		return nil
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(r.config.Stderr),
		progressbar.OptionSetDescription(color.BlueString("Embedding documents")),
		progressbar.OptionSetItsString("docs"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func (r *Runner) printStatus(req models.DocumentRequest, res models.PipelineResult) {
	if r.config.Progress {
		return
	}
	switch res.Status {
	case models.StatusEmbedded:
		color.New(color.FgGreen).Fprintf(r.config.Stderr, "✓ %s: %d passages\n", req.Filename, len(res.Passages))
	case models.StatusEmpty:
		color.New(color.FgYellow).Fprintf(r.config.Stderr, "- %s: no usable text\n", req.Filename)
	default:
		color.New(color.FgRed).Fprintf(r.config.Stderr, "✗ %s: %v\n", req.Filename, res.Err)
	}
}

func (r *Runner) printSummary(result models.RunResult) {
	summary := color.New(color.FgGreen, color.Bold)
	if result.FailedPDFs > 0 {
		summary = color.New(color.FgYellow, color.Bold)
	}
	summary.Fprintf(r.config.Stderr, "Processed %d documents: %d succeeded, %d failed, %d chunks embedded\n",
		result.SuccessfulPDFs+result.FailedPDFs, result.SuccessfulPDFs, result.FailedPDFs, result.TotalChunks)
}
