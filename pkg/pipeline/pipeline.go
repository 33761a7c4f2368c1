package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/xhad/pdfembed/internal/models"
	"github.com/xhad/pdfembed/internal/types"
	"github.com/xhad/pdfembed/pkg/llm"
	"github.com/xhad/pdfembed/pkg/processor"
	"github.com/xhad/pdfembed/pkg/retry"
)

type PipelineConfig struct {
	Fetcher   types.Fetcher
	Extractor types.Extractor
	Embedder  types.Embedder
	Processor processor.Processor

	BatchSize  int
	ScratchDir string        // empty uses os.TempDir
	Retry      *retry.Policy // embedding retries, one attempt when nil
	Logger     *slog.Logger
}

// Pipeline turns one document request into embedded passages.
type Pipeline struct {
	config PipelineConfig
	retry  retry.Policy
	logger *slog.Logger
}

func NewWithConfig(config PipelineConfig) (*Pipeline, error) {
	if config.Fetcher == nil {
		return nil, fmt.Errorf("pipeline requires a fetcher")
	}
	if config.Extractor == nil {
		return nil, fmt.Errorf("pipeline requires an extractor")
	}
	if config.Embedder == nil {
		return nil, fmt.Errorf("pipeline requires an embedder")
	}
	if config.Processor == (processor.Processor{}) {
		config.Processor = processor.NewWithConfig(processor.DefaultConfig())
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 4
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	policy := retry.Policy{MaxAttempts: 1}
	if config.Retry != nil {
		policy = *config.Retry
	}
	logger := config.Logger.With("component", "pipeline")
	if policy.Logger == nil {
		policy.Logger = logger
	}

	return &Pipeline{
		config: config,
		retry:  policy,
		logger: logger,
	}, nil
}

// Process runs fetch, extract, chunk and embed for a single document. Failures
// are reported in the result and never abort the caller's run.
func (p *Pipeline) Process(ctx context.Context, req models.DocumentRequest) models.PipelineResult {
	logger := p.logger.With("filename", req.Filename)
	result := models.PipelineResult{Stage: models.StagePending}

	fail := func(err error) models.PipelineResult {
		result.Status = models.StatusFailed
		result.Err = err
		logger.Error("document failed", "stage", result.Stage.String(), "err", err)
		return result
	}

	scratch, err := os.CreateTemp(p.config.ScratchDir, "pdfembed-*.pdf")
	if err != nil {
		return fail(fmt.Errorf("failed to create scratch file: %w", err))
	}
	path := scratch.Name()
	scratch.Close()
	defer os.Remove(path)

	logger.Info("fetching document", "url", req.URL)
	if err := p.config.Fetcher.Fetch(ctx, req.URL, path); err != nil {
		return fail(err)
	}
	result.Stage = models.StageFetched

	text, err := p.config.Extractor.Extract(ctx, path)
	if err != nil {
		return fail(fmt.Errorf("failed to extract text: %w", err))
	}
	result.Stage = models.StageExtracted

	if utf8.RuneCountInString(strings.TrimSpace(text)) < p.config.Processor.MinTextLength() {
		logger.Warn("insufficient text extracted", "length", len(text))
		result.Status = models.StatusEmpty
		return result
	}

	passages := p.config.Processor.Process(req.Filename, text)
	result.Stage = models.StageChunked
	if len(passages) == 0 {
		logger.Warn("no chunks produced")
		result.Status = models.StatusEmpty
		return result
	}
	logger.Info("chunked document", "chunks", len(passages))

	embedded := p.embed(ctx, logger, passages)
	if len(embedded) == 0 {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		return fail(fmt.Errorf("all %d chunks failed to embed", len(passages)))
	}

	result.Stage = models.StageEmbedded
	result.Status = models.StatusEmbedded
	result.Passages = embedded
	logger.Info("embedded document", "passages", len(embedded), "dropped", len(passages)-len(embedded))
	return result
}

// embed sends passages in batches and keeps the ones whose batch succeeded.
func (p *Pipeline) embed(ctx context.Context, logger *slog.Logger, passages []models.Passage) []models.EmbeddedPassage {
	embedded := make([]models.EmbeddedPassage, 0, len(passages))

	for start := 0; start < len(passages); start += p.config.BatchSize {
		end := min(start+p.config.BatchSize, len(passages))
		batch := passages[start:end]

		texts := make([]string, len(batch))
		for i, passage := range batch {
			texts[i] = passage.Text
		}

		var vectors [][]float32
		err := p.retry.Do(ctx, func(int) error {
			var err error
			vectors, err = p.config.Embedder.EmbedTexts(ctx, texts)
			if err != nil {
				return err
			}
			return p.checkVectors(vectors, len(texts))
		})
		if err != nil {
			logger.Warn("dropping batch", "first_chunk", batch[0].ID, "size", len(batch), "err", err)
			if ctx.Err() != nil {
				break
			}
			continue
		}

		for i, passage := range batch {
			embedded = append(embedded, models.EmbeddedPassage{
				Passage:   passage,
				Embedding: vectors[i],
			})
		}
	}

	return embedded
}

func (p *Pipeline) checkVectors(vectors [][]float32, want int) error {
	if len(vectors) != want {
		return retry.Permanent(fmt.Errorf("%w: expected %d vectors, received %d", llm.ErrDimensionMismatch, want, len(vectors)))
	}
	dim := p.config.Embedder.Dimension()
	for i, vector := range vectors {
		if len(vector) == 0 || (dim > 0 && len(vector) != dim) {
			return retry.Permanent(fmt.Errorf("%w: vector %d has length %d, expected %d", llm.ErrDimensionMismatch, i, len(vector), dim))
		}
	}
	return nil
}
