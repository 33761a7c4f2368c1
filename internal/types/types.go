package types

import (
	"context"

	"github.com/xhad/pdfembed/internal/models"
)

// Core interfaces
type Fetcher interface {
	Fetch(ctx context.Context, url, dest string) error
}

type Extractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

type Pipeline interface {
	Process(ctx context.Context, req models.DocumentRequest) models.PipelineResult
}
