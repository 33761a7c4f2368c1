package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
)

// EmbedderConfig represents the configuration for an Ollama embedding client.
type EmbedderConfig struct {
	Model     string
	BaseURL   string // Ollama server URL
	NumThread int
	BatchSize int
	Logger    *slog.Logger
}

// Embedder generates vectors through an Ollama server.
type Embedder struct {
	Config    EmbedderConfig
	embedder  embeddings.Embedder
	dimension int
	logger    *slog.Logger
}

func applyEmbedderDefaults(config *EmbedderConfig) {
	if config.Model == "" {
		config.Model = "nomic-embed-text" // Default Ollama model
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434" // Default Ollama URL
	}
	if config.NumThread <= 0 {
		config.NumThread = 1
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 4
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
}

// NewEmbedderWithConfig builds a CPU-only embedding client.
func NewEmbedderWithConfig(config EmbedderConfig) (*Embedder, error) {
	applyEmbedderDefaults(&config)

	client, err := ollama.New(
		ollama.WithModel(config.Model),
		ollama.WithServerURL(config.BaseURL),
		ollama.WithRunnerNumThread(config.NumThread),
		ollama.WithRunnerNumGPU(0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding client: %w", err)
	}

	emb, err := embeddings.NewEmbedder(client,
		embeddings.WithBatchSize(config.BatchSize),
		embeddings.WithStripNewLines(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	return &Embedder{
		Config:   config,
		embedder: emb,
		logger:   config.Logger.With("component", "ollama-embedder", "model", config.Model),
	}, nil
}

// EmbedTexts returns one vector per text, in input order.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	e.logger.Debug("generating embeddings", "count", len(texts))

	vectors, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: expected %d vectors, received %d", ErrDimensionMismatch, len(texts), len(vectors))
	}
	if e.dimension > 0 {
		for i, vector := range vectors {
			if len(vector) != e.dimension {
				return nil, fmt.Errorf("%w: vector %d has length %d, expected %d", ErrDimensionMismatch, i, len(vector), e.dimension)
			}
		}
	}
	return vectors, nil
}

// Dimension is the vector length reported by the model, 0 until known.
func (e *Embedder) Dimension() int {
	return e.dimension
}

// Probe embeds a short text to learn the model's vector dimension.
func (e *Embedder) Probe(ctx context.Context) (int, error) {
	vectors, err := e.EmbedTexts(ctx, []string{"dimension probe"})
	if err != nil {
		return 0, err
	}
	if len(vectors[0]) == 0 {
		return 0, fmt.Errorf("model %s returned an empty vector", e.Config.Model)
	}
	e.dimension = len(vectors[0])
	return e.dimension, nil
}
