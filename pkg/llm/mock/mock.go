// Package mock provides test doubles for the embedding and extraction services.
package mock

import (
	"context"
	"hash/fnv"
)

// MockEmbedder is a test double for types.Embedder.
// It allows custom behavior injection via function fields.
type MockEmbedder struct {
	// EmbedTextsFunc is called by EmbedTexts if set.
	// If nil, deterministic vectors of length Dim are returned.
	EmbedTextsFunc func(ctx context.Context, texts []string) ([][]float32, error)

	Dim int

	calls   int
	batches [][]string
}

// NewMockEmbedder creates a mock embedder producing vectors of length dim.
func NewMockEmbedder(dim int) *MockEmbedder {
	return &MockEmbedder{Dim: dim}
}

func (m *MockEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	m.calls++
	m.batches = append(m.batches, append([]string(nil), texts...))

	if m.EmbedTextsFunc != nil {
		return m.EmbedTextsFunc(ctx, texts)
	}

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = Vector(text, m.Dim)
	}
	return vectors, nil
}

func (m *MockEmbedder) Dimension() int {
	return m.Dim
}

// CallCount returns the number of EmbedTexts calls.
func (m *MockEmbedder) CallCount() int {
	return m.calls
}

// Batches returns the texts of every EmbedTexts call, in call order.
func (m *MockEmbedder) Batches() [][]string {
	return m.batches
}

// MockExtractor is a test double for types.Extractor.
type MockExtractor struct {
	ExtractFunc func(ctx context.Context, path string) (string, error)
	Text        string

	calls int
}

func (m *MockExtractor) Extract(ctx context.Context, path string) (string, error) {
	m.calls++
	if m.ExtractFunc != nil {
		return m.ExtractFunc(ctx, path)
	}
	return m.Text, nil
}

func (m *MockExtractor) CallCount() int {
	return m.calls
}

// Vector creates a deterministic vector from text using an FNV seed.
func Vector(text string, dim int) []float32 {
	h := fnv.New32a()
	h.Write([]byte(text))
	seed := h.Sum32()

	vector := make([]float32, dim)
	for i := range vector {
		seed = seed*1664525 + 1013904223 // LCG constants
		vector[i] = float32(seed%1000) / 1000.0
	}
	return vector
}
