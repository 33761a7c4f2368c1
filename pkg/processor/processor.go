package processor

import (
	"strings"

	"github.com/xhad/pdfembed/internal/models"
)

type ProcessorConfig struct {
	ChunkSize      int
	ChunkOverlap   int
	MinChunkLength int
	MinTextLength  int
	BoundaryWindow int
}

type Processor struct {
	config ProcessorConfig
}

// DefaultConfig is the chunking setup used when nothing is configured.
func DefaultConfig() ProcessorConfig {
	return ProcessorConfig{
		ChunkSize:      1000,
		ChunkOverlap:   200,
		MinChunkLength: 50,
		MinTextLength:  50,
		BoundaryWindow: 100,
	}
}

// NewWithConfig only fills in fields whose zero value cannot be used; a zero
// overlap or minimum length is taken as given.
func NewWithConfig(config ProcessorConfig) Processor {
	if config.ChunkSize <= 0 {
		config.ChunkSize = 1000
	}
	if config.ChunkOverlap < 0 {
		config.ChunkOverlap = 0
	}
	if config.MinChunkLength < 0 {
		config.MinChunkLength = 0
	}
	if config.MinTextLength < 0 {
		config.MinTextLength = 0
	}
	if config.BoundaryWindow <= 0 {
		config.BoundaryWindow = 100
	}

	return Processor{
		config: config,
	}
}

// MinTextLength is the shortest normalized text that is worth chunking.
func (p Processor) MinTextLength() int {
	return p.config.MinTextLength
}

// Process splits text into passages identified by filename and 1-based index.
func (p Processor) Process(filename, text string) []models.Passage {
	chunks := p.Split(text)
	passages := make([]models.Passage, len(chunks))
	for i, chunk := range chunks {
		passages[i] = models.Passage{
			ID:   models.PassageID(filename, i+1),
			Text: chunk,
		}
	}
	return passages
}

// Split normalizes text and cuts it into overlapping windows of at most
// ChunkSize runes, preferring to end a window on a space, period or newline.
func (p Processor) Split(text string) []string {
	runes := []rune(cleanText(text))
	n := len(runes)
	if n < p.config.MinTextLength {
		return []string{}
	}

	chunks := []string{}
	start := 0
	for start < n {
		end := start + p.config.ChunkSize
		if end >= n {
			end = n
		} else {
			end = p.naturalEnd(runes, start, end)
		}

		chunk := strings.TrimSpace(string(runes[start:end]))
		if len([]rune(chunk)) > p.config.MinChunkLength {
			chunks = append(chunks, chunk)
		}

		if end == n {
			break
		}

		// Always advance, even when the overlap covers the whole window.
		next := end - p.config.ChunkOverlap
		if next <= start {
			next = start + 1
		}
		start = next
	}

	return chunks
}

// naturalEnd moves end back to just after the right-most break character in
// the last BoundaryWindow runes of the window, if one exists past start.
func (p Processor) naturalEnd(runes []rune, start, end int) int {
	from := end - p.config.BoundaryWindow
	if from < start {
		from = start
	}
	for i := end - 1; i >= from; i-- {
		if isBreak(runes[i]) {
			if i > start {
				return i + 1
			}
			break
		}
	}
	return end
}

func isBreak(r rune) bool {
	return r == ' ' || r == '.' || r == '\n'
}

func cleanText(text string) string {
	// Replace whitespace runs with a single space
	return strings.Join(strings.Fields(text), " ")
}
