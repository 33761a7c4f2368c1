package models

import (
	"fmt"
	"strings"
)

// DocumentRequest identifies one remote document in a job file.
type DocumentRequest struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
}

// Valid reports whether both the url and filename are present.
func (r DocumentRequest) Valid() bool {
	return strings.TrimSpace(r.URL) != "" && strings.TrimSpace(r.Filename) != ""
}

type Job []DocumentRequest

type Passage struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// PassageID builds the "<filename>-<index>" identifier, index being 1-based.
func PassageID(filename string, index int) string {
	return fmt.Sprintf("%s-%d", filename, index)
}

type EmbeddedPassage struct {
	Passage
	Embedding []float32 `json:"embedding"`
}

// RunResult is the single JSON object written to stdout after a completed run.
type RunResult struct {
	Success        bool              `json:"success"`
	TotalChunks    int               `json:"total_chunks"`
	SuccessfulPDFs int               `json:"successful_pdfs"`
	FailedPDFs     int               `json:"failed_pdfs"`
	Embeddings     []EmbeddedPassage `json:"embeddings"`
}

// ErrorResult replaces RunResult when the run aborts.
type ErrorResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func NewErrorResult(err error) ErrorResult {
	return ErrorResult{Success: false, Error: err.Error()}
}
