package runner

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/xhad/pdfembed/internal/models"
)

// LoadJob reads a JSON array of document requests.
func LoadJob(path string) (models.Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read job file: %w", err)
	}

	var job models.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to parse job file %s: %w", path, err)
	}
	if job == nil {
		job = models.Job{}
	}
	return job, nil
}

// Emit writes v as a single line of JSON.
func Emit(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	return nil
}
