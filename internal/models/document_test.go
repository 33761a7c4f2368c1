package models_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/pdfembed/internal/models"
)

func TestDocumentRequestValid(t *testing.T) {
	tests := []struct {
		name string
		req  models.DocumentRequest
		want bool
	}{
		{"complete", models.DocumentRequest{URL: "http://x/a.pdf", Filename: "a.pdf"}, true},
		{"missing url", models.DocumentRequest{Filename: "a.pdf"}, false},
		{"missing filename", models.DocumentRequest{URL: "http://x/a.pdf"}, false},
		{"blank filename", models.DocumentRequest{URL: "http://x/a.pdf", Filename: "  "}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.req.Valid())
		})
	}
}

func TestJobIgnoresExtraFields(t *testing.T) {
	var job models.Job
	err := json.Unmarshal([]byte(`[{"url":"http://x/a.pdf","filename":"a.pdf","id":"abc"}]`), &job)
	require.NoError(t, err)
	require.Len(t, job, 1)
	assert.Equal(t, "a.pdf", job[0].Filename)
}

func TestEmbeddedPassageJSON(t *testing.T) {
	p := models.EmbeddedPassage{
		Passage:   models.Passage{ID: models.PassageID("a.pdf", 1), Text: "hello"},
		Embedding: []float32{0.5, 1},
	}
	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"a.pdf-1","text":"hello","embedding":[0.5,1]}`, string(data))
}

func TestErrorResult(t *testing.T) {
	data, err := json.Marshal(models.NewErrorResult(errors.New("boom")))
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":false,"error":"boom"}`, string(data))
}

func TestPipelineResultSucceeded(t *testing.T) {
	assert.True(t, models.PipelineResult{Status: models.StatusEmbedded}.Succeeded())
	assert.True(t, models.PipelineResult{Status: models.StatusEmpty}.Succeeded())
	assert.False(t, models.PipelineResult{Status: models.StatusFailed}.Succeeded())
}
