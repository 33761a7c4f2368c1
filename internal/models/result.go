package models

// Status is the terminal state of one document in the pipeline.
type Status int

const (
	StatusFailed Status = iota
	StatusEmpty
	StatusEmbedded
)

func (s Status) String() string {
	switch s {
	case StatusEmbedded:
		return "embedded"
	case StatusEmpty:
		return "empty"
	default:
		return "failed"
	}
}

// Stage is the last pipeline stage a document completed.
type Stage int

const (
	StagePending Stage = iota
	StageFetched
	StageExtracted
	StageChunked
	StageEmbedded
)

func (s Stage) String() string {
	switch s {
	case StageFetched:
		return "fetched"
	case StageExtracted:
		return "extracted"
	case StageChunked:
		return "chunked"
	case StageEmbedded:
		return "embedded"
	default:
		return "pending"
	}
}

type PipelineResult struct {
	Status   Status
	Stage    Stage
	Passages []EmbeddedPassage
	Err      error
}

// Succeeded reports whether the document counts toward successful_pdfs.
// Documents without usable text are successful but contribute no passages.
func (r PipelineResult) Succeeded() bool {
	return r.Status == StatusEmbedded || r.Status == StatusEmpty
}
