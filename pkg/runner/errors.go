package runner

import "errors"

var (
	// ErrMalformedRequest marks a job entry without a url or filename.
	ErrMalformedRequest = errors.New("malformed document request")

	// ErrPanic wraps a panic recovered while processing a job.
	ErrPanic = errors.New("panic during run")
)
