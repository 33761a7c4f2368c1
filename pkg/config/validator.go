package config

import (
	"fmt"
	"net/url"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Validate model config
	if c.Model.BaseURL == "" {
		errors = append(errors, ValidationError{
			Field:   "model.base_url",
			Message: "Ollama base URL is required",
		})
	} else if u, err := url.Parse(c.Model.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errors = append(errors, ValidationError{
			Field:   "model.base_url",
			Message: "invalid Ollama base URL",
		})
	}

	if c.Model.Name == "" {
		errors = append(errors, ValidationError{
			Field:   "model.name",
			Message: "embedding model name is required",
		})
	}

	if c.Model.CacheDir == "" {
		errors = append(errors, ValidationError{
			Field:   "model.cache_dir",
			Message: "cache directory is required",
		})
	}

	if c.Model.NumThread < 1 {
		errors = append(errors, ValidationError{
			Field:   "model.num_thread",
			Message: "num_thread must be positive",
		})
	}

	// Validate fetcher config
	if c.Fetcher.MaxAttempts < 1 {
		errors = append(errors, ValidationError{
			Field:   "fetcher.max_attempts",
			Message: "max_attempts must be positive",
		})
	}

	if c.Fetcher.RetryDelay < 0 {
		errors = append(errors, ValidationError{
			Field:   "fetcher.retry_delay",
			Message: "retry_delay cannot be negative",
		})
	}

	if c.Fetcher.Timeout <= 0 {
		errors = append(errors, ValidationError{
			Field:   "fetcher.timeout",
			Message: "timeout must be positive",
		})
	}

	if c.Fetcher.RateLimit <= 0 {
		errors = append(errors, ValidationError{
			Field:   "fetcher.rate_limit",
			Message: "rate_limit must be positive",
		})
	}

	if c.Fetcher.BufferSize < 512 {
		errors = append(errors, ValidationError{
			Field:   "fetcher.buffer_size",
			Message: "buffer_size must be at least 512 bytes",
		})
	}

	// Validate processor config
	if c.Processor.ChunkSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "processor.chunk_size",
			Message: "chunk_size must be positive",
		})
	}

	if c.Processor.ChunkOverlap < 0 || c.Processor.ChunkOverlap >= c.Processor.ChunkSize {
		errors = append(errors, ValidationError{
			Field:   "processor.chunk_overlap",
			Message: "chunk_overlap must be non-negative and less than chunk_size",
		})
	}

	if c.Processor.MinChunkLength < 0 || c.Processor.MinTextLength < 0 {
		errors = append(errors, ValidationError{
			Field:   "processor.min_length",
			Message: "minimum lengths cannot be negative",
		})
	}

	// Validate pipeline config
	if c.Pipeline.BatchSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "pipeline.batch_size",
			Message: "batch_size must be positive",
		})
	}

	if c.Pipeline.EmbedAttempts < 1 {
		errors = append(errors, ValidationError{
			Field:   "pipeline.embed_attempts",
			Message: "embed_attempts must be positive",
		})
	}

	if c.Pipeline.ReclaimEvery < 1 {
		errors = append(errors, ValidationError{
			Field:   "pipeline.reclaim_every",
			Message: "reclaim_every must be positive",
		})
	}

	if c.Pipeline.MemoryLimitMB < 0 {
		errors = append(errors, ValidationError{
			Field:   "pipeline.memory_limit_mb",
			Message: "memory_limit_mb cannot be negative",
		})
	}

	return errors
}
