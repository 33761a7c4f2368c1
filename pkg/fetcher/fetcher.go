package fetcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/xhad/pdfembed/pkg/retry"
	"golang.org/x/time/rate"
)

type FetcherConfig struct {
	MaxAttempts int
	RetryDelay  time.Duration
	Timeout     time.Duration
	RateLimit   float64 // requests per second
	BufferSize  int
	UserAgent   string
	Retry       *retry.Policy // overrides MaxAttempts/RetryDelay when set
	Client      *http.Client
	Logger      *slog.Logger
}

// Error describes a download that failed on every attempt.
type Error struct {
	URL        string
	Attempts   int
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("failed to fetch %s after %d attempt(s): %v", e.URL, e.Attempts, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("received status code %d", e.StatusCode)
}

// Result summarises a successful download.
type Result struct {
	Bytes       int64
	Attempts    int
	ContentType string
}

type Fetcher struct {
	config  FetcherConfig
	client  *http.Client
	limiter *rate.Limiter
	policy  retry.Policy
	logger  *slog.Logger
}

func NewWithConfig(config FetcherConfig) *Fetcher {
	if config.MaxAttempts == 0 {
		config.MaxAttempts = 3
	}
	if config.RetryDelay == 0 {
		config.RetryDelay = 2 * time.Second
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 2 // 2 requests per second by default
	}
	if config.BufferSize == 0 {
		config.BufferSize = 8192
	}
	if config.UserAgent == "" {
		config.UserAgent = "pdfembed/1.0"
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "fetcher")

	client := &http.Client{Timeout: config.Timeout}
	if config.Client != nil {
		// Copy so the caller's client keeps its own settings.
		c := *config.Client
		if c.Timeout == 0 {
			c.Timeout = config.Timeout
		}
		client = &c
	}

	policy := retry.Policy{
		MaxAttempts: config.MaxAttempts,
		Backoff:     retry.Constant(config.RetryDelay),
	}
	if config.Retry != nil {
		policy = *config.Retry
	}
	policy.Logger = logger

	return &Fetcher{
		config:  config,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		policy:  policy,
		logger:  logger,
	}
}

func New() *Fetcher {
	return NewWithConfig(FetcherConfig{})
}

// Fetch downloads url into dest. The file content is only meaningful when
// the returned error is nil.
func (f *Fetcher) Fetch(ctx context.Context, url, dest string) error {
	_, err := f.Download(ctx, url, dest)
	return err
}

// Download is Fetch with details about the transfer.
func (f *Fetcher) Download(ctx context.Context, url, dest string) (Result, error) {
	var (
		result     Result
		attempts   int
		lastStatus int
	)

	err := f.policy.Do(ctx, func(attempt int) error {
		attempts = attempt
		n, contentType, status, err := f.fetchOnce(ctx, url, dest)
		lastStatus = status
		if err != nil {
			return err
		}
		result = Result{Bytes: n, Attempts: attempt, ContentType: contentType}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		return result, &Error{URL: url, Attempts: attempts, StatusCode: lastStatus, Err: err}
	}

	f.logger.Debug("downloaded document", "url", url, "bytes", result.Bytes, "attempts", result.Attempts)
	return result, nil
}

func (f *Fetcher) fetchOnce(ctx context.Context, url, dest string) (int64, string, int, error) {
	// Apply rate limiting
	if err := f.limiter.Wait(ctx); err != nil {
		return 0, "", 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, "", 0, retry.Permanent(fmt.Errorf("invalid request: %w", err))
	}
	req.Header.Set("User-Agent", f.config.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, "", 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, "", resp.StatusCode, &StatusError{StatusCode: resp.StatusCode}
	}

	file, err := os.Create(dest)
	if err != nil {
		return 0, "", resp.StatusCode, retry.Permanent(fmt.Errorf("failed to create destination: %w", err))
	}

	buf := make([]byte, f.config.BufferSize)
	n, copyErr := io.CopyBuffer(onlyWriter{file}, resp.Body, buf)
	closeErr := file.Close()
	if copyErr != nil {
		return n, "", resp.StatusCode, fmt.Errorf("failed to read body: %w", copyErr)
	}
	if closeErr != nil {
		return n, "", resp.StatusCode, fmt.Errorf("failed to write destination: %w", closeErr)
	}

	return n, resp.Header.Get("Content-Type"), resp.StatusCode, nil
}

// onlyWriter hides ReadFrom so io.CopyBuffer uses the fixed-size buffer.
type onlyWriter struct {
	io.Writer
}
