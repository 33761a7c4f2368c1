package fetcher

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/pdfembed/pkg/retry"
)

func noSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

func testFetcher(maxAttempts int) *Fetcher {
	return NewWithConfig(FetcherConfig{
		RateLimit:  1000,
		BufferSize: 1024,
		Retry: &retry.Policy{
			MaxAttempts: maxAttempts,
			Backoff:     retry.Constant(time.Second),
			Sleep:       noSleep,
		},
	})
}

func TestFetcherConfig(t *testing.T) {
	f := New()
	assert.Equal(t, 3, f.config.MaxAttempts)
	assert.Equal(t, 2*time.Second, f.config.RetryDelay)
	assert.Equal(t, 60*time.Second, f.client.Timeout)
	assert.Equal(t, 8192, f.config.BufferSize)
	assert.Equal(t, 3, f.policy.MaxAttempts)
}

func TestFetcherConfig_DoesNotMutateClient(t *testing.T) {
	client := &http.Client{}
	f := NewWithConfig(FetcherConfig{Client: client, Timeout: 5 * time.Second})

	assert.Equal(t, time.Duration(0), client.Timeout)
	assert.Equal(t, 5*time.Second, f.client.Timeout)
	assert.NotSame(t, client, f.client)

	custom := &http.Client{Timeout: time.Second}
	f = NewWithConfig(FetcherConfig{Client: custom})
	assert.Equal(t, time.Second, f.client.Timeout)
}

func TestFetch_Success(t *testing.T) {
	payload := bytes.Repeat([]byte("%PDF-1.4 data "), 1000)
	var userAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/pdf")
		w.Write(payload)
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "doc.pdf")
	result, err := testFetcher(3).Download(context.Background(), server.URL, dest)
	require.NoError(t, err)

	assert.Equal(t, int64(len(payload)), result.Bytes)
	assert.Equal(t, 1, result.Attempts)
	assert.Equal(t, "application/pdf", result.ContentType)
	assert.Equal(t, "pdfembed/1.0", userAgent)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, payload, data)
}

func TestFetch_TransientFailuresThenSuccess(t *testing.T) {
	payload := []byte("recovered content")
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			// Partial body then failure status
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("try later"))
			return
		}
		w.Write(payload)
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "doc.pdf")
	err := testFetcher(3).Fetch(context.Background(), server.URL, dest)
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))

	info, err := os.Stat(dest)
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), info.Size())
}

func TestFetch_AlwaysFails(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "doc.pdf")
	err := testFetcher(4).Fetch(context.Background(), server.URL, dest)
	require.Error(t, err)
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls))

	var fetchErr *Error
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, 4, fetchErr.Attempts)
	assert.Equal(t, http.StatusNotFound, fetchErr.StatusCode)

	var statusErr *StatusError
	assert.True(t, errors.As(err, &statusErr))
}

func TestFetch_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	err := testFetcher(2).Fetch(context.Background(), url, filepath.Join(t.TempDir(), "doc.pdf"))
	var fetchErr *Error
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, 2, fetchErr.Attempts)
}

func TestFetch_InvalidURLIsNotRetried(t *testing.T) {
	err := testFetcher(5).Fetch(context.Background(), "://bad", filepath.Join(t.TempDir(), "doc.pdf"))
	var fetchErr *Error
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, 1, fetchErr.Attempts)
}

func TestFetch_ContextCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("data"))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := testFetcher(3).Fetch(ctx, server.URL, filepath.Join(t.TempDir(), "doc.pdf"))
	assert.ErrorIs(t, err, context.Canceled)
}
