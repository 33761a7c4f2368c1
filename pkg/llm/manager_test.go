package llm_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/pdfembed/pkg/llm"
	"github.com/xhad/pdfembed/pkg/llm/mock"
)

type fakeLoader struct {
	downloads   int
	loads       int
	downloadErr error
	loadErr     error
}

func (f *fakeLoader) Download(_ context.Context, cacheDir string) error {
	f.downloads++
	if f.downloadErr != nil {
		return f.downloadErr
	}
	return os.WriteFile(filepath.Join(cacheDir, "weights.bin"), []byte("weights"), 0o644)
}

func (f *fakeLoader) Load(_ context.Context, _ string) (*llm.Models, error) {
	f.loads++
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return &llm.Models{
		Extractor: &mock.MockExtractor{},
		Embedder:  mock.NewMockEmbedder(8),
	}, nil
}

func TestManager_InitializeIsIdempotent(t *testing.T) {
	loader := &fakeLoader{}
	cacheDir := filepath.Join(t.TempDir(), "cache")
	m := llm.NewManager(llm.ManagerConfig{CacheDir: cacheDir, Loader: loader})

	first, err := m.Initialize(context.Background())
	require.NoError(t, err)
	second, err := m.Initialize(context.Background())
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, loader.downloads)
	assert.Equal(t, 1, loader.loads)
	assert.DirExists(t, cacheDir)
}

func TestManager_SkipsDownloadWhenCachePopulated(t *testing.T) {
	cacheDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(cacheDir, "model.json"), []byte("{}"), 0o644))

	loader := &fakeLoader{}
	m := llm.NewManager(llm.ManagerConfig{CacheDir: cacheDir, Loader: loader})

	_, err := m.Initialize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, loader.downloads)
	assert.Equal(t, 1, loader.loads)
}

func TestManager_DownloadFailure(t *testing.T) {
	loader := &fakeLoader{downloadErr: errors.New("network down")}
	m := llm.NewManager(llm.ManagerConfig{CacheDir: t.TempDir(), Loader: loader})

	models, err := m.Initialize(context.Background())
	require.Error(t, err)
	assert.Nil(t, models)
	assert.Contains(t, err.Error(), "network down")
	assert.Equal(t, 0, loader.loads)
}

func TestManager_LoadFailure(t *testing.T) {
	loader := &fakeLoader{loadErr: llm.ErrIncompatibleCache}
	m := llm.NewManager(llm.ManagerConfig{CacheDir: t.TempDir(), Loader: loader})

	_, err := m.Initialize(context.Background())
	assert.ErrorIs(t, err, llm.ErrIncompatibleCache)

	_, err = m.Models()
	assert.ErrorIs(t, err, llm.ErrNotInitialized)
}

func TestManager_MissingLoader(t *testing.T) {
	m := llm.NewManager(llm.ManagerConfig{CacheDir: t.TempDir()})
	_, err := m.Initialize(context.Background())
	assert.Error(t, err)
}

func TestManager_Teardown(t *testing.T) {
	loader := &fakeLoader{}
	m := llm.NewManager(llm.ManagerConfig{CacheDir: t.TempDir(), Loader: loader})

	// Safe before initialization
	m.Teardown()

	_, err := m.Initialize(context.Background())
	require.NoError(t, err)
	_, err = m.Models()
	require.NoError(t, err)

	m.Teardown()
	m.Teardown()

	_, err = m.Models()
	assert.ErrorIs(t, err, llm.ErrNotInitialized)

	// A fresh Initialize loads again from the populated cache
	_, err = m.Initialize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, loader.downloads)
	assert.Equal(t, 2, loader.loads)
}
