package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"runtime/debug"

	"github.com/xhad/pdfembed/internal/types"
)

var (
	// ErrNotInitialized is returned when models are requested before Initialize.
	ErrNotInitialized = errors.New("models not initialized")

	// ErrIncompatibleCache is returned when the cache holds a different model.
	ErrIncompatibleCache = errors.New("incompatible model cache")

	// ErrDimensionMismatch is returned when a model answers with vectors of the
	// wrong count or length.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Models holds the services shared read-only by every document in a run.
type Models struct {
	Extractor types.Extractor
	Embedder  types.Embedder
}

// Loader brings a model online in two phases: Download populates an empty
// cache directory, Load builds the long-lived handles from it.
type Loader interface {
	Download(ctx context.Context, cacheDir string) error
	Load(ctx context.Context, cacheDir string) (*Models, error)
}

type ManagerConfig struct {
	CacheDir string
	Loader   Loader
	Logger   *slog.Logger
}

// Manager owns the model handles for one process run. It is not safe for
// concurrent use; the run is single-threaded.
type Manager struct {
	config ManagerConfig
	models *Models
	logger *slog.Logger
}

func NewManager(config ManagerConfig) *Manager {
	if config.CacheDir == "" {
		config.CacheDir = "model_cache"
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		config: config,
		logger: logger.With("component", "model-manager"),
	}
}

// Initialize loads the models on first use and returns the cached handles
// on every later call.
func (m *Manager) Initialize(ctx context.Context) (*Models, error) {
	if m.models != nil {
		return m.models, nil
	}
	if m.config.Loader == nil {
		return nil, errors.New("model manager: loader is required")
	}

	if err := m.ensureCache(ctx); err != nil {
		return nil, err
	}

	models, err := m.config.Loader.Load(ctx, m.config.CacheDir)
	if err != nil {
		m.Teardown()
		return nil, fmt.Errorf("failed to load model from %s: %w", m.config.CacheDir, err)
	}

	m.models = models
	m.logger.Info("models loaded", "cache_dir", m.config.CacheDir, "dimension", models.Embedder.Dimension())
	return m.models, nil
}

// Models returns the loaded handles or ErrNotInitialized.
func (m *Manager) Models() (*Models, error) {
	if m.models == nil {
		return nil, ErrNotInitialized
	}
	return m.models, nil
}

// Teardown releases the model handles. It is safe to call repeatedly and
// before Initialize.
func (m *Manager) Teardown() {
	if m.models != nil {
		m.logger.Info("releasing models")
	}
	m.models = nil
	runtime.GC()
	debug.FreeOSMemory()
}

func (m *Manager) ensureCache(ctx context.Context) error {
	dir := m.config.CacheDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read cache directory: %w", err)
	}
	if len(entries) > 0 {
		return nil
	}

	m.logger.Info("model cache empty, downloading", "cache_dir", dir)
	if err := m.config.Loader.Download(ctx, dir); err != nil {
		return fmt.Errorf("failed to download model: %w", err)
	}

	// Drop whatever the download phase held before loading from the cache.
	runtime.GC()
	debug.FreeOSMemory()
	m.logger.Info("model downloaded and cached", "cache_dir", dir)
	return nil
}
