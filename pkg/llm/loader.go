package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/ollama/ollama/api"
	"github.com/schollz/progressbar/v3"
	"github.com/xhad/pdfembed/internal/types"
	"github.com/xhad/pdfembed/pkg/extractor"
)

const manifestName = "model.json"

// Manifest records which model populated a cache directory.
type Manifest struct {
	Model     string    `json:"model"`
	BaseURL   string    `json:"base_url"`
	Dimension int       `json:"dimension"`
	PulledAt  time.Time `json:"pulled_at"`
}

type OllamaLoaderConfig struct {
	BaseURL    string
	Model      string
	NumThread  int
	BatchSize  int
	HTTPClient *http.Client
	Extractor  types.Extractor
	Progress   io.Writer // pull progress bars; nil disables them
	Logger     *slog.Logger
}

// OllamaLoader pulls an embedding model into an Ollama server and records
// the result in the cache directory.
type OllamaLoader struct {
	config OllamaLoaderConfig
	client *http.Client
	logger *slog.Logger
}

var _ Loader = (*OllamaLoader)(nil)

func NewOllamaLoader(config OllamaLoaderConfig) *OllamaLoader {
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}
	if config.Model == "" {
		config.Model = "nomic-embed-text"
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Extractor == nil {
		config.Extractor = extractor.NewWithConfig(extractor.ExtractorConfig{Logger: config.Logger})
	}
	client := config.HTTPClient
	if client == nil {
		// Pulls can take minutes for large models.
		client = &http.Client{Timeout: 30 * time.Minute}
	}
	return &OllamaLoader{
		config: config,
		client: client,
		logger: config.Logger.With("component", "ollama-loader", "model", config.Model),
	}
}

func (l *OllamaLoader) embedderConfig() EmbedderConfig {
	return EmbedderConfig{
		Model:     l.config.Model,
		BaseURL:   l.config.BaseURL,
		NumThread: l.config.NumThread,
		BatchSize: l.config.BatchSize,
		Logger:    l.config.Logger,
	}
}

// Download pulls the model, probes its dimension with a throwaway client
// and writes the manifest.
func (l *OllamaLoader) Download(ctx context.Context, cacheDir string) error {
	if err := l.pull(ctx); err != nil {
		return err
	}

	probe, err := NewEmbedderWithConfig(l.embedderConfig())
	if err != nil {
		return err
	}
	dim, err := probe.Probe(ctx)
	if err != nil {
		return fmt.Errorf("failed to probe model: %w", err)
	}

	return WriteManifest(cacheDir, Manifest{
		Model:     l.config.Model,
		BaseURL:   l.config.BaseURL,
		Dimension: dim,
		PulledAt:  time.Now().UTC(),
	})
}

// Load builds the embedding and extraction services from the cache manifest.
func (l *OllamaLoader) Load(_ context.Context, cacheDir string) (*Models, error) {
	manifest, err := ReadManifest(cacheDir)
	if err != nil {
		return nil, err
	}
	if manifest.Model != l.config.Model {
		return nil, fmt.Errorf("%w: cache holds %q, configured model is %q",
			ErrIncompatibleCache, manifest.Model, l.config.Model)
	}
	if manifest.Dimension <= 0 {
		return nil, fmt.Errorf("%w: manifest has no vector dimension", ErrIncompatibleCache)
	}

	emb, err := NewEmbedderWithConfig(l.embedderConfig())
	if err != nil {
		return nil, err
	}
	emb.dimension = manifest.Dimension

	return &Models{
		Extractor: l.config.Extractor,
		Embedder:  emb,
	}, nil
}

func (l *OllamaLoader) pull(ctx context.Context) error {
	base, err := url.Parse(l.config.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid ollama url %q: %w", l.config.BaseURL, err)
	}
	client := api.NewClient(base, l.client)

	var (
		bar    *progressbar.ProgressBar
		digest string
		status string
	)
	l.logger.Info("pulling model", "url", l.config.BaseURL)
	err = client.Pull(ctx, &api.PullRequest{Model: l.config.Model}, func(resp api.ProgressResponse) error {
		if resp.Status != status {
			status = resp.Status
			l.logger.Debug("pull status", "status", status)
		}
		if l.config.Progress == nil || resp.Digest == "" || resp.Total <= 0 {
			return nil
		}
		if resp.Digest != digest {
			if bar != nil {
				bar.Finish()
				fmt.Fprintln(l.config.Progress)
			}
			digest = resp.Digest
			bar = l.layerBar(resp.Digest, resp.Total)
		}
		return bar.Set64(resp.Completed)
	})
	if bar != nil {
		bar.Finish()
		fmt.Fprintln(l.config.Progress)
	}
	if err != nil {
		return fmt.Errorf("failed to pull model %s: %w", l.config.Model, err)
	}
	if status != "success" {
		return fmt.Errorf("pull did not complete: %q", status)
	}
	return nil
}

func (l *OllamaLoader) layerBar(digest string, total int64) *progressbar.ProgressBar {
	name := strings.TrimPrefix(digest, "sha256:")
	if len(name) > 12 {
		name = name[:12]
	}
	return progressbar.NewOptions64(total,
		progressbar.OptionSetWriter(l.config.Progress),
		progressbar.OptionSetDescription(color.CyanString("pulling %s", name)),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func WriteManifest(cacheDir string, manifest Manifest) error {
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(cacheDir, manifestName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

func ReadManifest(cacheDir string) (Manifest, error) {
	var manifest Manifest
	data, err := os.ReadFile(filepath.Join(cacheDir, manifestName))
	if err != nil {
		if os.IsNotExist(err) {
			return manifest, fmt.Errorf("%w: %s has no %s", ErrIncompatibleCache, cacheDir, manifestName)
		}
		return manifest, fmt.Errorf("failed to read manifest: %w", err)
	}
	if err := json.Unmarshal(data, &manifest); err != nil {
		return manifest, fmt.Errorf("%w: %v", ErrIncompatibleCache, err)
	}
	return manifest, nil
}
