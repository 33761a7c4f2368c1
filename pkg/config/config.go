package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Model struct {
		BaseURL   string `yaml:"base_url"`
		Name      string `yaml:"name"`
		CacheDir  string `yaml:"cache_dir"`
		NumThread int    `yaml:"num_thread"`
	} `yaml:"model"`

	Fetcher struct {
		MaxAttempts int           `yaml:"max_attempts"`
		RetryDelay  time.Duration `yaml:"retry_delay"`
		Timeout     time.Duration `yaml:"timeout"`
		RateLimit   float64       `yaml:"rate_limit"`
		BufferSize  int           `yaml:"buffer_size"`
		UserAgent   string        `yaml:"user_agent"`
	} `yaml:"fetcher"`

	Processor struct {
		ChunkSize      int `yaml:"chunk_size"`
		ChunkOverlap   int `yaml:"chunk_overlap"`
		MinChunkLength int `yaml:"min_chunk_length"`
		MinTextLength  int `yaml:"min_text_length"`
	} `yaml:"processor"`

	Pipeline struct {
		BatchSize     int    `yaml:"batch_size"`
		EmbedAttempts int    `yaml:"embed_attempts"`
		ScratchDir    string `yaml:"scratch_dir"`
		ReclaimEvery  int    `yaml:"reclaim_every"`
		MemoryLimitMB int    `yaml:"memory_limit_mb"`
	} `yaml:"pipeline"`

	UI struct {
		Progress bool `yaml:"progress"`
	} `yaml:"ui"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"pdfembed.yaml",
			"pdfembed.yml",
			filepath.Join(os.Getenv("HOME"), ".config/pdfembed/config.yaml"),
			"/etc/pdfembed/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Keys missing from the file keep their defaults; explicit zeros survive.
	config := newDefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	mergeWithEnv(config)
	applyDefaults(config)

	return config, nil
}

func getDefaultConfig() (*Config, error) {
	config := newDefaultConfig()
	mergeWithEnv(config)
	return config, nil
}

// newDefaultConfig returns a fully populated config. Fields where zero is a
// meaningful setting are only defaulted here.
func newDefaultConfig() *Config {
	config := &Config{}
	config.Processor.ChunkOverlap = 200
	config.Processor.MinChunkLength = 50
	config.Processor.MinTextLength = 50
	config.UI.Progress = true
	applyDefaults(config)
	return config
}

func applyDefaults(config *Config) {
	if config.Model.BaseURL == "" {
		config.Model.BaseURL = "http://localhost:11434"
	}
	if config.Model.Name == "" {
		config.Model.Name = "nomic-embed-text"
	}
	if config.Model.CacheDir == "" {
		config.Model.CacheDir = "model_cache"
	}
	if config.Model.NumThread == 0 {
		config.Model.NumThread = 1
	}

	if config.Fetcher.MaxAttempts == 0 {
		config.Fetcher.MaxAttempts = 3
	}
	if config.Fetcher.RetryDelay == 0 {
		config.Fetcher.RetryDelay = 2 * time.Second
	}
	if config.Fetcher.Timeout == 0 {
		config.Fetcher.Timeout = 60 * time.Second
	}
	if config.Fetcher.RateLimit == 0 {
		config.Fetcher.RateLimit = 2.0
	}
	if config.Fetcher.BufferSize == 0 {
		config.Fetcher.BufferSize = 8192
	}
	if config.Fetcher.UserAgent == "" {
		config.Fetcher.UserAgent = "pdfembed/1.0"
	}

	if config.Processor.ChunkSize == 0 {
		config.Processor.ChunkSize = 1000
	}

	if config.Pipeline.BatchSize == 0 {
		config.Pipeline.BatchSize = 4
	}
	if config.Pipeline.EmbedAttempts == 0 {
		config.Pipeline.EmbedAttempts = 1
	}
	if config.Pipeline.ReclaimEvery == 0 {
		config.Pipeline.ReclaimEvery = 5
	}
}

func mergeWithEnv(config *Config) {
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		config.Model.BaseURL = baseURL
	}
	if model := os.Getenv("EMBEDDING_MODEL"); model != "" {
		config.Model.Name = model
	}
	if cacheDir := os.Getenv("MODEL_CACHE_DIR"); cacheDir != "" {
		config.Model.CacheDir = cacheDir
	}
	if threads := os.Getenv("OMP_NUM_THREADS"); threads != "" {
		if n, err := strconv.Atoi(threads); err == nil {
			config.Model.NumThread = n
		}
	}
}
