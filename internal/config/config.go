// Package config loads the service configuration from a TOML file with
// environment overrides for secrets.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/Anonymous1223334444/mediServe/internal/core/domain"
)

// Default locations and values.
const (
	DefaultConfigFile = "mediserve.toml"
	DefaultDataDir    = "data"
	DefaultListenAddr = ":8090"
)

// Config is the full service configuration.
type Config struct {
	// DataDir is the root directory for corpora, uploads and the
	// metadata database.
	DataDir string `toml:"data_dir"`

	Server     Server     `toml:"server"`
	Embedding  Embedding  `toml:"embedding"`
	Generation Generation `toml:"generation"`
	Reranker   Reranker   `toml:"reranker"`
	Retrieval  Retrieval  `toml:"retrieval"`
	Ingestion  Ingestion  `toml:"ingestion"`
	Watcher    Watcher    `toml:"watcher"`
}

// Server configures the HTTP API.
type Server struct {
	// ListenAddr is the host:port the API binds to.
	ListenAddr string `toml:"listen_addr"`
}

// Embedding selects and configures the embedding backend.
type Embedding struct {
	// Provider is "openai" or "ollama".
	Provider string `toml:"provider"`

	// Model overrides the provider default.
	Model string `toml:"model"`

	// BaseURL overrides the provider endpoint.
	BaseURL string `toml:"base_url"`

	// APIKey is read from OPENAI_API_KEY when empty.
	APIKey string `toml:"api_key"`

	// Dimensions overrides the model's output size.
	Dimensions int `toml:"dimensions"`
}

// Generation selects and configures the answer model.
type Generation struct {
	// Provider is "gemini" or "openai".
	Provider string `toml:"provider"`

	// Model overrides the provider default.
	Model string `toml:"model"`

	// BaseURL overrides the provider endpoint.
	BaseURL string `toml:"base_url"`

	// APIKey is read from GEMINI_API_KEY or OPENAI_API_KEY when empty,
	// depending on the provider.
	APIKey string `toml:"api_key"`

	// Temperature controls sampling.
	Temperature float64 `toml:"temperature"`

	// MinDelaySeconds is the minimum spacing between generation calls,
	// protecting free-tier rate limits.
	MinDelaySeconds float64 `toml:"min_delay_seconds"`
}

// MinDelay returns the generation spacing as a duration.
func (g Generation) MinDelay() time.Duration {
	return time.Duration(g.MinDelaySeconds * float64(time.Second))
}

// Reranker configures the optional cross-encoder pass.
type Reranker struct {
	// Enabled turns reranking on.
	Enabled bool `toml:"enabled"`

	// BaseURL is the rerank server endpoint.
	BaseURL string `toml:"base_url"`

	// BatchSize caps passages per rerank request.
	BatchSize int `toml:"batch_size"`
}

// Retrieval holds the hybrid search knobs.
type Retrieval struct {
	// Alpha weights dense against sparse scores in fusion.
	Alpha float64 `toml:"alpha"`

	// TopK is the default number of results returned.
	TopK int `toml:"top_k"`

	// DenseK and SparseK size the per-column candidate pools.
	DenseK  int `toml:"dense_k"`
	SparseK int `toml:"sparse_k"`
}

// Ingestion holds the document pipeline knobs.
type Ingestion struct {
	// Strategy is "lexical" or "semantic".
	Strategy string `toml:"strategy"`

	// WindowWords and OverlapWords size lexical windows.
	WindowWords  int `toml:"window_words"`
	OverlapWords int `toml:"overlap_words"`

	// OCRLanguages is the tesseract language pack list.
	OCRLanguages string `toml:"ocr_languages"`
}

// Watcher configures the corpus directory watcher.
type Watcher struct {
	// Enabled starts the filesystem watcher with the server.
	Enabled bool `toml:"enabled"`

	// DebounceSeconds batches rapid file events before a consistency
	// check.
	DebounceSeconds float64 `toml:"debounce_seconds"`
}

// Debounce returns the watcher debounce as a duration.
func (w Watcher) Debounce() time.Duration {
	return time.Duration(w.DebounceSeconds * float64(time.Second))
}

// Load reads the config file at path, or defaults when path is empty
// and no mediserve.toml exists in the working directory.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path == "" {
		if _, err := os.Stat(DefaultConfigFile); err == nil {
			path = DefaultConfigFile
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, &domain.ConfigurationError{Component: "config", Err: err}
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, &domain.ConfigurationError{Component: "config",
				Err: fmt.Errorf("parsing %s: %w", path, err)}
		}
	}

	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		DataDir: DefaultDataDir,
		Server:  Server{ListenAddr: DefaultListenAddr},
		Embedding: Embedding{
			Provider: "openai",
		},
		Generation: Generation{
			Provider:        "gemini",
			Temperature:     0.3,
			MinDelaySeconds: 4,
		},
		Reranker: Reranker{
			BatchSize: 32,
		},
		Retrieval: Retrieval{
			Alpha:   domain.DefaultAlpha,
			TopK:    domain.DefaultTopK,
			DenseK:  domain.DefaultDenseK,
			SparseK: domain.DefaultSparseK,
		},
		Ingestion: Ingestion{
			Strategy:     "lexical",
			OCRLanguages: "fra+eng",
		},
		Watcher: Watcher{
			DebounceSeconds: 2,
		},
	}
}

// applyEnv fills secrets from the environment so they stay out of the
// config file.
func (c *Config) applyEnv() {
	if c.Embedding.APIKey == "" {
		c.Embedding.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.Generation.APIKey == "" {
		switch c.Generation.Provider {
		case "gemini":
			c.Generation.APIKey = os.Getenv("GEMINI_API_KEY")
		case "openai":
			c.Generation.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}
}

func (c *Config) validate() error {
	switch c.Embedding.Provider {
	case "openai", "ollama":
	default:
		return &domain.ConfigurationError{Component: "embedding",
			Err: fmt.Errorf("unknown provider %q", c.Embedding.Provider)}
	}

	switch c.Generation.Provider {
	case "gemini", "openai":
	default:
		return &domain.ConfigurationError{Component: "generation",
			Err: fmt.Errorf("unknown provider %q", c.Generation.Provider)}
	}

	switch c.Ingestion.Strategy {
	case "lexical", "semantic":
	default:
		return &domain.ConfigurationError{Component: "ingestion",
			Err: fmt.Errorf("unknown chunking strategy %q", c.Ingestion.Strategy)}
	}

	if c.Retrieval.Alpha < 0 || c.Retrieval.Alpha > 1 {
		return &domain.ConfigurationError{Component: "retrieval",
			Err: fmt.Errorf("alpha %v outside [0, 1]", c.Retrieval.Alpha)}
	}

	return nil
}

// CorporaDir returns the root directory holding per-entity corpora.
func (c *Config) CorporaDir() string {
	return filepath.Join(c.DataDir, "corpora")
}

// UploadsDir returns the directory holding raw uploaded files.
func (c *Config) UploadsDir() string {
	return filepath.Join(c.DataDir, "uploads")
}
