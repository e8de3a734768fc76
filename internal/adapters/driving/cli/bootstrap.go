package cli

import (
	"fmt"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	embollama "github.com/Anonymous1223334444/mediServe/internal/adapters/driven/embedding/ollama"
	embopenai "github.com/Anonymous1223334444/mediServe/internal/adapters/driven/embedding/openai"
	llmgemini "github.com/Anonymous1223334444/mediServe/internal/adapters/driven/llm/gemini"
	llmopenai "github.com/Anonymous1223334444/mediServe/internal/adapters/driven/llm/openai"
	"github.com/Anonymous1223334444/mediServe/internal/adapters/driven/ocr"
	"github.com/Anonymous1223334444/mediServe/internal/adapters/driven/reranker"
	"github.com/Anonymous1223334444/mediServe/internal/adapters/driven/sparse"
	"github.com/Anonymous1223334444/mediServe/internal/adapters/driven/storage/sqlite"
	"github.com/Anonymous1223334444/mediServe/internal/adapters/driven/vectorstore"
	"github.com/Anonymous1223334444/mediServe/internal/chunker"
	"github.com/Anonymous1223334444/mediServe/internal/config"
	"github.com/Anonymous1223334444/mediServe/internal/core/domain"
	"github.com/Anonymous1223334444/mediServe/internal/core/ports/driven"
	"github.com/Anonymous1223334444/mediServe/internal/core/services"
	"github.com/Anonymous1223334444/mediServe/internal/extract"
	"github.com/Anonymous1223334444/mediServe/internal/logger"
	"github.com/Anonymous1223334444/mediServe/internal/metrics"
)

// runtime holds everything the commands operate on, wired from the
// configuration.
type runtime struct {
	cfg       *config.Config
	collector *metrics.Collector
	metadata  *sqlite.Store

	corpora   *services.CorpusManager
	retriever *services.HybridRetriever
	pipeline  *services.IndexingPipeline
	answerer  *services.AnswerOrchestrator
}

// newRuntime is replaceable by tests.
var newRuntime = bootstrap

func bootstrap() (*runtime, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	collector := metrics.NewCollector(prometheus.DefaultRegisterer)

	metadata, err := sqlite.NewStore(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening metadata store: %w", err)
	}

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return nil, err
	}

	corpora := services.NewCorpusManager(cfg.CorporaDir(),
		func(dir string) driven.VectorStore { return vectorstore.New(dir) },
		func(dir string) (driven.SparseIndex, error) { return sparse.Open(filepath.Join(dir, "bm25")) },
	)
	corpora.SetMetrics(collector)

	retriever := services.NewHybridRetriever(corpora, embedder, buildReranker(cfg))
	retriever.SetMetrics(collector)

	pipeline := services.NewIndexingPipeline(corpora,
		buildRegistry(cfg), buildChunker(cfg, embedder), embedder, metadata.DocumentStore())
	pipeline.SetMetrics(collector)

	generator, err := buildGenerator(cfg)
	if err != nil {
		logger.Warn("generation backend not configured, answers disabled: %v", err)
		generator = nil
	}

	answerer := services.NewAnswerOrchestrator(retriever, generator,
		metadata.SessionStore(), retrievalDefaults(cfg), cfg.Generation.MinDelay())
	answerer.SetMetrics(collector)

	return &runtime{
		cfg:       cfg,
		collector: collector,
		metadata:  metadata,
		corpora:   corpora,
		retriever: retriever,
		pipeline:  pipeline,
		answerer:  answerer,
	}, nil
}

func (r *runtime) close() {
	if err := r.corpora.Close(); err != nil {
		logger.Warn("closing corpora: %v", err)
	}
	if err := r.metadata.Close(); err != nil {
		logger.Warn("closing metadata store: %v", err)
	}
}

func retrievalDefaults(cfg *config.Config) domain.RetrievalOptions {
	return domain.RetrievalOptions{
		TopK:    cfg.Retrieval.TopK,
		Alpha:   cfg.Retrieval.Alpha,
		DenseK:  cfg.Retrieval.DenseK,
		SparseK: cfg.Retrieval.SparseK,
		Rerank:  cfg.Reranker.Enabled,
	}
}

func buildEmbedder(cfg *config.Config) (driven.EmbeddingService, error) {
	switch cfg.Embedding.Provider {
	case "ollama":
		return embollama.NewEmbeddingService(embollama.Config{
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
		}), nil
	default:
		return embopenai.NewEmbeddingService(embopenai.Config{
			APIKey:     cfg.Embedding.APIKey,
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
		})
	}
}

func buildGenerator(cfg *config.Config) (driven.GenerationService, error) {
	switch cfg.Generation.Provider {
	case "openai":
		return llmopenai.NewService(llmopenai.Config{
			APIKey:      cfg.Generation.APIKey,
			BaseURL:     cfg.Generation.BaseURL,
			Model:       cfg.Generation.Model,
			Temperature: cfg.Generation.Temperature,
		})
	default:
		return llmgemini.NewService(llmgemini.Config{
			APIKey:      cfg.Generation.APIKey,
			BaseURL:     cfg.Generation.BaseURL,
			Model:       cfg.Generation.Model,
			Temperature: cfg.Generation.Temperature,
		})
	}
}

func buildReranker(cfg *config.Config) driven.Reranker {
	if !cfg.Reranker.Enabled {
		return nil
	}
	return reranker.NewClient(reranker.Config{
		BaseURL:   cfg.Reranker.BaseURL,
		BatchSize: cfg.Reranker.BatchSize,
	})
}

func buildRegistry(cfg *config.Config) driven.ExtractorRegistry {
	recognizer := ocr.NewTesseract(ocr.WithLanguages(cfg.Ingestion.OCRLanguages))
	if !recognizer.Available() {
		logger.Warn("tesseract binary not found, image text will be skipped")
		return extract.NewRegistry(extract.NewPDFExtractor(nil))
	}
	return extract.NewRegistry(
		extract.NewPDFExtractor(recognizer),
		extract.NewImageExtractor(recognizer),
	)
}

func buildChunker(cfg *config.Config, embedder driven.EmbeddingService) driven.Chunker {
	if cfg.Ingestion.Strategy == "semantic" {
		return chunker.NewSemantic(embedder)
	}

	var opts []chunker.LexicalOption
	if cfg.Ingestion.WindowWords > 0 {
		opts = append(opts, chunker.WithWindow(cfg.Ingestion.WindowWords))
	}
	if cfg.Ingestion.OverlapWords > 0 {
		opts = append(opts, chunker.WithOverlap(cfg.Ingestion.OverlapWords))
	}
	return chunker.NewLexical(opts...)
}
