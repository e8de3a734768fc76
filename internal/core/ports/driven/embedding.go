package driven

import "context"

// EmbeddingService maps text to a fixed-dimension vector. Implementations
// are loaded once per process and shared read-only across all corpora;
// Embed must be safe for concurrent use.
//
// Implementations may include:
//   - OpenAI (text-embedding-3-small, text-embedding-3-large)
//   - Ollama (nomic-embed-text, all-minilm)
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts in one call.
	// The result is index-aligned with the input.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector size. It must match the
	// dimension of every corpus the service writes to.
	Dimensions() int

	// ModelName returns the model tag recorded on stored chunks.
	ModelName() string

	// Ping validates the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
