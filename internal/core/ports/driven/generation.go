package driven

import "context"

// GenerationService is the text-in/text-out completion backend consumed
// downstream of retrieval. It runs at low temperature and is treated as
// an opaque function returning a string, possibly empty.
//
// Implementations may include Gemini (generateContent) and OpenAI
// chat completions.
type GenerationService interface {
	// Generate produces a completion for the prompt. An empty string
	// with a nil error means the backend returned no usable content.
	Generate(ctx context.Context, prompt string) (string, error)

	// ModelName returns the model identifier, for logging.
	ModelName() string

	// Close releases resources.
	Close() error
}
