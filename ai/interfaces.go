package ai

import "context"

// Generator produces answer text from a question and retrieved context.
// Implementations must be thread-safe for concurrent use.
type Generator interface {
	// Generate asks the model to answer req.Question using only req.Context.
	// Returns the model's text, which may be empty if the model produced nothing.
	// Returns an error if the endpoint is unreachable or rejects the request.
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}

// GenerationRequest carries the grounded prompt inputs and sampling settings.
type GenerationRequest struct {
	// Context is the retrieved evidence, already bounded to the prompt budget.
	Context string

	// Question is the user's natural-language question.
	Question string

	// Temperature controls sampling randomness. Zero is deterministic.
	Temperature float64

	// MaxTokens caps the response length. Zero leaves it to the endpoint.
	MaxTokens int
}

// AIProvider aggregates AI services for convenient initialization and lifecycle management.
type AIProvider interface {
	// Generator returns the answer generation service.
	// The returned Generator is safe for concurrent use.
	Generator() Generator

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
