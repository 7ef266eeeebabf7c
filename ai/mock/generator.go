package mock

import (
	"context"
	"sync"

	"github.com/poiesic/mailqa/ai"
)

// MockGenerator is a test double for ai.Generator.
// It allows custom behavior injection via function fields.
type MockGenerator struct {
	// GenerateFunc is called by Generate if set.
	// If nil, returns a fixed answer naming the question.
	GenerateFunc func(ctx context.Context, req ai.GenerationRequest) (string, error)

	mu       sync.Mutex
	requests []ai.GenerationRequest
}

// NewMockGenerator creates a mock generator with default behavior.
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{}
}

// WithGenerateFunc sets custom behavior for Generate.
func (m *MockGenerator) WithGenerateFunc(fn func(ctx context.Context, req ai.GenerationRequest) (string, error)) *MockGenerator {
	m.GenerateFunc = fn
	return m
}

// Generate records the request and returns the configured response.
func (m *MockGenerator) Generate(ctx context.Context, req ai.GenerationRequest) (string, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	fn := m.GenerateFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	return "mock answer: " + req.Question, nil
}

// CallCount returns the number of times Generate was called.
func (m *MockGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// LastRequest returns the most recent request, or false if none was made.
func (m *MockGenerator) LastRequest() (ai.GenerationRequest, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return ai.GenerationRequest{}, false
	}
	return m.requests[len(m.requests)-1], true
}

// Reset clears recorded requests and custom functions.
func (m *MockGenerator) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
	m.GenerateFunc = nil
}
