// Package mock provides test doubles for the ai package interfaces.
//
// # Usage in Tests
//
//	gen := mock.NewMockGenerator().
//	    WithGenerateFunc(func(ctx context.Context, req ai.GenerationRequest) (string, error) {
//	        return "$1,200", nil
//	    })
//
//	provider := mock.NewMockProviderWithGenerator(gen)
//	count := gen.CallCount()
//
// # Default Behavior
//
// MockGenerator echoes the question back as "mock answer: <question>".
package mock
