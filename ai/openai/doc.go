// Package openai implements ai.AIProvider on OpenAI-compatible chat APIs.
//
// The langchaingo client talks to OpenAI itself or to any compatible server
// (Ollama, LocalAI, vLLM). Local servers ignore the API key.
//
// # Usage
//
//	config := ai.NewConfig(
//	    ai.WithHost("http://localhost:11434"), // /v1 added automatically
//	    ai.WithModel("qwen2.5:3b"),
//	)
//
//	provider, err := openai.NewProvider(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	answer, err := provider.Generator().Generate(ctx, ai.GenerationRequest{
//	    Context:     retrieved,
//	    Question:    "When is the invoice due?",
//	    Temperature: 0.75,
//	    MaxTokens:   1000,
//	})
package openai
