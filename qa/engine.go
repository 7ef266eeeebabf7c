package qa

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/poiesic/mailqa/ai"
	"github.com/poiesic/mailqa/core"
	"github.com/poiesic/mailqa/storage"
)

const (
	DefaultTopK            = 5
	DefaultMaxContextChars = 6000
	DefaultTemperature     = 0.75
	DefaultMaxTokens       = 1000
	DefaultTimeout         = 60 * time.Second
)

// Answer is the result of a question. Text is empty when retrieval found
// nothing relevant.
type Answer struct {
	Text     string
	Evidence []*core.Document
}

// Found reports whether the engine produced an answer.
func (a *Answer) Found() bool {
	return a != nil && a.Text != ""
}

// Engine answers questions by retrieving documents from the store and asking
// the generator to answer from them. It never writes to the store.
type Engine struct {
	store           storage.DocumentRepository
	generator       ai.Generator
	topK            int
	maxContextChars int
	temperature     float64
	maxTokens       int
	timeout         time.Duration
	logger          *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine) error

// WithTopK sets how many documents are retrieved per question.
func WithTopK(k int) Option {
	return func(e *Engine) error {
		if k < 1 {
			return fmt.Errorf("%w: top k %d", ErrInvalidOption, k)
		}
		e.topK = k
		return nil
	}
}

// WithMaxContextChars bounds the retrieved context passed to the model, in runes.
func WithMaxContextChars(n int) Option {
	return func(e *Engine) error {
		if n < 1 {
			return fmt.Errorf("%w: max context chars %d", ErrInvalidOption, n)
		}
		e.maxContextChars = n
		return nil
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(e *Engine) error {
		if t < 0 {
			return fmt.Errorf("%w: temperature %v", ErrInvalidOption, t)
		}
		e.temperature = t
		return nil
	}
}

// WithMaxTokens caps the generated answer length. Zero leaves it to the endpoint.
func WithMaxTokens(n int) Option {
	return func(e *Engine) error {
		if n < 0 {
			return fmt.Errorf("%w: max tokens %d", ErrInvalidOption, n)
		}
		e.maxTokens = n
		return nil
	}
}

// WithTimeout bounds each generation call.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) error {
		if d <= 0 {
			return fmt.Errorf("%w: timeout %v", ErrInvalidOption, d)
		}
		e.timeout = d
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// NewEngine creates a new question answering engine.
func NewEngine(store storage.DocumentRepository, generator ai.Generator, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if generator == nil {
		return nil, ErrGeneratorRequired
	}

	e := &Engine{
		store:           store,
		generator:       generator,
		topK:            DefaultTopK,
		maxContextChars: DefaultMaxContextChars,
		temperature:     DefaultTemperature,
		maxTokens:       DefaultMaxTokens,
		timeout:         DefaultTimeout,
		logger:          slog.Default(),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	e.logger = e.logger.With("component", "qa")

	return e, nil
}

// Answer retrieves documents relevant to question and generates an answer.
func (e *Engine) Answer(ctx context.Context, question string) (*Answer, error) {
	return e.AnswerWithMonitor(ctx, question, nil)
}

// AnswerWithMonitor answers question, reporting each stage to monitor.
//
// Returns core.ErrEmptyStore if nothing has been ingested and
// core.ErrGenerationUnavailable if the model fails, times out, or returns
// nothing. When no stored document matches, the answer is empty and the
// model is not called.
func (e *Engine) AnswerWithMonitor(ctx context.Context, question string, monitor Monitor) (*Answer, error) {
	// Use noop monitor if none provided
	if monitor == nil {
		monitor = &noopMonitor{}
	}

	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	monitor.Start(question)

	count, err := e.store.Count(ctx)
	if err != nil {
		e.logger.Error("error counting documents", "err", err)
		return nil, err
	}
	if count == 0 {
		return nil, core.ErrEmptyStore
	}

	// 1. Retrieve
	hits, err := e.store.Query(ctx, question, e.topK)
	if err != nil {
		e.logger.Error("error querying documents", "question", question, "err", err)
		return nil, err
	}
	monitor.AfterRetrieval(hits)

	if len(hits) == 0 {
		e.logger.Info("no documents matched", "question", question, "documents", count)
		answer := &Answer{Evidence: []*core.Document{}}
		monitor.Finish(answer)
		return answer, nil
	}

	// 2. Assemble bounded context
	docs := make([]*core.Document, 0, len(hits))
	for _, hit := range hits {
		docs = append(docs, hit.Document)
	}
	contextText, evidence := buildContext(docs, e.maxContextChars)
	monitor.AfterContextAssembly(evidence, len([]rune(contextText)))

	// 3. Generate
	req := ai.GenerationRequest{
		Context:     contextText,
		Question:    question,
		Temperature: e.temperature,
		MaxTokens:   e.maxTokens,
	}
	monitor.BeforeGeneration(req)

	genCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	text, err := e.generator.Generate(genCtx, req)
	if err != nil {
		e.logger.Error("generation failed", "elapsed", time.Since(start), "err", err)
		return nil, fmt.Errorf("%w: %w", core.ErrGenerationUnavailable, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		e.logger.Warn("generation returned no text", "elapsed", time.Since(start))
		return nil, fmt.Errorf("%w: empty response", core.ErrGenerationUnavailable)
	}

	e.logger.Debug("answered question", "evidence", len(evidence), "elapsed", time.Since(start))
	answer := &Answer{Text: text, Evidence: evidence}
	monitor.Finish(answer)
	return answer, nil
}
