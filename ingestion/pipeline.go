package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/mailqa/core"
	"github.com/poiesic/mailqa/mail"
	"github.com/poiesic/mailqa/normalize"
	"github.com/poiesic/mailqa/staging"
	"github.com/poiesic/mailqa/storage"
)

// Pipeline moves mail into the document store:
// source → (bodies) → normalizer → store and
// source → (attachments) → stager → normalizer → store.
type Pipeline struct {
	source      *mail.Source
	stager      *staging.Stager
	normalizer  *normalize.Normalizer
	repository  storage.DocumentRepository
	messagePool *ants.Pool // nil runs messages sequentially
	timeout     time.Duration
	progress    io.Writer
	logger      *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithMessageConcurrency processes up to n messages at once on a worker pool.
// Default is 1, which processes messages in search order.
func WithMessageConcurrency(n int) Option {
	return func(p *Pipeline) error {
		if p.messagePool != nil {
			p.messagePool.Release()
			p.messagePool = nil
		}
		if n <= 1 {
			return nil
		}
		pool, err := ants.NewPool(n)
		if err != nil {
			return err
		}
		p.messagePool = pool
		return nil
	}
}

// WithTimeout bounds each Ingest call. Once it expires no further provider
// calls are made and the partial report is returned. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(p *Pipeline) error {
		if d < 0 {
			d = 0
		}
		p.timeout = d
		return nil
	}
}

// WithProgress writes a progress line to w as messages complete.
func WithProgress(w io.Writer) Option {
	return func(p *Pipeline) error {
		p.progress = w
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(
	source *mail.Source,
	stager *staging.Stager,
	normalizer *normalize.Normalizer,
	repository storage.DocumentRepository,
	opts ...Option,
) (*Pipeline, error) {
	if source == nil {
		return nil, ErrSourceRequired
	}
	if stager == nil {
		return nil, ErrStagerRequired
	}
	if normalizer == nil {
		return nil, ErrNormalizerRequired
	}
	if repository == nil {
		return nil, ErrRepositoryRequired
	}

	p := &Pipeline{
		source:     source,
		stager:     stager,
		normalizer: normalizer,
		repository: repository,
		logger:     slog.Default(),
	}

	// Apply options (may override defaults)
	for _, opt := range opts {
		if err := opt(p); err != nil {
			p.Release()
			return nil, err
		}
	}
	p.logger = p.logger.With("component", "ingestion")

	return p, nil
}

// Ingest loads every message matching w into the store.
//
// The returned report is never nil. A search, fetch, or store failure aborts
// the run and is returned alongside the report of what was written before it.
// When the pipeline timeout expires the report is marked Interrupted and the
// error is nil.
func (p *Pipeline) Ingest(ctx context.Context, w core.QueryWindow) (*Report, error) {
	report := &Report{RunID: uuid.New(), Window: w}
	start := time.Now()
	logger := p.logger.With("run_id", report.RunID.String())

	runCtx, cancel := ctx, context.CancelFunc(func() {})
	if p.timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, p.timeout)
	}
	defer cancel()

	err := p.run(runCtx, w, report, logger)
	report.Elapsed = time.Since(start)

	unfinished := err != nil || report.MessagesProcessed < report.MessagesFound
	if unfinished && ctx.Err() == nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		report.Interrupted = true
		logger.Warn("ingestion interrupted by timeout",
			"processed", report.MessagesProcessed, "found", report.MessagesFound, "written", report.DocumentsWritten)
		return report, nil
	}
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		logger.Error("ingestion failed", "processed", report.MessagesProcessed, "written", report.DocumentsWritten, "err", err)
		return report, err
	}

	logger.Info("ingestion complete",
		"messages", report.MessagesFound,
		"documents", report.DocumentsWritten,
		"skipped", report.Skipped(),
		"elapsed", report.Elapsed)
	return report, nil
}

func (p *Pipeline) run(ctx context.Context, w core.QueryWindow, report *Report, logger *slog.Logger) error {
	ids, err := p.source.Search(ctx, w)
	if err != nil {
		return err
	}
	report.MessagesFound = len(ids)
	logger.Info("messages found", "count", len(ids), "query", w.Query)

	var tracker *ProgressTracker
	if p.progress != nil {
		tracker = NewProgressTracker(p.progress, len(ids), 1)
		tracker.Start()
		defer tracker.Finish()
	}
	done := func() {
		if tracker != nil {
			tracker.Increment(1)
		}
	}

	if p.messagePool == nil {
		for _, id := range ids {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err := p.processMessage(ctx, id, report, logger); err != nil {
				return err
			}
			done()
		}
		return nil
	}

	// Concurrent: the first fatal error stops the remaining messages
	msgCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var wg sync.WaitGroup
	for _, id := range ids {
		if msgCtx.Err() != nil {
			break
		}
		task := func() {
			defer wg.Done()
			if msgCtx.Err() != nil {
				return
			}
			if err := p.processMessage(msgCtx, id, report, logger); err != nil {
				cancel(err)
				return
			}
			done()
		}

		wg.Add(1)
		if err := p.messagePool.Submit(task); err != nil {
			// Pool released or overloaded; run inline
			task()
		}
	}
	wg.Wait()

	if cause := context.Cause(msgCtx); cause != nil && !errors.Is(cause, context.Canceled) {
		return cause
	}
	return ctx.Err()
}

// processMessage fetches one message and writes its body document and
// attachment passages as a single batch.
func (p *Pipeline) processMessage(ctx context.Context, id string, report *Report, logger *slog.Logger) error {
	msg, err := p.source.FetchMessage(ctx, id)
	if err != nil {
		return err
	}

	var docs []*core.Document
	body, err := p.normalizer.FromMessage(msg)
	switch {
	case err == nil:
		docs = append(docs, body)
	case errors.Is(err, core.ErrPartialExtraction):
		logger.Warn("skipping message body", "message", id, "err", err)
		report.skip(core.Skip{Item: id, Err: err})
	default:
		return err
	}

	atts, skips := p.source.Attachments(ctx, msg)
	report.skip(skips...)

	meta := map[string]string{
		core.MetaMessageID: msg.ID,
		core.MetaSender:    msg.Header("From"),
		core.MetaSubject:   msg.Header("Subject"),
	}

	staged, ignored := 0, 0
	for _, att := range atts {
		item := id + "/" + att.Filename
		path, ok, err := p.stager.Stage(att)
		if err != nil {
			logger.Warn("skipping attachment", "item", item, "err", err)
			report.skip(core.Skip{Item: item, Err: fmt.Errorf("%w: staging: %w", core.ErrPartialExtraction, err)})
			continue
		}
		if !ok {
			ignored++
			continue
		}
		staged++

		passages, err := p.normalizer.FromFile(ctx, path, meta)
		if err != nil {
			logger.Warn("skipping attachment", "item", item, "path", path, "err", err)
			report.skip(core.Skip{Item: item, Err: err})
			continue
		}
		docs = append(docs, passages...)
	}

	if len(docs) > 0 {
		// Provider calls for this message are done; the write is not cut short by the run timeout
		if err := p.repository.WriteDocuments(context.WithoutCancel(ctx), docs...); err != nil {
			return fmt.Errorf("writing documents for message %s: %w", id, err)
		}
	}
	report.message(len(docs), staged, ignored)

	logger.Debug("message ingested", "message", id, "documents", len(docs), "staged", staged, "ignored", ignored)
	return nil
}

// Release releases resources including worker pools.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.messagePool != nil {
		p.messagePool.Release()
	}
}
