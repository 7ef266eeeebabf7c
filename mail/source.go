package mail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/mailqa/core"
)

// Source fetches messages and attachments from a Session.
type Source struct {
	session Session
	pool    *ants.Pool
	logger  *slog.Logger
}

// Option configures a Source.
type Option func(*Source) error

// WithPoolSize sets the worker pool size for concurrent attachment fetches.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(s *Source) error {
		if size < 1 {
			size = 1
		}
		if s.pool != nil {
			s.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		s.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Source) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewSource creates a Source over session. A nil session is accepted; every
// call then fails with core.ErrNotAuthenticated.
func NewSource(session Session, opts ...Option) (*Source, error) {
	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	s := &Source{
		session: session,
		pool:    pool,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		if optErr := opt(s); optErr != nil {
			s.Release()
			return nil, optErr
		}
	}
	s.logger = s.logger.With("component", "mail-source")
	return s, nil
}

// Release releases the attachment worker pool.
func (s *Source) Release() {
	if s.pool != nil {
		s.pool.Release()
	}
}

// Authenticated reports whether the source has a session.
func (s *Source) Authenticated() bool {
	return s.session != nil
}

func (s *Source) requireSession() error {
	if s.session == nil {
		return fmt.Errorf("%w: log in first", core.ErrNotAuthenticated)
	}
	return nil
}

// upstream tags err as an upstream failure unless it is an auth failure.
func upstream(op string, err error) error {
	if errors.Is(err, core.ErrNotAuthenticated) || errors.Is(err, core.ErrUpstreamUnavailable) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %w", core.ErrUpstreamUnavailable, op, err)
}

// Search lists the ids of every message matching the window, following page
// tokens until the provider reports no more pages. Ids are returned in
// provider order with duplicates removed. Any page failure fails the search.
func (s *Source) Search(ctx context.Context, w core.QueryWindow) ([]string, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	if err := s.requireSession(); err != nil {
		return nil, err
	}

	query := BuildQuery(w)
	logger := s.logger.With("query", query)

	var ids []string
	seen := make(map[string]bool)
	tokens := make(map[string]bool)
	token := ""
	pages := 0
	for {
		page, err := s.session.ListMessages(ctx, query, token)
		if err != nil {
			return nil, upstream(fmt.Sprintf("listing page %d", pages+1), err)
		}
		pages++
		for _, id := range page.IDs {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
		if page.NextPageToken == "" {
			break
		}
		if tokens[page.NextPageToken] {
			return nil, upstream("listing", fmt.Errorf("%w: %q", ErrPageLoop, page.NextPageToken))
		}
		tokens[page.NextPageToken] = true
		token = page.NextPageToken
	}

	logger.Debug("search complete", "pages", pages, "messages", len(ids))
	return ids, nil
}

// FetchMessage retrieves one message with its part tree.
func (s *Source) FetchMessage(ctx context.Context, id string) (*RawMessage, error) {
	if err := s.requireSession(); err != nil {
		return nil, err
	}
	msg, err := s.session.GetMessage(ctx, id)
	if err != nil {
		return nil, upstream("fetching message "+id, err)
	}
	if msg.ID == "" {
		msg.ID = id
	}
	return msg, nil
}

// FetchAttachments retrieves a message and then its attachments.
func (s *Source) FetchAttachments(ctx context.Context, id string) ([]core.Attachment, []core.Skip, error) {
	msg, err := s.FetchMessage(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	atts, skips := s.Attachments(ctx, msg)
	return atts, skips, nil
}

// Attachments downloads every part of msg that carries a filename.
// Parts are fetched concurrently; a part that cannot be fetched or decoded is
// reported as a skip and the rest proceed. Results follow part order.
func (s *Source) Attachments(ctx context.Context, msg *RawMessage) ([]core.Attachment, []core.Skip) {
	var parts []*MessagePart
	msg.Walk(func(p *MessagePart) {
		if p.Filename != "" {
			parts = append(parts, p)
		}
	})
	if len(parts) == 0 {
		return nil, nil
	}

	type result struct {
		att  *core.Attachment
		skip *core.Skip
	}
	results := make([]result, len(parts))

	var wg sync.WaitGroup
	for i, part := range parts {
		fetch := func() {
			defer wg.Done()
			data, err := s.attachmentData(ctx, msg.ID, part)
			if err != nil {
				s.logger.Warn("skipping attachment", "message", msg.ID, "filename", part.Filename, "err", err)
				results[i].skip = &core.Skip{
					Item: msg.ID + "/" + part.Filename,
					Err:  fmt.Errorf("%w: %w", core.ErrPartialExtraction, err),
				}
				return
			}
			results[i].att = &core.Attachment{Filename: part.Filename, Data: data, MessageID: msg.ID}
		}

		wg.Add(1)
		if err := s.pool.Submit(fetch); err != nil {
			// Pool released or overloaded; fetch inline
			fetch()
		}
	}
	wg.Wait()

	var atts []core.Attachment
	var skips []core.Skip
	for _, r := range results {
		if r.att != nil {
			atts = append(atts, *r.att)
		}
		if r.skip != nil {
			skips = append(skips, *r.skip)
		}
	}
	return atts, skips
}

func (s *Source) attachmentData(ctx context.Context, messageID string, part *MessagePart) ([]byte, error) {
	encoded := part.Body.Data
	if part.Body.AttachmentID != "" {
		if err := s.requireSession(); err != nil {
			return nil, err
		}
		// No provider call once the run is cancelled or timed out
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("fetching attachment %s: %w", part.Filename, err)
		}
		var err error
		encoded, err = s.session.GetAttachment(ctx, messageID, part.Body.AttachmentID)
		if err != nil {
			return nil, upstream("fetching attachment "+part.Filename, err)
		}
	}
	return DecodeData(encoded)
}
