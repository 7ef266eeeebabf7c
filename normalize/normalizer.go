package normalize

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"path/filepath"
	"strings"

	"github.com/poiesic/mailqa/core"
	"github.com/poiesic/mailqa/mail"
	"github.com/tmc/langchaingo/textsplitter"
	"golang.org/x/net/html/charset"
)

const (
	defaultChunkSize    = 1000
	defaultChunkOverlap = 100
)

var (
	// ErrNoExtractableBody is returned for messages with no text or HTML body.
	ErrNoExtractableBody = fmt.Errorf("%w: no extractable body", core.ErrPartialExtraction)

	// ErrUnsupportedFormat is returned for files no extractor handles.
	ErrUnsupportedFormat = fmt.Errorf("%w: unsupported file format", core.ErrPartialExtraction)

	// ErrInvalidChunking is returned for non-positive chunk sizes or an
	// overlap that is not smaller than the chunk size.
	ErrInvalidChunking = errors.New("invalid chunking parameters")
)

// Normalizer turns message bodies and staged files into documents.
type Normalizer struct {
	extractors   map[string]Extractor
	chunkSize    int
	chunkOverlap int
	splitter     textsplitter.TextSplitter
	logger       *slog.Logger
}

// Option configures a Normalizer.
type Option func(*Normalizer) error

// WithChunking sets passage size and overlap, in runes.
func WithChunking(size, overlap int) Option {
	return func(n *Normalizer) error {
		if size < 1 || overlap < 0 || overlap >= size {
			return fmt.Errorf("%w: size %d overlap %d", ErrInvalidChunking, size, overlap)
		}
		n.chunkSize = size
		n.chunkOverlap = overlap
		return nil
	}
}

// WithExtractor registers fn for files with extension ext, replacing any
// built-in extractor.
func WithExtractor(ext string, fn Extractor) Option {
	return func(n *Normalizer) error {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		n.extractors[ext] = fn
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(n *Normalizer) error {
		if logger == nil {
			logger = slog.Default()
		}
		n.logger = logger
		return nil
	}
}

// New creates a Normalizer with the built-in extractors.
func New(opts ...Option) (*Normalizer, error) {
	n := &Normalizer{
		extractors:   defaultExtractors(),
		chunkSize:    defaultChunkSize,
		chunkOverlap: defaultChunkOverlap,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(n); err != nil {
			return nil, err
		}
	}
	n.splitter = textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(n.chunkSize),
		textsplitter.WithChunkOverlap(n.chunkOverlap),
	)
	n.logger = n.logger.With("component", "normalizer")
	return n, nil
}

// Supports reports whether a file with this name has an extractor.
func (n *Normalizer) Supports(filename string) bool {
	_, ok := n.extractors[strings.ToLower(filepath.Ext(filename))]
	return ok
}

// FromMessage builds one document from a message body. HTML is preferred
// over plain text; the first Subject and From headers become metadata.
func (n *Normalizer) FromMessage(msg *mail.RawMessage) (*core.Document, error) {
	part := bodyPart(msg)
	if part == nil {
		return nil, fmt.Errorf("message %s: %w", msg.ID, ErrNoExtractableBody)
	}

	raw, err := mail.DecodeData(part.Body.Data)
	if err != nil {
		return nil, fmt.Errorf("message %s: %w: %w", msg.ID, core.ErrPartialExtraction, err)
	}

	text, err := partText(part, raw)
	if err != nil {
		return nil, fmt.Errorf("message %s: %w: %w", msg.ID, core.ErrPartialExtraction, err)
	}

	return &core.Document{
		ID:      core.NewDocumentID(core.SourceKindMessage, msg.ID),
		Content: text,
		Metadata: map[string]string{
			core.MetaSender:    msg.Header("From"),
			core.MetaSubject:   msg.Header("Subject"),
			core.MetaMessageID: msg.ID,
			core.MetaSource:    core.SourceBody,
		},
	}, nil
}

// bodyPart picks the first HTML part with data, then the first plain text
// part, then a single-part text payload.
func bodyPart(msg *mail.RawMessage) *mail.MessagePart {
	var htmlPart, textPart *mail.MessagePart
	msg.Walk(func(p *mail.MessagePart) {
		if p.Filename != "" || p.Body.Data == "" {
			return
		}
		switch mimeBase(p.MimeType) {
		case "text/html":
			if htmlPart == nil {
				htmlPart = p
			}
		case "text/plain":
			if textPart == nil {
				textPart = p
			}
		}
	})
	switch {
	case htmlPart != nil:
		return htmlPart
	case textPart != nil:
		return textPart
	}
	if p := msg.Payload; p != nil && p.Body.Data != "" && strings.HasPrefix(mimeBase(p.MimeType), "text/") {
		return p
	}
	return nil
}

func mimeBase(mimeType string) string {
	base, _, _ := strings.Cut(mimeType, ";")
	return strings.ToLower(strings.TrimSpace(base))
}

// partText converts decoded part bytes to UTF-8 text using the part's
// declared charset.
func partText(part *mail.MessagePart, raw []byte) (string, error) {
	contentType := part.MimeType
	for _, h := range part.Headers {
		if strings.EqualFold(h.Name, "Content-Type") {
			contentType = h.Value
			break
		}
	}

	r, err := charset.NewReader(bytes.NewReader(raw), contentType)
	if err != nil {
		r = bytes.NewReader(raw)
	}

	if mimeBase(part.MimeType) == "text/html" {
		return HTMLToText(r)
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return collapseWhitespace(strings.ToValidUTF8(string(b), "")), nil
}

// FromFile extracts the text of a staged file and splits it into passages.
// Every passage shares meta plus the source filename. Passage IDs derive
// from the message ID in meta and the filename. A file with no text yields
// a single empty document.
func (n *Normalizer) FromFile(ctx context.Context, path string, meta map[string]string) ([]*core.Document, error) {
	filename := filepath.Base(path)
	ext := strings.ToLower(filepath.Ext(filename))

	extract, ok := n.extractors[ext]
	if !ok {
		return nil, fmt.Errorf("%s: %w", filename, ErrUnsupportedFormat)
	}

	text, err := extract(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", filename, core.ErrPartialExtraction, err)
	}

	passages, err := n.splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("%s: splitting text: %w", filename, err)
	}
	if len(passages) == 0 {
		passages = []string{""}
	}

	// Scoped to the owning message so equal filenames in different messages stay distinct
	origin := filename
	if msgID := meta[core.MetaMessageID]; msgID != "" {
		origin = msgID + "/" + filename
	}
	base := core.NewDocumentID(core.SourceKindAttachment, origin)
	docs := make([]*core.Document, 0, len(passages))
	for i, passage := range passages {
		md := make(map[string]string, len(meta)+2)
		maps.Copy(md, meta)
		md[core.MetaSourceFilename] = filename
		md[core.MetaSource] = core.SourceAttachment
		docs = append(docs, &core.Document{
			ID:       base.PassageID(i),
			Content:  passage,
			Metadata: md,
		})
	}

	n.logger.Debug("normalized file", "filename", filename, "passages", len(docs), "chars", len(text))
	return docs, nil
}
