package mail

import (
	"context"
	"strings"
)

// Session is an authenticated connection to a mailbox provider.
// Implementations must be safe for concurrent use.
type Session interface {
	// ListMessages returns one page of message ids matching query.
	// An empty pageToken requests the first page.
	ListMessages(ctx context.Context, query, pageToken string) (*Page, error)

	// GetMessage retrieves a message with its full part tree.
	GetMessage(ctx context.Context, id string) (*RawMessage, error)

	// GetAttachment retrieves attachment content as URL-safe base64.
	GetAttachment(ctx context.Context, messageID, attachmentID string) (string, error)
}

// Page is one page of a message listing.
type Page struct {
	IDs           []string
	NextPageToken string
}

// Header is a single name/value header. Names may repeat.
type Header struct {
	Name  string
	Value string
}

// PartBody is the payload of a message part.
// Data is provider URL-safe base64; AttachmentID is set when the content must
// be fetched separately.
type PartBody struct {
	AttachmentID string
	Data         string
	Size         int64
}

// MessagePart is one node of a MIME part tree.
type MessagePart struct {
	PartID   string
	MimeType string
	Filename string
	Headers  []Header
	Body     PartBody
	Parts    []*MessagePart
}

// RawMessage is a message as returned by a provider.
type RawMessage struct {
	ID      string
	Headers []Header
	Payload *MessagePart
}

// Header returns the value of the first header named name, compared
// case-insensitively. Top-level headers are searched before the payload's.
func (m *RawMessage) Header(name string) string {
	if v, ok := findHeader(m.Headers, name); ok {
		return v
	}
	if m.Payload != nil {
		if v, ok := findHeader(m.Payload.Headers, name); ok {
			return v
		}
	}
	return ""
}

func findHeader(headers []Header, name string) (string, bool) {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value, true
		}
	}
	return "", false
}

// Walk visits every part in depth-first pre-order, starting with the payload.
func (m *RawMessage) Walk(fn func(*MessagePart)) {
	if m.Payload == nil {
		return
	}
	var walk func(*MessagePart)
	walk = func(p *MessagePart) {
		if p == nil {
			return
		}
		fn(p)
		for _, child := range p.Parts {
			walk(child)
		}
	}
	walk(m.Payload)
}
