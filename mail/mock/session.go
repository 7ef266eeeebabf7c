// Package mock provides an in-memory mail.Session for tests.
package mock

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/poiesic/mailqa/mail"
)

// MockSession serves messages from memory. Listing ignores the query and
// returns every message id in insertion order, PageSize ids per page.
type MockSession struct {
	// PageSize is the number of ids per page. Zero means a single page.
	PageSize int

	// ListFunc, GetMessageFunc and GetAttachmentFunc override the default
	// behavior when set.
	ListFunc          func(ctx context.Context, query, pageToken string) (*mail.Page, error)
	GetMessageFunc    func(ctx context.Context, id string) (*mail.RawMessage, error)
	GetAttachmentFunc func(ctx context.Context, messageID, attachmentID string) (string, error)

	mu          sync.Mutex
	order       []string
	messages    map[string]*mail.RawMessage
	attachments map[string]string
	queries     []string
	calls       map[string]int
}

// NewMockSession creates an empty mailbox.
func NewMockSession() *MockSession {
	return &MockSession{
		messages:    make(map[string]*mail.RawMessage),
		attachments: make(map[string]string),
		calls:       make(map[string]int),
	}
}

// AddMessage adds msg to the mailbox. Listing order follows insertion.
func (m *MockSession) AddMessage(msg *mail.RawMessage) *MockSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.messages[msg.ID]; !ok {
		m.order = append(m.order, msg.ID)
	}
	m.messages[msg.ID] = msg
	return m
}

// AddAttachment registers base64 content returned for messageID/attachmentID.
func (m *MockSession) AddAttachment(messageID, attachmentID, data string) *MockSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attachments[messageID+"/"+attachmentID] = data
	return m
}

// ListMessages implements mail.Session.
func (m *MockSession) ListMessages(ctx context.Context, query, pageToken string) (*mail.Page, error) {
	m.mu.Lock()
	m.calls["list"]++
	m.queries = append(m.queries, query)
	fn := m.ListFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, query, pageToken)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	start := 0
	if pageToken != "" {
		var err error
		start, err = strconv.Atoi(pageToken)
		if err != nil {
			return nil, fmt.Errorf("bad page token %q", pageToken)
		}
	}
	end := len(m.order)
	if m.PageSize > 0 && start+m.PageSize < end {
		end = start + m.PageSize
	}

	page := &mail.Page{IDs: append([]string(nil), m.order[start:end]...)}
	if end < len(m.order) {
		page.NextPageToken = strconv.Itoa(end)
	}
	return page, nil
}

// GetMessage implements mail.Session.
func (m *MockSession) GetMessage(ctx context.Context, id string) (*mail.RawMessage, error) {
	m.mu.Lock()
	m.calls["get"]++
	fn := m.GetMessageFunc
	msg, ok := m.messages[id]
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, id)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("message %s not found", id)
	}
	return msg, nil
}

// GetAttachment implements mail.Session.
func (m *MockSession) GetAttachment(ctx context.Context, messageID, attachmentID string) (string, error) {
	m.mu.Lock()
	m.calls["attachment"]++
	fn := m.GetAttachmentFunc
	data, ok := m.attachments[messageID+"/"+attachmentID]
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, messageID, attachmentID)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("attachment %s/%s not found", messageID, attachmentID)
	}
	return data, nil
}

// CallCount returns how many times the named operation ("list", "get",
// "attachment") was called.
func (m *MockSession) CallCount(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

// Queries returns every query passed to ListMessages.
func (m *MockSession) Queries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.queries...)
}

// HTMLMessage builds a message with an HTML body part and optional attachments.
func HTMLMessage(id, from, subject, html string, attachments ...*mail.MessagePart) *mail.RawMessage {
	parts := []*mail.MessagePart{{
		PartID:   "0",
		MimeType: "text/html",
		Body:     mail.PartBody{Data: mail.EncodeData([]byte(html))},
	}}
	parts = append(parts, attachments...)
	return &mail.RawMessage{
		ID: id,
		Payload: &mail.MessagePart{
			MimeType: "multipart/mixed",
			Headers: []mail.Header{
				{Name: "From", Value: from},
				{Name: "Subject", Value: subject},
			},
			Parts: parts,
		},
	}
}

// AttachmentPart builds a part that references separately fetched content.
func AttachmentPart(filename, attachmentID string) *mail.MessagePart {
	return &mail.MessagePart{
		MimeType: "application/octet-stream",
		Filename: filename,
		Body:     mail.PartBody{AttachmentID: attachmentID},
	}
}
