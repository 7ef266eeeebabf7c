package imap

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	_ "github.com/emersion/go-message/charset"
	gomail "github.com/emersion/go-message/mail"
	"github.com/poiesic/mailqa/core"
	"github.com/poiesic/mailqa/mail"
)

const (
	defaultMailbox  = "INBOX"
	defaultPageSize = 100
)

// Config holds IMAP connection settings.
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	TLS      bool   // implicit TLS; otherwise STARTTLS
	Mailbox  string // default INBOX
	PageSize int    // ids per listing page, default 100
}

// Session implements mail.Session over IMAP. Each call opens its own
// connection, so a Session is safe for concurrent use.
type Session struct {
	cfg    Config
	logger *slog.Logger
}

var _ mail.Session = (*Session)(nil)

// NewSession validates cfg and returns a Session.
func NewSession(cfg Config) (*Session, error) {
	if cfg.Host == "" || cfg.Username == "" {
		return nil, fmt.Errorf("%w: imap host and username are required", core.ErrNotAuthenticated)
	}
	if cfg.Port == "" {
		cfg.Port = "993"
	}
	if cfg.Mailbox == "" {
		cfg.Mailbox = defaultMailbox
	}
	if cfg.PageSize < 1 {
		cfg.PageSize = defaultPageSize
	}
	return &Session{
		cfg:    cfg,
		logger: slog.Default().With("component", "imap", "host", cfg.Host),
	}, nil
}

// connect dials, authenticates, and selects the configured mailbox.
func (s *Session) connect(ctx context.Context) (*imapclient.Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	addr := s.cfg.Host + ":" + s.cfg.Port

	var client *imapclient.Client
	var err error
	if s.cfg.TLS {
		client, err = imapclient.DialTLS(addr, nil)
	} else {
		client, err = imapclient.DialStartTLS(addr, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}

	if err := client.Login(s.cfg.Username, s.cfg.Password).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, fmt.Errorf("%w: login as %s: %w", core.ErrNotAuthenticated, s.cfg.Username, err)
	}

	if _, err := client.Select(s.cfg.Mailbox, nil).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, fmt.Errorf("selecting %s: %w", s.cfg.Mailbox, err)
	}
	return client, nil
}

// ListMessages searches the mailbox and returns UIDs as ids. Page tokens are
// offsets into the ascending UID list.
func (s *Session) ListMessages(ctx context.Context, query, pageToken string) (*mail.Page, error) {
	criteria, err := buildCriteria(query)
	if err != nil {
		return nil, err
	}
	offset := 0
	if pageToken != "" {
		offset, err = strconv.Atoi(pageToken)
		if err != nil || offset < 0 {
			return nil, fmt.Errorf("invalid page token %q", pageToken)
		}
	}

	client, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Logout().Wait() }()

	data, err := client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("searching messages: %w", err)
	}
	uids := data.AllUIDs()
	slices.Sort(uids)

	return paginate(uids, offset, s.cfg.PageSize), nil
}

func paginate(uids []imap.UID, offset, size int) *mail.Page {
	page := &mail.Page{IDs: []string{}}
	if offset >= len(uids) {
		return page
	}
	end := min(offset+size, len(uids))
	for _, uid := range uids[offset:end] {
		page.IDs = append(page.IDs, strconv.FormatUint(uint64(uid), 10))
	}
	if end < len(uids) {
		page.NextPageToken = strconv.Itoa(end)
	}
	return page
}

// buildCriteria maps a provider query string onto IMAP SEARCH criteria.
func buildCriteria(query string) (*imap.SearchCriteria, error) {
	pq, err := mail.ParseQuery(query)
	if err != nil {
		return nil, err
	}
	criteria := &imap.SearchCriteria{
		Since:  pq.After,
		Before: pq.Before,
	}
	if pq.Text != "" {
		criteria.Text = []string{pq.Text}
	}
	return criteria, nil
}

// GetMessage fetches and parses the full message with the given UID.
func (s *Session) GetMessage(ctx context.Context, id string) (*mail.RawMessage, error) {
	raw, err := s.fetchRaw(ctx, id)
	if err != nil {
		return nil, err
	}
	return parseMessage(id, raw)
}

// GetAttachment re-fetches the message and returns the part whose PartID
// matches attachmentID. Parsed IMAP messages already carry attachment data
// inline, so this is only used by callers that discard it.
func (s *Session) GetAttachment(ctx context.Context, messageID, attachmentID string) (string, error) {
	msg, err := s.GetMessage(ctx, messageID)
	if err != nil {
		return "", err
	}
	var found *mail.MessagePart
	msg.Walk(func(p *mail.MessagePart) {
		if found == nil && p.PartID == attachmentID {
			found = p
		}
	})
	if found == nil {
		return "", fmt.Errorf("attachment %s not found in message %s", attachmentID, messageID)
	}
	return found.Body.Data, nil
}

func (s *Session) fetchRaw(ctx context.Context, id string) ([]byte, error) {
	uid, err := strconv.ParseUint(id, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid message id %q: %w", id, err)
	}

	client, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Logout().Wait() }()

	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchCmd := client.Fetch(imap.UIDSetNum(imap.UID(uid)), &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	})
	defer fetchCmd.Close()

	msg := fetchCmd.Next()
	if msg == nil {
		return nil, fmt.Errorf("message UID %d not found", uid)
	}
	buf, err := msg.Collect()
	if err != nil {
		return nil, fmt.Errorf("collecting message data: %w", err)
	}
	raw := buf.FindBodySection(bodySection)
	if raw == nil {
		return nil, fmt.Errorf("message UID %d has no body", uid)
	}
	if err := fetchCmd.Close(); err != nil {
		return nil, fmt.Errorf("closing fetch: %w", err)
	}
	return raw, nil
}

// parseMessage converts an RFC 5322 message into a flat part tree under a
// multipart payload. Attachment data is carried inline.
func parseMessage(id string, raw []byte) (*mail.RawMessage, error) {
	mr, err := gomail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parsing message %s: %w", id, err)
	}
	defer mr.Close()

	payload := &mail.MessagePart{MimeType: "multipart/mixed"}
	for _, name := range []string{"From", "Subject", "Date", "Message-Id"} {
		value, err := mr.Header.Text(name)
		if err != nil {
			value = mr.Header.Get(name)
		}
		if value != "" {
			payload.Headers = append(payload.Headers, mail.Header{Name: name, Value: value})
		}
	}

	for n := 0; ; n++ {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// Keep whatever parsed cleanly
			break
		}

		body, readErr := io.ReadAll(part.Body)
		if readErr != nil {
			continue
		}
		mp := &mail.MessagePart{
			PartID: strconv.Itoa(n),
			Body:   mail.PartBody{Data: mail.EncodeData(body), Size: int64(len(body))},
		}

		switch h := part.Header.(type) {
		case *gomail.InlineHeader:
			contentType, _, _ := h.ContentType()
			mp.MimeType = strings.ToLower(contentType)
		case *gomail.AttachmentHeader:
			contentType, _, _ := h.ContentType()
			mp.MimeType = strings.ToLower(contentType)
			mp.Filename, _ = h.Filename()
			if mp.Filename == "" {
				mp.Filename = "attachment-" + mp.PartID
			}
		}
		payload.Parts = append(payload.Parts, mp)
	}

	return &mail.RawMessage{ID: id, Payload: payload}, nil
}
