package gmail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/poiesic/mailqa/core"
	"github.com/poiesic/mailqa/mail"
	"golang.org/x/oauth2"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const defaultUser = "me"

// Session implements mail.Session over the Gmail REST API.
type Session struct {
	svc    *gmailapi.Service
	user   string
	logger *slog.Logger
}

var _ mail.Session = (*Session)(nil)

// NewSession creates a Session using the given client options, typically
// option.WithTokenSource or option.WithHTTPClient.
func NewSession(ctx context.Context, opts ...option.ClientOption) (*Session, error) {
	svc, err := gmailapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating gmail service: %w", err)
	}
	return &Session{
		svc:    svc,
		user:   defaultUser,
		logger: slog.Default().With("component", "gmail"),
	}, nil
}

// ListMessages returns one page of message ids matching query.
func (s *Session) ListMessages(ctx context.Context, query, pageToken string) (*mail.Page, error) {
	call := s.svc.Users.Messages.List(s.user).Q(query).Context(ctx)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}
	resp, err := call.Do()
	if err != nil {
		return nil, mapError(err)
	}

	page := &mail.Page{
		IDs:           make([]string, 0, len(resp.Messages)),
		NextPageToken: resp.NextPageToken,
	}
	for _, m := range resp.Messages {
		page.IDs = append(page.IDs, m.Id)
	}
	s.logger.Debug("listed page", "messages", len(page.IDs), "more", page.NextPageToken != "")
	return page, nil
}

// GetMessage retrieves the full message.
func (s *Session) GetMessage(ctx context.Context, id string) (*mail.RawMessage, error) {
	msg, err := s.svc.Users.Messages.Get(s.user, id).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, mapError(err)
	}
	return convertMessage(msg), nil
}

// GetAttachment retrieves attachment content as URL-safe base64.
func (s *Session) GetAttachment(ctx context.Context, messageID, attachmentID string) (string, error) {
	body, err := s.svc.Users.Messages.Attachments.Get(s.user, messageID, attachmentID).Context(ctx).Do()
	if err != nil {
		return "", mapError(err)
	}
	return body.Data, nil
}

func convertMessage(msg *gmailapi.Message) *mail.RawMessage {
	return &mail.RawMessage{
		ID:      msg.Id,
		Payload: convertPart(msg.Payload),
	}
}

func convertPart(p *gmailapi.MessagePart) *mail.MessagePart {
	if p == nil {
		return nil
	}
	part := &mail.MessagePart{
		PartID:   p.PartId,
		MimeType: p.MimeType,
		Filename: p.Filename,
	}
	for _, h := range p.Headers {
		part.Headers = append(part.Headers, mail.Header{Name: h.Name, Value: h.Value})
	}
	if p.Body != nil {
		part.Body = mail.PartBody{
			AttachmentID: p.Body.AttachmentId,
			Data:         p.Body.Data,
			Size:         p.Body.Size,
		}
	}
	for _, child := range p.Parts {
		part.Parts = append(part.Parts, convertPart(child))
	}
	return part
}

// mapError classifies API failures. Rejected or expired credentials become
// core.ErrNotAuthenticated; everything else is left for the caller to tag.
func mapError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %w", core.ErrNotAuthenticated, err)
		}
		return err
	}
	var tokenErr *oauth2.RetrieveError
	if errors.As(err, &tokenErr) {
		return fmt.Errorf("%w: %w", core.ErrNotAuthenticated, err)
	}
	return err
}
