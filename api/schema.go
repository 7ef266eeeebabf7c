package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/poiesic/mailqa/core"
	"github.com/poiesic/mailqa/ingestion"
	"github.com/poiesic/mailqa/qa"
)

const dateLayout = "2006-01-02"

// ingestRequest is the body of POST /retrieve-documents. Pointer fields
// distinguish a missing field from an empty one.
type ingestRequest struct {
	StartDate *string `json:"start_date"`
	EndDate   *string `json:"end_date"`
	QueryText *string `json:"query_text"`
}

func (r *ingestRequest) window() (core.QueryWindow, error) {
	if r.StartDate == nil || r.EndDate == nil || r.QueryText == nil {
		return core.QueryWindow{}, fmt.Errorf("%w: start_date, end_date and query_text are required", core.ErrMalformedRequest)
	}
	start, err := time.Parse(dateLayout, *r.StartDate)
	if err != nil {
		return core.QueryWindow{}, fmt.Errorf("%w: start_date must be YYYY-MM-DD", core.ErrMalformedRequest)
	}
	end, err := time.Parse(dateLayout, *r.EndDate)
	if err != nil {
		return core.QueryWindow{}, fmt.Errorf("%w: end_date must be YYYY-MM-DD", core.ErrMalformedRequest)
	}
	w := core.QueryWindow{Start: start, End: end, Query: strings.TrimSpace(*r.QueryText)}
	if err := w.Validate(); err != nil {
		return core.QueryWindow{}, err
	}
	return w, nil
}

// questionRequest is the body of POST /run-query.
type questionRequest struct {
	QuestionText *string `json:"question_text"`
}

func (r *questionRequest) question() (string, error) {
	if r.QuestionText == nil || strings.TrimSpace(*r.QuestionText) == "" {
		return "", fmt.Errorf("%w: question_text is required", core.ErrMalformedRequest)
	}
	return strings.TrimSpace(*r.QuestionText), nil
}

type skipResponse struct {
	Item  string `json:"item"`
	Error string `json:"error"`
}

type ingestResponse struct {
	RunID              string         `json:"run_id"`
	MessagesFound      int            `json:"messages_found"`
	MessagesProcessed  int            `json:"messages_processed"`
	DocumentsWritten   int            `json:"documents_written"`
	AttachmentsStaged  int            `json:"attachments_staged"`
	AttachmentsIgnored int            `json:"attachments_ignored"`
	Skipped            int            `json:"skipped"`
	Skips              []skipResponse `json:"skips"`
	Interrupted        bool           `json:"interrupted"`
	ElapsedMillis      int64          `json:"elapsed_ms"`
}

func newIngestResponse(r *ingestion.Report) *ingestResponse {
	skips := make([]skipResponse, 0, len(r.Skips))
	for _, s := range r.Skips {
		skips = append(skips, skipResponse{Item: s.Item, Error: s.Err.Error()})
	}
	return &ingestResponse{
		RunID:              r.RunID.String(),
		MessagesFound:      r.MessagesFound,
		MessagesProcessed:  r.MessagesProcessed,
		DocumentsWritten:   r.DocumentsWritten,
		AttachmentsStaged:  r.AttachmentsStaged,
		AttachmentsIgnored: r.AttachmentsIgnored,
		Skipped:            len(skips),
		Skips:              skips,
		Interrupted:        r.Interrupted,
		ElapsedMillis:      r.Elapsed.Milliseconds(),
	}
}

type evidenceResponse struct {
	ID       string            `json:"id"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata"`
}

type answerResponse struct {
	AnswerText string             `json:"answer_text"`
	Found      bool               `json:"found"`
	Evidence   []evidenceResponse `json:"evidence"`
}

func newAnswerResponse(a *qa.Answer) *answerResponse {
	evidence := make([]evidenceResponse, 0, len(a.Evidence))
	for _, doc := range a.Evidence {
		md := doc.Metadata
		if md == nil {
			md = map[string]string{}
		}
		evidence = append(evidence, evidenceResponse{ID: string(doc.ID), Content: doc.Content, Metadata: md})
	}
	return &answerResponse{AnswerText: a.Text, Found: a.Found(), Evidence: evidence}
}

type healthResponse struct {
	Status    string `json:"status"`
	Documents int    `json:"documents"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`

	// Report is set when an ingestion failed after doing some work.
	Report *ingestResponse `json:"report,omitempty"`
}

// decode reads exactly one JSON object from body into v. Unknown fields,
// mistyped values and trailing data are malformed requests.
func decode(body []byte, v any) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return fmt.Errorf("%w: empty body", core.ErrMalformedRequest)
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %w", core.ErrMalformedRequest, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: unexpected data after JSON object", core.ErrMalformedRequest)
	}
	return nil
}
