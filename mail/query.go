package mail

import (
	"fmt"
	"strings"
	"time"

	"github.com/poiesic/mailqa/core"
)

const queryDateLayout = "2006/01/02"

// BuildQuery renders a window as a provider search string:
//
//	"<text>" after:YYYY/MM/DD before:YYYY/MM/DD
//
// before is exclusive on the provider side, so it is set to the day after End.
func BuildQuery(w core.QueryWindow) string {
	var b strings.Builder
	if text := strings.TrimSpace(w.Query); text != "" {
		b.WriteString(`"`)
		b.WriteString(strings.ReplaceAll(text, `"`, ""))
		b.WriteString(`" `)
	}
	fmt.Fprintf(&b, "after:%s before:%s",
		w.Start.Format(queryDateLayout),
		w.End.AddDate(0, 0, 1).Format(queryDateLayout))
	return b.String()
}

// ParsedQuery is the decomposed form of a query built by BuildQuery.
type ParsedQuery struct {
	Text   string
	After  time.Time // inclusive
	Before time.Time // exclusive
}

// ParseQuery inverts BuildQuery for providers without Gmail search syntax.
func ParseQuery(q string) (*ParsedQuery, error) {
	pq := &ParsedQuery{}
	rest := strings.TrimSpace(q)

	if strings.HasPrefix(rest, `"`) {
		end := strings.Index(rest[1:], `"`)
		if end < 0 {
			return nil, fmt.Errorf("%w: unterminated quote in %q", ErrInvalidQuery, q)
		}
		pq.Text = rest[1 : end+1]
		rest = rest[end+2:]
	}

	var words []string
	for _, field := range strings.Fields(rest) {
		key, value, ok := strings.Cut(field, ":")
		if !ok {
			words = append(words, field)
			continue
		}
		var err error
		switch key {
		case "after":
			pq.After, err = time.Parse(queryDateLayout, value)
		case "before":
			pq.Before, err = time.Parse(queryDateLayout, value)
		default:
			words = append(words, field)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidQuery, key, err)
		}
	}
	if pq.Text == "" && len(words) > 0 {
		pq.Text = strings.Join(words, " ")
	}
	return pq, nil
}
