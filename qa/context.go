package qa

import (
	"strings"
	"unicode/utf8"

	"github.com/poiesic/mailqa/core"
)

const entrySeparator = "\n\n---\n\n"

// label names where a document came from so the model can cite it.
func label(doc *core.Document) string {
	var b strings.Builder
	if v := doc.Meta(core.MetaSender); v != "" {
		b.WriteString("From: " + v + "\n")
	}
	if v := doc.Meta(core.MetaSubject); v != "" {
		b.WriteString("Subject: " + v + "\n")
	}
	if v := doc.Meta(core.MetaSourceFilename); v != "" {
		b.WriteString("File: " + v + "\n")
	}
	return b.String()
}

// buildContext concatenates ranked documents until budget runes are used.
// The last document that fits only partially is truncated. Evidence lists
// every document that contributed content, in rank order.
func buildContext(docs []*core.Document, budget int) (string, []*core.Document) {
	var b strings.Builder
	evidence := make([]*core.Document, 0, len(docs))
	used := 0

	for _, doc := range docs {
		prefix := label(doc)
		if len(evidence) > 0 {
			prefix = entrySeparator + prefix
		}
		remaining := budget - used
		prefixLen := utf8.RuneCountInString(prefix)
		if remaining <= prefixLen {
			break
		}

		content := doc.Content
		if n := utf8.RuneCountInString(content); prefixLen+n > remaining {
			content = truncateRunes(content, remaining-prefixLen)
		}
		if content == "" {
			continue
		}

		b.WriteString(prefix)
		b.WriteString(content)
		used += prefixLen + utf8.RuneCountInString(content)
		evidence = append(evidence, doc)
	}
	return b.String(), evidence
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
