package normalize

import (
	"io"
	"strings"

	"golang.org/x/net/html"
)

// HTMLToText reduces an HTML document to its visible text. Block elements end
// a line, runs of whitespace collapse to one space, and blank lines are dropped.
func HTMLToText(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		switch n.Type {
		case html.ElementNode:
			// Skip non-content tags
			switch strings.ToLower(n.Data) {
			case "style", "script", "noscript", "iframe", "head", "meta", "link", "title":
				return
			}
		case html.TextNode:
			b.WriteString(n.Data)
			b.WriteString(" ")
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}

		if n.Type == html.ElementNode {
			switch strings.ToLower(n.Data) {
			case "p", "div", "br", "h1", "h2", "h3", "h4", "h5", "h6", "li", "tr", "table", "blockquote", "pre":
				b.WriteString("\n")
			}
		}
	}
	extract(doc)

	return collapseWhitespace(b.String()), nil
}

// collapseWhitespace normalizes spacing inside each line and drops empty lines.
func collapseWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
