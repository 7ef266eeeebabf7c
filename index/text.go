package index

import (
	"strings"
	"unicode"
)

// Stop words carry no ranking signal and are dropped from documents and queries
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "be": true, "is": true, "are": true,
	"was": true, "to": true, "of": true, "and": true, "in": true, "that": true,
	"have": true, "it": true, "for": true, "not": true, "on": true, "with": true,
	"as": true, "you": true, "do": true, "at": true, "this": true, "but": true,
	"by": true, "from": true, "or": true, "what": true, "which": true, "who": true,
	"how": true, "when": true, "where": true, "did": true, "does": true, "i": true,
	"me": true, "my": true, "we": true, "our": true, "your": true, "there": true,
}

// Tokenize splits text into lowercase terms on any non letter/digit rune and removes stop words.
// Order and repetition are preserved so callers can count term frequency.
func Tokenize(text string) []string {
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	filtered := make([]string, 0, len(words))

	for _, word := range words {
		cleaned := strings.ToLower(word)

		// Skip stop words and empty strings
		if cleaned != "" && !stopWords[cleaned] {
			filtered = append(filtered, cleaned)
		}
	}

	return filtered
}

// ContainsAllTerms checks if all query terms (after filtering) appear in the text
func ContainsAllTerms(text, query string) bool {
	queryTerms := Tokenize(query)
	if len(queryTerms) == 0 {
		return false
	}

	docTerms := Tokenize(text)
	docTermSet := make(map[string]bool, len(docTerms))
	for _, term := range docTerms {
		docTermSet[term] = true
	}

	for _, term := range queryTerms {
		if !docTermSet[term] {
			return false
		}
	}

	return true
}
