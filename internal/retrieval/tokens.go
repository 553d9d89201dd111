package retrieval

import (
	"strings"
	"unicode"
)

// Tokenize lowercases text and splits it on any rune that is not a
// letter or digit. Lexical scoring, reranking, and citation
// attribution all share this tokenizer so their overlap counts agree.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// TokenSet returns the distinct tokens of text.
func TokenSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range Tokenize(text) {
		set[tok] = struct{}{}
	}
	return set
}

// CountOccurrences counts how many times any of the query tokens
// appear in the text tokens, counting repeats.
func CountOccurrences(queryTokens []string, text string) int {
	if len(queryTokens) == 0 {
		return 0
	}
	want := make(map[string]struct{}, len(queryTokens))
	for _, tok := range queryTokens {
		want[tok] = struct{}{}
	}
	count := 0
	for _, tok := range Tokenize(text) {
		if _, ok := want[tok]; ok {
			count++
		}
	}
	return count
}
