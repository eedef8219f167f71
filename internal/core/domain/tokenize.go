package domain

import (
	"strings"
	"unicode"
)

// TokenSpan is one token with its byte range in the source text.
type TokenSpan struct {
	Term  string
	Start int
	End   int
}

// TokenizeSpans lowercases the text and splits it into alphanumeric runs,
// recording each token's byte range. Both the text index and the query
// normaliser use the same rules so query terms line up with postings.
func TokenizeSpans(text string) []TokenSpan {
	var tokens []TokenSpan
	start := -1

	for i, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			tokens = append(tokens, TokenSpan{
				Term:  strings.ToLower(text[start:i]),
				Start: start,
				End:   i,
			})
			start = -1
		}
	}

	if start >= 0 {
		tokens = append(tokens, TokenSpan{
			Term:  strings.ToLower(text[start:]),
			Start: start,
			End:   len(text),
		})
	}

	return tokens
}

// Tokenize returns just the token terms of the text.
func Tokenize(text string) []string {
	spans := TokenizeSpans(text)
	terms := make([]string, len(spans))
	for i, s := range spans {
		terms[i] = s.Term
	}
	return terms
}
