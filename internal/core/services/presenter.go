package services

import (
	"strings"
	"unicode/utf8"

	"github.com/loupe-search/loupe/internal/core/domain"
)

const (
	// snippetContext is how many bytes of surrounding text each side of
	// a match contributes to its excerpt window.
	snippetContext = 60

	// maxSnippets caps the excerpts per result.
	maxSnippets = 3
)

// BuildSnippets turns match spans into excerpt windows over the document
// text. Overlapping and adjacent windows merge into one snippet, windows
// snap outward to word boundaries, and trimmed edges gain ellipses. A
// result without spans gets the opening of the document instead, so
// vector-only hits still render something useful.
func BuildSnippets(text string, spans []domain.MatchSpan) []domain.Snippet {
	if text == "" {
		return nil
	}
	if len(spans) == 0 {
		return []domain.Snippet{leadingSnippet(text)}
	}

	windows := spanWindows(text, spans)

	snippets := make([]domain.Snippet, 0, len(windows))
	for _, w := range windows {
		if len(snippets) >= maxSnippets {
			break
		}
		excerpt := strings.TrimSpace(text[w.start:w.end])
		if excerpt == "" {
			continue
		}
		if w.start > 0 {
			excerpt = "…" + excerpt
		}
		if w.end < len(text) {
			excerpt += "…"
		}
		snippets = append(snippets, domain.Snippet{Text: excerpt, Start: w.start})
	}
	return snippets
}

type window struct {
	start, end int
}

// spanWindows expands each span by the context margin, clamps to valid
// rune boundaries, and merges windows that touch.
func spanWindows(text string, spans []domain.MatchSpan) []window {
	windows := make([]window, 0, len(spans))
	for _, span := range spans {
		if span.Start < 0 || span.End > len(text) || span.Start >= span.End {
			continue
		}
		w := window{
			start: wordBoundaryBefore(text, span.Start-snippetContext),
			end:   wordBoundaryAfter(text, span.End+snippetContext),
		}
		windows = append(windows, w)
	}
	if len(windows) == 0 {
		return nil
	}

	// Spans arrive ordered by position; adjoining windows collapse.
	merged := windows[:1]
	for _, w := range windows[1:] {
		last := &merged[len(merged)-1]
		if w.start <= last.end {
			if w.end > last.end {
				last.end = w.end
			}
			continue
		}
		merged = append(merged, w)
	}
	return merged
}

// leadingSnippet excerpts the start of the document.
func leadingSnippet(text string) domain.Snippet {
	end := wordBoundaryAfter(text, 2*snippetContext)
	excerpt := strings.TrimSpace(text[:end])
	if end < len(text) {
		excerpt += "…"
	}
	return domain.Snippet{Text: excerpt, Start: 0}
}

// wordBoundaryBefore walks left from pos to the nearest whitespace so a
// window never opens mid-word. Gives up after the context margin and
// snaps to a rune boundary instead.
func wordBoundaryBefore(text string, pos int) int {
	if pos <= 0 {
		return 0
	}
	pos = runeStart(text, pos)
	for i := pos; i > 0 && pos-i < snippetContext; i-- {
		if isSpace(text[i-1]) {
			return i
		}
	}
	return pos
}

// wordBoundaryAfter walks right from pos to the nearest whitespace.
func wordBoundaryAfter(text string, pos int) int {
	if pos >= len(text) {
		return len(text)
	}
	pos = runeStart(text, pos)
	for i := pos; i < len(text) && i-pos < snippetContext; i++ {
		if isSpace(text[i]) {
			return i
		}
	}
	return pos
}

// runeStart moves pos back to the start of the rune it falls inside.
func runeStart(text string, pos int) int {
	for pos > 0 && pos < len(text) && !utf8.RuneStart(text[pos]) {
		pos--
	}
	return pos
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
