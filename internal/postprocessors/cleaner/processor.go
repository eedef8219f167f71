// Package cleaner normalises extracted text before chunking. Control
// characters are dropped and whitespace runs collapse, so chunk
// boundaries and match spans operate over tidy text regardless of the
// source format.
package cleaner

import (
	"context"
	"strings"
	"unicode"

	"github.com/loupe-search/loupe/internal/core/domain"
)

// Processor rewrites the document text in place and passes chunks
// through untouched; it runs ahead of the chunking stage.
type Processor struct{}

// New creates a cleaner processor.
func New() *Processor {
	return &Processor{}
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "cleaner"
}

// Process normalises the document's extracted text.
func (p *Processor) Process(_ context.Context, doc *domain.IndexedDocument, chunks []domain.ContentChunk) ([]domain.ContentChunk, error) {
	doc.Text = Clean(doc.Text)
	return chunks, nil
}

// Clean collapses horizontal whitespace runs to one space, caps blank
// lines at one, drops non-printing control characters and trims the
// edges.
func Clean(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	pendingSpace := false
	pendingNewlines := 0
	for _, r := range s {
		switch {
		case r == '\n':
			pendingNewlines++
		case unicode.IsSpace(r):
			pendingSpace = true
		case unicode.IsControl(r):
			// dropped
		default:
			if b.Len() > 0 {
				if pendingNewlines > 0 {
					b.WriteByte('\n')
					if pendingNewlines > 1 {
						b.WriteByte('\n')
					}
				} else if pendingSpace {
					b.WriteByte(' ')
				}
			}
			pendingSpace = false
			pendingNewlines = 0
			b.WriteRune(r)
		}
	}
	return b.String()
}
