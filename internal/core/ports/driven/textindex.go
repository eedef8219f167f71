package driven

import (
	"context"

	"github.com/loupe-search/loupe/internal/core/domain"
)

// TextIndex provides full-text search over tokenised document content.
// Implementations use standard inverted-index scoring (BM25) plus exact
// phrase and prefix matching for filenames.
type TextIndex interface {
	// Upsert replaces all postings for the document atomically.
	Upsert(ctx context.Context, doc TextDocument) error

	// Remove deletes all postings for the document.
	Remove(ctx context.Context, docID string) error

	// Search returns documents ranked by lexical score, with the filter
	// applied before ranking.
	Search(ctx context.Context, keywords []string, filter domain.SearchFilter, limit int) ([]TextHit, error)

	// Close releases resources.
	Close() error
}

// TextDocument is the indexable view of a document.
type TextDocument struct {
	// DocID identifies the document.
	DocID string

	// Body is the extracted plain text.
	Body string

	// Filename is the base name, indexed separately for exact and
	// prefix matching.
	Filename string

	// Attrs carry the filterable attributes.
	Attrs DocAttrs
}

// TextHit is one ranked result from the text index.
type TextHit struct {
	// DocID is the matched document.
	DocID string

	// Score is the BM25 relevance score.
	Score float64

	// Spans are byte ranges of matched terms within the document body.
	Spans []domain.MatchSpan

	// ExactFilename reports an exact or prefix filename match,
	// used as a fusion tie-break.
	ExactFilename bool
}
