package driven

import (
	"context"

	"github.com/loupe-search/loupe/internal/core/domain"
)

// DualIndex is the single write path into both index stores. A document's
// entries in the text and vector indexes change together: writes are staged
// out-of-band and made visible in one swap, so a concurrent query sees
// either the fully-old or fully-new version of a document, never a mix.
type DualIndex interface {
	// Replace stages the document's text postings and chunk vectors, then
	// swaps both into visibility atomically.
	Replace(ctx context.Context, doc TextDocument, vectors []VectorEntry) error

	// Remove deletes the document from both indexes atomically.
	Remove(ctx context.Context, docID string) error

	// SearchText runs keyword retrieval.
	SearchText(ctx context.Context, keywords []string, filter domain.SearchFilter, limit int) ([]TextHit, error)

	// SearchVector runs similarity retrieval. Returns
	// domain.ErrVectorIndexUnavailable when no vector index is configured.
	SearchVector(ctx context.Context, query []float32, k int, filter domain.SearchFilter) ([]VectorHit, error)

	// Close releases both underlying stores.
	Close() error
}
