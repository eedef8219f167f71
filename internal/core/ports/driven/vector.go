package driven

import (
	"context"
	"time"

	"github.com/loupe-search/loupe/internal/core/domain"
)

// DocAttrs are the filterable attributes both index stores keep per
// document so filters can be pushed down before ranking.
type DocAttrs struct {
	ContentType domain.ContentType
	Path        string
	ModifiedAt  time.Time
	Size        int64
}

// VectorIndex provides semantic similarity search over chunk embeddings.
// A flat exact index is sufficient at the target scale of a personal file
// corpus; similarity is cosine, normalised into [0,1].
type VectorIndex interface {
	// Upsert replaces all vectors for the document atomically.
	Upsert(ctx context.Context, docID string, entries []VectorEntry, attrs DocAttrs) error

	// Remove deletes all vectors for the document.
	Remove(ctx context.Context, docID string) error

	// Search finds the k most similar chunks to the query vector, with
	// the filter applied before ranking.
	Search(ctx context.Context, query []float32, k int, filter domain.SearchFilter) ([]VectorHit, error)

	// Close releases resources.
	Close() error
}

// VectorEntry is one chunk's vector.
type VectorEntry struct {
	// ChunkID identifies the chunk.
	ChunkID string

	// Embedding is the chunk vector.
	Embedding []float32
}

// VectorHit is one similarity search result.
type VectorHit struct {
	// ChunkID is the matched chunk.
	ChunkID string

	// DocID is the owning document.
	DocID string

	// Similarity is the cosine similarity score in [0,1].
	Similarity float64
}
