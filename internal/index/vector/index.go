// Package vector provides a flat exact-similarity index over chunk
// embeddings. At the target scale of a personal file corpus an exhaustive
// scan outperforms approximate structures once index maintenance is
// accounted for, so no graph or quantisation layer is used.
package vector

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"

	"github.com/loupe-search/loupe/internal/core/domain"
	"github.com/loupe-search/loupe/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// chunkVector is one stored chunk embedding, unit-normalised at insert.
type chunkVector struct {
	chunkID string
	vec     []float32
}

// docEntry holds all vectors and filterable attributes for one document.
type docEntry struct {
	attrs  driven.DocAttrs
	chunks []chunkVector
}

// Index is an in-memory flat cosine index rebuilt from stored chunk
// embeddings on startup. All methods are safe for concurrent use.
type Index struct {
	mu   sync.RWMutex
	docs map[string]docEntry
	dims int
}

// New creates an empty vector index for embeddings of the given dimension.
func New(dims int) (*Index, error) {
	if dims <= 0 {
		return nil, errors.New("vector: dimension must be positive")
	}
	return &Index{
		docs: make(map[string]docEntry),
		dims: dims,
	}, nil
}

// Dimensions returns the configured embedding size.
func (idx *Index) Dimensions() int {
	return idx.dims
}

// Upsert replaces all vectors for the document. Vectors are normalised
// outside the lock; the swap itself is a single map write.
func (idx *Index) Upsert(_ context.Context, docID string, entries []driven.VectorEntry, attrs driven.DocAttrs) error {
	if docID == "" {
		return domain.ErrInvalidInput
	}

	staged := make([]chunkVector, 0, len(entries))
	for _, e := range entries {
		if len(e.Embedding) != idx.dims {
			return errors.New("vector: embedding dimension mismatch")
		}
		staged = append(staged, chunkVector{
			chunkID: e.ChunkID,
			vec:     normalise(e.Embedding),
		})
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.docs[docID] = docEntry{attrs: attrs, chunks: staged}
	return nil
}

// Remove deletes all vectors for the document.
func (idx *Index) Remove(_ context.Context, docID string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	delete(idx.docs, docID)
	return nil
}

// Search scans all stored vectors and returns the k most similar chunks.
// The filter is applied per document before any similarity is computed.
// Similarity is cosine mapped into [0,1].
func (idx *Index) Search(_ context.Context, query []float32, k int, filter domain.SearchFilter) ([]driven.VectorHit, error) {
	if len(query) != idx.dims {
		return nil, errors.New("vector: query dimension mismatch")
	}
	if k <= 0 {
		return nil, nil
	}

	q := normalise(query)

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var hits []driven.VectorHit
	for docID, entry := range idx.docs {
		if !filter.Matches(entry.attrs.ContentType, entry.attrs.Path, entry.attrs.ModifiedAt, entry.attrs.Size) {
			continue
		}
		for _, cv := range entry.chunks {
			sim := (1 + dot(q, cv.vec)) / 2
			hits = append(hits, driven.VectorHit{
				ChunkID:    cv.chunkID,
				DocID:      docID,
				Similarity: sim,
			})
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Len returns the number of indexed documents.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.docs)
}

// Close releases resources. The in-memory index has none.
func (idx *Index) Close() error {
	return nil
}

// normalise returns a unit-length copy of the vector. A zero vector is
// returned unchanged so its similarity stays at the midpoint.
func normalise(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		out := make([]float32, len(vec))
		copy(out, vec)
		return out
	}

	inv := 1 / math.Sqrt(sum)
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(float64(v) * inv)
	}
	return out
}

// dot computes the inner product of two equal-length vectors.
func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
