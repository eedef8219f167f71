// Package index ties the text and vector stores into one write path.
//
// Both stores are updated "together" per document: writes are staged,
// then made visible in one swap guarded by a reader/writer lock shared
// with every search. A concurrent query therefore sees either the
// fully-old or fully-new version of a document, never text from one
// version and vectors from another. Both stores being local makes this
// sufficient without a two-phase-commit protocol.
package index

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/loupe-search/loupe/internal/core/domain"
	"github.com/loupe-search/loupe/internal/core/ports/driven"
	"github.com/loupe-search/loupe/internal/logger"
)

// Ensure Dual implements the interface.
var _ driven.DualIndex = (*Dual)(nil)

// Dual is the single write path into both index stores.
// The vector store is optional; without it only keyword search works.
type Dual struct {
	mu     sync.RWMutex
	text   driven.TextIndex
	vector driven.VectorIndex
}

// NewDual creates the dual store. vector may be nil.
func NewDual(text driven.TextIndex, vector driven.VectorIndex) *Dual {
	return &Dual{
		text:   text,
		vector: vector,
	}
}

// Replace stages the document's postings and vectors, then swaps both
// into visibility in one critical section. If the vector write fails the
// text write is rolled back so queries never see a half-updated document.
func (d *Dual) Replace(ctx context.Context, doc driven.TextDocument, vectors []driven.VectorEntry) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.text.Upsert(ctx, doc); err != nil {
		return fmt.Errorf("text upsert: %w", err)
	}

	if d.vector != nil {
		if err := d.vector.Upsert(ctx, doc.DocID, vectors, doc.Attrs); err != nil {
			if rbErr := d.text.Remove(ctx, doc.DocID); rbErr != nil {
				logger.Warn("Rollback of text postings for %s failed: %v", doc.DocID, rbErr)
			}
			return fmt.Errorf("vector upsert: %w", err)
		}
	}

	return nil
}

// Remove deletes the document from both indexes atomically.
func (d *Dual) Remove(ctx context.Context, docID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.text.Remove(ctx, docID); err != nil {
		return fmt.Errorf("text remove: %w", err)
	}
	if d.vector != nil {
		if err := d.vector.Remove(ctx, docID); err != nil {
			return fmt.Errorf("vector remove: %w", err)
		}
	}
	return nil
}

// SearchText runs keyword retrieval under the shared read lock.
func (d *Dual) SearchText(ctx context.Context, keywords []string, filter domain.SearchFilter, limit int) ([]driven.TextHit, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.text.Search(ctx, keywords, filter, limit)
}

// SearchVector runs similarity retrieval under the shared read lock.
func (d *Dual) SearchVector(ctx context.Context, query []float32, k int, filter domain.SearchFilter) ([]driven.VectorHit, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.vector == nil {
		return nil, domain.ErrVectorIndexUnavailable
	}
	return d.vector.Search(ctx, query, k, filter)
}

// Close releases both underlying stores.
func (d *Dual) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.text.Close(); err != nil {
		return err
	}
	if d.vector != nil {
		return d.vector.Close()
	}
	return nil
}

// Hydrate rebuilds both indexes from the document store. Only documents
// visible to search are loaded. A chunk whose embedding cannot be read is
// corruption scoped to its document: the document ID is returned for a
// targeted rebuild and hydration continues.
func (d *Dual) Hydrate(ctx context.Context, store driven.DocumentStore) (corrupt []string, err error) {
	docs, err := store.ListDocuments(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	for i := range docs {
		doc := &docs[i]
		if !doc.Searchable() {
			continue
		}

		chunks, err := store.GetChunks(ctx, doc.ID)
		if err != nil {
			logger.Warn("Hydrate: chunks for %s unreadable: %v", doc.ID, err)
			corrupt = append(corrupt, doc.ID)
			continue
		}

		var vectors []driven.VectorEntry
		for _, chunk := range chunks {
			if chunk.Embedding != nil {
				vectors = append(vectors, driven.VectorEntry{
					ChunkID:   chunk.ID,
					Embedding: chunk.Embedding,
				})
			}
		}

		textDoc := driven.TextDocument{
			DocID:    doc.ID,
			Body:     doc.Text,
			Filename: filepath.Base(doc.Path),
			Attrs: driven.DocAttrs{
				ContentType: doc.ContentType,
				Path:        doc.Path,
				ModifiedAt:  doc.ModifiedAt,
				Size:        doc.Size,
			},
		}

		if err := d.Replace(ctx, textDoc, vectors); err != nil {
			logger.Warn("Hydrate: reindex of %s failed: %v", doc.ID, err)
			corrupt = append(corrupt, doc.ID)
		}
	}

	logger.Info("Hydrated indexes: %d documents, %d corrupt", len(docs), len(corrupt))
	return corrupt, nil
}
