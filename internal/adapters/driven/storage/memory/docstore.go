package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/loupe-search/loupe/internal/core/domain"
	"github.com/loupe-search/loupe/internal/core/ports/driven"
)

// Ensure DocumentStore implements the interface.
var _ driven.DocumentStore = (*DocumentStore)(nil)

// DocumentStore is an in-memory implementation of driven.DocumentStore.
type DocumentStore struct {
	mu        sync.RWMutex
	documents map[string]domain.IndexedDocument
	chunks    map[string][]domain.ContentChunk
}

// NewDocumentStore creates a new in-memory document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		documents: make(map[string]domain.IndexedDocument),
		chunks:    make(map[string][]domain.ContentChunk),
	}
}

// SaveDocument stores or updates a document.
func (s *DocumentStore) SaveDocument(_ context.Context, doc *domain.IndexedDocument) error {
	if doc.ID == "" || doc.Path == "" {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents[doc.ID] = *doc
	return nil
}

// SaveChunks replaces all chunks for the chunks' document.
func (s *DocumentStore) SaveChunks(_ context.Context, chunks []domain.ContentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	docID := chunks[0].DocumentID
	s.chunks[docID] = append([]domain.ContentChunk(nil), chunks...)
	return nil
}

// GetDocument retrieves a document by ID.
func (s *DocumentStore) GetDocument(_ context.Context, id string) (*domain.IndexedDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &doc, nil
}

// GetDocumentByPath retrieves a document by absolute path.
func (s *DocumentStore) GetDocumentByPath(_ context.Context, path string) (*domain.IndexedDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id := range s.documents {
		if s.documents[id].Path == path {
			doc := s.documents[id]
			return &doc, nil
		}
	}
	return nil, domain.ErrNotFound
}

// GetDocumentByHash retrieves a document by content hash. Live rows win
// over soft-deleted ones, but a deleted row still matches: a rename
// whose removal event lands first must find it to keep the identity.
func (s *DocumentStore) GetDocumentByHash(_ context.Context, hash string) (*domain.IndexedDocument, error) {
	if hash == "" {
		return nil, domain.ErrNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var deleted *domain.IndexedDocument
	for id := range s.documents {
		doc := s.documents[id]
		if doc.ContentHash != hash {
			continue
		}
		if doc.Status != domain.StatusDeleted {
			return &doc, nil
		}
		if deleted == nil {
			deleted = &doc
		}
	}
	if deleted != nil {
		return deleted, nil
	}
	return nil, domain.ErrNotFound
}

// GetChunks retrieves all chunks for a document.
func (s *DocumentStore) GetChunks(_ context.Context, documentID string) ([]domain.ContentChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chunks, ok := s.chunks[documentID]
	if !ok {
		return nil, nil
	}
	return append([]domain.ContentChunk(nil), chunks...), nil
}

// GetChunk retrieves a specific chunk by ID.
func (s *DocumentStore) GetChunk(_ context.Context, id string) (*domain.ContentChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, chunks := range s.chunks {
		for _, chunk := range chunks {
			if chunk.ID == id {
				return &chunk, nil
			}
		}
	}
	return nil, domain.ErrNotFound
}

// DeleteDocument removes a document and its chunks.
func (s *DocumentStore) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.documents, id)
	delete(s.chunks, id)
	return nil
}

// DeleteChunks removes all chunks for a document.
func (s *DocumentStore) DeleteChunks(_ context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.chunks, documentID)
	return nil
}

// ListDocuments returns documents under a root path.
func (s *DocumentStore) ListDocuments(_ context.Context, root string) ([]domain.IndexedDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.IndexedDocument
	for id := range s.documents {
		doc := s.documents[id]
		if underRoot(&doc, root) {
			result = append(result, doc)
		}
	}
	return result, nil
}

// CountByStatus returns document counts per status under a root path.
func (s *DocumentStore) CountByStatus(_ context.Context, root string) (map[domain.DocumentStatus]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[domain.DocumentStatus]int)
	for id := range s.documents {
		doc := s.documents[id]
		if underRoot(&doc, root) {
			counts[doc.Status]++
		}
	}
	return counts, nil
}

func underRoot(doc *domain.IndexedDocument, root string) bool {
	if root == "" {
		return true
	}
	return doc.RootPath == root || strings.HasPrefix(doc.Path, root+"/") || doc.Path == root
}

// Ensure SnapshotStore implements the interface.
var _ driven.SnapshotStore = (*SnapshotStore)(nil)

// SnapshotStore is an in-memory implementation of driven.SnapshotStore.
type SnapshotStore struct {
	mu      sync.RWMutex
	entries map[string]driven.SnapshotEntry
}

// NewSnapshotStore creates a new in-memory snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		entries: make(map[string]driven.SnapshotEntry),
	}
}

// Get returns the snapshot entry for a path.
func (s *SnapshotStore) Get(_ context.Context, path string) (*driven.SnapshotEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[path]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &entry, nil
}

// Put stores or updates the snapshot entry for a path.
func (s *SnapshotStore) Put(_ context.Context, entry driven.SnapshotEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.Path] = entry
	return nil
}

// Delete removes the snapshot entry for a path.
func (s *SnapshotStore) Delete(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, path)
	return nil
}

// List returns all snapshot entries under a root path.
func (s *SnapshotStore) List(_ context.Context, root string) ([]driven.SnapshotEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []driven.SnapshotEntry
	for _, entry := range s.entries {
		if root == "" || entry.Root == root {
			result = append(result, entry)
		}
	}
	return result, nil
}
