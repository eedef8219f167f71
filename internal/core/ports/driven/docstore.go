package driven

import (
	"context"

	"github.com/loupe-search/loupe/internal/core/domain"
)

// DocumentStore persists documents and chunks.
// Backed by SQLite for metadata storage.
type DocumentStore interface {
	// SaveDocument stores or updates a document.
	SaveDocument(ctx context.Context, doc *domain.IndexedDocument) error

	// SaveChunks replaces all chunks for the chunks' document.
	SaveChunks(ctx context.Context, chunks []domain.ContentChunk) error

	// GetDocument retrieves a document by ID.
	GetDocument(ctx context.Context, id string) (*domain.IndexedDocument, error)

	// GetDocumentByPath retrieves a document by absolute path.
	GetDocumentByPath(ctx context.Context, path string) (*domain.IndexedDocument, error)

	// GetDocumentByHash retrieves a document by content hash, preferring
	// live rows over soft-deleted ones. Deleted rows must still match:
	// move detection re-issues the identity even when the removal event
	// was processed before the creation at the new path.
	GetDocumentByHash(ctx context.Context, hash string) (*domain.IndexedDocument, error)

	// GetChunks retrieves all chunks for a document, ordered by position.
	GetChunks(ctx context.Context, documentID string) ([]domain.ContentChunk, error)

	// GetChunk retrieves a specific chunk by ID.
	GetChunk(ctx context.Context, id string) (*domain.ContentChunk, error)

	// DeleteDocument removes a document and its chunks.
	DeleteDocument(ctx context.Context, id string) error

	// DeleteChunks removes all chunks for a document.
	DeleteChunks(ctx context.Context, documentID string) error

	// ListDocuments returns documents under a root path.
	// An empty root returns all documents.
	ListDocuments(ctx context.Context, root string) ([]domain.IndexedDocument, error)

	// CountByStatus returns document counts per status under a root path.
	CountByStatus(ctx context.Context, root string) (map[domain.DocumentStatus]int, error)
}

// SnapshotStore persists the last-known (path, mtime, size) per file so a
// scan can tell real changes from already-seen files.
type SnapshotStore interface {
	// Get returns the snapshot entry for a path, or domain.ErrNotFound.
	Get(ctx context.Context, path string) (*SnapshotEntry, error)

	// Put stores or updates the snapshot entry for a path.
	Put(ctx context.Context, entry SnapshotEntry) error

	// Delete removes the snapshot entry for a path.
	Delete(ctx context.Context, path string) error

	// List returns all snapshot entries under a root path.
	List(ctx context.Context, root string) ([]SnapshotEntry, error)
}

// SnapshotEntry is one file's attributes at the previous scan.
type SnapshotEntry struct {
	// Path is the absolute file path.
	Path string

	// Root is the configured root the path was discovered under.
	Root string

	// ModifiedNanos is the mtime in nanoseconds since the Unix epoch.
	ModifiedNanos int64

	// Size is the file size in bytes.
	Size int64
}
