package domain

import "time"

// DocumentStatus tracks a document's position in the indexing lifecycle.
// Transitions are driven only by the indexing coordinator.
type DocumentStatus string

const (
	// StatusPending means the document was discovered but not yet processed.
	StatusPending DocumentStatus = "pending"

	// StatusProcessing means an indexing job is currently running for the document.
	StatusProcessing DocumentStatus = "processing"

	// StatusIndexed means the document is fully visible to search.
	StatusIndexed DocumentStatus = "indexed"

	// StatusFailed means processing exhausted its retry budget.
	// The document stays excluded from search until a rescan.
	StatusFailed DocumentStatus = "failed"

	// StatusStale means the file changed after it was last indexed.
	StatusStale DocumentStatus = "stale"

	// StatusDeleted means the file was removed. Content and vectors are
	// purged; the row is retained only transiently.
	StatusDeleted DocumentStatus = "deleted"
)

// ContentType classifies a file by its broad media category.
type ContentType string

const (
	ContentTypeDocument ContentType = "document"
	ContentTypeImage    ContentType = "image"
	ContentTypeAudio    ContentType = "audio"
	ContentTypeVideo    ContentType = "video"
	ContentTypeCode     ContentType = "code"
	ContentTypeArchive  ContentType = "archive"
	ContentTypeOther    ContentType = "other"
)

// IndexedDocument represents one file known to the index.
// It is created by the scanner on first discovery and mutated by the
// indexing coordinator as status advances.
type IndexedDocument struct {
	// ID is the stable identifier. It survives a move: when a path changes
	// but the content hash matches an existing document, the old ID is
	// re-issued for the new path.
	ID string

	// Path is the absolute file path.
	Path string

	// RootPath is the configured root directory this file was discovered under.
	RootPath string

	// Size is the file size in bytes at last scan.
	Size int64

	// ContentType is the broad media category.
	ContentType ContentType

	// ContentHash is the hex SHA-256 of the file bytes. Used to tell real
	// changes from touch-only changes.
	ContentHash string

	// Text is the extracted plain text. Empty until extraction succeeds;
	// may be large.
	Text string

	// Metadata contains extractor-specific key-value pairs.
	Metadata map[string]any

	// Status is the lifecycle state.
	Status DocumentStatus

	// ErrorCount is the number of consecutive processing failures.
	ErrorCount int

	// LastError retains the most recent processing error for diagnostics.
	LastError string

	// DegradedQuality marks best-effort partial extraction (e.g. a
	// partially corrupt or password-protected document).
	DegradedQuality bool

	// ModifiedAt is the file's modification time at last scan.
	ModifiedAt time.Time

	// CreatedAt is when the document was first discovered.
	CreatedAt time.Time

	// UpdatedAt is when the document row was last written.
	UpdatedAt time.Time
}

// Searchable reports whether the document should be visible to queries.
func (d *IndexedDocument) Searchable() bool {
	return d.Status == StatusIndexed || d.Status == StatusStale
}

// ContentChunk is a bounded-length slice of a document's extracted text,
// the unit of embedding. Chunks are exclusively owned by their document;
// deleting a document deletes all its chunks.
type ContentChunk struct {
	// ID is the unique identifier for the chunk.
	ID string

	// DocumentID links to the owning IndexedDocument.
	DocumentID string

	// Position is the ordinal position within the document.
	Position int

	// Content is the text span of this chunk.
	Content string

	// Start and End are byte offsets of the span within the document text.
	Start int
	End   int

	// Embedding is the vector representation, nil until embedding succeeds.
	Embedding []float32
}
