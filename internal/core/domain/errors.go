package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates no extractor is registered for a content type.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	// Vector/semantic search is disabled without embeddings.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrTextIndexUnavailable indicates the text index is not configured.
	// Full-text/keyword search is disabled.
	ErrTextIndexUnavailable = errors.New("text index unavailable")

	// ErrVectorIndexUnavailable indicates the vector index is not configured.
	// Semantic similarity search is disabled.
	ErrVectorIndexUnavailable = errors.New("vector index unavailable")

	// ErrIndexingPaused indicates job dispatch is halted because the
	// embedding service is failing systemically.
	ErrIndexingPaused = errors.New("indexing paused")
)

// ExtractionErrorKind classifies extraction failures.
type ExtractionErrorKind string

const (
	ExtractionUnsupported ExtractionErrorKind = "unsupported"
	ExtractionCorrupt     ExtractionErrorKind = "corrupt"
	ExtractionTooLarge    ExtractionErrorKind = "too-large"
	ExtractionTimeout     ExtractionErrorKind = "timeout"
)

// ExtractionError is a recoverable failure isolated to one document.
// It is retried with backoff up to a budget, then the document is parked
// as failed.
type ExtractionError struct {
	Kind ExtractionErrorKind
	Path string
	Err  error
}

// Error implements the error interface.
func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extract %s (%s): %v", e.Path, e.Kind, e.Err)
	}
	return fmt.Sprintf("extract %s: %s", e.Path, e.Kind)
}

// Unwrap returns the underlying error.
func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// EmbeddingErrorKind classifies embedding-service failures.
type EmbeddingErrorKind string

const (
	EmbeddingServiceUnavailable EmbeddingErrorKind = "service-unavailable"
	EmbeddingTimeout            EmbeddingErrorKind = "timeout"
)

// EmbeddingError is a recoverable embedding-service failure. Repeated
// failures across many documents halt new job dispatch instead of
// retrying every document individually forever.
type EmbeddingError struct {
	Kind EmbeddingErrorKind
	Err  error
}

// Error implements the error interface.
func (e *EmbeddingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("embedding (%s): %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("embedding: %s", e.Kind)
}

// Unwrap returns the underlying error.
func (e *EmbeddingError) Unwrap() error {
	return e.Err
}

// QueryErrorKind classifies query rejection reasons.
type QueryErrorKind string

const (
	// QueryEmpty means the query carries neither keywords nor a vector.
	QueryEmpty QueryErrorKind = "empty-query"

	// QueryRecognitionFailed means voice or image recognition failed.
	// The search is aborted rather than silently degraded.
	QueryRecognitionFailed QueryErrorKind = "recognition-failed"
)

// QueryError rejects a query synchronously; no partial results are returned.
type QueryError struct {
	Kind QueryErrorKind
	Err  error
}

// Error implements the error interface.
func (e *QueryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("query (%s): %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("query: %s", e.Kind)
}

// Unwrap returns the underlying error.
func (e *QueryError) Unwrap() error {
	return e.Err
}

// IndexCorruption reports a broken reference or unreadable store segment.
// Recoverable via a targeted rebuild of the affected document, never
// treated as global failure.
type IndexCorruption struct {
	DocumentID string
	Detail     string
}

// Error implements the error interface.
func (e *IndexCorruption) Error() string {
	return fmt.Sprintf("index corruption for document %s: %s", e.DocumentID, e.Detail)
}
