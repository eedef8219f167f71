package driven

import (
	"context"

	"github.com/loupe-search/loupe/internal/core/domain"
)

// Extractor turns a raw file into plain text and metadata.
// Each extractor handles specific content categories; dispatch is by a
// capability lookup in the registry, never by inheritance. Adding a new
// format means registering one more implementation.
//
// Extractors never fail for recoverable issues: password-protected or
// partially corrupt documents yield best-effort partial text with the
// Degraded flag set. Only infrastructure failures (I/O, timeout) surface
// as errors to the coordinator.
type Extractor interface {
	// Name returns the extractor name for logging and registration.
	Name() string

	// ContentTypes returns the categories this extractor handles.
	ContentTypes() []domain.ContentType

	// Extensions returns specific file extensions for specialised
	// handling within a category (e.g. ".md" inside documents).
	// Empty means all extensions of the supported categories.
	Extensions() []string

	// Extract produces plain text and metadata for the file.
	Extract(ctx context.Context, path string) (*ExtractResult, error)
}

// ExtractResult is the output of extraction.
type ExtractResult struct {
	// Text is the extracted plain text.
	Text string

	// Metadata contains extractor-specific key-value pairs.
	Metadata map[string]any

	// Embedding is a dense vector produced directly during extraction,
	// such as an image embedding. When set, the coordinator stores it
	// instead of requesting a text embedding for the file.
	Embedding []float32

	// Degraded marks best-effort partial extraction.
	Degraded bool
}

// ExtractorRegistry selects the extractor for a file.
type ExtractorRegistry interface {
	// Extract dispatches to the registered extractor for the path's
	// content type. Returns an ExtractionError with kind Unsupported
	// when no extractor matches.
	Extract(ctx context.Context, path string, contentType domain.ContentType) (*ExtractResult, error)
}
