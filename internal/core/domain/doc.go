// Package domain defines the core business entities for Loupe.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - IndexedDocument: One file known to the index, with lifecycle status
//   - ContentChunk: A bounded slice of extracted text, the unit of embedding
//   - ScanTask: An ephemeral unit of indexing work
//   - SearchQuery: The canonical query every input modality normalises into
//   - SearchResult: One fused, deduplicated search hit
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
