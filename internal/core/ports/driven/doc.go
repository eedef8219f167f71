// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - DocumentStore: document and chunk persistence
//   - SnapshotStore: last-known file attributes for incremental scans
//   - Extractor / ExtractorRegistry: turn raw files into plain text
//   - PostProcessorPipeline: chunking of extracted text
//   - TextIndex: inverted-index keyword search. Always required.
//   - DualIndex: the single write path into both indexes
//   - ConfigStore: application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - VectorIndex: vector storage/search. Only enabled when EmbeddingService is configured.
//   - EmbeddingService: generates vector embeddings. Without it, VectorIndex is also disabled.
//   - RecognitionService: speech-to-text for voice queries and audio files.
//   - VisionService: image embedding/description for image queries and image files.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter, extractor, or index package
package driven
