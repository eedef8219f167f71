package driven

import "context"

// RecognitionService converts recorded speech into text.
// Used for voice queries and for indexing audio/video files.
// Optional - when nil, voice queries are rejected and audio files are
// indexed by filename and metadata only.
type RecognitionService interface {
	// Transcribe converts audio bytes into plain text.
	// The format hint is a file extension such as "wav" or "mp3".
	Transcribe(ctx context.Context, audio []byte, format string) (string, error)

	// Ping validates the service is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// VisionService embeds or describes images.
// Used for image queries and for indexing image files.
// Optional - when nil, image queries are rejected and image files are
// indexed by filename and metadata only.
type VisionService interface {
	// Embed generates a dense vector for the image, in the same space as
	// the text embedding model, plus any recognised tags or text.
	Embed(ctx context.Context, image []byte) (VisionResult, error)

	// Ping validates the service is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// VisionResult is the output of image understanding.
type VisionResult struct {
	// Embedding is the dense image vector.
	Embedding []float32

	// Tags are recognised labels or extracted text, usable as keywords.
	Tags []string
}
