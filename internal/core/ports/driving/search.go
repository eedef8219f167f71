package driving

import (
	"context"

	"github.com/loupe-search/loupe/internal/core/domain"
)

// Searcher is the sole query entry point. It accepts text, voice and
// image inputs; each modality is normalised into one canonical query
// before retrieval.
type Searcher interface {
	// Search normalises the input and runs hybrid retrieval.
	Search(ctx context.Context, input QueryInput, opts SearchOptions) ([]domain.SearchResult, error)
}

// QueryInput carries exactly one input modality.
type QueryInput struct {
	// Text is a typed query.
	Text string

	// Audio is recorded speech, transcribed before retrieval.
	// Format is the audio container extension, e.g. "wav".
	Audio       []byte
	AudioFormat string

	// Image is a picture, embedded directly; no keyword path unless the
	// vision service also returns recognised tags.
	Image []byte
}

// SearchOptions configures a search.
type SearchOptions struct {
	// Limit is the maximum number of results. Defaults to 20.
	Limit int

	// Filter restricts both retrievers before ranking.
	Filter domain.SearchFilter

	// Threshold is the similarity floor applied after fusion.
	Threshold float64

	// Semantic requests embedding of text queries so typed queries also
	// retrieve semantically. Ignored when no embedding service is
	// configured.
	Semantic bool
}
