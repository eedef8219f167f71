package services

import (
	"context"
	"errors"
	"strings"

	"github.com/loupe-search/loupe/internal/core/domain"
	"github.com/loupe-search/loupe/internal/core/ports/driven"
	"github.com/loupe-search/loupe/internal/core/ports/driving"
	"github.com/loupe-search/loupe/internal/logger"
)

// QueryNormaliser converts text, voice and image inputs into the one
// canonical query object the searcher retrieves with. Voice becomes
// text via transcription; images become a vector directly. A query
// that normalises to neither keywords nor a vector is rejected here,
// before any retriever runs.
type QueryNormaliser struct {
	embedder    driven.EmbeddingService
	recognition driven.RecognitionService
	vision      driven.VisionService
}

// NewQueryNormaliser creates a query normaliser. All services may be
// nil; the affected modalities are then rejected or degraded.
func NewQueryNormaliser(embedder driven.EmbeddingService, recognition driven.RecognitionService, vision driven.VisionService) *QueryNormaliser {
	return &QueryNormaliser{
		embedder:    embedder,
		recognition: recognition,
		vision:      vision,
	}
}

// Normalise builds the canonical query for one input.
func (n *QueryNormaliser) Normalise(ctx context.Context, input driving.QueryInput, opts driving.SearchOptions) (*domain.SearchQuery, error) {
	query := &domain.SearchQuery{
		Filter:    opts.Filter,
		Limit:     opts.Limit,
		Threshold: opts.Threshold,
	}

	switch {
	case len(input.Image) > 0:
		if err := n.normaliseImage(ctx, input.Image, query); err != nil {
			return nil, err
		}
	case len(input.Audio) > 0:
		text, err := n.transcribe(ctx, input.Audio, input.AudioFormat)
		if err != nil {
			return nil, err
		}
		if err := n.normaliseText(ctx, text, opts.Semantic, query); err != nil {
			return nil, err
		}
	default:
		if err := n.normaliseText(ctx, input.Text, opts.Semantic, query); err != nil {
			return nil, err
		}
	}

	if query.Empty() {
		return nil, &domain.QueryError{Kind: domain.QueryEmpty}
	}
	return query, nil
}

// normaliseText tokenises the raw text and, when semantic search is
// requested and available, embeds it. Embedding failure degrades the
// query to lexical-only rather than failing it.
func (n *QueryNormaliser) normaliseText(ctx context.Context, text string, semantic bool, query *domain.SearchQuery) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return &domain.QueryError{Kind: domain.QueryEmpty}
	}

	query.Raw = text
	query.Keywords = domain.Tokenize(text)

	if semantic && n.embedder != nil {
		vector, err := n.embedder.Embed(ctx, text)
		if err != nil {
			logger.Warn("query: embedding unavailable, lexical only: %v", err)
		} else {
			query.Vector = vector
		}
	}
	return nil
}

// transcribe converts a voice query to text.
func (n *QueryNormaliser) transcribe(ctx context.Context, audio []byte, format string) (string, error) {
	if n.recognition == nil {
		return "", &domain.QueryError{Kind: domain.QueryRecognitionFailed, Err: errors.New("no speech recognition service configured")}
	}

	text, err := n.recognition.Transcribe(ctx, audio, format)
	if err != nil {
		return "", &domain.QueryError{Kind: domain.QueryRecognitionFailed, Err: err}
	}
	if strings.TrimSpace(text) == "" {
		return "", &domain.QueryError{Kind: domain.QueryEmpty}
	}
	return text, nil
}

// normaliseImage embeds the image directly. Recognised tags, when the
// vision service returns them, also feed the keyword path.
func (n *QueryNormaliser) normaliseImage(ctx context.Context, image []byte, query *domain.SearchQuery) error {
	if n.vision == nil {
		return &domain.QueryError{Kind: domain.QueryRecognitionFailed, Err: errors.New("no vision service configured")}
	}

	result, err := n.vision.Embed(ctx, image)
	if err != nil {
		return &domain.QueryError{Kind: domain.QueryRecognitionFailed, Err: err}
	}

	query.Vector = result.Embedding
	if len(result.Tags) > 0 {
		query.Raw = strings.Join(result.Tags, " ")
		query.Keywords = domain.Tokenize(query.Raw)
	}
	return nil
}
