package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loupe-search/loupe/internal/core/domain"
	"github.com/loupe-search/loupe/internal/core/ports/driven"
	"github.com/loupe-search/loupe/internal/core/ports/driving"
)

// stubRecognition implements driven.RecognitionService for testing.
type stubRecognition struct {
	text string
	err  error
}

func (s *stubRecognition) Transcribe(_ context.Context, _ []byte, _ string) (string, error) {
	return s.text, s.err
}

func (s *stubRecognition) Ping(_ context.Context) error { return nil }
func (s *stubRecognition) Close() error                 { return nil }

// stubVision implements driven.VisionService for testing.
type stubVision struct {
	result driven.VisionResult
	err    error
}

func (s *stubVision) Embed(_ context.Context, _ []byte) (driven.VisionResult, error) {
	return s.result, s.err
}

func (s *stubVision) Ping(_ context.Context) error { return nil }
func (s *stubVision) Close() error                 { return nil }

func TestNormalise_TextTokenised(t *testing.T) {
	n := NewQueryNormaliser(nil, nil, nil)

	query, err := n.Normalise(context.Background(), driving.QueryInput{Text: "  Quarterly Revenue Report  "}, driving.SearchOptions{})
	require.NoError(t, err)

	assert.Equal(t, "Quarterly Revenue Report", query.Raw)
	assert.Equal(t, []string{"quarterly", "revenue", "report"}, query.Keywords)
	assert.Nil(t, query.Vector)
}

func TestNormalise_SemanticAddsVector(t *testing.T) {
	embedder := &mockEmbedder{vector: []float32{0.1, 0.2, 0.3}}
	n := NewQueryNormaliser(embedder, nil, nil)

	query, err := n.Normalise(context.Background(), driving.QueryInput{Text: "meeting notes"}, driving.SearchOptions{Semantic: true})
	require.NoError(t, err)

	assert.Equal(t, []float32{0.1, 0.2, 0.3}, query.Vector)
	assert.NotEmpty(t, query.Keywords)
}

func TestNormalise_EmbeddingFailureDegradesToLexical(t *testing.T) {
	embedder := &mockEmbedder{embedErr: &domain.EmbeddingError{Kind: domain.EmbeddingTimeout}}
	n := NewQueryNormaliser(embedder, nil, nil)

	query, err := n.Normalise(context.Background(), driving.QueryInput{Text: "meeting notes"}, driving.SearchOptions{Semantic: true})
	require.NoError(t, err)

	assert.Nil(t, query.Vector)
	assert.NotEmpty(t, query.Keywords)
}

func TestNormalise_EmptyTextRejected(t *testing.T) {
	n := NewQueryNormaliser(nil, nil, nil)

	_, err := n.Normalise(context.Background(), driving.QueryInput{Text: "\t \n"}, driving.SearchOptions{})
	var queryErr *domain.QueryError
	require.ErrorAs(t, err, &queryErr)
	assert.Equal(t, domain.QueryEmpty, queryErr.Kind)
}

func TestNormalise_VoiceTranscribed(t *testing.T) {
	recognition := &stubRecognition{text: "find the budget spreadsheet"}
	n := NewQueryNormaliser(nil, recognition, nil)

	query, err := n.Normalise(context.Background(), driving.QueryInput{Audio: []byte{1, 2}, AudioFormat: "wav"}, driving.SearchOptions{})
	require.NoError(t, err)

	assert.Equal(t, "find the budget spreadsheet", query.Raw)
	assert.Contains(t, query.Keywords, "budget")
}

func TestNormalise_VoiceWithoutServiceRejected(t *testing.T) {
	n := NewQueryNormaliser(nil, nil, nil)

	_, err := n.Normalise(context.Background(), driving.QueryInput{Audio: []byte{1}}, driving.SearchOptions{})
	var queryErr *domain.QueryError
	require.ErrorAs(t, err, &queryErr)
	assert.Equal(t, domain.QueryRecognitionFailed, queryErr.Kind)
}

func TestNormalise_TranscriptionFailureAborts(t *testing.T) {
	recognition := &stubRecognition{err: errors.New("model overloaded")}
	n := NewQueryNormaliser(nil, recognition, nil)

	_, err := n.Normalise(context.Background(), driving.QueryInput{Audio: []byte{1}}, driving.SearchOptions{})
	var queryErr *domain.QueryError
	require.ErrorAs(t, err, &queryErr)
	assert.Equal(t, domain.QueryRecognitionFailed, queryErr.Kind)
}

func TestNormalise_SilentAudioRejectedAsEmpty(t *testing.T) {
	recognition := &stubRecognition{text: "   "}
	n := NewQueryNormaliser(nil, recognition, nil)

	_, err := n.Normalise(context.Background(), driving.QueryInput{Audio: []byte{1}}, driving.SearchOptions{})
	var queryErr *domain.QueryError
	require.ErrorAs(t, err, &queryErr)
	assert.Equal(t, domain.QueryEmpty, queryErr.Kind)
}

func TestNormalise_ImageEmbedded(t *testing.T) {
	vision := &stubVision{result: driven.VisionResult{
		Embedding: []float32{0.4, 0.5},
		Tags:      []string{"sunset", "beach"},
	}}
	n := NewQueryNormaliser(nil, nil, vision)

	query, err := n.Normalise(context.Background(), driving.QueryInput{Image: []byte{0xFF}}, driving.SearchOptions{})
	require.NoError(t, err)

	assert.Equal(t, []float32{0.4, 0.5}, query.Vector)
	assert.Equal(t, []string{"sunset", "beach"}, query.Keywords)
}

func TestNormalise_ImageWithoutServiceRejected(t *testing.T) {
	n := NewQueryNormaliser(nil, nil, nil)

	_, err := n.Normalise(context.Background(), driving.QueryInput{Image: []byte{0xFF}}, driving.SearchOptions{})
	var queryErr *domain.QueryError
	require.ErrorAs(t, err, &queryErr)
	assert.Equal(t, domain.QueryRecognitionFailed, queryErr.Kind)
}

func TestNormalise_ImageWithNoVectorOrTagsRejected(t *testing.T) {
	vision := &stubVision{result: driven.VisionResult{}}
	n := NewQueryNormaliser(nil, nil, vision)

	_, err := n.Normalise(context.Background(), driving.QueryInput{Image: []byte{0xFF}}, driving.SearchOptions{})
	var queryErr *domain.QueryError
	require.ErrorAs(t, err, &queryErr)
	assert.Equal(t, domain.QueryEmpty, queryErr.Kind)
}

func TestNormalise_OptionsCarriedThrough(t *testing.T) {
	n := NewQueryNormaliser(nil, nil, nil)
	opts := driving.SearchOptions{
		Limit:     5,
		Threshold: 0.3,
		Filter:    domain.SearchFilter{PathPrefix: "/docs"},
	}

	query, err := n.Normalise(context.Background(), driving.QueryInput{Text: "notes"}, opts)
	require.NoError(t, err)

	assert.Equal(t, 5, query.Limit)
	assert.Equal(t, 0.3, query.Threshold)
	assert.Equal(t, "/docs", query.Filter.PathPrefix)
}
