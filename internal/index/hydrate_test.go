package index

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loupe-search/loupe/internal/core/domain"
	"github.com/loupe-search/loupe/internal/core/ports/driven"
)

// fakeDocStore is an in-memory DocumentStore for hydration tests.
type fakeDocStore struct {
	docs      []domain.IndexedDocument
	chunks    map[string][]domain.ContentChunk
	chunksErr map[string]error
}

var _ driven.DocumentStore = (*fakeDocStore)(nil)

func (f *fakeDocStore) SaveDocument(context.Context, *domain.IndexedDocument) error { return nil }
func (f *fakeDocStore) SaveChunks(context.Context, []domain.ContentChunk) error     { return nil }
func (f *fakeDocStore) GetDocument(context.Context, string) (*domain.IndexedDocument, error) {
	return nil, domain.ErrNotFound
}
func (f *fakeDocStore) GetDocumentByPath(context.Context, string) (*domain.IndexedDocument, error) {
	return nil, domain.ErrNotFound
}
func (f *fakeDocStore) GetDocumentByHash(context.Context, string) (*domain.IndexedDocument, error) {
	return nil, domain.ErrNotFound
}
func (f *fakeDocStore) GetChunks(_ context.Context, docID string) ([]domain.ContentChunk, error) {
	if err, ok := f.chunksErr[docID]; ok {
		return nil, err
	}
	return f.chunks[docID], nil
}
func (f *fakeDocStore) GetChunk(context.Context, string) (*domain.ContentChunk, error) {
	return nil, domain.ErrNotFound
}
func (f *fakeDocStore) DeleteDocument(context.Context, string) error { return nil }
func (f *fakeDocStore) DeleteChunks(context.Context, string) error   { return nil }
func (f *fakeDocStore) ListDocuments(context.Context, string) ([]domain.IndexedDocument, error) {
	return f.docs, nil
}
func (f *fakeDocStore) CountByStatus(context.Context, string) (map[domain.DocumentStatus]int, error) {
	return nil, nil
}

func TestDual_Hydrate(t *testing.T) {
	ctx := context.Background()
	d := newDual(t, 2)

	store := &fakeDocStore{
		docs: []domain.IndexedDocument{
			{ID: "ok", Path: "/docs/ok.txt", Text: "searchable content", Status: domain.StatusIndexed},
			{ID: "pending", Path: "/docs/pending.txt", Text: "invisible", Status: domain.StatusPending},
			{ID: "broken", Path: "/docs/broken.txt", Text: "whatever", Status: domain.StatusIndexed},
		},
		chunks: map[string][]domain.ContentChunk{
			"ok": {{ID: "ok-c0", DocumentID: "ok", Content: "searchable content", Embedding: []float32{1, 0}}},
		},
		chunksErr: map[string]error{
			"broken": errors.New("unreadable segment"),
		},
	}

	corrupt, err := d.Hydrate(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, []string{"broken"}, corrupt)

	hits, err := d.SearchText(ctx, []string{"searchable"}, domain.SearchFilter{}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "ok", hits[0].DocID)

	// Pending documents are not hydrated.
	hits, err = d.SearchText(ctx, []string{"invisible"}, domain.SearchFilter{}, 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}
