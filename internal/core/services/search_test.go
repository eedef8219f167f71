package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loupe-search/loupe/internal/adapters/driven/storage/memory"
	"github.com/loupe-search/loupe/internal/core/domain"
	"github.com/loupe-search/loupe/internal/core/ports/driven"
	"github.com/loupe-search/loupe/internal/core/ports/driving"
)

// --- Mock implementations ---

// mockDualIndex implements driven.DualIndex for testing.
type mockDualIndex struct {
	textHits   []driven.TextHit
	vectorHits []driven.VectorHit
	textErr    error
	vectorErr  error
	replaceErr error

	mu        sync.Mutex
	replaced  []string
	removed   []string
	textLimit int
	vectorK   int
}

func (m *mockDualIndex) Replace(_ context.Context, doc driven.TextDocument, _ []driven.VectorEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.replaceErr != nil {
		return m.replaceErr
	}
	m.replaced = append(m.replaced, doc.DocID)
	return nil
}

func (m *mockDualIndex) Remove(_ context.Context, docID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removed = append(m.removed, docID)
	return nil
}

func (m *mockDualIndex) removedIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.removed...)
}

func (m *mockDualIndex) SearchText(_ context.Context, _ []string, _ domain.SearchFilter, limit int) ([]driven.TextHit, error) {
	m.mu.Lock()
	m.textLimit = limit
	m.mu.Unlock()
	if m.textErr != nil {
		return nil, m.textErr
	}
	if limit > len(m.textHits) {
		return m.textHits, nil
	}
	return m.textHits[:limit], nil
}

func (m *mockDualIndex) SearchVector(_ context.Context, _ []float32, k int, _ domain.SearchFilter) ([]driven.VectorHit, error) {
	m.mu.Lock()
	m.vectorK = k
	m.mu.Unlock()
	if m.vectorErr != nil {
		return nil, m.vectorErr
	}
	if k > len(m.vectorHits) {
		return m.vectorHits, nil
	}
	return m.vectorHits[:k], nil
}

func (m *mockDualIndex) Close() error {
	return nil
}

// mockEmbedder implements driven.EmbeddingService for testing.
type mockEmbedder struct {
	vector   []float32
	embedErr error
	batchErr error
	pingErr  error

	mu         sync.Mutex
	batchCalls int
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	return m.vector, nil
}

func (m *mockEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.batchCalls++
	m.mu.Unlock()
	if m.batchErr != nil {
		return nil, m.batchErr
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = m.vector
	}
	return out, nil
}

func (m *mockEmbedder) Dimensions() int   { return len(m.vector) }
func (m *mockEmbedder) ModelName() string { return "mock-embed" }

func (m *mockEmbedder) Ping(_ context.Context) error { return m.pingErr }
func (m *mockEmbedder) Close() error                 { return nil }

// --- Helpers ---

func storeWithDocs(t *testing.T, docs ...*domain.IndexedDocument) *memory.DocumentStore {
	t.Helper()
	store := memory.NewDocumentStore()
	for _, doc := range docs {
		require.NoError(t, store.SaveDocument(context.Background(), doc))
	}
	return store
}

func searchableDoc(id, path, text string) *domain.IndexedDocument {
	return &domain.IndexedDocument{
		ID:          id,
		Path:        path,
		RootPath:    "/docs",
		Text:        text,
		ContentType: domain.ContentTypeDocument,
		Status:      domain.StatusIndexed,
		ModifiedAt:  time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

func newSearcher(index driven.DualIndex, docs driven.DocumentStore, embedder driven.EmbeddingService) *SearchService {
	return NewSearchService(NewQueryNormaliser(embedder, nil, nil), index, docs)
}

// --- Tests ---

func TestSearch_FusionPrefersDocInBothLists(t *testing.T) {
	// Vector ranks A then B; text ranks B then C. B appears in both
	// lists and must fuse ahead of either single-list document.
	index := &mockDualIndex{
		textHits: []driven.TextHit{
			{DocID: "B", Score: 4.0},
			{DocID: "C", Score: 2.0},
		},
		vectorHits: []driven.VectorHit{
			{ChunkID: "a-1", DocID: "A", Similarity: 0.9},
			{ChunkID: "b-1", DocID: "B", Similarity: 0.8},
		},
	}
	docs := storeWithDocs(t,
		searchableDoc("A", "/docs/a.txt", "alpha"),
		searchableDoc("B", "/docs/b.txt", "bravo"),
		searchableDoc("C", "/docs/c.txt", "charlie"),
	)
	svc := newSearcher(index, docs, &mockEmbedder{vector: []float32{0.1, 0.2}})

	results, err := svc.Search(context.Background(), driving.QueryInput{Text: "revenue growth"}, driving.SearchOptions{Semantic: true})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "B", results[0].Document.ID)
	assert.Equal(t, "A", results[1].Document.ID)
	assert.Equal(t, "C", results[2].Document.ID)
	assert.Equal(t, []int{1, 2, 3}, []int{results[0].Rank, results[1].Rank, results[2].Rank})
}

func TestSearch_VectorChunksDedupeToDocument(t *testing.T) {
	// Three chunks of one long document must count as one candidate,
	// holding the best chunk's similarity.
	index := &mockDualIndex{
		vectorHits: []driven.VectorHit{
			{ChunkID: "a-1", DocID: "A", Similarity: 0.9},
			{ChunkID: "a-2", DocID: "A", Similarity: 0.85},
			{ChunkID: "a-3", DocID: "A", Similarity: 0.7},
			{ChunkID: "b-1", DocID: "B", Similarity: 0.6},
		},
	}
	docs := storeWithDocs(t,
		searchableDoc("A", "/docs/a.txt", "alpha"),
		searchableDoc("B", "/docs/b.txt", "bravo"),
	)
	svc := newSearcher(index, docs, &mockEmbedder{vector: []float32{0.5}})

	results, err := svc.Search(context.Background(), driving.QueryInput{Text: "query"}, driving.SearchOptions{Semantic: true})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "A", results[0].Document.ID)
	assert.InDelta(t, 0.9, results[0].VectorScore, 1e-9)
	// B holds vector rank 2, not rank 4.
	assert.InDelta(t, 1.0/62.0, results[1].Score, 1e-9)
}

func TestSearch_DegradesToTextWhenVectorFails(t *testing.T) {
	index := &mockDualIndex{
		textHits:  []driven.TextHit{{DocID: "A", Score: 3.0}},
		vectorErr: errors.New("vector store unavailable"),
	}
	docs := storeWithDocs(t, searchableDoc("A", "/docs/a.txt", "alpha"))
	svc := newSearcher(index, docs, &mockEmbedder{vector: []float32{0.5}})

	results, err := svc.Search(context.Background(), driving.QueryInput{Text: "alpha"}, driving.SearchOptions{Semantic: true})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "A", results[0].Document.ID)
}

func TestSearch_DegradesToVectorWhenTextFails(t *testing.T) {
	index := &mockDualIndex{
		textErr:    errors.New("text index unavailable"),
		vectorHits: []driven.VectorHit{{ChunkID: "a-1", DocID: "A", Similarity: 0.8}},
	}
	docs := storeWithDocs(t, searchableDoc("A", "/docs/a.txt", "alpha"))
	svc := newSearcher(index, docs, &mockEmbedder{vector: []float32{0.5}})

	results, err := svc.Search(context.Background(), driving.QueryInput{Text: "alpha"}, driving.SearchOptions{Semantic: true})
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestSearch_ErrorsWhenBothRetrieversFail(t *testing.T) {
	index := &mockDualIndex{
		textErr:   errors.New("text down"),
		vectorErr: errors.New("vector down"),
	}
	docs := memory.NewDocumentStore()
	svc := newSearcher(index, docs, &mockEmbedder{vector: []float32{0.5}})

	_, err := svc.Search(context.Background(), driving.QueryInput{Text: "alpha"}, driving.SearchOptions{Semantic: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hybrid search")
}

func TestSearch_LexicalOnlyWhenVectorIndexMissing(t *testing.T) {
	index := &mockDualIndex{
		textHits:  []driven.TextHit{{DocID: "A", Score: 2.0}},
		vectorErr: domain.ErrVectorIndexUnavailable,
	}
	docs := storeWithDocs(t, searchableDoc("A", "/docs/a.txt", "alpha"))
	svc := newSearcher(index, docs, &mockEmbedder{vector: []float32{0.5}})

	results, err := svc.Search(context.Background(), driving.QueryInput{Text: "alpha"}, driving.SearchOptions{Semantic: true})
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestSearch_RejectsEmptyQuery(t *testing.T) {
	svc := newSearcher(&mockDualIndex{}, memory.NewDocumentStore(), nil)

	_, err := svc.Search(context.Background(), driving.QueryInput{Text: "   "}, driving.SearchOptions{})
	var queryErr *domain.QueryError
	require.ErrorAs(t, err, &queryErr)
	assert.Equal(t, domain.QueryEmpty, queryErr.Kind)
}

func TestSearch_SkipsVanishedAndUnsearchableDocs(t *testing.T) {
	index := &mockDualIndex{
		textHits: []driven.TextHit{
			{DocID: "gone", Score: 5.0},
			{DocID: "failed", Score: 4.0},
			{DocID: "A", Score: 3.0},
		},
	}
	failed := searchableDoc("failed", "/docs/broken.txt", "")
	failed.Status = domain.StatusFailed
	docs := storeWithDocs(t, failed, searchableDoc("A", "/docs/a.txt", "alpha"))
	svc := newSearcher(index, docs, nil)

	results, err := svc.Search(context.Background(), driving.QueryInput{Text: "alpha"}, driving.SearchOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "A", results[0].Document.ID)
}

func TestSearch_StaleDocumentsRemainVisible(t *testing.T) {
	stale := searchableDoc("A", "/docs/a.txt", "old content")
	stale.Status = domain.StatusStale
	index := &mockDualIndex{textHits: []driven.TextHit{{DocID: "A", Score: 2.0}}}
	svc := newSearcher(index, storeWithDocs(t, stale), nil)

	results, err := svc.Search(context.Background(), driving.QueryInput{Text: "old"}, driving.SearchOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestSearch_ThresholdDropsWeakHits(t *testing.T) {
	index := &mockDualIndex{
		vectorHits: []driven.VectorHit{
			{ChunkID: "a-1", DocID: "A", Similarity: 0.9},
			{ChunkID: "b-1", DocID: "B", Similarity: 0.2},
		},
	}
	docs := storeWithDocs(t,
		searchableDoc("A", "/docs/a.txt", "alpha"),
		searchableDoc("B", "/docs/b.txt", "bravo"),
	)
	svc := newSearcher(index, docs, &mockEmbedder{vector: []float32{0.5}})

	results, err := svc.Search(context.Background(), driving.QueryInput{Text: "alpha"}, driving.SearchOptions{Semantic: true, Threshold: 0.5})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "A", results[0].Document.ID)
}

func TestSearch_LimitCapsResults(t *testing.T) {
	index := &mockDualIndex{
		textHits: []driven.TextHit{
			{DocID: "A", Score: 3.0},
			{DocID: "B", Score: 2.0},
			{DocID: "C", Score: 1.0},
		},
	}
	docs := storeWithDocs(t,
		searchableDoc("A", "/docs/a.txt", "alpha"),
		searchableDoc("B", "/docs/b.txt", "bravo"),
		searchableDoc("C", "/docs/c.txt", "charlie"),
	)
	svc := newSearcher(index, docs, nil)

	results, err := svc.Search(context.Background(), driving.QueryInput{Text: "alpha"}, driving.SearchOptions{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestSearch_LargeLimitDeepensRetrieval(t *testing.T) {
	// A limit above the fusion window must widen both retrievers, or the
	// caller can never receive more hits than the window holds.
	index := &mockDualIndex{
		textHits:   []driven.TextHit{{DocID: "A", Score: 2.0}},
		vectorHits: []driven.VectorHit{{ChunkID: "a-1", DocID: "A", Similarity: 0.9}},
	}
	svc := newSearcher(index, storeWithDocs(t, searchableDoc("A", "/docs/a.txt", "alpha")), &mockEmbedder{vector: []float32{0.5}})

	_, err := svc.Search(context.Background(), driving.QueryInput{Text: "alpha"}, driving.SearchOptions{Semantic: true, Limit: 120})
	require.NoError(t, err)

	index.mu.Lock()
	defer index.mu.Unlock()
	assert.Equal(t, 120, index.textLimit)
	assert.Equal(t, 120, index.vectorK)
}

func TestSearch_ExactFilenameBreaksTies(t *testing.T) {
	// Equal text rank contribution is impossible from one list, so the
	// tie comes from two single-list docs at the same vector rank being
	// impossible too; exercise the hydrated tie-break directly with two
	// docs that fuse to identical scores via symmetric lists.
	index := &mockDualIndex{
		textHits:   []driven.TextHit{{DocID: "A", Score: 2.0}},
		vectorHits: []driven.VectorHit{{ChunkID: "b-1", DocID: "B", Similarity: 0.9}},
	}
	a := searchableDoc("A", "/docs/a.txt", "alpha")
	b := searchableDoc("B", "/docs/readme.txt", "bravo")
	docs := storeWithDocs(t, a, b)
	svc := newSearcher(index, docs, &mockEmbedder{vector: []float32{0.5}})

	// Both docs hold rank 1 in their list, so fused scores are equal.
	// The query names B's file, so B wins the tie.
	results, err := svc.Search(context.Background(), driving.QueryInput{Text: "readme"}, driving.SearchOptions{Semantic: true})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "B", results[0].Document.ID)
}

func TestSearch_NewerFileBreaksRemainingTies(t *testing.T) {
	index := &mockDualIndex{
		textHits:   []driven.TextHit{{DocID: "A", Score: 2.0}},
		vectorHits: []driven.VectorHit{{ChunkID: "b-1", DocID: "B", Similarity: 0.9}},
	}
	a := searchableDoc("A", "/docs/a.txt", "alpha")
	a.ModifiedAt = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	b := searchableDoc("B", "/docs/b.txt", "bravo")
	b.ModifiedAt = time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	svc := newSearcher(index, storeWithDocs(t, a, b), &mockEmbedder{vector: []float32{0.5}})

	results, err := svc.Search(context.Background(), driving.QueryInput{Text: "quarterly numbers"}, driving.SearchOptions{Semantic: true})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "B", results[0].Document.ID)
}

func TestSearch_TieBreaksSettleBeforeLimitCut(t *testing.T) {
	// Both docs fuse to the same score and only one slot survives the
	// limit. The cut must honour the recency tie-break, which needs the
	// hydrated rows, not the provisional fused ordering.
	index := &mockDualIndex{
		textHits:   []driven.TextHit{{DocID: "A", Score: 2.0}},
		vectorHits: []driven.VectorHit{{ChunkID: "b-1", DocID: "B", Similarity: 0.9}},
	}
	a := searchableDoc("A", "/docs/a.txt", "alpha")
	a.ModifiedAt = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	b := searchableDoc("B", "/docs/b.txt", "bravo")
	b.ModifiedAt = time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	svc := newSearcher(index, storeWithDocs(t, a, b), &mockEmbedder{vector: []float32{0.5}})

	results, err := svc.Search(context.Background(), driving.QueryInput{Text: "quarterly numbers"}, driving.SearchOptions{Semantic: true, Limit: 1})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "B", results[0].Document.ID)
	assert.Equal(t, 1, results[0].Rank)
}

func TestSearch_SnippetsComeFromSpans(t *testing.T) {
	text := "The quarterly report shows revenue grew by twelve percent over the previous period."
	index := &mockDualIndex{
		textHits: []driven.TextHit{{
			DocID: "A",
			Score: 2.0,
			Spans: []domain.MatchSpan{{Start: 27, End: 34}},
		}},
	}
	svc := newSearcher(index, storeWithDocs(t, searchableDoc("A", "/docs/report.txt", text)), nil)

	results, err := svc.Search(context.Background(), driving.QueryInput{Text: "revenue"}, driving.SearchOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.NotEmpty(t, results[0].Snippets)
	assert.Contains(t, results[0].Snippets[0].Text, "revenue")
}

func TestSearch_EmbeddingFailureDegradesToLexical(t *testing.T) {
	index := &mockDualIndex{textHits: []driven.TextHit{{DocID: "A", Score: 2.0}}}
	embedder := &mockEmbedder{embedErr: &domain.EmbeddingError{Kind: domain.EmbeddingServiceUnavailable}}
	svc := newSearcher(index, storeWithDocs(t, searchableDoc("A", "/docs/a.txt", "alpha")), embedder)

	results, err := svc.Search(context.Background(), driving.QueryInput{Text: "alpha"}, driving.SearchOptions{Semantic: true})
	require.NoError(t, err)
	require.Len(t, results, 1)
}
