package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/loupe-search/loupe/internal/core/domain"
	"github.com/loupe-search/loupe/internal/core/ports/driven"
	"github.com/loupe-search/loupe/internal/core/ports/driving"
	"github.com/loupe-search/loupe/internal/logger"
)

// Ensure SearchService implements the interface.
var _ driving.Searcher = (*SearchService)(nil)

const (
	// rrfK dampens the contribution gap between neighbouring ranks.
	rrfK = 60

	// DefaultLimit is applied when a search does not set one.
	DefaultLimit = 20

	// candidateDepth is how many hits each retriever contributes to
	// fusion. Deeper than the final limit so a document that ranks
	// moderately in both lists can still be promoted.
	candidateDepth = 50
)

// SearchService is the hybrid retrieval engine. Both retrievers run in
// parallel over the same normalised query, their ranked lists are fused
// with reciprocal rank fusion at document granularity, and the fused
// candidates are hydrated into results with snippets.
type SearchService struct {
	normaliser *QueryNormaliser
	index      driven.DualIndex
	docs       driven.DocumentStore
}

// NewSearchService creates a hybrid searcher.
func NewSearchService(normaliser *QueryNormaliser, index driven.DualIndex, docs driven.DocumentStore) *SearchService {
	return &SearchService{
		normaliser: normaliser,
		index:      index,
		docs:       docs,
	}
}

// Search normalises the input and runs hybrid retrieval.
func (s *SearchService) Search(ctx context.Context, input driving.QueryInput, opts driving.SearchOptions) ([]domain.SearchResult, error) {
	query, err := s.normaliser.Normalise(ctx, input, opts)
	if err != nil {
		return nil, err
	}
	if query.Limit <= 0 {
		query.Limit = DefaultLimit
	}

	textHits, vectorHits, err := s.retrieve(ctx, query)
	if err != nil {
		return nil, err
	}

	fused := fuse(textHits, vectorHits)
	fused = applyThreshold(fused, query.Threshold)

	return s.hydrate(ctx, fused, query)
}

// candidate is one document's fused standing across both retrievers.
type candidate struct {
	docID         string
	score         float64
	textScore     float64
	vectorScore   float64
	spans         []domain.MatchSpan
	exactFilename bool
}

// retrieve runs both retrievers in parallel. One retriever failing
// degrades the search to the other; both failing fails the query.
func (s *SearchService) retrieve(ctx context.Context, query *domain.SearchQuery) ([]driven.TextHit, []driven.VectorHit, error) {
	var (
		textHits   []driven.TextHit
		vectorHits []driven.VectorHit
		textErr    error
		vectorErr  error
		wg         sync.WaitGroup
	)

	// Each retriever contributes at least as many hits as the caller
	// asked for, deeper when the fusion window allows promotion.
	depth := max(candidateDepth, query.Limit)

	if len(query.Keywords) > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			textHits, textErr = s.index.SearchText(ctx, query.Keywords, query.Filter, depth)
		}()
	}

	if len(query.Vector) > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			vectorHits, vectorErr = s.index.SearchVector(ctx, query.Vector, depth, query.Filter)
			if errors.Is(vectorErr, domain.ErrVectorIndexUnavailable) {
				// No vector index configured; proceed lexical-only.
				vectorHits, vectorErr = nil, nil
			}
		}()
	}

	wg.Wait()

	// Handle errors gracefully - degrade if one retriever fails.
	if textErr != nil && vectorErr != nil {
		return nil, nil, fmt.Errorf("hybrid search: text=%w, vector=%w", textErr, vectorErr)
	}
	if textErr != nil {
		logger.Warn("Text retrieval failed, using vector results only: %v", textErr)
		textHits = nil
	}
	if vectorErr != nil {
		logger.Warn("Vector retrieval failed, using text results only: %v", vectorErr)
		vectorHits = nil
	}

	return textHits, vectorHits, nil
}

// fuse merges the two ranked lists with reciprocal rank fusion at
// document granularity. Vector hits are chunk-level; only a document's
// best-ranked chunk contributes to its fused score, so a long document
// with many matching chunks cannot crowd out the rest of the list.
func fuse(textHits []driven.TextHit, vectorHits []driven.VectorHit) []candidate {
	byDoc := make(map[string]*candidate)

	get := func(docID string) *candidate {
		if c, ok := byDoc[docID]; ok {
			return c
		}
		c := &candidate{docID: docID}
		byDoc[docID] = c
		return c
	}

	for rank, hit := range textHits {
		c := get(hit.DocID)
		c.score += 1.0 / float64(rrfK+rank+1)
		c.textScore = hit.Score
		c.spans = hit.Spans
		c.exactFilename = c.exactFilename || hit.ExactFilename
	}

	rank := 0
	seen := make(map[string]bool)
	for _, hit := range vectorHits {
		if seen[hit.DocID] {
			continue
		}
		seen[hit.DocID] = true
		c := get(hit.DocID)
		c.score += 1.0 / float64(rrfK+rank+1)
		c.vectorScore = hit.Similarity
		rank++
	}

	fused := make([]candidate, 0, len(byDoc))
	for _, c := range byDoc {
		fused = append(fused, *c)
	}
	sort.Slice(fused, func(i, j int) bool {
		a, b := fused[i], fused[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.exactFilename != b.exactFilename {
			return a.exactFilename
		}
		return a.docID < b.docID
	})
	return fused
}

// applyThreshold drops candidates whose best sub-score is below the
// floor. Text scores are unbounded BM25 values, so they are normalised
// against the list maximum to make the two scales comparable.
func applyThreshold(fused []candidate, threshold float64) []candidate {
	if threshold <= 0 || len(fused) == 0 {
		return fused
	}

	var maxText float64
	for _, c := range fused {
		if c.textScore > maxText {
			maxText = c.textScore
		}
	}

	kept := fused[:0]
	for _, c := range fused {
		normText := 0.0
		if maxText > 0 {
			normText = c.textScore / maxText
		}
		if normText >= threshold || c.vectorScore >= threshold {
			kept = append(kept, c)
		}
	}
	return kept
}

// hydrate loads documents for the top fused candidates and builds
// snippets. A candidate whose document vanished between retrieval and
// hydration is skipped, not an error: deletion during a query is
// routine.
func (s *SearchService) hydrate(ctx context.Context, fused []candidate, query *domain.SearchQuery) ([]domain.SearchResult, error) {
	results := make([]domain.SearchResult, 0, min(len(fused), query.Limit))

	for _, c := range fused {
		doc, err := s.docs.GetDocument(ctx, c.docID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("get document %s: %w", c.docID, err)
		}
		if !doc.Searchable() {
			continue
		}

		results = append(results, domain.SearchResult{
			Document:    *doc,
			Score:       c.score,
			TextScore:   c.textScore,
			VectorScore: c.vectorScore,
			Snippets:    BuildSnippets(doc.Text, c.spans),
		})
	}

	// Equal-score neighbours order by exact filename match, then file
	// recency, then document ID for determinism. This needs the
	// hydrated rows, so every candidate is loaded first and the limit
	// is applied only after the full ordering is settled; cutting in
	// fused order could trim the newer of two equal-scored files.
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		aExact := matchesFilename(a.Document.Path, query.Raw)
		bExact := matchesFilename(b.Document.Path, query.Raw)
		if aExact != bExact {
			return aExact
		}
		if !a.Document.ModifiedAt.Equal(b.Document.ModifiedAt) {
			return a.Document.ModifiedAt.After(b.Document.ModifiedAt)
		}
		return a.Document.ID < b.Document.ID
	})

	if len(results) > query.Limit {
		results = results[:query.Limit]
	}
	for i := range results {
		results[i].Rank = i + 1
	}
	return results, nil
}

// matchesFilename reports whether the query text equals the file's base
// name, with or without its extension.
func matchesFilename(path, raw string) bool {
	if raw == "" {
		return false
	}
	base := strings.ToLower(filepath.Base(path))
	raw = strings.ToLower(strings.TrimSpace(raw))
	if base == raw {
		return true
	}
	if ext := filepath.Ext(base); ext != "" {
		return strings.TrimSuffix(base, ext) == raw
	}
	return false
}
