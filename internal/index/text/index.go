// Package text provides an in-process inverted index with BM25 ranking.
//
// Postings are keyed by token and point to (document, byte-span) tuples.
// Filenames are indexed as a separate field supporting exact and prefix
// matching. Filter predicates are applied before ranking so fused scores
// are never distorted by post-filtering.
package text

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/loupe-search/loupe/internal/core/domain"
	"github.com/loupe-search/loupe/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.TextIndex = (*Index)(nil)

// BM25 parameters. Standard values from the literature.
const (
	k1 = 1.2
	b  = 0.75
)

// filenameBoost is added to the BM25 score for an exact or prefix
// filename match, so a query naming a file ranks it first.
const filenameBoost = 2.5

// docEntry holds one document's index-side state.
type docEntry struct {
	attrs          driven.DocAttrs
	length         int // token count of the body
	terms          []string
	filenameTokens []string
	exactFilename  string
}

// Index is an in-memory inverted index rebuilt from the document store on
// startup. All methods are safe for concurrent use; cross-store atomicity
// with the vector index is provided by the dual index wrapper.
type Index struct {
	mu       sync.RWMutex
	postings map[string]map[string][]domain.MatchSpan
	docs     map[string]docEntry
	totalLen int
}

// New creates an empty text index.
func New() *Index {
	return &Index{
		postings: make(map[string]map[string][]domain.MatchSpan),
		docs:     make(map[string]docEntry),
	}
}

// Upsert replaces all postings for the document. The new postings are
// staged outside the lock and swapped in one critical section.
func (idx *Index) Upsert(_ context.Context, doc driven.TextDocument) error {
	if doc.DocID == "" {
		return domain.ErrInvalidInput
	}

	// Stage: tokenise outside the lock.
	spans := domain.TokenizeSpans(doc.Body)
	staged := make(map[string][]domain.MatchSpan, len(spans))
	for _, s := range spans {
		staged[s.Term] = append(staged[s.Term], domain.MatchSpan{Start: s.Start, End: s.End})
	}

	terms := make([]string, 0, len(staged))
	for term := range staged {
		terms = append(terms, term)
	}

	entry := docEntry{
		attrs:          doc.Attrs,
		length:         len(spans),
		terms:          terms,
		filenameTokens: domain.Tokenize(doc.Filename),
		exactFilename:  strings.ToLower(doc.Filename),
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.removeLocked(doc.DocID)

	for term, termSpans := range staged {
		byDoc, ok := idx.postings[term]
		if !ok {
			byDoc = make(map[string][]domain.MatchSpan)
			idx.postings[term] = byDoc
		}
		byDoc[doc.DocID] = termSpans
	}

	idx.docs[doc.DocID] = entry
	idx.totalLen += entry.length
	return nil
}

// Remove deletes all postings for the document.
func (idx *Index) Remove(_ context.Context, docID string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.removeLocked(docID)
	return nil
}

// removeLocked requires idx.mu held for writing.
func (idx *Index) removeLocked(docID string) {
	entry, ok := idx.docs[docID]
	if !ok {
		return
	}

	for _, term := range entry.terms {
		if byDoc, ok := idx.postings[term]; ok {
			delete(byDoc, docID)
			if len(byDoc) == 0 {
				delete(idx.postings, term)
			}
		}
	}

	idx.totalLen -= entry.length
	delete(idx.docs, docID)
}

// Search returns documents ranked by BM25 plus filename boosts.
// The filter is applied while collecting candidates, before ranking.
func (idx *Index) Search(_ context.Context, keywords []string, filter domain.SearchFilter, limit int) ([]driven.TextHit, error) {
	if len(keywords) == 0 {
		return nil, nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	n := len(idx.docs)
	if n == 0 {
		return nil, nil
	}
	avgdl := float64(idx.totalLen) / float64(n)
	if avgdl == 0 {
		avgdl = 1
	}

	type candidate struct {
		score    float64
		spans    []domain.MatchSpan
		exact    bool
		lastTerm map[string][]domain.MatchSpan
	}
	candidates := make(map[string]*candidate)

	for _, keyword := range keywords {
		term := strings.ToLower(keyword)

		byDoc := idx.postings[term]
		df := len(byDoc)
		var idf float64
		if df > 0 {
			idf = math.Log(1 + (float64(n)-float64(df)+0.5)/(float64(df)+0.5))
		}

		for docID, spans := range byDoc {
			entry := idx.docs[docID]
			if !filter.Matches(entry.attrs.ContentType, entry.attrs.Path, entry.attrs.ModifiedAt, entry.attrs.Size) {
				continue
			}

			c, ok := candidates[docID]
			if !ok {
				c = &candidate{lastTerm: make(map[string][]domain.MatchSpan)}
				candidates[docID] = c
			}

			tf := float64(len(spans))
			norm := tf + k1*(1-b+b*float64(entry.length)/avgdl)
			c.score += idf * tf * (k1 + 1) / norm
			c.spans = append(c.spans, spans...)
			c.lastTerm[term] = spans
		}

		// Filename field: exact token and prefix matches.
		for docID, entry := range idx.docs {
			if !matchesFilename(entry, term) {
				continue
			}
			if !filter.Matches(entry.attrs.ContentType, entry.attrs.Path, entry.attrs.ModifiedAt, entry.attrs.Size) {
				continue
			}
			c, ok := candidates[docID]
			if !ok {
				c = &candidate{lastTerm: make(map[string][]domain.MatchSpan)}
				candidates[docID] = c
			}
			c.score += filenameBoost
			c.exact = true
		}
	}

	// Phrase bonus: adjacent query terms appearing adjacent in the body.
	for _, c := range candidates {
		c.score += phraseBonus(keywords, c.lastTerm)
	}

	hits := make([]driven.TextHit, 0, len(candidates))
	for docID, c := range candidates {
		sort.Slice(c.spans, func(i, j int) bool { return c.spans[i].Start < c.spans[j].Start })
		hits = append(hits, driven.TextHit{
			DocID:         docID,
			Score:         c.score,
			Spans:         c.spans,
			ExactFilename: c.exact,
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].DocID < hits[j].DocID
	})

	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// matchesFilename reports an exact token or prefix match against the
// document's filename tokens.
func matchesFilename(entry docEntry, term string) bool {
	for _, token := range entry.filenameTokens {
		if token == term || strings.HasPrefix(token, term) {
			return true
		}
	}
	return false
}

// phraseBonus rewards consecutive query terms whose matched spans are
// adjacent in the body, approximating exact phrase matching.
func phraseBonus(keywords []string, termSpans map[string][]domain.MatchSpan) float64 {
	var bonus float64
	for i := 1; i < len(keywords); i++ {
		prev := termSpans[strings.ToLower(keywords[i-1])]
		next := termSpans[strings.ToLower(keywords[i])]
		if adjacent(prev, next) {
			bonus += 0.5
		}
	}
	return bonus
}

// adjacent reports whether any span in next starts within two bytes of a
// span in prev ending (a single separator between the words).
func adjacent(prev, next []domain.MatchSpan) bool {
	for _, p := range prev {
		for _, n := range next {
			gap := n.Start - p.End
			if gap >= 0 && gap <= 2 {
				return true
			}
		}
	}
	return false
}

// Len returns the number of indexed documents.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.docs)
}

// Close releases resources. The in-memory index has none.
func (idx *Index) Close() error {
	return nil
}
