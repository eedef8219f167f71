package domain

import "time"

// SearchFilter restricts both retrievers before ranking.
// Filters are pushed down into the index stores, never applied as a
// post-filter that would distort fused scores.
type SearchFilter struct {
	// ContentTypes limits results to the given categories. Empty means all.
	ContentTypes []ContentType

	// PathPrefix limits results to paths under the given prefix.
	PathPrefix string

	// ModifiedAfter and ModifiedBefore bound the file modification time.
	// Zero values disable the bound.
	ModifiedAfter  time.Time
	ModifiedBefore time.Time

	// MinSize and MaxSize bound the file size in bytes. Zero disables.
	MinSize int64
	MaxSize int64
}

// Matches reports whether the given document attributes pass the filter.
func (f *SearchFilter) Matches(contentType ContentType, path string, modified time.Time, size int64) bool {
	if len(f.ContentTypes) > 0 {
		ok := false
		for _, ct := range f.ContentTypes {
			if ct == contentType {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if f.PathPrefix != "" && !hasPathPrefix(path, f.PathPrefix) {
		return false
	}
	if !f.ModifiedAfter.IsZero() && modified.Before(f.ModifiedAfter) {
		return false
	}
	if !f.ModifiedBefore.IsZero() && modified.After(f.ModifiedBefore) {
		return false
	}
	if f.MinSize > 0 && size < f.MinSize {
		return false
	}
	if f.MaxSize > 0 && size > f.MaxSize {
		return false
	}
	return true
}

func hasPathPrefix(path, prefix string) bool {
	if len(path) < len(prefix) {
		return false
	}
	return path[:len(prefix)] == prefix
}

// SearchQuery is the canonical query object every input modality is
// normalised into. A query must carry at least one of keywords or a
// query vector; otherwise it is rejected before reaching any retriever.
type SearchQuery struct {
	// Keywords is the canonical keyword list for lexical matching.
	Keywords []string

	// Raw is the original query text, retained for exact-match tie-breaks
	// and snippet generation. Empty for pure image queries.
	Raw string

	// Vector is the dense query embedding, nil when semantic search is
	// unavailable or not requested.
	Vector []float32

	// Filter restricts both retrievers.
	Filter SearchFilter

	// Limit is the requested result count. Defaults applied by the searcher.
	Limit int

	// Threshold is the similarity floor applied after fusion.
	// Zero disables threshold filtering.
	Threshold float64
}

// Empty reports whether the query carries neither keywords nor a vector.
func (q *SearchQuery) Empty() bool {
	return len(q.Keywords) == 0 && len(q.Vector) == 0
}

// MatchSpan is a byte range of matched content within a document's text.
type MatchSpan struct {
	Start int
	End   int
}

// Snippet is a highlighted excerpt around one or more matches.
type Snippet struct {
	// Text is the excerpt, with ellipses where content was trimmed.
	Text string

	// Start is the byte offset of the excerpt within the document text.
	Start int
}

// SearchResult is one fused, deduplicated search hit. Ephemeral,
// constructed per query.
type SearchResult struct {
	// Document is the matched document.
	Document IndexedDocument

	// Score is the fused relevance score.
	Score float64

	// TextScore is the lexical sub-score (0 if absent from the text list).
	TextScore float64

	// VectorScore is the best chunk similarity (0 if absent from the vector list).
	VectorScore float64

	// Snippets are highlighted excerpts around matched terms.
	Snippets []Snippet

	// Rank is the final position after fusion and tie-breaking.
	Rank int
}
