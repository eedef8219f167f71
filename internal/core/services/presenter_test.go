package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loupe-search/loupe/internal/core/domain"
)

func TestBuildSnippets_WindowAroundMatch(t *testing.T) {
	text := strings.Repeat("padding ", 20) + "revenue grew strongly " + strings.Repeat("padding ", 20)
	start := strings.Index(text, "revenue")
	spans := []domain.MatchSpan{{Start: start, End: start + len("revenue")}}

	snippets := BuildSnippets(text, spans)
	require.Len(t, snippets, 1)

	assert.Contains(t, snippets[0].Text, "revenue")
	assert.True(t, strings.HasPrefix(snippets[0].Text, "…"))
	assert.True(t, strings.HasSuffix(snippets[0].Text, "…"))
	assert.Less(t, len(snippets[0].Text), len(text))
}

func TestBuildSnippets_NoEllipsisAtDocumentEdges(t *testing.T) {
	text := "short document about cats"
	spans := []domain.MatchSpan{{Start: 21, End: 25}}

	snippets := BuildSnippets(text, spans)
	require.Len(t, snippets, 1)
	assert.Equal(t, "short document about cats", snippets[0].Text)
	assert.Equal(t, 0, snippets[0].Start)
}

func TestBuildSnippets_OverlappingSpansMerge(t *testing.T) {
	text := strings.Repeat("x ", 50) + "alpha beta gamma" + strings.Repeat(" y", 50)
	a := strings.Index(text, "alpha")
	g := strings.Index(text, "gamma")
	spans := []domain.MatchSpan{
		{Start: a, End: a + 5},
		{Start: g, End: g + 5},
	}

	snippets := BuildSnippets(text, spans)
	require.Len(t, snippets, 1)
	assert.Contains(t, snippets[0].Text, "alpha")
	assert.Contains(t, snippets[0].Text, "gamma")
}

func TestBuildSnippets_DistantSpansStaySeparate(t *testing.T) {
	filler := strings.Repeat("lorem ipsum dolor sit amet ", 30)
	text := "alpha " + filler + " omega"
	spans := []domain.MatchSpan{
		{Start: 0, End: 5},
		{Start: strings.Index(text, "omega"), End: len(text)},
	}

	snippets := BuildSnippets(text, spans)
	require.Len(t, snippets, 2)
	assert.Contains(t, snippets[0].Text, "alpha")
	assert.Contains(t, snippets[1].Text, "omega")
	assert.Less(t, snippets[0].Start, snippets[1].Start)
}

func TestBuildSnippets_CapsSnippetCount(t *testing.T) {
	var sb strings.Builder
	var spans []domain.MatchSpan
	for i := 0; i < 6; i++ {
		start := sb.Len()
		sb.WriteString("match")
		spans = append(spans, domain.MatchSpan{Start: start, End: start + 5})
		sb.WriteString(strings.Repeat(" filler words between matches ", 20))
	}

	snippets := BuildSnippets(sb.String(), spans)
	assert.Len(t, snippets, maxSnippets)
}

func TestBuildSnippets_NoSpansFallsBackToLeading(t *testing.T) {
	text := "This is the opening line of a document that has no keyword matches at all, only semantic relevance to the query that found it."

	snippets := BuildSnippets(text, nil)
	require.Len(t, snippets, 1)
	assert.Equal(t, 0, snippets[0].Start)
	assert.True(t, strings.HasPrefix(snippets[0].Text, "This is the opening"))
}

func TestBuildSnippets_EmptyText(t *testing.T) {
	assert.Nil(t, BuildSnippets("", []domain.MatchSpan{{Start: 0, End: 1}}))
}

func TestBuildSnippets_OutOfRangeSpansIgnored(t *testing.T) {
	text := "tiny"
	spans := []domain.MatchSpan{{Start: 10, End: 20}, {Start: 3, End: 1}}

	snippets := BuildSnippets(text, spans)
	assert.Empty(t, snippets)
}

func TestBuildSnippets_MultibyteTextStaysValid(t *testing.T) {
	text := "préambule " + strings.Repeat("café crème brûlée ", 20) + "conclusion"
	start := strings.Index(text, "brûlée")
	spans := []domain.MatchSpan{{Start: start, End: start + len("brûlée")}}

	snippets := BuildSnippets(text, spans)
	require.Len(t, snippets, 1)
	assert.True(t, strings.Contains(snippets[0].Text, "brûlée"))
	for _, r := range snippets[0].Text {
		assert.NotEqual(t, '�', r)
	}
}
