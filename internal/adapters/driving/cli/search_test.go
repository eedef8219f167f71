package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loupe-search/loupe/internal/core/domain"
	"github.com/loupe-search/loupe/internal/core/ports/driving"
)

// stubSearcher implements driving.Searcher for testing.
type stubSearcher struct {
	results   []domain.SearchResult
	err       error
	lastInput driving.QueryInput
	lastOpts  driving.SearchOptions
}

func (s *stubSearcher) Search(_ context.Context, input driving.QueryInput, opts driving.SearchOptions) ([]domain.SearchResult, error) {
	s.lastInput = input
	s.lastOpts = opts
	if s.err != nil {
		return nil, s.err
	}
	return s.results, nil
}

// stubIndexer implements driving.Indexer for testing.
type stubIndexer struct {
	status     driving.IndexStatus
	lastRoot   string
	lastCfg    driving.IndexConfig
	reindexed  string
	reindexErr error
	force      bool
}

func (s *stubIndexer) IndexDirectory(_ context.Context, root string, cfg driving.IndexConfig) error {
	s.lastRoot = root
	s.lastCfg = cfg
	return nil
}

func (s *stubIndexer) StopRoot(_ string) {}

func (s *stubIndexer) Reindex(_ context.Context, idOrPath string, force bool) error {
	s.reindexed = idOrPath
	s.force = force
	return s.reindexErr
}

func (s *stubIndexer) IndexStatus(_ context.Context, _ string) (driving.IndexStatus, error) {
	return s.status, nil
}

func setupTestServices(searcher driving.Searcher, indexer driving.Indexer) func() {
	SetServices(Services{Indexer: indexer, Searcher: searcher})
	return func() {
		SetServices(Services{})
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
		resetFlags()
	}()
	err := rootCmd.Execute()
	return buf.String(), err
}

// resetFlags restores flag defaults; flag variables are package level
// and would otherwise leak between tests.
func resetFlags() {
	searchLimit, searchJSON, searchSemantic = 10, false, true
	searchThreshold, searchPath = 0, ""
	searchTypes, searchVoice, searchImage = nil, "", ""
	indexWatch, indexNoRecursive, indexMaxSize = false, false, 0
	indexExclude, indexTypes = nil, nil
	reindexForce = false
}

func TestSearchCmd_Use(t *testing.T) {
	assert.Equal(t, "search [query]", searchCmd.Use)
}

func TestSearchCmd_HasLimitFlag(t *testing.T) {
	flag := searchCmd.Flags().Lookup("limit")
	require.NotNil(t, flag, "limit flag should exist")
	assert.Equal(t, "n", flag.Shorthand)
	assert.Equal(t, "10", flag.DefValue)
}

func TestSearchCmd_RequiresQuery(t *testing.T) {
	cleanup := setupTestServices(&stubSearcher{}, &stubIndexer{})
	defer cleanup()

	_, err := execute(t, "search")
	assert.Error(t, err)
}

func TestSearchCmd_PrintsResults(t *testing.T) {
	searcher := &stubSearcher{results: []domain.SearchResult{
		{
			Document: domain.IndexedDocument{ID: "d1", Path: "/docs/report.pdf"},
			Score:    0.032,
			Rank:     1,
			Snippets: []domain.Snippet{{Text: "…revenue grew by twelve percent…"}},
		},
	}}
	cleanup := setupTestServices(searcher, &stubIndexer{})
	defer cleanup()

	out, err := execute(t, "search", "revenue growth")
	require.NoError(t, err)

	assert.Contains(t, out, "report.pdf")
	assert.Contains(t, out, "revenue grew")
	assert.Equal(t, "revenue growth", searcher.lastInput.Text)
}

func TestSearchCmd_NoResults(t *testing.T) {
	cleanup := setupTestServices(&stubSearcher{}, &stubIndexer{})
	defer cleanup()

	out, err := execute(t, "search", "nothing")
	require.NoError(t, err)
	assert.Contains(t, out, "No results")
}

func TestSearchCmd_JSONOutput(t *testing.T) {
	searcher := &stubSearcher{results: []domain.SearchResult{
		{Document: domain.IndexedDocument{ID: "d1", Path: "/docs/a.txt"}, Rank: 1},
	}}
	cleanup := setupTestServices(searcher, &stubIndexer{})
	defer cleanup()

	out, err := execute(t, "search", "query", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"Path": "/docs/a.txt"`)
}

func TestSearchCmd_FilterFlags(t *testing.T) {
	searcher := &stubSearcher{}
	cleanup := setupTestServices(searcher, &stubIndexer{})
	defer cleanup()

	_, err := execute(t, "search", "query", "--path", "/docs", "--types", "document", "--limit", "3")
	require.NoError(t, err)

	assert.Equal(t, "/docs", searcher.lastOpts.Filter.PathPrefix)
	assert.Equal(t, []domain.ContentType{domain.ContentTypeDocument}, searcher.lastOpts.Filter.ContentTypes)
	assert.Equal(t, 3, searcher.lastOpts.Limit)
}

func TestSearchCmd_RejectsUnknownType(t *testing.T) {
	cleanup := setupTestServices(&stubSearcher{}, &stubIndexer{})
	defer cleanup()

	_, err := execute(t, "search", "query", "--types", "spreadsheet")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown content type")
}

func TestSearchCmd_WithoutService(t *testing.T) {
	cleanup := setupTestServices(nil, nil)
	defer cleanup()

	_, err := execute(t, "search", "query")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "loupe version")
}
