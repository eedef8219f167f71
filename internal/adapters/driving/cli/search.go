package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/loupe-search/loupe/internal/core/domain"
	"github.com/loupe-search/loupe/internal/core/ports/driving"
)

var (
	searchLimit     int
	searchJSON      bool
	searchSemantic  bool
	searchThreshold float64
	searchPath      string
	searchTypes     []string
	searchVoice     string
	searchImage     string
)

var (
	resultTitleStyle = lipgloss.NewStyle().Bold(true)
	resultPathStyle  = lipgloss.NewStyle().Faint(true)
	resultScoreStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	snippetStyle     = lipgloss.NewStyle().PaddingLeft(6)
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search indexed files",
	Long: `Performs hybrid search across all indexed files.
Combines keyword (BM25) and semantic (vector) retrieval; the two
result lists are fused into one ranking.

A voice or image file can stand in for the typed query:
  loupe search --voice note.wav
  loupe search --image photo.jpg`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "maximum number of results")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	searchCmd.Flags().BoolVarP(&searchSemantic, "semantic", "s", true, "embed the query for semantic retrieval")
	searchCmd.Flags().Float64Var(&searchThreshold, "threshold", 0, "drop results scoring below this floor")
	searchCmd.Flags().StringVar(&searchPath, "path", "", "restrict results to paths under this prefix")
	searchCmd.Flags().StringSliceVar(&searchTypes, "types", nil, "restrict results to content categories")
	searchCmd.Flags().StringVar(&searchVoice, "voice", "", "audio file to transcribe as the query")
	searchCmd.Flags().StringVar(&searchImage, "image", "", "image file to use as the query")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	if searcher == nil {
		return errors.New("search service not configured")
	}

	input, err := buildQueryInput(args)
	if err != nil {
		return err
	}

	types, err := parseContentTypes(searchTypes)
	if err != nil {
		return err
	}

	opts := driving.SearchOptions{
		Limit:     searchLimit,
		Threshold: searchThreshold,
		Semantic:  searchSemantic,
		Filter: domain.SearchFilter{
			ContentTypes: types,
			PathPrefix:   searchPath,
		},
	}

	results, err := searcher.Search(context.Background(), input, opts)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return outputSearchJSON(cmd, results)
	}
	return outputSearchTable(cmd, results)
}

func buildQueryInput(args []string) (driving.QueryInput, error) {
	var input driving.QueryInput

	switch {
	case searchVoice != "":
		audio, err := os.ReadFile(searchVoice)
		if err != nil {
			return input, fmt.Errorf("read voice query: %w", err)
		}
		input.Audio = audio
		input.AudioFormat = strings.TrimPrefix(filepath.Ext(searchVoice), ".")
	case searchImage != "":
		image, err := os.ReadFile(searchImage)
		if err != nil {
			return input, fmt.Errorf("read image query: %w", err)
		}
		input.Image = image
	case len(args) == 1:
		input.Text = args[0]
	default:
		return input, errors.New("a query, --voice or --image is required")
	}

	return input, nil
}

func outputSearchJSON(cmd *cobra.Command, results []domain.SearchResult) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, results []domain.SearchResult) error {
	if len(results) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Println()
	for i := range results {
		result := &results[i]
		name := filepath.Base(result.Document.Path)

		cmd.Printf("  [%d] %s %s\n", result.Rank,
			resultTitleStyle.Render(name),
			resultScoreStyle.Render(fmt.Sprintf("(%.3f)", result.Score)))
		cmd.Printf("      %s\n", resultPathStyle.Render(result.Document.Path))
		for _, snippet := range result.Snippets {
			cmd.Println(snippetStyle.Render(snippet.Text))
		}
		if result.Document.DegradedQuality {
			cmd.Printf("      %s\n", resultPathStyle.Render("partial extraction"))
		}
		cmd.Println()
	}

	return nil
}
