// Package cli provides the command-line interface for Loupe.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/loupe-search/loupe/internal/core/ports/driving"
	"github.com/loupe-search/loupe/internal/logger"
)

var (
	version = "dev"

	verbose bool

	indexer  driving.Indexer
	searcher driving.Searcher
)

var rootCmd = &cobra.Command{
	Use:   "loupe",
	Short: "Local file search with hybrid retrieval",
	Long: `Loupe indexes the contents of local directories and searches them
with combined keyword and semantic retrieval. Text, code, markdown,
HTML, DOCX and PDF files are extracted in full; images and audio are
indexed through the configured recognition services.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

// Services carries the wired application services into the commands.
type Services struct {
	Indexer  driving.Indexer
	Searcher driving.Searcher
}

// SetServices injects the application services. Must be called before
// Execute.
func SetServices(s Services) {
	indexer = s.Indexer
	searcher = s.Searcher
}

// Execute runs the root command.
func Execute(v string) error {
	version = v
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}
