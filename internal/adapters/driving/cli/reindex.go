package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var reindexForce bool

var reindexCmd = &cobra.Command{
	Use:   "reindex [id-or-path]",
	Short: "Force files back through the indexing pipeline",
	Long: `Reprocesses one document or every known document under a path.
Unchanged files are skipped unless --force is given, which re-extracts
and re-embeds them regardless of content hash.`,
	Args: cobra.ExactArgs(1),
	RunE: runReindex,
}

func init() {
	reindexCmd.Flags().BoolVarP(&reindexForce, "force", "f", false, "reprocess even unchanged files")
	rootCmd.AddCommand(reindexCmd)
}

func runReindex(cmd *cobra.Command, args []string) error {
	if indexer == nil {
		return errors.New("indexer not configured")
	}

	if err := indexer.Reindex(context.Background(), args[0], reindexForce); err != nil {
		return fmt.Errorf("reindex failed: %w", err)
	}
	cmd.Println("Reindex complete.")
	return nil
}
