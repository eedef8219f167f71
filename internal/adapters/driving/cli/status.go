package cli

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/loupe-search/loupe/internal/core/ports/driving"
)

var statusCmd = &cobra.Command{
	Use:   "status [path]",
	Short: "Show indexing progress for a directory",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	if indexer == nil {
		return errors.New("indexer not configured")
	}

	root, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}

	status, err := indexer.IndexStatus(context.Background(), root)
	if err != nil {
		return err
	}

	printStatus(cmd, root, status)
	return nil
}

func printStatus(cmd *cobra.Command, root string, status driving.IndexStatus) {
	cmd.Printf("%s\n", root)
	cmd.Printf("  Total:       %d\n", status.Total)
	cmd.Printf("  Indexed:     %d\n", status.Indexed)
	cmd.Printf("  In progress: %d\n", status.InProgress)
	cmd.Printf("  Failed:      %d\n", status.Failed)
	if status.Paused {
		cmd.Println("  Indexing is paused: embedding service unavailable")
	}
}
