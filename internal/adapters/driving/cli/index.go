package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/loupe-search/loupe/internal/core/domain"
	"github.com/loupe-search/loupe/internal/core/ports/driving"
)

var (
	indexWatch       bool
	indexNoRecursive bool
	indexExclude     []string
	indexTypes       []string
	indexMaxSize     int64
)

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Index a directory",
	Long: `Scans a directory tree and indexes every supported file.
Re-running over an indexed tree only processes files that changed.
With --watch the command keeps running and picks up filesystem
changes as they happen.`,
	Args: cobra.ExactArgs(1),
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().BoolVarP(&indexWatch, "watch", "w", false, "keep watching for changes after the scan")
	indexCmd.Flags().BoolVar(&indexNoRecursive, "no-recursive", false, "do not descend into subdirectories")
	indexCmd.Flags().StringSliceVar(&indexExclude, "exclude", nil, "glob patterns to skip (repeatable)")
	indexCmd.Flags().StringSliceVar(&indexTypes, "types", nil, "content categories to include (document, code, image, audio, video)")
	indexCmd.Flags().Int64Var(&indexMaxSize, "max-file-size", 0, "skip files larger than this many bytes")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	if indexer == nil {
		return errors.New("indexer not configured")
	}

	root, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}

	types, err := parseContentTypes(indexTypes)
	if err != nil {
		return err
	}

	cfg := driving.IndexConfig{
		Recursive:       !indexNoRecursive,
		IncludeTypes:    types,
		ExcludePatterns: indexExclude,
		MaxFileSize:     indexMaxSize,
		Watch:           indexWatch,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := indexer.IndexDirectory(ctx, root, cfg); err != nil {
		return fmt.Errorf("index failed: %w", err)
	}

	if indexWatch {
		cmd.Printf("Watching %s, press Ctrl-C to stop.\n", root)
		<-ctx.Done()
		indexer.StopRoot(root)
		return nil
	}

	// Poll until the scan drains. Two consecutive quiet polls are
	// required so the early window before the first task is persisted
	// does not read as completion.
	quiet := 0
	for {
		select {
		case <-ctx.Done():
			indexer.StopRoot(root)
			return nil
		case <-time.After(200 * time.Millisecond):
		}

		status, err := indexer.IndexStatus(ctx, root)
		if err != nil {
			return err
		}
		if status.InProgress == 0 && !status.Paused {
			quiet++
			if quiet >= 2 {
				printStatus(cmd, root, status)
				return nil
			}
			continue
		}
		quiet = 0
	}
}

func parseContentTypes(names []string) ([]domain.ContentType, error) {
	if len(names) == 0 {
		return nil, nil
	}
	types := make([]domain.ContentType, 0, len(names))
	for _, name := range names {
		switch ct := domain.ContentType(name); ct {
		case domain.ContentTypeDocument, domain.ContentTypeImage, domain.ContentTypeAudio,
			domain.ContentTypeVideo, domain.ContentTypeCode, domain.ContentTypeArchive,
			domain.ContentTypeOther:
			types = append(types, ct)
		default:
			return nil, fmt.Errorf("unknown content type %q", name)
		}
	}
	return types, nil
}
