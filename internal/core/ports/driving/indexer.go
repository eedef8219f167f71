package driving

import (
	"context"

	"github.com/loupe-search/loupe/internal/core/domain"
)

// Indexer drives the indexing pipeline from the outside.
type Indexer interface {
	// IndexDirectory begins scanning and watching a root directory.
	// It returns immediately; progress is observable via IndexStatus.
	IndexDirectory(ctx context.Context, root string, cfg IndexConfig) error

	// StopRoot cancels queued and in-flight work for a root cooperatively.
	// In-flight extraction and embedding calls finish; queued tasks are dropped.
	StopRoot(root string)

	// Reindex forces a document, or every document under a path, back to
	// pending. With force, the content-hash short-circuit is bypassed.
	Reindex(ctx context.Context, idOrPath string, force bool) error

	// IndexStatus returns a read-only snapshot of indexing progress for a
	// root path. No side effects.
	IndexStatus(ctx context.Context, root string) (IndexStatus, error)
}

// IndexConfig configures scanning for one root directory.
type IndexConfig struct {
	// Recursive walks subdirectories. Defaults to true.
	Recursive bool

	// IncludeTypes limits indexing to the given categories. Empty means all.
	IncludeTypes []domain.ContentType

	// ExcludePatterns are glob patterns matched against the path; matching
	// files never reach the coordinator.
	ExcludePatterns []string

	// MaxFileSize is the cutoff in bytes. Larger files are skipped before
	// a task is ever emitted. Zero applies the default.
	MaxFileSize int64

	// Watch keeps a filesystem subscription open after the initial scan.
	Watch bool
}

// IndexStatus is a snapshot of indexing progress for a root.
type IndexStatus struct {
	// Total is the number of known documents under the root.
	Total int

	// Indexed, Failed and InProgress count documents per lifecycle stage.
	Indexed    int
	Failed     int
	InProgress int

	// Paused reports that job dispatch is halted due to systemic
	// embedding-service failure.
	Paused bool
}
