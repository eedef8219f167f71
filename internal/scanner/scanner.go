// Package scanner discovers files under a root directory and turns
// filesystem state into indexing tasks. A scan diffs the live tree
// against a persisted snapshot of (path, mtime, size) so unchanged
// files produce no work, and the same comparison makes a rescan of an
// unchanged tree a no-op.
package scanner

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/loupe-search/loupe/internal/core/domain"
	"github.com/loupe-search/loupe/internal/core/ports/driven"
	"github.com/loupe-search/loupe/internal/core/ports/driving"
	"github.com/loupe-search/loupe/internal/logger"
)

// DefaultMaxFileSize is applied when a config leaves MaxFileSize at zero.
const DefaultMaxFileSize = 100 * 1024 * 1024 // 100 MB

// Scanner walks directories and emits scan tasks for changed files.
type Scanner struct {
	snapshots driven.SnapshotStore
}

// New creates a scanner backed by the given snapshot store.
func New(snapshots driven.SnapshotStore) *Scanner {
	return &Scanner{snapshots: snapshots}
}

// Scan walks root and streams tasks for new, modified and removed files.
// Both channels close when the walk finishes or ctx is cancelled. Errors
// on the error channel are non-fatal; the walk continues past them.
func (s *Scanner) Scan(ctx context.Context, root string, cfg driving.IndexConfig) (<-chan domain.ScanTask, <-chan error) {
	tasks := make(chan domain.ScanTask)
	errs := make(chan error, 16)

	go func() {
		defer close(tasks)
		defer close(errs)
		s.scan(ctx, root, cfg, tasks, errs)
	}()

	return tasks, errs
}

func (s *Scanner) scan(ctx context.Context, root string, cfg driving.IndexConfig, tasks chan<- domain.ScanTask, errs chan<- error) {
	maxSize := cfg.MaxFileSize
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}

	// Previous snapshot, keyed by path. Entries still present after the
	// walk correspond to files that no longer exist.
	known, err := s.snapshots.List(ctx, root)
	if err != nil {
		sendErr(ctx, errs, &domain.ScanError{Path: root, Err: err})
		return
	}
	remaining := make(map[string]driven.SnapshotEntry, len(known))
	for _, entry := range known {
		remaining[entry.Path] = entry
	}

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			// Unreadable entry. Report and keep walking siblings.
			sendErr(ctx, errs, &domain.ScanError{Path: path, Err: err})
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if path != root && !cfg.Recursive {
				return filepath.SkipDir
			}
			if Excluded(path, cfg.ExcludePatterns) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		// A skipped file stays in remaining: if an earlier scan indexed
		// it, the removal sweep below retires its stale content.
		if Excluded(path, cfg.ExcludePatterns) {
			return nil
		}
		if !typeIncluded(path, cfg.IncludeTypes) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			sendErr(ctx, errs, &domain.ScanError{Path: path, Err: err})
			return nil
		}
		if info.Size() > maxSize {
			logger.Debug("scanner: skipping %s (%d bytes over limit)", path, info.Size())
			return nil
		}

		prev, seen := remaining[path]
		delete(remaining, path)

		reason := domain.ScanReasonNew
		if seen {
			if prev.ModifiedNanos == info.ModTime().UnixNano() && prev.Size == info.Size() {
				return nil // unchanged
			}
			reason = domain.ScanReasonModified
		}

		task := domain.ScanTask{
			Path:       path,
			Root:       root,
			Reason:     reason,
			Size:       info.Size(),
			ModifiedAt: info.ModTime(),
		}
		select {
		case tasks <- task:
		case <-ctx.Done():
			return ctx.Err()
		}

		if err := s.snapshots.Put(ctx, driven.SnapshotEntry{
			Path:          path,
			Root:          root,
			ModifiedNanos: info.ModTime().UnixNano(),
			Size:          info.Size(),
		}); err != nil {
			sendErr(ctx, errs, &domain.ScanError{Path: path, Err: err})
		}
		return nil
	})

	if walkErr != nil && walkErr != ctx.Err() {
		sendErr(ctx, errs, &domain.ScanError{Path: root, Err: walkErr})
	}
	if ctx.Err() != nil {
		return
	}

	// Whatever the walk did not touch is gone from disk or newly out of
	// scope; either way its indexed content must be retired.
	for path := range remaining {
		select {
		case tasks <- domain.ScanTask{Path: path, Root: root, Reason: domain.ScanReasonRemoved}:
		case <-ctx.Done():
			return
		}
		if err := s.snapshots.Delete(ctx, path); err != nil {
			sendErr(ctx, errs, &domain.ScanError{Path: path, Err: err})
		}
	}
}

// Excluded reports whether path matches any of the glob patterns.
// Patterns without a separator are matched against every path segment,
// so "node_modules" or "*.log" apply anywhere in the tree. Patterns
// containing a separator are matched against the whole slash-separated
// path.
func Excluded(path string, patterns []string) bool {
	if len(patterns) == 0 {
		return false
	}
	slashed := filepath.ToSlash(filepath.Clean(path))
	segments := strings.Split(slashed, "/")
	for _, pattern := range patterns {
		if strings.ContainsRune(pattern, '/') {
			if ok, err := filepath.Match(pattern, slashed); err == nil && ok {
				return true
			}
			continue
		}
		for _, segment := range segments {
			if ok, err := filepath.Match(pattern, segment); err == nil && ok {
				return true
			}
		}
	}
	return false
}

func typeIncluded(path string, include []domain.ContentType) bool {
	if len(include) == 0 {
		return true
	}
	ct := domain.ClassifyPath(path)
	for _, want := range include {
		if ct == want {
			return true
		}
	}
	return false
}

func sendErr(_ context.Context, errs chan<- error, err error) {
	select {
	case errs <- err:
	default:
		// Error channel full; the scan must not stall on an
		// unread error, so drop it and log instead.
		logger.Debug("scanner: dropped error: %v", err)
	}
}
