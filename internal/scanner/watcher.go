package scanner

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/loupe-search/loupe/internal/core/domain"
	"github.com/loupe-search/loupe/internal/core/ports/driven"
	"github.com/loupe-search/loupe/internal/core/ports/driving"
	"github.com/loupe-search/loupe/internal/logger"
)

const (
	// debounceWindow is how long a path must be quiet before its
	// collapsed event is emitted. Editors that write via temp file and
	// rename produce several events per save; one task should result.
	debounceWindow = 500 * time.Millisecond

	// flushInterval is how often pending events are checked against the
	// debounce window.
	flushInterval = 100 * time.Millisecond
)

// Watcher subscribes to filesystem events under a root and emits
// debounced scan tasks. Events for the same path within the debounce
// window collapse into a single task carrying the latest operation.
type Watcher struct {
	snapshots driven.SnapshotStore

	mu      sync.Mutex
	pending map[string]pendingEvent
}

type pendingEvent struct {
	last time.Time
}

// NewWatcher creates a watcher backed by the given snapshot store.
func NewWatcher(snapshots driven.SnapshotStore) *Watcher {
	return &Watcher{
		snapshots: snapshots,
		pending:   make(map[string]pendingEvent),
	}
}

// Watch starts watching root and returns a channel of debounced tasks.
// The channel closes when ctx is cancelled. Subdirectories created
// while watching are added to the subscription.
func (w *Watcher) Watch(ctx context.Context, root string, cfg driving.IndexConfig) (<-chan domain.ScanTask, error) {
	if _, err := os.Stat(root); err != nil {
		return nil, &domain.ScanError{Path: root, Err: err}
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, &domain.ScanError{Path: root, Err: err}
	}

	if err := addRecursive(fsw, root, cfg); err != nil {
		fsw.Close()
		return nil, err
	}

	tasks := make(chan domain.ScanTask)

	go func() {
		defer close(tasks)
		defer fsw.Close()

		ticker := time.NewTicker(flushInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-fsw.Events:
				if !ok {
					return
				}
				w.handleEvent(fsw, event, cfg)

			case err, ok := <-fsw.Errors:
				if !ok {
					return
				}
				logger.Warn("watcher: %v", err)

			case <-ticker.C:
				for _, task := range w.flush(ctx, root, cfg) {
					select {
					case tasks <- task:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	return tasks, nil
}

func (w *Watcher) handleEvent(fsw *fsnotify.Watcher, event fsnotify.Event, cfg driving.IndexConfig) {
	// New directories need their own subscription; fsnotify watches are
	// not recursive.
	if event.Op.Has(fsnotify.Create) && cfg.Recursive {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if !Excluded(event.Name, cfg.ExcludePatterns) {
				if err := fsw.Add(event.Name); err != nil {
					logger.Warn("watcher: cannot watch %s: %v", event.Name, err)
				}
			}
			return
		}
	}

	if event.Op == fsnotify.Chmod {
		return // attribute-only change, content is untouched
	}

	w.mu.Lock()
	w.pending[event.Name] = pendingEvent{last: time.Now()}
	w.mu.Unlock()
}

// flush drains pending events older than the debounce window and turns
// each into at most one task.
func (w *Watcher) flush(ctx context.Context, root string, cfg driving.IndexConfig) []domain.ScanTask {
	cutoff := time.Now().Add(-debounceWindow)

	w.mu.Lock()
	var ripe []string
	for path, ev := range w.pending {
		if ev.last.Before(cutoff) {
			ripe = append(ripe, path)
		}
	}
	for _, path := range ripe {
		delete(w.pending, path)
	}
	w.mu.Unlock()

	var out []domain.ScanTask
	for _, path := range ripe {
		if task, ok := w.resolve(ctx, root, path, cfg); ok {
			out = append(out, task)
		}
	}
	return out
}

// resolve decides what a collapsed event means by looking at the file as
// it is now, not at the operations that happened in between. A create
// followed by a remove inside one window resolves to nothing.
func (w *Watcher) resolve(ctx context.Context, root, path string, cfg driving.IndexConfig) (domain.ScanTask, bool) {
	if Excluded(path, cfg.ExcludePatterns) || !typeIncluded(path, cfg.IncludeTypes) {
		return domain.ScanTask{}, false
	}

	maxSize := cfg.MaxFileSize
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}

	info, err := os.Stat(path)
	if err != nil {
		// Gone from disk. Only emit a removal for files we knew about.
		if _, snapErr := w.snapshots.Get(ctx, path); snapErr != nil {
			return domain.ScanTask{}, false
		}
		if err := w.snapshots.Delete(ctx, path); err != nil {
			logger.Warn("watcher: snapshot delete %s: %v", path, err)
		}
		return domain.ScanTask{Path: path, Root: root, Reason: domain.ScanReasonRemoved}, true
	}
	if info.IsDir() || !info.Mode().IsRegular() || info.Size() > maxSize {
		return domain.ScanTask{}, false
	}

	reason := domain.ScanReasonModified
	if _, snapErr := w.snapshots.Get(ctx, path); snapErr != nil {
		reason = domain.ScanReasonNew
	}

	if err := w.snapshots.Put(ctx, driven.SnapshotEntry{
		Path:          path,
		Root:          root,
		ModifiedNanos: info.ModTime().UnixNano(),
		Size:          info.Size(),
	}); err != nil {
		logger.Warn("watcher: snapshot put %s: %v", path, err)
	}

	return domain.ScanTask{
		Path:       path,
		Root:       root,
		Reason:     reason,
		Size:       info.Size(),
		ModifiedAt: info.ModTime(),
	}, true
}

func addRecursive(fsw *fsnotify.Watcher, root string, cfg driving.IndexConfig) error {
	if !cfg.Recursive {
		if err := fsw.Add(root); err != nil {
			return &domain.ScanError{Path: root, Err: err}
		}
		return nil
	}

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Warn("watcher: skipping %s: %v", path, err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && Excluded(path, cfg.ExcludePatterns) {
			return filepath.SkipDir
		}
		if err := fsw.Add(path); err != nil {
			return &domain.ScanError{Path: path, Err: err}
		}
		return nil
	})
}
