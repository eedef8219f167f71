package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/loupe-search/loupe/internal/core/domain"
	"github.com/loupe-search/loupe/internal/core/ports/driven"
	"github.com/loupe-search/loupe/internal/core/ports/driving"
	"github.com/loupe-search/loupe/internal/logger"
	"github.com/loupe-search/loupe/internal/scanner"
)

// Ensure Coordinator implements the interface.
var _ driving.Indexer = (*Coordinator)(nil)

// Default processing parameters.
const (
	// DefaultWorkers bounds concurrent per-document processing.
	DefaultWorkers = 4

	// maxRetries is the per-document retry budget for transient failures.
	maxRetries = 3

	// defaultRetryInterval seeds the exponential backoff between retries.
	defaultRetryInterval = 500 * time.Millisecond

	// extractTimeout bounds a single extraction call.
	extractTimeout = 2 * time.Minute

	// pauseThreshold is how many consecutive embedding-service failures
	// trip the dispatch pause.
	pauseThreshold = 3

	// healthProbeInterval is how often a paused coordinator pings the
	// embedding service.
	healthProbeInterval = 15 * time.Second
)

// Coordinator owns the per-document indexing pipeline and its state
// machine. Scan tasks arrive from full scans and watcher events; each
// becomes at most one unit of work through extract, chunk, embed and
// the dual-index write. Failures are isolated per document and never
// abort a batch.
type Coordinator struct {
	docs       driven.DocumentStore
	index      driven.DualIndex
	extractors driven.ExtractorRegistry
	embedder   driven.EmbeddingService
	pipeline   driven.PostProcessorPipeline
	scan       *scanner.Scanner
	watch      *scanner.Watcher
	workers    int

	mu       sync.Mutex
	roots    map[string]context.CancelFunc
	inFlight map[string]struct{}

	// docLocks serializes all work on one document identity. Scan tasks
	// are keyed by path, but a move produces two tasks (removal at the
	// old path, creation at the new one) for the same document id; the
	// per-id lock keeps their store and index writes ordered.
	docLocks sync.Map

	// retryInterval seeds the backoff between transient retries.
	retryInterval time.Duration

	// Embedding health circuit. Consecutive systemic failures pause
	// dispatch instead of marking every queued document failed.
	healthMu sync.Mutex
	failures int
	paused   bool
}

// CoordinatorConfig wires the coordinator's collaborators.
type CoordinatorConfig struct {
	Documents  driven.DocumentStore
	Index      driven.DualIndex
	Extractors driven.ExtractorRegistry

	// Embedder may be nil; documents are then indexed lexically only.
	Embedder driven.EmbeddingService

	Pipeline driven.PostProcessorPipeline
	Scanner  *scanner.Scanner
	Watcher  *scanner.Watcher

	// Workers bounds concurrency. Zero applies DefaultWorkers.
	Workers int
}

// NewCoordinator creates an indexing coordinator.
func NewCoordinator(cfg CoordinatorConfig) *Coordinator {
	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Coordinator{
		docs:          cfg.Documents,
		index:         cfg.Index,
		extractors:    cfg.Extractors,
		embedder:      cfg.Embedder,
		pipeline:      cfg.Pipeline,
		scan:          cfg.Scanner,
		watch:         cfg.Watcher,
		workers:       workers,
		roots:         make(map[string]context.CancelFunc),
		inFlight:      make(map[string]struct{}),
		retryInterval: defaultRetryInterval,
	}
}

// IndexDirectory begins scanning and, optionally, watching a root.
// It returns once the scan is started; processing continues in the
// background until the work drains or StopRoot is called.
func (c *Coordinator) IndexDirectory(ctx context.Context, root string, cfg driving.IndexConfig) error {
	info, err := os.Stat(root)
	if err != nil {
		return &domain.ScanError{Path: root, Err: err}
	}
	if !info.IsDir() {
		return &domain.ScanError{Path: root, Err: fmt.Errorf("not a directory")}
	}
	root = filepath.Clean(root)

	rootCtx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	if prev, ok := c.roots[root]; ok {
		prev()
	}
	c.roots[root] = cancel
	c.mu.Unlock()

	tasks, errs := c.scan.Scan(rootCtx, root, cfg)

	var watchTasks <-chan domain.ScanTask
	if cfg.Watch {
		watchTasks, err = c.watch.Watch(rootCtx, root, cfg)
		if err != nil {
			cancel()
			return err
		}
	}

	go func() {
		for err := range errs {
			logger.Warn("index %s: %v", root, err)
		}
	}()

	go c.dispatch(rootCtx, root, tasks, watchTasks)

	logger.Info("Indexing started for %s (workers=%d, watch=%v)", root, c.workers, cfg.Watch)
	return nil
}

// dispatch fans tasks out to a bounded worker pool. The pool drains the
// initial scan first, then keeps consuming watcher events until the
// root context is cancelled.
func (c *Coordinator) dispatch(ctx context.Context, root string, scanTasks, watchTasks <-chan domain.ScanTask) {
	work := make(chan domain.ScanTask)

	var wg sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range work {
				c.waitHealthy(ctx)
				if ctx.Err() != nil {
					return
				}
				c.runTask(ctx, task, false)
			}
		}()
	}

	forward := func(tasks <-chan domain.ScanTask) {
		for task := range tasks {
			select {
			case work <- task:
			case <-ctx.Done():
				return
			}
		}
	}

	forward(scanTasks)
	if watchTasks != nil {
		forward(watchTasks)
	}

	close(work)
	wg.Wait()
}

// StopRoot cancels queued and in-flight work for a root cooperatively.
func (c *Coordinator) StopRoot(root string) {
	root = filepath.Clean(root)
	c.mu.Lock()
	cancel, ok := c.roots[root]
	if ok {
		delete(c.roots, root)
	}
	c.mu.Unlock()
	if ok {
		cancel()
		logger.Info("Indexing stopped for %s", root)
	}
}

// Reindex forces a document, or every document under a path, back
// through the pipeline. With force, the content-hash short-circuit is
// bypassed so unchanged files are re-extracted and re-embedded.
func (c *Coordinator) Reindex(ctx context.Context, idOrPath string, force bool) error {
	docs, err := c.resolveDocuments(ctx, idOrPath)
	if err != nil {
		return err
	}

	for i := range docs {
		doc := &docs[i]
		if _, err := os.Stat(doc.Path); err != nil {
			c.handleRemoval(ctx, doc.Path)
			continue
		}

		task := domain.ScanTask{
			Path:   doc.Path,
			Root:   doc.RootPath,
			Reason: domain.ScanReasonManual,
		}
		if info, err := os.Stat(doc.Path); err == nil {
			task.Size = info.Size()
			task.ModifiedAt = info.ModTime()
		}
		c.runTask(ctx, task, force)
	}
	return nil
}

// resolveDocuments finds targets for a reindex request: a document ID,
// an exact path, or every known document under a directory path.
func (c *Coordinator) resolveDocuments(ctx context.Context, idOrPath string) ([]domain.IndexedDocument, error) {
	if doc, err := c.docs.GetDocument(ctx, idOrPath); err == nil {
		return []domain.IndexedDocument{*doc}, nil
	}
	if doc, err := c.docs.GetDocumentByPath(ctx, idOrPath); err == nil {
		return []domain.IndexedDocument{*doc}, nil
	}

	docs, err := c.docs.ListDocuments(ctx, filepath.Clean(idOrPath))
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, domain.ErrNotFound
	}
	return docs, nil
}

// IndexStatus returns a read-only snapshot of indexing progress.
func (c *Coordinator) IndexStatus(ctx context.Context, root string) (driving.IndexStatus, error) {
	counts, err := c.docs.CountByStatus(ctx, filepath.Clean(root))
	if err != nil {
		return driving.IndexStatus{}, err
	}

	var status driving.IndexStatus
	for s, n := range counts {
		if s == domain.StatusDeleted {
			continue
		}
		status.Total += n
		switch s {
		case domain.StatusIndexed, domain.StatusStale:
			status.Indexed += n
		case domain.StatusFailed:
			status.Failed += n
		case domain.StatusPending, domain.StatusProcessing:
			status.InProgress += n
		}
	}

	c.healthMu.Lock()
	status.Paused = c.paused
	c.healthMu.Unlock()

	return status, nil
}

// runTask guards one task with the in-flight set so the same document
// is never queued twice concurrently, then routes it by reason. The set
// is keyed by document id; a path not yet known to the store has no id
// and keys by path until its first save.
func (c *Coordinator) runTask(ctx context.Context, task domain.ScanTask, force bool) {
	key := task.Path
	if doc, err := c.docs.GetDocumentByPath(ctx, task.Path); err == nil {
		key = doc.ID
	}

	c.mu.Lock()
	if _, busy := c.inFlight[key]; busy {
		c.mu.Unlock()
		logger.Debug("coordinator: %s already in flight, skipping", task.Path)
		return
	}
	c.inFlight[key] = struct{}{}
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.inFlight, key)
		c.mu.Unlock()
	}()

	if task.Reason == domain.ScanReasonRemoved {
		c.handleRemoval(ctx, task.Path)
		return
	}

	if err := c.processFile(ctx, task, force); err != nil {
		logger.Debug("coordinator: %s: %v", task.Path, err)
	}
}

// processFile drives one document through the full pipeline.
func (c *Coordinator) processFile(ctx context.Context, task domain.ScanTask, force bool) error {
	content, err := os.ReadFile(task.Path)
	if err != nil {
		// The file vanished between scan and processing.
		if os.IsNotExist(err) {
			c.handleRemoval(ctx, task.Path)
			return nil
		}
		return err
	}

	sum := sha256.Sum256(content)
	hash := hex.EncodeToString(sum[:])

	doc, moved, err := c.identify(ctx, task, hash)
	if err != nil {
		return err
	}

	// Serialize against other work on this identity, then re-resolve: a
	// move's removal task may have touched the row while waiting.
	unlock := c.lockDocument(doc.ID)
	defer unlock()
	if doc, moved, err = c.identify(ctx, task, hash); err != nil {
		return err
	}

	// Touch-only change: same content already visible to search. A move
	// is not a touch; the new path must reach the store and the index.
	if !force && !moved && doc.ContentHash == hash && doc.Searchable() {
		logger.Debug("coordinator: %s unchanged (hash match)", task.Path)
		return nil
	}

	// A previously indexed document stays visible with its old content
	// for the whole reprocessing window; a concurrent query sees the
	// fully old version, never a gap. Only a never-searchable document
	// surfaces as processing.
	if doc.Searchable() {
		if doc.Status == domain.StatusIndexed {
			doc.Status = domain.StatusStale
			if err := c.docs.SaveDocument(ctx, doc); err != nil {
				return err
			}
		}
	} else {
		doc.Status = domain.StatusProcessing
		if err := c.docs.SaveDocument(ctx, doc); err != nil {
			return err
		}
	}

	// The new content builds on a working copy; the stored row swaps to
	// it only once the dual-index write has succeeded.
	work := *doc
	work.ContentHash = hash
	work.Size = task.Size
	work.ModifiedAt = task.ModifiedAt
	work.ContentType = domain.ClassifyPath(task.Path)

	attempts := 0
	operation := func() error {
		attempts++
		err := c.pipelineDocument(ctx, &work)
		if err == nil {
			return nil
		}
		if permanentFailure(err) {
			return backoff.Permanent(err)
		}
		logger.Debug("coordinator: %s attempt %d: %v", task.Path, attempts, err)
		return err
	}
	if err := backoff.Retry(operation, c.retryPolicy(ctx, maxRetries-1)); err != nil {
		return c.recordFailure(ctx, &work, err, attempts)
	}

	work.Status = domain.StatusIndexed
	work.ErrorCount = 0
	work.LastError = ""
	if err := c.docs.SaveDocument(ctx, &work); err != nil {
		return err
	}

	logger.Debug("coordinator: indexed %s", task.Path)
	return nil
}

// lockDocument takes the per-identity mutex and returns its release.
func (c *Coordinator) lockDocument(id string) func() {
	actual, _ := c.docLocks.LoadOrStore(id, &sync.Mutex{})
	mu := actual.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// retryPolicy builds the exponential backoff applied to transient
// pipeline failures, bounded by the context and a retry count.
func (c *Coordinator) retryPolicy(ctx context.Context, retries uint64) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryInterval
	return backoff.WithContext(backoff.WithMaxRetries(b, retries), ctx)
}

// permanentFailure reports errors no retry can fix: unsupported or
// corrupt input, and embedding errors that already exhausted their own
// retry budget inside embedChunks.
func permanentFailure(err error) bool {
	var extErr *domain.ExtractionError
	if errors.As(err, &extErr) {
		return extErr.Kind == domain.ExtractionUnsupported || extErr.Kind == domain.ExtractionCorrupt
	}
	var embErr *domain.EmbeddingError
	return errors.As(err, &embErr)
}

// identify resolves which document a file belongs to. A known path
// keeps its identity even across deletion; a new path whose content
// hash matches an existing document is a move, and the old identity is
// re-issued so search history and chunks carry over.
func (c *Coordinator) identify(ctx context.Context, task domain.ScanTask, hash string) (doc *domain.IndexedDocument, moved bool, err error) {
	if doc, err := c.docs.GetDocumentByPath(ctx, task.Path); err == nil {
		return doc, false, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, false, err
	}

	if prev, err := c.docs.GetDocumentByHash(ctx, hash); err == nil {
		// Same content under another path. It is a move only if the old
		// file is actually gone; otherwise this is a copy.
		if _, statErr := os.Stat(prev.Path); statErr != nil {
			logger.Debug("coordinator: move detected %s -> %s", prev.Path, task.Path)
			prev.Path = task.Path
			prev.RootPath = task.Root
			return prev, true, nil
		}
	}

	return &domain.IndexedDocument{
		ID:       uuid.New().String(),
		Path:     task.Path,
		RootPath: task.Root,
		Status:   domain.StatusPending,
	}, false, nil
}

// pipelineDocument extracts, chunks, embeds and publishes one document.
// Transient failures are retried up to the budget with exponential
// backoff; permanent extraction failures are not retried.
func (c *Coordinator) pipelineDocument(ctx context.Context, doc *domain.IndexedDocument) error {
	extractCtx, cancel := context.WithTimeout(ctx, extractTimeout)
	defer cancel()

	result, err := c.extractors.Extract(extractCtx, doc.Path, doc.ContentType)
	if err != nil {
		return err
	}

	doc.Text = result.Text
	doc.DegradedQuality = result.Degraded
	if doc.Metadata == nil {
		doc.Metadata = make(map[string]any, len(result.Metadata))
	}
	for k, v := range result.Metadata {
		doc.Metadata[k] = v
	}

	chunks, err := c.pipeline.Process(ctx, doc)
	if err != nil {
		return err
	}

	// An extraction-supplied embedding (image files) replaces the text
	// embedding path entirely.
	if len(result.Embedding) > 0 {
		if len(chunks) == 0 {
			chunks = []domain.ContentChunk{{
				ID:         uuid.New().String(),
				DocumentID: doc.ID,
				Content:    doc.Text,
			}}
		}
		chunks[0].Embedding = result.Embedding
	} else if c.embedder != nil && len(chunks) > 0 {
		if err := c.embedChunks(ctx, chunks); err != nil {
			return err
		}
	}

	if err := c.docs.SaveChunks(ctx, chunks); err != nil {
		return err
	}

	return c.publish(ctx, doc, chunks)
}

// embedChunks batches chunk contents through the embedding service with
// retries. Systemic failure feeds the health circuit.
func (c *Coordinator) embedChunks(ctx context.Context, chunks []domain.ContentChunk) error {
	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}

	var embeddings [][]float32
	operation := func() error {
		var err error
		embeddings, err = c.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			var embErr *domain.EmbeddingError
			if errors.As(err, &embErr) {
				return err // transient, retry
			}
			return backoff.Permanent(err)
		}
		return nil
	}

	if err := backoff.Retry(operation, c.retryPolicy(ctx, maxRetries)); err != nil {
		c.recordEmbeddingFailure(err)
		return err
	}
	c.recordEmbeddingSuccess()

	for i := range chunks {
		if i < len(embeddings) {
			chunks[i].Embedding = embeddings[i]
		}
	}
	return nil
}

// publish performs the staged dual-index write.
func (c *Coordinator) publish(ctx context.Context, doc *domain.IndexedDocument, chunks []domain.ContentChunk) error {
	textDoc := driven.TextDocument{
		DocID:    doc.ID,
		Body:     doc.Text,
		Filename: filepath.Base(doc.Path),
		Attrs: driven.DocAttrs{
			ContentType: doc.ContentType,
			Path:        doc.Path,
			ModifiedAt:  doc.ModifiedAt,
			Size:        doc.Size,
		},
	}

	var vectors []driven.VectorEntry
	for _, chunk := range chunks {
		if len(chunk.Embedding) > 0 {
			vectors = append(vectors, driven.VectorEntry{
				ChunkID:   chunk.ID,
				Embedding: chunk.Embedding,
			})
		}
	}

	return c.index.Replace(ctx, textDoc, vectors)
}

// recordFailure parks a document as failed once its retry budget is
// spent and clears every trace of partial state: index entries and
// persisted chunks both go, so a failed document owns no content
// anywhere.
func (c *Coordinator) recordFailure(ctx context.Context, doc *domain.IndexedDocument, cause error, attempts int) error {
	doc.ErrorCount += attempts
	doc.LastError = cause.Error()
	doc.Status = domain.StatusFailed
	doc.Text = ""

	if err := c.index.Remove(ctx, doc.ID); err != nil {
		logger.Debug("coordinator: index cleanup of %s failed: %v", doc.ID, err)
	}
	if err := c.docs.DeleteChunks(ctx, doc.ID); err != nil {
		logger.Debug("coordinator: chunk cleanup of %s failed: %v", doc.ID, err)
	}
	logger.Warn("Indexing failed for %s: %v", doc.Path, cause)

	if err := c.docs.SaveDocument(ctx, doc); err != nil {
		return err
	}
	return cause
}

// handleRemoval purges a removed file from both indexes and soft-deletes
// the metadata row. The row itself is kept transiently so a quick
// re-create at the same path keeps its identity.
func (c *Coordinator) handleRemoval(ctx context.Context, path string) {
	doc, err := c.docs.GetDocumentByPath(ctx, path)
	if err != nil {
		return // never indexed, nothing to purge
	}

	unlock := c.lockDocument(doc.ID)
	defer unlock()

	// The row may have been re-pointed at a new path while this removal
	// waited; a moved document must not be purged under its old path.
	doc, err = c.docs.GetDocumentByPath(ctx, path)
	if err != nil {
		return
	}

	if err := c.index.Remove(ctx, doc.ID); err != nil {
		logger.Warn("coordinator: index removal for %s: %v", path, err)
	}
	if err := c.docs.DeleteChunks(ctx, doc.ID); err != nil {
		logger.Warn("coordinator: chunk removal for %s: %v", path, err)
	}

	doc.Status = domain.StatusDeleted
	doc.Text = ""
	if err := c.docs.SaveDocument(ctx, doc); err != nil {
		logger.Warn("coordinator: soft delete for %s: %v", path, err)
	}
	logger.Debug("coordinator: removed %s", path)
}

// ==================== Embedding health circuit ====================

// recordEmbeddingFailure counts consecutive systemic failures and trips
// the pause once the threshold is reached.
func (c *Coordinator) recordEmbeddingFailure(err error) {
	var embErr *domain.EmbeddingError
	if !errors.As(err, &embErr) {
		return
	}

	c.healthMu.Lock()
	defer c.healthMu.Unlock()
	c.failures++
	if c.failures >= pauseThreshold && !c.paused {
		c.paused = true
		logger.Warn("Embedding service unhealthy after %d failures, pausing indexing", c.failures)
	}
}

func (c *Coordinator) recordEmbeddingSuccess() {
	c.healthMu.Lock()
	defer c.healthMu.Unlock()
	c.failures = 0
	if c.paused {
		c.paused = false
		logger.Info("Embedding service recovered, resuming indexing")
	}
}

// waitHealthy blocks while the circuit is open, probing the embedding
// service until it answers or the context is cancelled.
func (c *Coordinator) waitHealthy(ctx context.Context) {
	for {
		c.healthMu.Lock()
		paused := c.paused
		c.healthMu.Unlock()
		if !paused || c.embedder == nil {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(healthProbeInterval):
		}

		if err := c.embedder.Ping(ctx); err == nil {
			c.recordEmbeddingSuccess()
			return
		}
		logger.Debug("coordinator: embedding service still unavailable")
	}
}

// Paused reports whether dispatch is halted by the health circuit.
func (c *Coordinator) Paused() bool {
	c.healthMu.Lock()
	defer c.healthMu.Unlock()
	return c.paused
}
