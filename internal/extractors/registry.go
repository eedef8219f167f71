// Package extractors converts files into plain text for indexing.
// Each format has its own extractor; the registry dispatches by content
// category and file extension.
package extractors

import (
	"context"
	"strings"
	"sync"

	"github.com/loupe-search/loupe/internal/core/domain"
	"github.com/loupe-search/loupe/internal/core/ports/driven"
	"github.com/loupe-search/loupe/internal/logger"
)

// Ensure Registry implements the interface.
var _ driven.ExtractorRegistry = (*Registry)(nil)

// Registry dispatches extraction to registered extractors. Extension
// matches win over category matches so a ".md" extractor shadows the
// generic document extractor for markdown files.
type Registry struct {
	mu          sync.RWMutex
	byExtension map[string]driven.Extractor
	byType      map[domain.ContentType]driven.Extractor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byExtension: make(map[string]driven.Extractor),
		byType:      make(map[domain.ContentType]driven.Extractor),
	}
}

// Register adds an extractor. Extractors naming extensions are bound to
// those extensions only; extractors without extensions become the
// fallback for their content categories. Later registrations win.
func (r *Registry) Register(e driven.Extractor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	exts := e.Extensions()
	if len(exts) > 0 {
		for _, ext := range exts {
			r.byExtension[strings.ToLower(ext)] = e
		}
		return
	}
	for _, ct := range e.ContentTypes() {
		r.byType[ct] = e
	}
}

// Extract dispatches to the matching extractor.
func (r *Registry) Extract(ctx context.Context, path string, contentType domain.ContentType) (*driven.ExtractResult, error) {
	e := r.lookup(path, contentType)
	if e == nil {
		return nil, &domain.ExtractionError{
			Kind: domain.ExtractionUnsupported,
			Path: path,
			Err:  domain.ErrUnsupportedType,
		}
	}

	logger.Debug("extractors: %s handles %s", e.Name(), path)
	return e.Extract(ctx, path)
}

func (r *Registry) lookup(path string, contentType domain.ContentType) driven.Extractor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ext := strings.ToLower(extOf(path))
	if e, ok := r.byExtension[ext]; ok {
		return e
	}
	return r.byType[contentType]
}

func extOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		switch path[i] {
		case '.':
			return path[i:]
		case '/', '\\':
			return ""
		}
	}
	return ""
}

// DefaultRegistry wires up the standard extractor set. The vision and
// recognition services may be nil; media extraction then degrades to
// filename and file metadata.
func DefaultRegistry(vision driven.VisionService, recognition driven.RecognitionService) *Registry {
	r := NewRegistry()
	r.Register(NewPlainText())
	r.Register(NewCode())
	r.Register(NewMarkdown())
	r.Register(NewHTML())
	r.Register(NewDocx())
	r.Register(NewPDF())
	r.Register(NewMedia(vision, recognition))
	return r
}
