package extractors

import (
	"context"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/loupe-search/loupe/internal/core/domain"
	"github.com/loupe-search/loupe/internal/core/ports/driven"
)

// Ensure PlainText implements the interface.
var _ driven.Extractor = (*PlainText)(nil)

// PlainText handles plain text files. It is the fallback for the
// document category; structured formats register their own extensions.
type PlainText struct{}

// NewPlainText creates a plain text extractor.
func NewPlainText() *PlainText {
	return &PlainText{}
}

// Name returns the extractor name.
func (e *PlainText) Name() string { return "plaintext" }

// ContentTypes returns the categories this extractor handles.
func (e *PlainText) ContentTypes() []domain.ContentType {
	return []domain.ContentType{domain.ContentTypeDocument, domain.ContentTypeOther}
}

// Extensions returns nil; this is the category fallback.
func (e *PlainText) Extensions() []string { return nil }

// Extract reads the file as UTF-8 text. Invalid byte sequences are
// dropped rather than failing the whole file, with the result marked
// degraded.
func (e *PlainText) Extract(ctx context.Context, path string) (*driven.ExtractResult, error) {
	content, err := readFile(ctx, path)
	if err != nil {
		return nil, err
	}

	text := string(content)
	degraded := false
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "")
		degraded = true
	}
	text = strings.TrimSpace(text)

	return &driven.ExtractResult{
		Text: text,
		Metadata: map[string]any{
			"format": "plaintext",
			"lines":  strings.Count(text, "\n") + 1,
		},
		Degraded: degraded,
	}, nil
}

// readFile loads a file, translating failures into domain errors.
func readFile(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, &domain.ExtractionError{Kind: domain.ExtractionTimeout, Path: path, Err: err}
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, &domain.ExtractionError{Kind: domain.ExtractionCorrupt, Path: path, Err: err}
	}
	return content, nil
}
