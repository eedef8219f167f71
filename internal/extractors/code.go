package extractors

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/loupe-search/loupe/internal/core/domain"
	"github.com/loupe-search/loupe/internal/core/ports/driven"
)

// Ensure Code implements the interface.
var _ driven.Extractor = (*Code)(nil)

// Code handles source code files. Content is indexed as-is; the
// language is recorded so results can be filtered by it later.
type Code struct{}

// NewCode creates a source code extractor.
func NewCode() *Code {
	return &Code{}
}

// languageByExt maps source extensions to a language label.
var languageByExt = map[string]string{
	".go":    "go",
	".py":    "python",
	".js":    "javascript",
	".ts":    "typescript",
	".jsx":   "javascript",
	".tsx":   "typescript",
	".java":  "java",
	".c":     "c",
	".h":     "c",
	".cpp":   "cpp",
	".hpp":   "cpp",
	".cc":    "cpp",
	".rs":    "rust",
	".rb":    "ruby",
	".php":   "php",
	".swift": "swift",
	".kt":    "kotlin",
	".cs":    "csharp",
	".sh":    "shell",
	".sql":   "sql",
	".yaml":  "yaml",
	".yml":   "yaml",
	".json":  "json",
	".toml":  "toml",
}

// Name returns the extractor name.
func (e *Code) Name() string { return "code" }

// ContentTypes returns the categories this extractor handles.
func (e *Code) ContentTypes() []domain.ContentType {
	return []domain.ContentType{domain.ContentTypeCode}
}

// Extensions returns nil; this is the category fallback for code.
func (e *Code) Extensions() []string { return nil }

// Extract reads the source file verbatim.
func (e *Code) Extract(ctx context.Context, path string) (*driven.ExtractResult, error) {
	content, err := readFile(ctx, path)
	if err != nil {
		return nil, err
	}

	text := strings.TrimSpace(strings.ToValidUTF8(string(content), ""))

	metadata := map[string]any{"format": "code"}
	if lang, ok := languageByExt[strings.ToLower(filepath.Ext(path))]; ok {
		metadata["language"] = lang
	}

	return &driven.ExtractResult{Text: text, Metadata: metadata}, nil
}
