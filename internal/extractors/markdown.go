package extractors

import (
	"context"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/loupe-search/loupe/internal/core/domain"
	"github.com/loupe-search/loupe/internal/core/ports/driven"
)

// Ensure Markdown implements the interface.
var _ driven.Extractor = (*Markdown)(nil)

// Markdown handles markdown files. The source is parsed to an AST and
// rendered back as plain text so formatting never leaks into search
// snippets. Fenced code blocks are skipped; they drown prose in noise.
type Markdown struct {
	parser goldmark.Markdown
}

// NewMarkdown creates a markdown extractor.
func NewMarkdown() *Markdown {
	return &Markdown{parser: goldmark.New()}
}

// Name returns the extractor name.
func (e *Markdown) Name() string { return "markdown" }

// ContentTypes returns the categories this extractor handles.
func (e *Markdown) ContentTypes() []domain.ContentType {
	return []domain.ContentType{domain.ContentTypeDocument}
}

// Extensions returns the markdown extensions.
func (e *Markdown) Extensions() []string {
	return []string{".md", ".markdown", ".mdown"}
}

// Extract parses the markdown and returns its plain text.
func (e *Markdown) Extract(ctx context.Context, path string) (*driven.ExtractResult, error) {
	source, err := readFile(ctx, path)
	if err != nil {
		return nil, err
	}

	doc := e.parser.Parser().Parse(text.NewReader(source))

	var sb strings.Builder
	var title string

	err = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			// Separate block elements so paragraphs never run together.
			switch n.(type) {
			case *ast.Paragraph, *ast.TextBlock:
				sb.WriteString("\n")
			}
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			if title == "" && node.Level == 1 {
				title = string(node.Text(source))
			}
			sb.WriteString(string(node.Text(source)))
			sb.WriteString("\n")
			return ast.WalkSkipChildren, nil
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			return ast.WalkSkipChildren, nil
		case *ast.Text:
			sb.Write(node.Segment.Value(source))
			if node.HardLineBreak() || node.SoftLineBreak() {
				sb.WriteString("\n")
			}
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, &domain.ExtractionError{Kind: domain.ExtractionCorrupt, Path: path, Err: err}
	}

	metadata := map[string]any{"format": "markdown"}
	if title != "" {
		metadata["title"] = title
	}

	return &driven.ExtractResult{
		Text:     collapseWhitespace(sb.String()),
		Metadata: metadata,
	}, nil
}

// collapseWhitespace trims each line and merges runs of blank lines.
func collapseWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	var out []string
	blank := true
	for _, line := range lines {
		line = strings.TrimRight(strings.Join(strings.Fields(line), " "), " ")
		if line == "" {
			if !blank {
				out = append(out, "")
			}
			blank = true
			continue
		}
		out = append(out, line)
		blank = false
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
