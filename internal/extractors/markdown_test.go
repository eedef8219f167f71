package extractors

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeMarkdown(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.md")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestMarkdown_Extract(t *testing.T) {
	path := writeMarkdown(t, `# Quarterly Report

Revenue **grew** by [twelve percent](https://example.com/report).

- First point
- Second point
`)

	result, err := NewMarkdown().Extract(context.Background(), path)
	require.NoError(t, err)

	assert.Contains(t, result.Text, "Quarterly Report")
	assert.Contains(t, result.Text, "Revenue grew by twelve percent")
	assert.Contains(t, result.Text, "First point")
	assert.NotContains(t, result.Text, "**")
	assert.NotContains(t, result.Text, "https://example.com")
	assert.Equal(t, "Quarterly Report", result.Metadata["title"])
}

func TestMarkdown_SkipsCodeBlocks(t *testing.T) {
	path := writeMarkdown(t, "Prose before.\n\n```go\nfunc secret() {}\n```\n\nProse after.\n")

	result, err := NewMarkdown().Extract(context.Background(), path)
	require.NoError(t, err)

	assert.Contains(t, result.Text, "Prose before.")
	assert.Contains(t, result.Text, "Prose after.")
	assert.NotContains(t, result.Text, "secret")
}

func TestMarkdown_NoHeading(t *testing.T) {
	path := writeMarkdown(t, "just a paragraph with no title\n")

	result, err := NewMarkdown().Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Contains(t, result.Text, "just a paragraph")
	assert.NotContains(t, result.Metadata, "title")
}

func TestHTML_Extract(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "page.html")
	content := `<!DOCTYPE html>
<html>
<head><title>Annual Summary</title><style>body { color: red; }</style></head>
<body>
<script>alert("never index this");</script>
<h1>Annual Summary</h1>
<p>Profit was &amp; remains strong.</p>
<!-- hidden comment -->
</body>
</html>`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	result, err := NewHTML().Extract(context.Background(), path)
	require.NoError(t, err)

	assert.Contains(t, result.Text, "Annual Summary")
	assert.Contains(t, result.Text, "Profit was & remains strong.")
	assert.NotContains(t, result.Text, "alert")
	assert.NotContains(t, result.Text, "color: red")
	assert.NotContains(t, result.Text, "hidden comment")
	assert.Equal(t, "Annual Summary", result.Metadata["title"])
}

func TestStripHTML_Tables(t *testing.T) {
	text := stripHTML("<table><tr><td>cell one</td></tr><tr><td>cell two</td></tr></table>")
	assert.Contains(t, text, "cell one")
	assert.Contains(t, text, "cell two")
}
