package extractors

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loupe-search/loupe/internal/core/domain"
)

// writeDocx builds a minimal DOCX container for tests.
func writeDocx(t *testing.T, files map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.docx")

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return path
}

const documentXMLBody = `<?xml version="1.0"?>
<document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <body>
    <p><r><t>First paragraph of the report.</t></r></p>
    <p><r><t>Second </t></r><r><t>paragraph.</t></r></p>
  </body>
</document>`

func TestDocx_Extract(t *testing.T) {
	path := writeDocx(t, map[string]string{
		"word/document.xml": documentXMLBody,
		"docProps/core.xml": `<?xml version="1.0"?><coreProperties><title>Board Report</title></coreProperties>`,
	})

	result, err := NewDocx().Extract(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "First paragraph of the report.\nSecond paragraph.", result.Text)
	assert.Equal(t, "Board Report", result.Metadata["title"])
	assert.False(t, result.Degraded)
}

func TestDocx_MissingBodyIsDegraded(t *testing.T) {
	path := writeDocx(t, map[string]string{
		"docProps/core.xml": `<coreProperties><title>Empty</title></coreProperties>`,
	})

	result, err := NewDocx().Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Empty(t, result.Text)
	assert.True(t, result.Degraded)
}

func TestDocx_MalformedXMLIsDegraded(t *testing.T) {
	path := writeDocx(t, map[string]string{
		"word/document.xml": "<document><body><p>never closed",
	})

	result, err := NewDocx().Extract(context.Background(), path)
	require.NoError(t, err)
	assert.True(t, result.Degraded)
}

func TestDocx_NotAZip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fake.docx")
	require.NoError(t, os.WriteFile(path, []byte("not a zip archive"), 0644))

	_, err := NewDocx().Extract(context.Background(), path)
	require.Error(t, err)

	var extErr *domain.ExtractionError
	require.ErrorAs(t, err, &extErr)
	assert.Equal(t, domain.ExtractionCorrupt, extErr.Kind)
}
