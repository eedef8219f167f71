package extractors

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"io"
	"strings"

	"github.com/loupe-search/loupe/internal/core/domain"
	"github.com/loupe-search/loupe/internal/core/ports/driven"
)

// Ensure Docx implements the interface.
var _ driven.Extractor = (*Docx)(nil)

// Docx handles DOCX documents, which are ZIP archives holding the body
// text in word/document.xml.
type Docx struct{}

// NewDocx creates a DOCX extractor.
func NewDocx() *Docx {
	return &Docx{}
}

// Name returns the extractor name.
func (e *Docx) Name() string { return "docx" }

// ContentTypes returns the categories this extractor handles.
func (e *Docx) ContentTypes() []domain.ContentType {
	return []domain.ContentType{domain.ContentTypeDocument}
}

// Extensions returns the DOCX extension.
func (e *Docx) Extensions() []string {
	return []string{".docx"}
}

// Extract opens the archive and pulls paragraph text. A document whose
// ZIP container opens but whose XML does not parse yields whatever text
// was recovered, marked degraded, rather than an error.
func (e *Docx) Extract(ctx context.Context, path string) (*driven.ExtractResult, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return nil, &domain.ExtractionError{Kind: domain.ExtractionCorrupt, Path: path, Err: err}
	}
	defer reader.Close()

	if err := ctx.Err(); err != nil {
		return nil, &domain.ExtractionError{Kind: domain.ExtractionTimeout, Path: path, Err: err}
	}

	text, degraded := extractDocumentText(&reader.Reader)

	metadata := map[string]any{"format": "docx"}
	if title := extractCoreTitle(&reader.Reader); title != "" {
		metadata["title"] = title
	}

	return &driven.ExtractResult{
		Text:     text,
		Metadata: metadata,
		Degraded: degraded,
	}, nil
}

// extractDocumentText extracts text from word/document.xml.
func extractDocumentText(reader *zip.Reader) (string, bool) {
	for _, file := range reader.File {
		if file.Name != "word/document.xml" {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return "", true
		}

		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", true
		}

		text := parseDocumentXML(content)
		return text, text == "" && len(content) > 0
	}
	// Missing body part; the container is valid but empty of text.
	return "", true
}

// documentXML represents the structure of word/document.xml.
type documentXML struct {
	Body struct {
		Paragraphs []paragraph `xml:"p"`
	} `xml:"body"`
}

type paragraph struct {
	Runs []run `xml:"r"`
}

type run struct {
	Text []textElement `xml:"t"`
}

type textElement struct {
	Content string `xml:",chardata"`
}

// parseDocumentXML extracts text content from the document XML.
func parseDocumentXML(content []byte) string {
	var doc documentXML
	if err := xml.Unmarshal(content, &doc); err != nil {
		return ""
	}

	var result strings.Builder
	for i, para := range doc.Body.Paragraphs {
		if i > 0 {
			result.WriteString("\n")
		}
		for _, run := range para.Runs {
			for _, text := range run.Text {
				result.WriteString(text.Content)
			}
		}
	}

	return strings.TrimSpace(result.String())
}

// coreXML represents the structure of docProps/core.xml.
type coreXML struct {
	Title string `xml:"title"`
}

// extractCoreTitle reads the document title from docProps/core.xml.
func extractCoreTitle(reader *zip.Reader) string {
	for _, file := range reader.File {
		if file.Name != "docProps/core.xml" {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return ""
		}

		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return ""
		}

		var core coreXML
		if err := xml.Unmarshal(content, &core); err == nil {
			return strings.TrimSpace(core.Title)
		}
		return ""
	}
	return ""
}
