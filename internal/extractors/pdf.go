package extractors

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/loupe-search/loupe/internal/core/domain"
	"github.com/loupe-search/loupe/internal/core/ports/driven"
)

// Ensure PDF implements the interface.
var _ driven.Extractor = (*PDF)(nil)

// ErrPDFToolNotFound is returned when pdftotext is not installed.
var ErrPDFToolNotFound = errors.New("pdftotext not found in PATH (install poppler-utils)")

// CommandRunner abstracts external command execution so tests can
// substitute a fake pdftotext.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// execRunner runs real commands.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// PDF handles PDF documents by shelling out to pdftotext.
type PDF struct {
	runner CommandRunner
}

// NewPDF creates a PDF extractor using the system pdftotext binary.
func NewPDF() *PDF {
	return &PDF{runner: execRunner{}}
}

// NewPDFWithRunner creates a PDF extractor with a custom command runner.
func NewPDFWithRunner(runner CommandRunner) *PDF {
	return &PDF{runner: runner}
}

// Name returns the extractor name.
func (e *PDF) Name() string { return "pdf" }

// ContentTypes returns the categories this extractor handles.
func (e *PDF) ContentTypes() []domain.ContentType {
	return []domain.ContentType{domain.ContentTypeDocument}
}

// Extensions returns the PDF extension.
func (e *PDF) Extensions() []string {
	return []string{".pdf"}
}

// Extract converts the PDF to text via pdftotext. A conversion that
// produces some text despite a non-zero exit is kept and marked
// degraded; partially corrupt files are common and partial text still
// searches fine.
func (e *PDF) Extract(ctx context.Context, path string) (*driven.ExtractResult, error) {
	if _, err := exec.LookPath("pdftotext"); err != nil {
		return nil, &domain.ExtractionError{
			Kind: domain.ExtractionUnsupported,
			Path: path,
			Err:  ErrPDFToolNotFound,
		}
	}

	// -layout keeps table structure readable; "-" writes to stdout.
	output, err := e.runner.Run(ctx, "pdftotext", "-layout", path, "-")
	if err != nil {
		if ctx.Err() != nil {
			return nil, &domain.ExtractionError{Kind: domain.ExtractionTimeout, Path: path, Err: ctx.Err()}
		}
		text := strings.TrimSpace(string(output))
		if text != "" {
			return &driven.ExtractResult{
				Text:     text,
				Metadata: map[string]any{"format": "pdf"},
				Degraded: true,
			}, nil
		}
		return nil, &domain.ExtractionError{
			Kind: domain.ExtractionCorrupt,
			Path: path,
			Err:  fmt.Errorf("pdftotext failed: %w", err),
		}
	}

	return &driven.ExtractResult{
		Text:     strings.TrimSpace(string(output)),
		Metadata: map[string]any{"format": "pdf"},
	}, nil
}
