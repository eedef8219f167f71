package chunker

import (
	"context"
	"strings"
	"testing"

	"github.com/loupe-search/loupe/internal/core/domain"
)

func TestNew(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		p := New()
		if p.chunkSize != DefaultChunkSize {
			t.Errorf("expected chunkSize %d, got %d", DefaultChunkSize, p.chunkSize)
		}
		if p.overlap != DefaultChunkOverlap {
			t.Errorf("expected overlap %d, got %d", DefaultChunkOverlap, p.overlap)
		}
	})

	t.Run("custom chunk size", func(t *testing.T) {
		p := New(WithChunkSize(500))
		if p.chunkSize != 500 {
			t.Errorf("expected chunkSize 500, got %d", p.chunkSize)
		}
	})

	t.Run("overlap exceeds chunk size", func(t *testing.T) {
		p := New(WithChunkSize(100), WithOverlap(150))
		if p.overlap >= p.chunkSize {
			t.Error("overlap should be reduced when it exceeds chunk size")
		}
	})

	t.Run("zero values ignored", func(t *testing.T) {
		p := New(WithChunkSize(0), WithOverlap(-1))
		if p.chunkSize != DefaultChunkSize {
			t.Errorf("expected default chunkSize, got %d", p.chunkSize)
		}
		if p.overlap != DefaultChunkOverlap {
			t.Errorf("expected default overlap, got %d", p.overlap)
		}
	})
}

func TestProcessor_Process_EmptyContent(t *testing.T) {
	p := New()
	doc := &domain.IndexedDocument{ID: "test-doc"}

	chunks, err := p.Process(context.Background(), doc, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("expected 0 chunks for empty content, got %d", len(chunks))
	}
}

func TestProcessor_Process_SmallContent(t *testing.T) {
	p := New(WithChunkSize(100), WithOverlap(20))
	doc := &domain.IndexedDocument{
		ID:   "test-doc",
		Text: "short content",
	}

	chunks, err := p.Process(context.Background(), doc, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Content != doc.Text {
		t.Errorf("expected chunk content %q, got %q", doc.Text, chunks[0].Content)
	}
	if chunks[0].Start != 0 || chunks[0].End != len(doc.Text) {
		t.Errorf("expected span [0,%d), got [%d,%d)", len(doc.Text), chunks[0].Start, chunks[0].End)
	}
}

func TestProcessor_Process_Overlap(t *testing.T) {
	p := New(WithChunkSize(100), WithOverlap(20))
	doc := &domain.IndexedDocument{
		ID:   "test-doc",
		Text: strings.Repeat("a", 250),
	}

	chunks, err := p.Process(context.Background(), doc, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Steps of 80: [0,100), [80,180), [160,250), [240,250)
	if len(chunks) != 4 {
		t.Fatalf("expected 4 chunks, got %d", len(chunks))
	}

	for i := 1; i < len(chunks); i++ {
		if chunks[i].Start != chunks[i-1].Start+80 {
			t.Errorf("chunk %d start %d, expected %d", i, chunks[i].Start, chunks[i-1].Start+80)
		}
		if chunks[i].Position != i {
			t.Errorf("chunk %d position %d", i, chunks[i].Position)
		}
	}
}

func TestProcessor_Process_ChunkOwnership(t *testing.T) {
	p := New(WithChunkSize(50), WithOverlap(10))
	doc := &domain.IndexedDocument{
		ID:   "owner-doc",
		Text: strings.Repeat("xyz ", 40),
	}

	chunks, err := p.Process(context.Background(), doc, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	seen := make(map[string]bool)
	for _, chunk := range chunks {
		if chunk.DocumentID != doc.ID {
			t.Errorf("chunk %s has document ID %q", chunk.ID, chunk.DocumentID)
		}
		if chunk.ID == "" {
			t.Error("chunk missing ID")
		}
		if seen[chunk.ID] {
			t.Errorf("duplicate chunk ID %s", chunk.ID)
		}
		seen[chunk.ID] = true
	}
}
