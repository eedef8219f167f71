package cleaner

import (
	"context"
	"testing"

	"github.com/loupe-search/loupe/internal/core/domain"
)

func TestClean(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"collapses spaces", "too   many    spaces", "too many spaces"},
		{"tabs become one space", "a\t\tb", "a b"},
		{"caps blank lines", "one\n\n\n\ntwo", "one\n\ntwo"},
		{"keeps single newline", "one\ntwo", "one\ntwo"},
		{"drops control characters", "be\x00fore\x07after", "beforeafter"},
		{"trims edges", "  \n padded \n ", "padded"},
		{"crlf line endings", "one\r\ntwo", "one\ntwo"},
		{"empty input", "", ""},
		{"multibyte survives", "über  maß", "über maß"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Clean(tc.in); got != tc.want {
				t.Errorf("Clean(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestProcessor_RewritesDocumentText(t *testing.T) {
	doc := &domain.IndexedDocument{ID: "d1", Text: "messy\t\ttext\n\n\n\nhere"}

	chunks, err := New().Process(context.Background(), doc, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if chunks != nil {
		t.Errorf("expected chunks to pass through untouched, got %v", chunks)
	}
	if doc.Text != "messy text\n\nhere" {
		t.Errorf("unexpected cleaned text: %q", doc.Text)
	}
}
