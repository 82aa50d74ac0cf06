package chunker

import (
	"strings"
	"testing"

	"ragchat-platform/internal/extractor"
)

func TestCleanText(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"newlines become spaces", "hello\nworld\r\nagain", "hello world again"},
		{"whitespace collapses", "a   b\t\tc", "a b c"},
		{"page footer stripped", "intro Page 3 of 12 outro", "intro outro"},
		{"footer case insensitive", "x PAGE 1 OF 2 y", "x y"},
		{"ocr slash fix", "see l/usr/share", "see i/usr/share"},
		{"ocr pipe fix", "| think so", "I think so"},
		{"trimmed", "  padded  ", "padded"},
		{"empty", "", ""},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := CleanText(c.in); got != c.want {
				t.Errorf("CleanText(%q) = %q, want %q", c.in, got, c.want)
			}
		})
	}
}

func TestSplitterRespectsChunkSize(t *testing.T) {
	s := NewSplitter(100, 20)

	text := strings.Repeat("the quick brown fox jumps over the lazy dog. ", 40)
	chunks := s.SplitText(text)

	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len(c) > 100 {
			t.Errorf("chunk %d is %d chars, exceeds limit", i, len(c))
		}
		if strings.TrimSpace(c) == "" {
			t.Errorf("chunk %d is whitespace only", i)
		}
	}
}

func TestSplitterDeterministic(t *testing.T) {
	s := NewSplitter(80, 10)
	text := "First paragraph here.\n\nSecond paragraph with more words in it.\n\nThird one. And a sentence. Another sentence follows here."

	a := s.SplitText(text)
	b := s.SplitText(text)

	if len(a) != len(b) {
		t.Fatalf("run lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("chunk %d differs between runs: %q vs %q", i, a[i], b[i])
		}
	}
}

func TestSplitterShortTextSingleChunk(t *testing.T) {
	s := NewSplitter(500, 50)

	chunks := s.SplitText("just a short note")
	if len(chunks) != 1 || chunks[0] != "just a short note" {
		t.Fatalf("expected single unchanged chunk, got %v", chunks)
	}
}

func TestSplitterUnbrokenText(t *testing.T) {
	// No separators at all: falls through to per-rune splitting.
	s := NewSplitter(50, 5)
	text := strings.Repeat("x", 180)

	chunks := s.SplitText(text)
	if len(chunks) < 3 {
		t.Fatalf("expected at least 3 chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len(c) > 50 {
			t.Errorf("chunk %d is %d chars, exceeds limit", i, len(c))
		}
	}
}

func TestDetermineParams(t *testing.T) {
	dense := DetermineParams(1800)
	if dense.ChunkSize != 500 || dense.ChunkOverlap != 50 {
		t.Errorf("dense pages: got %+v, want 500/50", dense)
	}

	sparse := DetermineParams(400)
	if sparse.ChunkSize != 1500 || sparse.ChunkOverlap != 200 {
		t.Errorf("sparse pages: got %+v, want 1500/200", sparse)
	}

	boundary := DetermineParams(1000)
	if boundary.ChunkSize != 1500 {
		t.Errorf("exactly 1000 should use the larger size, got %+v", boundary)
	}
}

func TestAveragePageLength(t *testing.T) {
	if got := AveragePageLength(nil); got != 0 {
		t.Errorf("empty input: got %v, want 0", got)
	}

	pages := []extractor.Page{
		{Content: strings.Repeat("a", 100)},
		{Content: strings.Repeat("b", 300)},
	}
	if got := AveragePageLength(pages); got != 200 {
		t.Errorf("got %v, want 200", got)
	}
}

func TestProcessPagesContiguousIndexes(t *testing.T) {
	pages := []extractor.Page{
		{Content: strings.Repeat("alpha beta gamma delta. ", 120), PageNumber: 1},
		{Content: "   \n\n  ", PageNumber: 2}, // cleans to nothing
		{Content: strings.Repeat("epsilon zeta eta theta. ", 120), PageNumber: 3},
	}

	chunks := ProcessPages(pages)
	if len(chunks) == 0 {
		t.Fatal("expected chunks")
	}

	for i, c := range chunks {
		if c.Index != i {
			t.Errorf("chunk %d has index %d, want contiguous", i, c.Index)
		}
		if c.PageNumber != 1 && c.PageNumber != 3 {
			t.Errorf("chunk %d attributed to blank page %d", i, c.PageNumber)
		}
	}

	// Both non-empty pages are dense (>1000 chars avg pushes size to 500).
	for i, c := range chunks {
		if len(c.Content) > 500 {
			t.Errorf("chunk %d is %d chars, exceeds adaptive limit", i, len(c.Content))
		}
	}
}

func TestProcessPagesEmpty(t *testing.T) {
	if chunks := ProcessPages(nil); len(chunks) != 0 {
		t.Fatalf("expected no chunks, got %d", len(chunks))
	}
}
