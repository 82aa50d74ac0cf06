package extractor

import (
	"errors"
	"testing"
)

func TestSupportsType(t *testing.T) {
	e := NewPDFExtractor()

	cases := []struct {
		fileType string
		want     bool
	}{
		{"pdf", true},
		{".pdf", true},
		{"PDF", true},
		{"application/pdf", true},
		{"docx", false},
		{"", false},
	}

	for _, c := range cases {
		if got := e.SupportsType(c.fileType); got != c.want {
			t.Errorf("SupportsType(%q) = %v, want %v", c.fileType, got, c.want)
		}
	}
}

func TestExtractFromBytesRejectsWrongExtension(t *testing.T) {
	e := NewPDFExtractor()

	_, err := e.ExtractFromBytes([]byte("%PDF-1.4 fake"), "notes.txt")
	if !errors.Is(err, ErrInvalidFormat) {
		t.Fatalf("expected ErrInvalidFormat, got %v", err)
	}
}

func TestExtractFromBytesRejectsMissingHeader(t *testing.T) {
	e := NewPDFExtractor()

	_, err := e.ExtractFromBytes([]byte("this is not a pdf"), "doc.pdf")
	if !errors.Is(err, ErrInvalidFormat) {
		t.Fatalf("expected ErrInvalidFormat, got %v", err)
	}
}

func TestExtractFromBytesCorruptContent(t *testing.T) {
	e := NewPDFExtractor()

	// Valid header, garbage body: must surface as extraction failure.
	_, err := e.ExtractFromBytes([]byte("%PDF-1.7\ngarbage body with no xref"), "doc.pdf")
	if !errors.Is(err, ErrExtractionFailed) {
		t.Fatalf("expected ErrExtractionFailed, got %v", err)
	}
}
