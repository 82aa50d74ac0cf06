package extractor

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"
)

var (
	// ErrInvalidFormat means the input is not a supported document type.
	ErrInvalidFormat = errors.New("invalid document format")

	// ErrExtractionFailed means the file was accepted but text could not
	// be pulled out of it.
	ErrExtractionFailed = errors.New("text extraction failed")
)

// Page is the raw text of a single document page. PageNumber is 1-based.
type Page struct {
	Content    string
	PageNumber int
	Source     string
	DocUID     string
}

// PDFExtractor pulls per-page plain text from PDF files.
type PDFExtractor struct{}

func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

// SupportsType reports whether the extractor can handle the given file
// extension or mime type.
func (e *PDFExtractor) SupportsType(fileType string) bool {
	ft := strings.ToLower(strings.TrimPrefix(fileType, "."))
	return ft == "pdf" || ft == "application/pdf"
}

// ExtractFromBytes writes content to a temp file and extracts from it.
// The ledongthuc reader needs random access, so a ReaderAt backed by a
// real file is the safe path for large uploads.
func (e *PDFExtractor) ExtractFromBytes(content []byte, fileName string) ([]Page, error) {
	if !e.SupportsType(extOf(fileName)) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidFormat, fileName)
	}
	if len(content) < 4 || string(content[:4]) != "%PDF" {
		return nil, fmt.Errorf("%w: missing PDF header", ErrInvalidFormat)
	}

	tmp, err := os.CreateTemp("", "extract-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}

	return e.ExtractFromFile(tmpPath, fileName)
}

// ExtractFromFile extracts per-page text from a PDF on disk. Pages that
// fail individually are skipped rather than failing the whole document.
func (e *PDFExtractor) ExtractFromFile(path, fileName string) ([]Page, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	defer f.Close()

	docUID := uuid.NewString()
	numPages := reader.NumPage()
	pages := make([]Page, 0, numPages)

	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		fonts := make(map[string]*pdf.Font)
		text, err := page.GetPlainText(fonts)
		if err != nil {
			log.Printf("Warning: failed to extract text from page %d of %s: %v", i, fileName, err)
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}

		pages = append(pages, Page{
			Content:    text,
			PageNumber: i,
			Source:     fileName,
			DocUID:     docUID,
		})
	}

	if len(pages) == 0 {
		return nil, fmt.Errorf("%w: no extractable text in %s", ErrExtractionFailed, fileName)
	}
	return pages, nil
}

func extOf(fileName string) string {
	if idx := strings.LastIndex(fileName, "."); idx >= 0 {
		return fileName[idx:]
	}
	return ""
}
