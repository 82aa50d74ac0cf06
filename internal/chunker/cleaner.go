package chunker

import (
	"regexp"
	"strings"
)

var (
	newlineRe    = regexp.MustCompile(`[\n\r]+`)
	whitespaceRe = regexp.MustCompile(`\s+`)
	pageFooterRe = regexp.MustCompile(`(?i)page \d+ of \d+`)
)

// CleanText normalizes extracted document text: newlines become spaces,
// runs of whitespace collapse, "Page N of M" footers are stripped, and a
// couple of frequent OCR misreads are fixed. The replacement order matters;
// footer stripping expects already-collapsed whitespace.
func CleanText(text string) string {
	text = newlineRe.ReplaceAllString(text, " ")
	text = whitespaceRe.ReplaceAllString(text, " ")
	text = pageFooterRe.ReplaceAllString(text, "")

	text = strings.ReplaceAll(text, "l/", "i/")
	text = strings.ReplaceAll(text, "|", "I")

	return strings.TrimSpace(text)
}
