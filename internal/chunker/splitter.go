package chunker

import (
	"fmt"
	"strings"
)

// DefaultSeparators are tried in order, coarsest first. The empty string
// is the terminal fallback and splits per rune.
var DefaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// Splitter recursively splits text on a separator hierarchy and merges
// the pieces back into chunks of at most ChunkSize characters with
// ChunkOverlap characters carried between consecutive chunks. Output is
// deterministic for a given input.
type Splitter struct {
	ChunkSize    int
	ChunkOverlap int
	Separators   []string
}

func NewSplitter(chunkSize, chunkOverlap int) *Splitter {
	if chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize / 4
	}
	return &Splitter{
		ChunkSize:    chunkSize,
		ChunkOverlap: chunkOverlap,
		Separators:   DefaultSeparators,
	}
}

// SplitText splits text into chunks. Whitespace-only chunks are dropped.
func (s *Splitter) SplitText(text string) []string {
	seps := s.Separators
	if len(seps) == 0 {
		seps = DefaultSeparators
	}
	return s.split(text, seps)
}

func (s *Splitter) split(text string, separators []string) []string {
	// Pick the first separator that actually occurs in the text.
	separator := separators[len(separators)-1]
	var remaining []string
	for i, sep := range separators {
		if sep == "" {
			separator = sep
			break
		}
		if strings.Contains(text, sep) {
			separator = sep
			remaining = separators[i+1:]
			break
		}
	}

	splits := splitOn(text, separator)

	var final []string
	var good []string
	for _, piece := range splits {
		if len(piece) < s.ChunkSize {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			final = append(final, s.merge(good, separator)...)
			good = nil
		}
		if len(remaining) == 0 {
			final = append(final, piece)
		} else {
			final = append(final, s.split(piece, remaining)...)
		}
	}
	if len(good) > 0 {
		final = append(final, s.merge(good, separator)...)
	}
	return final
}

// merge greedily packs small pieces into chunks of at most ChunkSize,
// retaining a tail of at most ChunkOverlap characters between chunks.
func (s *Splitter) merge(splits []string, separator string) []string {
	sepLen := len(separator)

	var chunks []string
	var current []string
	total := 0

	for _, piece := range splits {
		pl := len(piece)
		if total+pl+extra(sepLen, len(current)) > s.ChunkSize && len(current) > 0 {
			if chunk := joinChunk(current, separator); chunk != "" {
				chunks = append(chunks, chunk)
			}
			// Drop from the front until the retained tail fits the
			// overlap budget and leaves room for the next piece.
			for total > s.ChunkOverlap ||
				(total+pl+extra(sepLen, len(current)) > s.ChunkSize && total > 0) {
				total -= len(current[0]) + extra(sepLen, len(current)-1)
				current = current[1:]
			}
		}
		current = append(current, piece)
		total += pl + extra(sepLen, len(current)-1)
	}

	if chunk := joinChunk(current, separator); chunk != "" {
		chunks = append(chunks, chunk)
	}
	return chunks
}

// extra is the separator cost of appending one more piece.
func extra(sepLen, existing int) int {
	if existing > 0 {
		return sepLen
	}
	return 0
}

func joinChunk(pieces []string, separator string) string {
	return strings.TrimSpace(strings.Join(pieces, separator))
}

// splitOn splits text by separator, dropping empty fragments. The empty
// separator splits per rune.
func splitOn(text, separator string) []string {
	var raw []string
	if separator == "" {
		for _, r := range text {
			raw = append(raw, string(r))
		}
	} else {
		raw = strings.Split(text, separator)
	}

	out := raw[:0]
	for _, piece := range raw {
		if piece != "" {
			out = append(out, piece)
		}
	}
	return out
}

// String describes the splitter configuration, useful in logs.
func (s *Splitter) String() string {
	return fmt.Sprintf("splitter(size=%d overlap=%d)", s.ChunkSize, s.ChunkOverlap)
}
