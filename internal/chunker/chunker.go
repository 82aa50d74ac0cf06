package chunker

import "ragchat-platform/internal/extractor"

// Params control chunk sizing for one document.
type Params struct {
	ChunkSize    int
	ChunkOverlap int
}

// Chunk is one cleaned, size-bounded piece of document text.
// Index is 0-based and contiguous across the whole document.
type Chunk struct {
	Content    string
	Index      int
	PageNumber int
}

// AveragePageLength returns the mean raw content length over pages.
// Empty input returns 0.
func AveragePageLength(pages []extractor.Page) float64 {
	if len(pages) == 0 {
		return 0
	}
	total := 0
	for _, p := range pages {
		total += len(p.Content)
	}
	return float64(total) / float64(len(pages))
}

// DetermineParams adapts chunk sizing to page density: long pages get
// smaller chunks, short pages get larger ones.
func DetermineParams(avgPageLength float64) Params {
	if avgPageLength > 1000 {
		return Params{ChunkSize: 500, ChunkOverlap: 50}
	}
	return Params{ChunkSize: 1500, ChunkOverlap: 200}
}

// ProcessPages cleans and splits extracted pages into chunks with a
// single contiguous index sequence for the document. Pages that clean
// down to nothing produce no chunks and do not leave index gaps.
func ProcessPages(pages []extractor.Page) []Chunk {
	params := DetermineParams(AveragePageLength(pages))
	splitter := NewSplitter(params.ChunkSize, params.ChunkOverlap)

	var chunks []Chunk
	index := 0
	for _, page := range pages {
		cleaned := CleanText(page.Content)
		if cleaned == "" {
			continue
		}
		for _, text := range splitter.SplitText(cleaned) {
			chunks = append(chunks, Chunk{
				Content:    text,
				Index:      index,
				PageNumber: page.PageNumber,
			})
			index++
		}
	}
	return chunks
}
